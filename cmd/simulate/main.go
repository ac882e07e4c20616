// simulate runs the control core against an in-process thermal model
// instead of real silicon - a bench harness in the spirit of the
// teacher's cmd/client (a small flag-driven CLI), but driving the
// control loop directly rather than talking to a device over HTTP/WS
// (dropped per the network-I/O non-goal; see DESIGN.md).
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/solderstation/tipctl/internal/control"
	"github.com/solderstation/tipctl/internal/state"
	"github.com/solderstation/tipctl/pkg/heater"
	"github.com/solderstation/tipctl/pkg/pid"
)

// plant is a first-order thermal model: temperature relaxes toward a
// duty-proportional ceiling (heater on) or ambient (heater off), standing
// in for the element/coil + thermocouple pair scenario 1 (S8) describes
// ramping from a cold start to setpoint.
type plant struct {
	ambient  float64
	tempC    float64
	maxTempC float64
	tau      time.Duration
	dutyPct  float64
}

func (p *plant) ReadRaw() (int, error) {
	return int(p.tempC), nil
}

func (p *plant) SetDutyPercent(percent float64) {
	p.dutyPct = percent
}

func (p *plant) step(dt time.Duration) {
	target := p.ambient
	if p.dutyPct > 0 {
		target = p.ambient + (p.maxTempC-p.ambient)*(p.dutyPct/100)
	}
	alpha := 1 - math.Exp(-float64(dt)/float64(p.tau))
	p.tempC += (target - p.tempC) * alpha
}

type fakeClock struct{ ms int64 }

func (f *fakeClock) NowMS() int64 { return f.ms }

type fakeLED struct{}

func (fakeLED) On()  {}
func (fakeLED) Off() {}

type fakeBuzzer struct{}

func (fakeBuzzer) PlayTone(int, int) {}

type sharedAdapter struct{ s *state.SharedState }

func (a sharedAdapter) GetMode() control.Mode                { return control.Mode(a.s.GetMode()) }
func (a sharedAdapter) Setpoint() int                        { return a.s.Setpoint() }
func (a sharedAdapter) PowerThreshold() float64              { return a.s.PowerThreshold() }
func (a sharedAdapter) HeaterMaxDutyCyclePercent() float64   { return a.s.HeaterMaxDutyCyclePercent() }
func (a sharedAdapter) InputVolts() float64                  { return a.s.InputVolts() }
func (a sharedAdapter) HeaterResistance() float64            { return a.s.HeaterResistance() }
func (a sharedAdapter) SetHeaterTemperature(t int, ts int64) { a.s.SetHeaterTemperature(t, ts) }
func (a sharedAdapter) SetWatts(w int, ts int64)             { a.s.SetWatts(w, ts) }

func main() {
	setpoint := flag.Int("setpoint", 170, "target temperature in degC")
	ticks := flag.Int("ticks", 200, "number of ~371ms control ticks to run")
	maxDuty := flag.Float64("max-duty", 40, "heater max duty cycle percent")
	flag.Parse()

	cfg := state.DefaultConfig()
	cfg.Setpoint = *setpoint
	cfg.HeaterMaxDutyCyclePercent = *maxDuty

	clk := &fakeClock{}
	pidCtrl := pid.New(2.0, 0.5, 0.1, 0, 10)
	pidCtrl.Set(float64(cfg.Setpoint))

	sharedState := state.New(clk, fakeLED{}, fakeBuzzer{}, pidCtrl, cfg)
	if err := sharedState.SetMode(state.Manual); err != nil {
		fmt.Fprintln(os.Stderr, "set mode:", err)
		os.Exit(1)
	}

	p := &plant{ambient: 20, maxTempC: 300, tau: 25 * time.Second}
	elem := heater.NewElement(p, cfg.HeaterMaxDutyCyclePercent)

	o := control.New(control.ElementSampler{Reader: p}, sharedAdapter{sharedState}, pidCtrl, elem, clk, true, nil)

	const tickPeriod = 371 * time.Millisecond
	fmt.Printf("tick,temp_c,power,watts,heater_on\n")
	for i := 0; i < *ticks; i++ {
		clk.ms += tickPeriod.Milliseconds()
		p.step(tickPeriod)
		if err := o.Tick(); err != nil {
			fmt.Fprintln(os.Stderr, "tick error:", err)
			os.Exit(1)
		}
		if i%10 == 0 {
			fmt.Printf("%d,%d,%.2f,%d,%v\n", i, sharedState.HeaterTemperature(), elem.GetPower(), sharedState.Watts(), elem.IsOn())
		}
	}
}
