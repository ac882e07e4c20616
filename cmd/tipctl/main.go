// tipctl - keep the tip toasty.
//
// Environment Variables:
// TIPCTL_CONFIG_FILE - path to the config.txt key=value file (S6)
// TIPCTL_HEATER_VARIANT - "element" (default) or "induction"
// No variable configures the external watchdog's timeout.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/solderstation/tipctl/internal/config"
	"github.com/solderstation/tipctl/internal/control"
	"github.com/solderstation/tipctl/internal/hw"
	"github.com/solderstation/tipctl/internal/safety"
	"github.com/solderstation/tipctl/internal/session"
	"github.com/solderstation/tipctl/internal/state"
	"github.com/solderstation/tipctl/internal/ui"
	"github.com/solderstation/tipctl/pkg/clock"
	"github.com/solderstation/tipctl/pkg/heater"
	"github.com/solderstation/tipctl/pkg/pid"
	"github.com/solderstation/tipctl/pkg/thermocouple"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3/bcm283x"
)

const (
	controlTickPeriodMS = 371
	dieTickPeriodMS     = 903
	mainLoopPeriod      = 70 * time.Millisecond
)

func main() {
	config.LoadEnv()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	if err := hw.Init(); err != nil {
		log.Fatal().Err(err).Msg("periph host init failed")
	}

	led := hw.NewLED(bcm283x.GPIO17)
	led.Blink(3, 75)

	buzzer := hw.NewBuzzer(bcm283x.GPIO16)
	buzzer.PlayTone(2500, 200) // boot OK (S6)

	display, err := newDisplay()
	if err != nil {
		log.Error().Err(err).Msg("display init failed, signalling forever")
		flashForever(led)
	}
	display.ShowStartupScreen()

	watchdogEnabled := bootButtonHeld()
	var wd *hw.Watchdog
	if watchdogEnabled {
		wd = hw.NewWatchdog(bcm283x.GPIO27)
		log.Info().Msg("watchdog enabled at boot")
	} else {
		buzzer.PlayTone(2000, 250)
		buzzer.PlayTone(1000, 250)
		display.ShowWatchdogOffScreen()
		log.Info().Msg("watchdog disabled at boot")
	}

	cfg := state.DefaultConfig()
	loaded := config.Load(configPath(), config.Defaults{
		SessionTimeoutMS:                       cfg.SessionTimeoutMS,
		TemperatureUnits:                       cfg.TemperatureUnits,
		Setpoint:                               cfg.Setpoint,
		PowerThreshold:                         cfg.PowerThreshold,
		HeaterOnTemperatureDifferenceThreshold: cfg.HeaterOnTemperatureDifferenceThreshold,
	}, log)
	cfg.SessionTimeoutMS = loaded.SessionTimeoutMS
	cfg.TemperatureUnits = loaded.TemperatureUnits
	cfg.Setpoint = loaded.Setpoint
	cfg.PowerThreshold = loaded.PowerThreshold
	cfg.HeaterOnTemperatureDifferenceThreshold = loaded.HeaterOnTemperatureDifferenceThreshold

	pidCtrl := pid.New(2.0, 0.5, 0.1, 0, 10)
	pidCtrl.Set(float64(cfg.Setpoint))

	clk := clock.New()

	tc, err := hw.NewThermocouple()
	if err != nil {
		log.Fatal().Err(err).Msg("thermocouple init failed")
	}
	cond := thermocouple.New(tc, thermocouple.Config{
		AboveLimitCeiling:                       400,
		HeaterOnTemperatureDifferenceThreshold: cfg.HeaterOnTemperatureDifferenceThreshold,
	})

	elementVariant := strings.ToLower(os.Getenv("TIPCTL_HEATER_VARIANT")) != "induction"

	var heaterDrv heater.Heater
	var sampler control.Sampler
	if elementVariant {
		out := hw.NewPWMOutput(bcm283x.GPIO18, 1*physic.KiloHertz)
		heaterDrv = heater.NewElement(out, cfg.HeaterMaxDutyCyclePercent)
		sampler = control.ElementSampler{Reader: cond}
	} else {
		drive := hw.NewPWMOutput(bcm283x.GPIO18, 25*physic.KiloHertz)
		drv := hw.NewCoilDriver(bcm283x.GPIO23, drive)
		heaterDrv = heater.NewInduction(drv, cfg.HeaterMaxDutyCyclePercent)
		sampler = control.InductionSampler{Reader: cond}
	}

	sharedState := state.New(clk, led, buzzer, pidCtrl, cfg)

	overTemp := overTempReporter{display: display}
	orchestrator := control.New(sampler, stateToControl{sharedState}, pidCtrl, heaterDrv, clk, elementVariant, overTemp)

	controlTimer := clk.RegisterPeriodic(controlTickPeriodMS, func() {
		if err := orchestrator.Tick(); err != nil {
			log.Warn().Err(err).Msg("control tick error")
		}
	})
	controlTimer.Start()

	dieSensor := hw.NewDieTempSensor(nil, 3.3) // board-specific ADCReader wired by deployment config
	supervisor := safety.New(dieSensor, controlTimer, heaterDrv, displayErrAdapter{display}, faultSource{cond}, cfg.PiTemperatureLimit)

	dieTimer := clk.RegisterPeriodic(dieTickPeriodMS, supervisor.DieTempTick)
	dieTimer.Start()

	sessionMachine := session.New(stateToSession{sharedState}, pidCtrl, buzzer)

	input, err := hw.NewRotaryEncoder(bcm283x.GPIO13, bcm283x.GPIO12, bcm283x.GPIO14)
	if err != nil {
		log.Fatal().Err(err).Msg("rotary encoder init failed")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go runMainLoop(&wg, stop, sessionMachine, sharedState, supervisor, wd, display, input, log)

	<-sig
	log.Info().Msg("received shutdown signal")
	controlTimer.Stop()
	dieTimer.Stop()
	close(stop)
	wg.Wait()
}

func runMainLoop(wg *sync.WaitGroup, stop <-chan struct{}, m *session.Machine, shared *state.SharedState, sv *safety.Supervisor, wd *hw.Watchdog, display ui.Display, input ui.InputSource, log zerolog.Logger) {
	defer wg.Done()
	ticker := time.NewTicker(mainLoopPeriod)
	defer ticker.Stop()

	menu := ui.MenuHome
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := m.Tick(); err != nil {
				log.Warn().Err(err).Msg("session tick error")
			}
			if wd != nil {
				sv.FeedIfHealthy(wd)
			}
			if input.ButtonPressed() {
				if menu == ui.MenuHome {
					menu = ui.MenuNavigating
				} else {
					menu = ui.MenuHome
				}
			}
			switch menu {
			case ui.MenuNavigating:
				if dir := input.Direction(); dir != ui.RotaryNone {
					shared.SetMenuIndex(shared.MenuIndex() + directionDelta(dir))
				}
				display.DisplaySelectedOption("menu", fmt.Sprintf("%d", shared.MenuIndex()))
			default:
				display.ShowHomeScreen(ui.PIDComponents{}, ui.HeaterStatus{})
			}
			display.DisplayHeartbeat()
		}
	}
}

func directionDelta(d ui.RotaryDirection) int {
	if d == ui.RotaryClockwise {
		return 1
	}
	return -1
}

func configPath() string {
	if p := os.Getenv("TIPCTL_CONFIG_FILE"); p != "" {
		return p
	}
	return "config.txt"
}

func bootButtonHeld() bool {
	button := bcm283x.GPIO14
	if err := button.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return false
	}
	return button.Read() == gpio.High
}

func flashForever(led *hw.LED) {
	for {
		led.Blink(3, 200)
		time.Sleep(time.Second)
	}
}

// newDisplay is a placeholder hook for the real SSD1306-backed
// implementation (S6); the I2C driver itself is out of scope for this
// rework (no periph I2C OLED driver was available in the retrieved
// corpus), so a no-op display satisfies the same interface until one is
// wired in.
func newDisplay() (ui.Display, error) {
	return ui.NoopDisplay{}, nil
}

type overTempReporter struct {
	display ui.Display
}

func (o overTempReporter) HeaterOverTemp(tempC int) {
	o.display.DisplayError("heater-too-hot", fmt.Sprintf("Heater too hot %d C", tempC), 10, true)
}

type displayErrAdapter struct {
	display ui.Display
}

func (d displayErrAdapter) DisplayError(code, text string, seconds int, blocking bool) {
	d.display.DisplayError(code, text, seconds, blocking)
}

type faultSource struct {
	c *thermocouple.Conditioner
}

func (f faultSource) Latched() (bool, string) {
	latched, fault := f.c.Latched()
	if fault == nil {
		return latched, ""
	}
	return latched, fault.Error()
}

// stateToSession adapts *state.SharedState to session.SharedState: the
// two packages define independent Mode types with identical underlying
// representations (S9) to avoid a compile-time dependency between them,
// so this wiring-layer adapter is the one place that converts between
// them.
type stateToSession struct {
	s *state.SharedState
}

func (a stateToSession) GetMode() session.Mode            { return session.Mode(a.s.GetMode()) }
func (a stateToSession) SetMode(m session.Mode) error     { return a.s.SetMode(state.Mode(m)) }
func (a stateToSession) SessionSetpointReached() bool     { return a.s.SessionSetpointReached() }
func (a stateToSession) SetSessionSetpointReached(v bool) { a.s.SetSessionSetpointReached(v) }
func (a stateToSession) SessionResetPIDWhenNearSetpoint() bool {
	return a.s.SessionResetPIDWhenNearSetpoint()
}
func (a stateToSession) Setpoint() int          { return a.s.Setpoint() }
func (a stateToSession) HeaterTemperature() int { return a.s.HeaterTemperature() }

// stateToControl adapts *state.SharedState to control.SharedState for the
// same reason as stateToSession above.
type stateToControl struct {
	s *state.SharedState
}

func (a stateToControl) GetMode() control.Mode                { return control.Mode(a.s.GetMode()) }
func (a stateToControl) Setpoint() int                        { return a.s.Setpoint() }
func (a stateToControl) PowerThreshold() float64              { return a.s.PowerThreshold() }
func (a stateToControl) HeaterMaxDutyCyclePercent() float64   { return a.s.HeaterMaxDutyCyclePercent() }
func (a stateToControl) InputVolts() float64                  { return a.s.InputVolts() }
func (a stateToControl) HeaterResistance() float64            { return a.s.HeaterResistance() }
func (a stateToControl) SetHeaterTemperature(t int, ts int64) { a.s.SetHeaterTemperature(t, ts) }
func (a stateToControl) SetWatts(w int, ts int64)             { a.s.SetWatts(w, ts) }
