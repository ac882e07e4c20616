// Package hw is the one place that imports periph.io/x/conn/v3 and
// periph.io/x/host/v3 (S2.2): it satisfies the small local interfaces
// pkg/thermocouple, pkg/heater, internal/state, internal/ui and
// internal/safety define against real GPIO/PWM/SPI-bit-banged silicon,
// grounded on seedhammer.com's driver/wshat and input packages (pin
// acquisition via periph.io/x/host/v3/bcm283x, edge-triggered button
// reads).
package hw

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/bcm283x"

	"github.com/solderstation/tipctl/internal/ui"
	"github.com/solderstation/tipctl/pkg/thermocouple"
)

// Init brings up the periph host drivers once at process start, mirroring
// the teacher's one-time setup posture (coil.NewCoil opening its device
// files once) generalized to periph's host.Init().
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("hw: periph host init: %w", err)
	}
	return nil
}

// Thermocouple bit-bangs a MAX6675-style SCK/CS/SO read (S6: "thermocouple
// (SCK/CS/SO, bit-banged)"), rather than going through periph's spi.Port,
// since the part's 3-wire protocol is simpler driven directly over GPIO -
// the same posture seedhammer's input driver takes toward its joystick
// lines rather than reaching for a heavier bus abstraction.
type Thermocouple struct {
	sck, cs, so gpio.PinIO
}

// NewThermocouple acquires the three thermocouple lines (board pin map,
// S6: "thermocouple (SCK/CS/SO, bit-banged)").
func NewThermocouple() (*Thermocouple, error) {
	sck := bcm283x.GPIO2
	cs := bcm283x.GPIO3
	so := bcm283x.GPIO4
	if err := sck.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("hw: thermocouple SCK setup: %w", err)
	}
	if err := cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("hw: thermocouple CS setup: %w", err)
	}
	if err := so.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("hw: thermocouple SO setup: %w", err)
	}
	return &Thermocouple{sck: sck, cs: cs, so: so}, nil
}

// ReadRaw clocks out 16 bits MAX6675-style and returns the temperature in
// whole degrees C, satisfying pkg/thermocouple.RawSensor. Bit 1 (the
// device-ID bit, which the datasheet guarantees always reads 0) being set
// means the frame itself is corrupted, reported directly as an
// InvalidReading *thermocouple.Fault since only this driver can tell that
// apart from a well-formed reading; bit 2 (the open-thermocouple flag)
// surfaces as a plain error and is classified by the conditioner in
// pkg/thermocouple instead (S4.2).
func (t *Thermocouple) ReadRaw() (int, error) {
	if err := t.cs.Out(gpio.Low); err != nil {
		return 0, fmt.Errorf("hw: thermocouple select: %w", err)
	}
	defer t.cs.Out(gpio.High)

	var word uint16
	for i := 0; i < 16; i++ {
		if err := t.sck.Out(gpio.Low); err != nil {
			return 0, fmt.Errorf("hw: thermocouple clock low: %w", err)
		}
		time.Sleep(time.Microsecond)
		var bit uint16
		if t.so.Read() == gpio.High {
			bit = 1
		}
		word = word<<1 | bit
		if err := t.sck.Out(gpio.High); err != nil {
			return 0, fmt.Errorf("hw: thermocouple clock high: %w", err)
		}
		time.Sleep(time.Microsecond)
	}

	if word&0x2 != 0 {
		return 0, thermocouple.NewFault(thermocouple.InvalidReading, fmt.Sprintf("reserved device-id bit set in frame 0x%04x", word))
	}
	if word&0x4 != 0 {
		return 0, fmt.Errorf("hw: thermocouple open circuit")
	}
	tempC := int(word>>3) / 4
	return tempC, nil
}

// PWMOutput drives a duty-cycle-controlled GPIO line via periph's PWM
// method, backing pkg/heater.Output for element heaters and the buzzer.
type PWMOutput struct {
	pin  gpio.PinOut
	freq physic.Frequency
}

// NewPWMOutput acquires pin by name at the given carrier frequency.
func NewPWMOutput(pin gpio.PinOut, freq physic.Frequency) *PWMOutput {
	return &PWMOutput{pin: pin, freq: freq}
}

// SetDutyPercent satisfies pkg/heater.Output.
func (p *PWMOutput) SetDutyPercent(percent float64) {
	if percent <= 0 {
		_ = p.pin.Out(gpio.Low)
		return
	}
	duty := gpio.Duty(percent / 100 * float64(gpio.DutyMax))
	_ = p.pin.PWM(duty, p.freq)
}

// CoilDriver energizes an induction coil's resonant-drive pin pair,
// satisfying pkg/heater.CoilDriver. Sequencing (enable pin before duty,
// duty to zero before disable) is the "ordered pin sequencing" S4.4 calls
// out for the induction variant.
type CoilDriver struct {
	enable gpio.PinOut
	drive  *PWMOutput
}

func NewCoilDriver(enable gpio.PinOut, drive *PWMOutput) *CoilDriver {
	return &CoilDriver{enable: enable, drive: drive}
}

func (c *CoilDriver) Energize(dutyPercent float64) {
	_ = c.enable.Out(gpio.High)
	c.drive.SetDutyPercent(dutyPercent)
}

func (c *CoilDriver) Deenergize() {
	c.drive.SetDutyPercent(0)
	_ = c.enable.Out(gpio.Low)
}

// LED drives the onboard firmware-alive indicator (S6), satisfying
// internal/state.LED and internal/ui.LED.
type LED struct {
	pin gpio.PinOut
}

func NewLED(pin gpio.PinOut) *LED { return &LED{pin: pin} }

func (l *LED) On()  { _ = l.pin.Out(gpio.High) }
func (l *LED) Off() { _ = l.pin.Out(gpio.Low) }

// Blink pulses the LED count times, durationMS on, durationMS off,
// satisfying S6's pre-display "three 75 ms blinks confirm firmware
// start" and the display-init-failure fallback pattern.
func (l *LED) Blink(count int, durationMS int) {
	d := time.Duration(durationMS) * time.Millisecond
	for i := 0; i < count; i++ {
		l.On()
		time.Sleep(d)
		l.Off()
		if i != count-1 {
			time.Sleep(d)
		}
	}
}

// Buzzer drives a PWM-capable buzzer pin, satisfying internal/ui.Buzzer
// and internal/state.Buzzer, grounded on the source's buzzer_play_tone
// (set frequency, duty on, sleep, duty off).
type Buzzer struct {
	out *PWMOutput
}

func NewBuzzer(pin gpio.PinOut) *Buzzer {
	return &Buzzer{out: NewPWMOutput(pin, 0)}
}

func (b *Buzzer) PlayTone(freqHz, durationMS int) {
	b.out.freq = physic.Frequency(freqHz) * physic.Hertz
	b.out.SetDutyPercent(50)
	time.Sleep(time.Duration(durationMS) * time.Millisecond)
	b.out.SetDutyPercent(0)
}

// Watchdog feeds a periph/host-backed external watchdog, satisfying
// internal/safety.Watchdog. The real /dev/watchdog ioctl sequence is
// platform-specific and intentionally left to a build-tagged variant;
// this one just drives a GPIO kick line some external supervisory MCUs
// use, which fits the "external watchdog" wording of S4.5/S6 without
// assuming a specific chip's ioctl surface.
type Watchdog struct {
	kick gpio.PinOut
}

func NewWatchdog(kick gpio.PinOut) *Watchdog {
	return &Watchdog{kick: kick}
}

func (w *Watchdog) Feed() {
	_ = w.kick.Out(gpio.High)
	time.Sleep(time.Millisecond)
	_ = w.kick.Out(gpio.Low)
}

// ADCReader reads a raw ADC sample as a fraction of full scale (0..1).
// Satisfied by whatever board-specific analog driver fronts the die
// temperature sensor; periph.io/x/conn/v3 has no generic analog.Pin, so
// this stays a one-method local interface rather than assuming one.
type ADCReader interface {
	ReadRatio() (float64, error)
}

// DieTempSensor converts the host's internal temperature sensor reading
// to whole degrees C, satisfying internal/safety.DieTempReader. The
// voltage-to-temperature formula is the source's own
// (27 - (Vbe - 0.706) / 0.001721) linear approximation (S4.5).
type DieTempSensor struct {
	adc     ADCReader
	supplyV float64
}

func NewDieTempSensor(adc ADCReader, supplyV float64) *DieTempSensor {
	return &DieTempSensor{adc: adc, supplyV: supplyV}
}

func (d *DieTempSensor) ReadC() (int, error) {
	ratio, err := d.adc.ReadRatio()
	if err != nil {
		return 0, fmt.Errorf("hw: die temp ADC read: %w", err)
	}
	v := ratio * d.supplyV
	tempC := 27 - (v-0.706)/0.001721
	return int(tempC), nil
}

// RotaryEncoder decodes a quadrature CLK/DT pair and a push button,
// satisfying internal/ui.InputSource. Grounded on seedhammer's input.go
// edge-triggered button reads, generalized from single buttons to a
// quadrature pair plus one push button.
type RotaryEncoder struct {
	clk, dt, button gpio.PinIn
	lastClk         gpio.Level
	wasPressed      bool
}

func NewRotaryEncoder(clk, dt, button gpio.PinIn) (*RotaryEncoder, error) {
	if err := clk.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("hw: rotary CLK setup: %w", err)
	}
	if err := dt.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("hw: rotary DT setup: %w", err)
	}
	if err := button.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("hw: rotary button setup: %w", err)
	}
	return &RotaryEncoder{clk: clk, dt: dt, button: button, lastClk: clk.Read()}, nil
}

// Direction polls CLK/DT once; call at the main loop's ~70 ms cadence
// (S5).
func (r *RotaryEncoder) Direction() ui.RotaryDirection {
	cur := r.clk.Read()
	defer func() { r.lastClk = cur }()
	if cur == r.lastClk {
		return ui.RotaryNone
	}
	if cur == gpio.Low {
		if r.dt.Read() != cur {
			return ui.RotaryClockwise
		}
		return ui.RotaryCounterClockwise
	}
	return ui.RotaryNone
}

// ButtonPressed reports a high-to-low edge on the push button (active
// low, per the board's pull-up wiring), consumed at most once per press.
func (r *RotaryEncoder) ButtonPressed() bool {
	pressed := r.button.Read() == gpio.Low
	edge := pressed && !r.wasPressed
	r.wasPressed = pressed
	return edge
}
