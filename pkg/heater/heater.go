// Package heater implements the Heater Driver (D): a common on/off +
// fractional-power control surface shared by element and induction
// variants (S4.4), replacing the source's isinstance-based dispatch with
// an interface and two concrete types (S9).
package heater

import "fmt"

// Heater is the capability set the orchestrator drives. Power buckets are
// floats in [0, 10] (the PID's output range), converted internally to a
// duty-cycle percentage.
type Heater interface {
	// On energizes the heater at the given power bucket (0..10).
	On(power float64)
	// Off de-energizes the heater. Idempotent; the physical output is
	// guaranteed de-energized before Off returns.
	Off()
	// SetPower updates the duty cycle while already energized.
	SetPower(power float64)
	// IsOn reflects the last commanded state.
	IsOn() bool
	// GetPower returns the last commanded power bucket.
	GetPower() float64
}

// Output is the narrow interface to the physical drive. internal/hw
// provides a periph.io-backed PWM implementation; tests and cmd/simulate
// use an in-memory fake.
type Output interface {
	// SetDutyPercent sets the physical drive to the given duty cycle
	// (0..100). 0 must fully de-energize the output.
	SetDutyPercent(percent float64)
}

func bucketToDutyPercent(power, maxDutyCyclePercent float64) float64 {
	return (power / 10.0) * (maxDutyCyclePercent / 100.0) * 100.0
}

// Element is the Element(pin, max_duty_percent) heater variant (S3): a
// single PWM-driven resistive element with no induction interference.
type Element struct {
	out                 Output
	maxDutyCyclePercent float64

	on    bool
	power float64
}

// NewElement constructs an Element heater. maxDutyCyclePercent (0..100) is
// a build-time ceiling protecting the supply; an out-of-range value is a
// programming error (S4.4).
func NewElement(out Output, maxDutyCyclePercent float64) *Element {
	if maxDutyCyclePercent < 0 || maxDutyCyclePercent > 100 {
		panic(fmt.Sprintf("heater: maxDutyCyclePercent out of range: %v", maxDutyCyclePercent))
	}
	return &Element{out: out, maxDutyCyclePercent: maxDutyCyclePercent}
}

func (e *Element) On(power float64) {
	e.power = power
	e.on = true
	e.out.SetDutyPercent(bucketToDutyPercent(power, e.maxDutyCyclePercent))
}

func (e *Element) Off() {
	e.power = 0
	e.on = false
	e.out.SetDutyPercent(0)
}

func (e *Element) SetPower(power float64) {
	e.power = power
	if e.on {
		e.out.SetDutyPercent(bucketToDutyPercent(power, e.maxDutyCyclePercent))
	}
}

func (e *Element) IsOn() bool        { return e.on }
func (e *Element) GetPower() float64 { return e.power }

// CoilDriver is the opaque ordered-pin-sequencing driver behind an
// Induction heater's resonant drive pair (S4.4) - treated as a black box
// here; internal/hw provides the real hardware-timer-backed sequencing.
type CoilDriver interface {
	Energize(dutyPercent float64)
	Deenergize()
}

// Induction is the Induction(coil_pins, timer) heater variant (S3): a
// resonant-drive pair managed via a hardware timer. It shares Element's
// control surface, SetPower included; the orchestrator only calls
// SetPower for element heaters (S4.4 describes SetPower as "element
// variant"), so an induction heater's duty normally changes through On.
type Induction struct {
	driver              CoilDriver
	maxDutyCyclePercent float64

	on    bool
	power float64
}

// NewInduction constructs an Induction heater driving coil via driver.
func NewInduction(driver CoilDriver, maxDutyCyclePercent float64) *Induction {
	if maxDutyCyclePercent < 0 || maxDutyCyclePercent > 100 {
		panic(fmt.Sprintf("heater: maxDutyCyclePercent out of range: %v", maxDutyCyclePercent))
	}
	return &Induction{driver: driver, maxDutyCyclePercent: maxDutyCyclePercent}
}

func (h *Induction) On(power float64) {
	h.power = power
	h.on = true
	h.driver.Energize(bucketToDutyPercent(power, h.maxDutyCyclePercent))
}

func (h *Induction) Off() {
	h.power = 0
	h.on = false
	h.driver.Deenergize()
}

// SetPower is a no-op for induction heaters while de-energized; while
// energized it re-sequences the drive at the new duty, same as On without
// the pin-ordering restart the orchestrator's On/Off pairing already
// handles.
func (h *Induction) SetPower(power float64) {
	h.power = power
	if h.on {
		h.driver.Energize(bucketToDutyPercent(power, h.maxDutyCyclePercent))
	}
}

func (h *Induction) IsOn() bool        { return h.on }
func (h *Induction) GetPower() float64 { return h.power }
