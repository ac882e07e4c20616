// Package control implements the Control Tick Orchestrator (H): the
// fixed-period loop that wires the Thermocouple Conditioner (B), Shared
// State (F), PID Regulator (C) and Heater Driver (D) together, following
// the nine ordered steps of S4.8. It is grounded on the teacher's
// coil.go Run loop (the select-on-ticker shape, and the "read, react,
// command" sequencing per tick) but replaces the single fixed pipeline
// with the element/induction branch S4.2 requires.
package control

import (
	"fmt"
	"time"
)

// Sampler acquires one temperature sample per tick, hiding whether the
// underlying heater variant needs the induction-aware off-read protocol
// (S4.2) or a plain raw read (element variant).
type Sampler interface {
	// Sample returns a temperature in whole degrees C, an advisory flag
	// asking the caller to de-energize and retry after a pause, or an
	// error (recoverable or fatal per the thermocouple package).
	Sample(heaterIsOn bool) (tempC int, needOffForSafeRead bool, err error)
}

// RawReader is satisfied by *thermocouple.Conditioner for the element
// variant, which discards the induction advisory flag entirely (S4.2).
type RawReader interface {
	ReadRaw() (int, error)
}

// FilteredReader is satisfied by *thermocouple.Conditioner for the
// induction variant, which needs the EMF-aware off-read protocol.
type FilteredReader interface {
	ReadFiltered(heaterIsOn bool) (tempC int, needOffForSafeRead bool, err error)
}

// ElementSampler adapts a RawReader (element heaters have no EMF
// interference) to the Sampler interface.
type ElementSampler struct {
	Reader RawReader
}

func (s ElementSampler) Sample(heaterIsOn bool) (int, bool, error) {
	t, err := s.Reader.ReadRaw()
	return t, false, err
}

// InductionSampler adapts a FilteredReader to the Sampler interface.
type InductionSampler struct {
	Reader FilteredReader
}

func (s InductionSampler) Sample(heaterIsOn bool) (int, bool, error) {
	return s.Reader.ReadFiltered(heaterIsOn)
}

// Mode is the subset of internal/state.Mode the orchestrator needs to
// know about: whether the system is in Off.
type Mode int

const ModeOff Mode = 0

// SharedState is the slice of internal/state.SharedState the orchestrator
// reads and writes each tick.
type SharedState interface {
	GetMode() Mode
	Setpoint() int
	PowerThreshold() float64
	HeaterMaxDutyCyclePercent() float64
	InputVolts() float64
	HeaterResistance() float64
	SetHeaterTemperature(tempC int, timestampMS int64)
	SetWatts(w int, timestampMS int64)
}

// PID is the slice of pkg/pid.Controller the orchestrator drives.
type PID interface {
	Set(setpoint float64)
	Get() float64
	Update(processVariable float64) float64
}

// Heater is the common heater-driver contract (pkg/heater.Heater).
type Heater interface {
	On(power float64)
	Off()
	SetPower(power float64)
	IsOn() bool
	GetPower() float64
}

// HeaterOverTempC is the code-level hard limit (S4.5): independent of any
// user setpoint, the heater is forced off above this reading regardless
// of mode or PID output.
const HeaterOverTempC = 350

// OffReadPause is the minimum de-energized settle time before a post-pause
// re-read is trusted (S4.2, S5): >= 301 ms.
const OffReadPause = 301 * time.Millisecond

// Clock supplies the orchestrator's notion of time for history timestamps.
type Clock interface {
	NowMS() int64
}

// OverTempReporter receives a non-fatal heater-over-temperature
// notification (S4.5, S7) for the display; nil is permitted.
type OverTempReporter interface {
	HeaterOverTemp(tempC int)
}

// Orchestrator runs one S4.8 tick at a time. It is not safe for concurrent
// Tick calls - the caller (a single ticker-driven goroutine) must serialize
// them, matching the teacher's single select loop in coil.go.
type Orchestrator struct {
	sampler        Sampler
	shared         SharedState
	pid            PID
	heater         Heater
	clock          Clock
	elementVariant bool
	overTemp       OverTempReporter
	sleep          func(time.Duration)
}

// New constructs an Orchestrator. elementVariant selects whether SetPower
// is re-issued on every on-tick (element, step 8's last bullet) or left to
// the heater driver's own On/SetPower calls (induction).
func New(sampler Sampler, shared SharedState, pid PID, heater Heater, clock Clock, elementVariant bool, overTemp OverTempReporter) *Orchestrator {
	return &Orchestrator{
		sampler:        sampler,
		shared:         shared,
		pid:            pid,
		heater:         heater,
		clock:          clock,
		elementVariant: elementVariant,
		overTemp:       overTemp,
		sleep:          time.Sleep,
	}
}

// Tick runs one control-tick iteration (S4.8 steps 1-9).
func (o *Orchestrator) Tick() error {
	// 1. Sync pid.setpoint to shared.setpoint if divergent.
	if setpoint := float64(o.shared.Setpoint()); o.pid.Get() != setpoint {
		o.pid.Set(setpoint)
	}

	heaterWasOn := o.heater.IsOn()

	// 2. Acquire a temperature sample.
	tempC, needOffRead, err := o.sampler.Sample(heaterWasOn)
	if err != nil {
		o.heater.Off()
		return fmt.Errorf("control tick: sample: %w", err)
	}

	// 3. Off-read cycle for induction EMF rejection.
	if needOffRead {
		o.heater.Off()
		o.sleep(OffReadPause)
		retried, _, err := o.sampler.Sample(false)
		if err != nil {
			return fmt.Errorf("control tick: post-pause sample: %w", err)
		}
		tempC = retried
	}

	// 4. Commit sample to Shared State / history.
	now := o.clock.NowMS()
	o.shared.SetHeaterTemperature(tempC, now)

	// 5. Compute watts.
	watts := 0
	if o.heater.IsOn() {
		v := o.shared.InputVolts()
		r := o.shared.HeaterResistance()
		maxDuty := o.shared.HeaterMaxDutyCyclePercent()
		watts = int((v * v / r) * (maxDuty / 100) * (o.heater.GetPower() / 10))
	}
	o.shared.SetWatts(watts, now)

	// 6. Run the PID.
	power := o.pid.Update(float64(tempC))

	// 7. Mode == Off forces the heater off and ends the tick.
	if o.shared.GetMode() == ModeOff {
		o.heater.Off()
		return nil
	}

	// 8/9. Power-threshold branching.
	if power > o.shared.PowerThreshold() {
		if tempC > HeaterOverTempC {
			o.heater.Off()
			if o.overTemp != nil {
				o.overTemp.HeaterOverTemp(tempC)
			}
			return nil
		}
		if !o.heater.IsOn() {
			if o.shared.GetMode() == ModeOff {
				return nil
			}
			o.heater.On(power)
		}
		if o.elementVariant {
			o.heater.SetPower(power)
		}
	} else if o.heater.IsOn() {
		o.heater.Off()
	}

	return nil
}
