// Package safety implements the Safety Supervisor (E): the ~903 ms
// die-temperature tick that cooperatiely pauses the control tick, and the
// watchdog-feeding discipline that starves the watchdog on a fatal fault.
// Heater over-temperature is handled inside internal/control, which
// reports it through its own OverTempReporter, not through this package.
// Grounded on the teacher's use of a second,
// independently-ticking goroutine alongside coil.Run (the signal-handling
// goroutine in cmd/server/main.go), generalized here to a dedicated
// supervisor rather than an ad-hoc os.Signal select.
package safety

import "time"

// DieTempReader reads the host's own internal temperature sensor in
// degrees C.
type DieTempReader interface {
	ReadC() (int, error)
}

// ControlTicker is the control tick's start/stop handle (pkg/clock.Timer
// satisfies this).
type ControlTicker interface {
	Start()
	Stop()
}

// Heater is the minimal heater-off capability the die-temp tick needs.
type Heater interface {
	Off()
}

// Display surfaces a blocking or advisory error (S6's DisplayError).
type Display interface {
	DisplayError(code, text string, seconds int, blocking bool)
}

// Watchdog is fed to prevent a hardware reset.
type Watchdog interface {
	Feed()
}

// FaultSource reports whether a fatal, latched fault (thermocouple or
// otherwise) currently holds the system in a permanently-unsafe state.
// Satisfied by a small adapter over *thermocouple.Conditioner so this
// package does not need to import it.
type FaultSource interface {
	Latched() (bool, string)
}

// Sleeper abstracts time.Sleep for the busy-wait loop, overridable in
// tests.
type Sleeper func(time.Duration)

// DieOverTempPollInterval is how often the busy-wait loop re-checks the
// die sensor while over the limit.
const DieOverTempPollInterval = 200 * time.Millisecond

// Supervisor runs the S4.5 duties.
type Supervisor struct {
	dieSensor   DieTempReader
	controlTick ControlTicker
	heater      Heater
	display     Display
	limit       int
	faults      FaultSource
	sleep       Sleeper

	overLimit     bool
	dieReadFailed bool
}

// New constructs a Supervisor. limit is pi_temperature_limit in degrees C
// (default 60, S4.5).
func New(dieSensor DieTempReader, controlTick ControlTicker, heater Heater, display Display, faults FaultSource, limit int) *Supervisor {
	return &Supervisor{
		dieSensor:   dieSensor,
		controlTick: controlTick,
		heater:      heater,
		display:     display,
		faults:      faults,
		limit:       limit,
		sleep:       time.Sleep,
	}
}

// DieTempTick runs one iteration of the ~903 ms die-temperature check
// (S4.5). On a reading failure it escalates to a fatal display and stops
// petting the watchdog permanently (Healthy will report false from then
// on). On an over-limit reading it stops the control tick, forces the
// heater off, and busy-waits (polling DieOverTempPollInterval) until the
// reading clears, then resumes the control tick.
func (s *Supervisor) DieTempTick() {
	if s.dieReadFailed {
		return // already fatally escalated; nothing left to do here
	}

	t, err := s.dieSensor.ReadC()
	if err != nil {
		s.dieReadFailed = true
		s.heater.Off()
		s.controlTick.Stop()
		if s.display != nil {
			s.display.DisplayError("die-sensor-fault", "die temp sensor read failed", 0, true)
		}
		return
	}

	if t <= s.limit {
		s.overLimit = false
		return
	}

	s.overLimit = true
	s.controlTick.Stop()
	s.heater.Off()
	for {
		if s.display != nil {
			s.display.DisplayError("die-over-temp", "pi too hot", 0, true)
		}
		s.sleep(DieOverTempPollInterval)
		t, err = s.dieSensor.ReadC()
		if err != nil {
			s.dieReadFailed = true
			if s.display != nil {
				s.display.DisplayError("die-sensor-fault", "die temp sensor read failed", 0, true)
			}
			return
		}
		if t <= s.limit {
			break
		}
	}
	s.overLimit = false
	s.controlTick.Start()
}

// Healthy reports whether the watchdog is allowed to be fed this
// iteration: no fatally-latched fault, and the die-temp escalation has not
// permanently given up (S4.5's watchdog discipline).
func (s *Supervisor) Healthy() bool {
	if s.dieReadFailed {
		return false
	}
	if s.faults != nil {
		if latched, _ := s.faults.Latched(); latched {
			return false
		}
	}
	return true
}

// FeedIfHealthy feeds the watchdog once, but only if Healthy(); otherwise
// it is a deliberate no-op, which lets the external watchdog reboot the
// device into a safe initial state.
func (s *Supervisor) FeedIfHealthy(wd Watchdog) {
	if wd == nil || !s.Healthy() {
		return
	}
	wd.Feed()
}
