// Package state implements the Shared State aggregate (F): all mutable
// system data plus the two accessors whose semantics matter most,
// GetMode and SetMode (S4.6).
package state

import (
	"fmt"
	"sync"
	"time"
)

// Mode is one of Off, Manual, Session (S3).
type Mode int

const (
	Off Mode = iota
	Manual
	Session
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "Off"
	case Manual:
		return "Manual"
	case Session:
		return "Session"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Clock is the narrow time source SharedState needs: milliseconds since
// some fixed epoch. Satisfied by *clock.Clock without an import, so state
// stays decoupled from the timer-registration machinery it doesn't need.
type Clock interface {
	NowMS() int64
}

// LED is the onboard indicator the mode accessors drive (S4.6).
type LED interface {
	On()
	Off()
}

// Buzzer plays a tone for the given duration, blocking until done -
// mirrors the source's buzzer_play_tone (S6).
type Buzzer interface {
	PlayTone(freqHz, durationMS int)
}

// PIDResetter is the one PID capability SharedState needs directly:
// entering any non-Off mode resets the regulator (S4.6).
type PIDResetter interface {
	Reset()
}

// EndSessionTones is the three-tone descending alarm played once a Session
// naturally times out (S4.6, S6).
var EndSessionTones = []Tone{
	{FreqHz: 1500, DurationMS: 200},
	{FreqHz: 1000, DurationMS: 200},
	{FreqHz: 500, DurationMS: 200},
}

// Tone is one (frequency, duration) buzzer command.
type Tone struct {
	FreqHz     int
	DurationMS int
}

// Config carries the config-time constants (S3's "(a) config-time
// constants") loaded from config.txt / environment at boot.
type Config struct {
	SessionTimeoutMS                       int64
	TemperatureUnits                       string
	Setpoint                               int
	MaxAllowedSetpoint                     int
	PowerThreshold                         float64
	HeaterOnTemperatureDifferenceThreshold int
	HeaterMaxDutyCyclePercent              float64
	InputVolts                             float64
	HeaterResistance                       float64
	PiTemperatureLimit                     int
	SessionResetPIDWhenNearSetpoint        bool
}

// DefaultConfig mirrors the source's SharedState.__init__ defaults.
func DefaultConfig() Config {
	return Config{
		SessionTimeoutMS:                       5 * 60 * 1000,
		TemperatureUnits:                       "C",
		Setpoint:                               170,
		MaxAllowedSetpoint:                     299,
		PowerThreshold:                         0,
		HeaterOnTemperatureDifferenceThreshold: 20,
		HeaterMaxDutyCyclePercent:              40,
		InputVolts:                             12,
		HeaterResistance:                       0.66,
		PiTemperatureLimit:                     60,
		SessionResetPIDWhenNearSetpoint:        true,
	}
}

// SharedState is the single mutable aggregate (S3, S4.6). All cross-context
// access is serialized by mu, per S5: the control tick, the die-temp tick,
// and the main loop all reach into the same struct.
type SharedState struct {
	mu sync.Mutex

	clock   Clock
	led     LED
	buzzer  Buzzer
	pidCtrl PIDResetter

	cfg Config

	mode                   Mode
	sessionStartTimeMS     int64
	sessionSetpointReached bool

	setpoint       int
	powerThreshold float64

	heaterOnTemperatureDifferenceThreshold int
	heaterMaxDutyCyclePercent              float64
	inputVolts                             float64
	heaterResistance                       float64
	sessionResetPIDWhenNearSetpoint        bool

	heaterTemperature int
	watts             int

	temperatureReadings RingBuffer
	wattReadings        RingBuffer

	piTemperature      int
	piTemperatureLimit int

	menuIndex       int
	displayContrast int
}

// New constructs a SharedState. led, buzzer, and pidCtrl may be nil in
// tests that don't exercise mode transitions' side effects.
func New(clk Clock, led LED, buzzer Buzzer, pidCtrl PIDResetter, cfg Config) *SharedState {
	return &SharedState{
		clock:                                  clk,
		led:                                    led,
		buzzer:                                 buzzer,
		pidCtrl:                                pidCtrl,
		cfg:                                    cfg,
		setpoint:                               cfg.Setpoint,
		powerThreshold:                         cfg.PowerThreshold,
		heaterOnTemperatureDifferenceThreshold: cfg.HeaterOnTemperatureDifferenceThreshold,
		heaterMaxDutyCyclePercent:              cfg.HeaterMaxDutyCyclePercent,
		inputVolts:                             cfg.InputVolts,
		heaterResistance:                       cfg.HeaterResistance,
		sessionResetPIDWhenNearSetpoint:        cfg.SessionResetPIDWhenNearSetpoint,
		piTemperatureLimit:                     cfg.PiTemperatureLimit,
	}
}

// GetMode returns the current mode, first checking whether an active
// Session has timed out. Expiry is a one-shot, side-effectful transition
// (S4.6): mode flips to Off, session_setpoint_reached clears, and the LED
// turns off all while the lock is held (so a racing GetMode/SetMode never
// observes the old mode again), but the three-tone alarm plays after the
// lock is released - the source's own comment is "Set off here rather
// than after playing sounds as this can get called again while sounds
// being played".
func (s *SharedState) GetMode() Mode {
	s.mu.Lock()
	expired := s.mode == Session && s.clock.NowMS()-s.sessionStartTimeMS >= s.cfg.SessionTimeoutMS
	if expired {
		s.mode = Off
		s.sessionStartTimeMS = 0
		s.sessionSetpointReached = false
		if s.led != nil {
			s.led.Off()
		}
	}
	mode := s.mode
	s.mu.Unlock()

	if expired && s.buzzer != nil {
		playToneSequence(s.buzzer, EndSessionTones)
	}
	return mode
}

func playToneSequence(b Buzzer, tones []Tone) {
	for i, t := range tones {
		b.PlayTone(t.FreqHz, t.DurationMS)
		if i != len(tones)-1 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}

// SetMode validates and applies a mode transition (S4.6). Off clears
// session timing and the LED; Manual and Session light the LED and reset
// the PID; Session additionally stamps session_start_time.
func (s *SharedState) SetMode(new Mode) error {
	if new != Off && new != Manual && new != Session {
		return fmt.Errorf("state: invalid mode %v", new)
	}

	s.mu.Lock()
	s.sessionSetpointReached = false
	switch new {
	case Off:
		s.sessionStartTimeMS = 0
		s.mode = Off
	case Manual:
		s.mode = Manual
	case Session:
		s.sessionStartTimeMS = s.clock.NowMS()
		s.mode = Session
	}
	s.mu.Unlock()

	if new == Off {
		if s.led != nil {
			s.led.Off()
		}
	} else {
		if s.led != nil {
			s.led.On()
		}
		if s.pidCtrl != nil {
			s.pidCtrl.Reset()
		}
	}
	return nil
}

// SessionSetpointReached reports whether the current Session has already
// crossed the near-setpoint band (S4.7).
func (s *SharedState) SessionSetpointReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionSetpointReached
}

// SetSessionSetpointReached records that the near-setpoint chime has
// fired for the current Session.
func (s *SharedState) SetSessionSetpointReached(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionSetpointReached = v
}

// SessionResetPIDWhenNearSetpoint reports the config toggle from S4.7.
func (s *SharedState) SessionResetPIDWhenNearSetpoint() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionResetPIDWhenNearSetpoint
}

// Setpoint returns the current target temperature.
func (s *SharedState) Setpoint() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setpoint
}

// SetSetpoint updates the target temperature, clamped to
// [1, max_allowed_setpoint] (S3). Editable at any mode; callers are
// responsible for refusing edits while in Session per S3's "editable only
// when not in Session" if that policy applies to their UI flow.
func (s *SharedState) SetSetpoint(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v < 1 {
		v = 1
	}
	if v > s.cfg.MaxAllowedSetpoint {
		v = s.cfg.MaxAllowedSetpoint
	}
	s.setpoint = v
}

// PowerThreshold returns the PID-bucket threshold below which the heater
// is kept off even if the regulator requests positive power (S4.8 step 8).
func (s *SharedState) PowerThreshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powerThreshold
}

// HeaterOnTemperatureDifferenceThreshold returns the conditioner's
// induction-noise threshold (S4.2, S6).
func (s *SharedState) HeaterOnTemperatureDifferenceThreshold() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heaterOnTemperatureDifferenceThreshold
}

// HeaterTemperature returns the authoritative, most recently committed
// temperature (S3).
func (s *SharedState) HeaterTemperature() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heaterTemperature
}

// SetHeaterTemperature commits a new authoritative sample and pushes it
// into the bounded history (S4.8 step 4).
func (s *SharedState) SetHeaterTemperature(tempC int, timestampMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heaterTemperature = tempC
	s.temperatureReadings.Push(timestampMS, tempC)
}

// Watts returns the last computed wattage (S3: 0 iff heater is off).
func (s *SharedState) Watts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watts
}

// SetWatts commits a new wattage figure and pushes it into the bounded
// history (S4.8 step 5).
func (s *SharedState) SetWatts(w int, timestampMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watts = w
	s.wattReadings.Push(timestampMS, w)
}

// TemperatureReadings returns a snapshot of the temperature history.
func (s *SharedState) TemperatureReadings() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temperatureReadings.Samples()
}

// WattReadings returns a snapshot of the wattage history.
func (s *SharedState) WattReadings() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wattReadings.Samples()
}

// PiTemperature returns the last-read microcontroller die temperature.
func (s *SharedState) PiTemperature() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.piTemperature
}

// SetPiTemperature records a new die-temperature reading (S4.5).
func (s *SharedState) SetPiTemperature(t int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.piTemperature = t
}

// PiTemperatureLimit returns the configured die over-temperature ceiling.
func (s *SharedState) PiTemperatureLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.piTemperatureLimit
}

// HeaterMaxDutyCyclePercent returns the build-time duty ceiling (S4.4).
func (s *SharedState) HeaterMaxDutyCyclePercent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heaterMaxDutyCyclePercent
}

// InputVolts and HeaterResistance feed the wattage computation of S4.8
// step 5: watts = (V^2/R) * (maxDutyPct/100) * (power/10).
func (s *SharedState) InputVolts() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputVolts
}

func (s *SharedState) HeaterResistance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heaterResistance
}

// MenuIndex and DisplayContrast are slow UI state (S3), mutated only from
// the main loop; no tick context touches them, but they share the lock for
// simplicity per S5.
func (s *SharedState) MenuIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menuIndex
}

func (s *SharedState) SetMenuIndex(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuIndex = i
}

func (s *SharedState) DisplayContrast() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayContrast
}

func (s *SharedState) SetDisplayContrast(c int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayContrast = c
}
