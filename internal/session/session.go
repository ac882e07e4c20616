// Package session implements the Session/Mode State Machine (G): explicit
// Off/Manual/Session transitions, near-setpoint chime detection, and the
// end-of-session alarm, built on github.com/qmuntal/stateless (S2.2, S4.7)
// rather than the source's ad-hoc if/elif ladder over a string field.
//
// github.com/solderstation/tipctl/internal/state remains the authoritative
// store (F): this machine mirrors its mode for the purpose of guarding
// which user-facing requests are legal right now, and owns the one
// session-local behavior state owns over to it - the near-setpoint chime -
// without ever disagreeing with state about what the current mode is,
// since every Tick resyncs from state.GetMode() first.
package session

import (
	"context"

	"github.com/qmuntal/stateless"
)

const (
	triggerToOff          = "to_off"
	triggerToManual       = "to_manual"
	triggerToSession      = "to_session"
	triggerSessionExpired = "session_expired"
	triggerNearSetpoint   = "near_setpoint"
)

// Mode mirrors state.Mode's three values without importing the state
// package, so session has no compile-time dependency on its storage
// details - only on the small interfaces below.
type Mode int

const (
	Off Mode = iota
	Manual
	Session
)

func (m Mode) label() string {
	switch m {
	case Manual:
		return "Manual"
	case Session:
		return "Session"
	default:
		return "Off"
	}
}

// SharedState is the slice of internal/state.SharedState this machine
// needs: the authoritative mode, the setpoint-reached flag, and the
// current temperature/setpoint to evaluate the near-setpoint band.
type SharedState interface {
	GetMode() Mode
	SetMode(Mode) error
	SessionSetpointReached() bool
	SetSessionSetpointReached(bool)
	SessionResetPIDWhenNearSetpoint() bool
	Setpoint() int
	HeaterTemperature() int
}

// PIDResetter is the one PID capability the near-setpoint chime needs.
type PIDResetter interface {
	Reset()
}

// Buzzer plays the confirmation tone (S4.7, S6).
type Buzzer interface {
	PlayTone(freqHz, durationMS int)
}

// NearSetpointBandC is how close to the setpoint (from below) triggers the
// confirmation chime and optional PID reset (S4.7): setpoint - 8.
const NearSetpointBandC = 8

// ConfirmationTone is the single chime played the first time a Session
// crosses into the near-setpoint band (S4.7, S6).
var ConfirmationTone = struct{ FreqHz, DurationMS int }{1500, 350}

// Machine wraps a stateless.StateMachine tracking Off/Manual/Session,
// resynced from SharedState on every Tick.
type Machine struct {
	shared  SharedState
	pid     PIDResetter
	buzzer  Buzzer
	sm      *stateless.StateMachine
	current Mode
}

// New constructs a Machine observing shared, reflecting side effects
// through pid and buzzer.
func New(shared SharedState, pid PIDResetter, buzzer Buzzer) *Machine {
	m := &Machine{shared: shared, pid: pid, buzzer: buzzer, current: Off}

	sm := stateless.NewStateMachine(Off.label())

	sm.Configure(Off.label()).
		Permit(triggerToManual, Manual.label()).
		Permit(triggerToSession, Session.label())

	sm.Configure(Manual.label()).
		Permit(triggerToOff, Off.label()).
		Permit(triggerToSession, Session.label())

	sm.Configure(Session.label()).
		Permit(triggerToOff, Off.label()).
		Permit(triggerToManual, Manual.label()).
		Permit(triggerSessionExpired, Off.label()).
		InternalTransition(triggerNearSetpoint, func(_ context.Context, _ ...interface{}) error {
			m.fireNearSetpointChime()
			return nil
		})

	m.sm = sm
	return m
}

// RequestOff transitions to Off. Legal from any state.
func (m *Machine) RequestOff() error {
	if err := m.shared.SetMode(Off); err != nil {
		return err
	}
	return m.resync()
}

// RequestManual transitions to Manual, including directly out of Session:
// the source allows the menu to change modes at any time, so this machine
// permits Session -> Manual rather than inventing a new restriction.
func (m *Machine) RequestManual() error {
	if err := m.shared.SetMode(Manual); err != nil {
		return err
	}
	return m.resync()
}

// RequestSession transitions to Session, stamping session_start_time in
// SharedState.
func (m *Machine) RequestSession() error {
	if err := m.shared.SetMode(Session); err != nil {
		return err
	}
	return m.resync()
}

// Tick re-derives the authoritative mode from SharedState (which is itself
// responsible for detecting and applying session timeout, S4.6), resyncs
// this machine's internal state to match, and - while in Session - checks
// for the first crossing into the near-setpoint band (S4.7).
func (m *Machine) Tick() error {
	mode := m.shared.GetMode() // may itself flip Session -> Off on timeout
	if err := m.resyncTo(mode); err != nil {
		return err
	}

	if mode == Session && !m.shared.SessionSetpointReached() {
		setpoint := m.shared.Setpoint()
		temp := m.shared.HeaterTemperature()
		if temp >= setpoint-NearSetpointBandC {
			m.shared.SetSessionSetpointReached(true)
			return m.sm.Fire(triggerNearSetpoint)
		}
	}
	return nil
}

func (m *Machine) fireNearSetpointChime() {
	if m.buzzer != nil {
		m.buzzer.PlayTone(ConfirmationTone.FreqHz, ConfirmationTone.DurationMS)
	}
	if m.shared.SessionResetPIDWhenNearSetpoint() && m.pid != nil {
		m.pid.Reset()
	}
}

// resync pulls the authoritative mode from SharedState and brings this
// machine's internal FSM up to date with it.
func (m *Machine) resync() error {
	return m.resyncTo(m.shared.GetMode())
}

func (m *Machine) resyncTo(mode Mode) error {
	if mode == m.current {
		return nil
	}
	var trigger string
	switch mode {
	case Off:
		if m.current == Session {
			trigger = triggerSessionExpired
		} else {
			trigger = triggerToOff
		}
	case Manual:
		trigger = triggerToManual
	case Session:
		trigger = triggerToSession
	}
	if err := m.sm.Fire(trigger); err != nil {
		return err
	}
	m.current = mode
	return nil
}

// Current returns the machine's last-resynced mode, without touching
// SharedState (use Tick or the Request* methods to resync).
func (m *Machine) Current() Mode {
	return m.current
}
