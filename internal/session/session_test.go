package session

import "testing"

type fakeShared struct {
	mode                Mode
	setpointReached     bool
	resetPIDNearSetpoint bool
	setpoint            int
	temp                int
	setModeCalls        []Mode
}

func (f *fakeShared) GetMode() Mode                        { return f.mode }
func (f *fakeShared) SetMode(m Mode) error                  { f.setModeCalls = append(f.setModeCalls, m); f.mode = m; return nil }
func (f *fakeShared) SessionSetpointReached() bool          { return f.setpointReached }
func (f *fakeShared) SetSessionSetpointReached(v bool)       { f.setpointReached = v }
func (f *fakeShared) SessionResetPIDWhenNearSetpoint() bool { return f.resetPIDNearSetpoint }
func (f *fakeShared) Setpoint() int                         { return f.setpoint }
func (f *fakeShared) HeaterTemperature() int                { return f.temp }

type fakePID struct{ resets int }

func (f *fakePID) Reset() { f.resets++ }

type toneCall struct{ freq, dur int }

type fakeBuzzer struct{ calls []toneCall }

func (f *fakeBuzzer) PlayTone(freq, dur int) {
	f.calls = append(f.calls, toneCall{freq, dur})
}

func TestRequestTransitionsMirrorSharedState(t *testing.T) {
	shared := &fakeShared{mode: Off}
	m := New(shared, &fakePID{}, &fakeBuzzer{})

	if err := m.RequestManual(); err != nil {
		t.Fatalf("unexpected error requesting Manual: %v", err)
	}
	if m.Current() != Manual {
		t.Fatalf("expected Current() Manual, got %v", m.Current())
	}

	if err := m.RequestSession(); err != nil {
		t.Fatalf("unexpected error requesting Session: %v", err)
	}
	if m.Current() != Session {
		t.Fatalf("expected Current() Session, got %v", m.Current())
	}

	if err := m.RequestOff(); err != nil {
		t.Fatalf("unexpected error requesting Off: %v", err)
	}
	if m.Current() != Off {
		t.Fatalf("expected Current() Off, got %v", m.Current())
	}
}

func TestTickResyncsSessionExpiryWithoutExplicitRequest(t *testing.T) {
	shared := &fakeShared{mode: Off}
	m := New(shared, &fakePID{}, &fakeBuzzer{})

	if err := m.RequestSession(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Shared state itself flips Off (timeout detected inside GetMode), as
	// internal/state.SharedState.GetMode does - this machine must notice on
	// the very next Tick without a matching Request* call.
	shared.mode = Off

	if err := m.Tick(); err != nil {
		t.Fatalf("unexpected error on Tick: %v", err)
	}
	if m.Current() != Off {
		t.Fatalf("expected Tick to resync to Off, got %v", m.Current())
	}
}

func TestTickFiresNearSetpointChimeExactlyOnce(t *testing.T) {
	shared := &fakeShared{mode: Off, setpoint: 170, resetPIDNearSetpoint: true}
	pid := &fakePID{}
	buzz := &fakeBuzzer{}
	m := New(shared, pid, buzz)

	if err := m.RequestSession(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	shared.temp = 161 // setpoint(170) - NearSetpointBandC(8) = 162, still below
	if err := m.Tick(); err != nil {
		t.Fatalf("unexpected error on Tick: %v", err)
	}
	if len(buzz.calls) != 0 {
		t.Fatalf("expected no chime below the band, got %+v", buzz.calls)
	}
	if shared.setpointReached {
		t.Fatalf("expected setpoint-reached still false")
	}

	shared.temp = 162 // crosses into the band
	if err := m.Tick(); err != nil {
		t.Fatalf("unexpected error on Tick: %v", err)
	}
	if len(buzz.calls) != 1 || buzz.calls[0] != (toneCall{1500, 350}) {
		t.Fatalf("expected exactly one confirmation chime, got %+v", buzz.calls)
	}
	if pid.resets != 1 {
		t.Fatalf("expected exactly one PID reset, got %d", pid.resets)
	}
	if !shared.setpointReached {
		t.Fatalf("expected setpoint-reached flag set")
	}

	// Further ticks while still in-band (or above it) must not replay.
	shared.temp = 175
	if err := m.Tick(); err != nil {
		t.Fatalf("unexpected error on Tick: %v", err)
	}
	if len(buzz.calls) != 1 {
		t.Fatalf("expected chime not replayed, got %d calls", len(buzz.calls))
	}
	if pid.resets != 1 {
		t.Fatalf("expected PID reset not replayed, got %d", pid.resets)
	}
}

func TestTickSkipsNearSetpointPIDResetWhenResetDisabled(t *testing.T) {
	shared := &fakeShared{mode: Off, setpoint: 170, resetPIDNearSetpoint: false}
	pid := &fakePID{}
	buzz := &fakeBuzzer{}
	m := New(shared, pid, buzz)

	if err := m.RequestSession(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shared.temp = 170
	if err := m.Tick(); err != nil {
		t.Fatalf("unexpected error on Tick: %v", err)
	}
	if len(buzz.calls) != 1 {
		t.Fatalf("expected the chime regardless of the PID-reset flag, got %+v", buzz.calls)
	}
	if pid.resets != 0 {
		t.Fatalf("expected no PID reset when the flag is false, got %d", pid.resets)
	}
}

func TestRequestManualFromSessionIsPermitted(t *testing.T) {
	shared := &fakeShared{mode: Off}
	m := New(shared, &fakePID{}, &fakeBuzzer{})

	if err := m.RequestSession(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.RequestManual(); err != nil {
		t.Fatalf("expected Session -> Manual to be permitted, got error: %v", err)
	}
	if m.Current() != Manual {
		t.Fatalf("expected Current() Manual, got %v", m.Current())
	}
}
