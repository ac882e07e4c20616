package ui

import "testing"

func TestRecordingDisplayCapturesCalls(t *testing.T) {
	d := &RecordingDisplay{}
	d.ShowStartupScreen()
	d.ShowWatchdogOffScreen()
	d.ShowHomeScreen(PIDComponents{P: 1, I: 2, D: 3}, HeaterStatus{On: true, Power: 5})
	d.DisplayHeartbeat()
	d.DisplaySelectedOption("setpoint", "170")
	d.DisplayError("heater-too-hot", "too hot", 10, true)

	if d.Startup != 1 || d.WatchdogOff != 1 || d.Heartbeats != 1 {
		t.Fatalf("expected each counted call recorded once: %+v", d)
	}
	if len(d.HomeScreens) != 1 || d.HomeScreens[0].Heater.Power != 5 {
		t.Fatalf("expected home screen call recorded: %+v", d.HomeScreens)
	}
	if len(d.Selections) != 1 || d.Selections[0].Label != "setpoint" {
		t.Fatalf("expected selection recorded: %+v", d.Selections)
	}
	if len(d.Errors) != 1 || d.Errors[0].Code != "heater-too-hot" || !d.Errors[0].Blocking {
		t.Fatalf("expected error recorded: %+v", d.Errors)
	}
}

func TestRecordingBuzzerCapturesTones(t *testing.T) {
	b := &RecordingBuzzer{}
	b.PlayTone(2500, 200)
	if len(b.Calls) != 1 || b.Calls[0].FreqHz != 2500 || b.Calls[0].DurationMS != 200 {
		t.Fatalf("expected tone recorded: %+v", b.Calls)
	}
}

func TestStaticInputDrainsQueueThenGoesIdle(t *testing.T) {
	in := &StaticInput{
		Directions: []RotaryDirection{RotaryClockwise, RotaryNone},
		Presses:    []bool{false, true},
	}
	if got := in.Direction(); got != RotaryClockwise {
		t.Fatalf("expected first direction clockwise, got %v", got)
	}
	if got := in.Direction(); got != RotaryNone {
		t.Fatalf("expected second direction none, got %v", got)
	}
	if got := in.Direction(); got != RotaryNone {
		t.Fatalf("expected idle direction none after queue drained, got %v", got)
	}

	if in.ButtonPressed() {
		t.Fatalf("expected first press false")
	}
	if !in.ButtonPressed() {
		t.Fatalf("expected second press true")
	}
	if in.ButtonPressed() {
		t.Fatalf("expected idle press false after queue drained")
	}
}
