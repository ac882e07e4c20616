package safety

import (
	"errors"
	"testing"
	"time"
)

type fakeDieSensor struct {
	readings []int
	errs     []error
	idx      int
}

func (f *fakeDieSensor) ReadC() (int, error) {
	i := f.idx
	f.idx++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.readings[i], err
}

type fakeTicker struct {
	running   bool
	startCall int
	stopCall  int
}

func (f *fakeTicker) Start() { f.running = true; f.startCall++ }
func (f *fakeTicker) Stop()  { f.running = false; f.stopCall++ }

type fakeHeater struct{ offCalls int }

func (f *fakeHeater) Off() { f.offCalls++ }

type fakeDisplay struct{ calls []string }

func (f *fakeDisplay) DisplayError(code, text string, seconds int, blocking bool) {
	f.calls = append(f.calls, code)
}

type fakeFaults struct {
	latched bool
	reason  string
}

func (f *fakeFaults) Latched() (bool, string) { return f.latched, f.reason }

type fakeWatchdog struct{ feeds int }

func (f *fakeWatchdog) Feed() { f.feeds++ }

func TestDieTempTickNormalReadingIsNoop(t *testing.T) {
	sensor := &fakeDieSensor{readings: []int{40}}
	ticker := &fakeTicker{running: true}
	heater := &fakeHeater{}
	s := New(sensor, ticker, heater, nil, nil, 60)

	s.DieTempTick()
	if ticker.stopCall != 0 {
		t.Fatalf("expected control tick not stopped under the limit")
	}
	if heater.offCalls != 0 {
		t.Fatalf("expected heater untouched under the limit")
	}
	if !s.Healthy() {
		t.Fatalf("expected healthy")
	}
}

func TestDieTempTickOverLimitStopsControlAndResumes(t *testing.T) {
	sensor := &fakeDieSensor{readings: []int{70, 65, 55}}
	ticker := &fakeTicker{running: true}
	heater := &fakeHeater{}
	disp := &fakeDisplay{}
	s := New(sensor, ticker, heater, disp, nil, 60)
	s.sleep = func(time.Duration) {}

	s.DieTempTick()

	if ticker.stopCall != 1 {
		t.Fatalf("expected control tick stopped once, got %d", ticker.stopCall)
	}
	if heater.offCalls != 1 {
		t.Fatalf("expected heater forced off, got %d", heater.offCalls)
	}
	if ticker.startCall != 1 {
		t.Fatalf("expected control tick resumed once reading cleared, got %d", ticker.startCall)
	}
	if len(disp.calls) == 0 {
		t.Fatalf("expected an error displayed during the over-limit wait")
	}
	if !s.Healthy() {
		t.Fatalf("expected still healthy - over-temp alone does not starve the watchdog")
	}
}

func TestDieTempTickReadFailureEscalatesAndStarvesWatchdogForever(t *testing.T) {
	sensor := &fakeDieSensor{readings: []int{0}, errs: []error{errors.New("spi timeout")}}
	ticker := &fakeTicker{running: true}
	heater := &fakeHeater{}
	disp := &fakeDisplay{}
	s := New(sensor, ticker, heater, disp, nil, 60)

	s.DieTempTick()
	if !s.dieReadFailed {
		t.Fatalf("expected dieReadFailed set")
	}
	if s.Healthy() {
		t.Fatalf("expected unhealthy after a die-sensor read failure")
	}
	wd := &fakeWatchdog{}
	s.FeedIfHealthy(wd)
	if wd.feeds != 0 {
		t.Fatalf("expected watchdog starved after escalation, got %d feeds", wd.feeds)
	}

	// A subsequent tick must not re-run the read (already fatally escalated).
	calls := sensor.idx
	s.DieTempTick()
	if sensor.idx != calls {
		t.Fatalf("expected no further die-sensor reads after fatal escalation")
	}
}

func TestFeedIfHealthyStarvesOnLatchedFault(t *testing.T) {
	sensor := &fakeDieSensor{readings: []int{40}}
	ticker := &fakeTicker{running: true}
	heater := &fakeHeater{}
	faults := &fakeFaults{latched: true, reason: "thermocouple-zero-reading"}
	s := New(sensor, ticker, heater, nil, faults, 60)

	wd := &fakeWatchdog{}
	s.FeedIfHealthy(wd)
	if wd.feeds != 0 {
		t.Fatalf("expected watchdog starved while a fatal fault is latched")
	}
}

func TestFeedIfHealthyFeedsWhenHealthy(t *testing.T) {
	sensor := &fakeDieSensor{readings: []int{40}}
	ticker := &fakeTicker{running: true}
	heater := &fakeHeater{}
	faults := &fakeFaults{latched: false}
	s := New(sensor, ticker, heater, nil, faults, 60)

	wd := &fakeWatchdog{}
	s.FeedIfHealthy(wd)
	if wd.feeds != 1 {
		t.Fatalf("expected watchdog fed once, got %d", wd.feeds)
	}
}
