package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func defaults() Defaults {
	return Defaults{
		SessionTimeoutMS:                       5 * 60 * 1000,
		TemperatureUnits:                       "C",
		Setpoint:                                170,
		PowerThreshold:                          0,
		HeaterOnTemperatureDifferenceThreshold: 20,
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}
	return path
}

func TestLoadParsesRecognizedKeys(t *testing.T) {
	path := writeConfig(t, "# comment\nsession_timeout=120\nsetpoint=200\npower_threshold=4\nheater_on_temperature_difference_threshold=15\ntemperature_units=C\n")
	got := Load(path, defaults(), zerolog.Nop())

	if got.SessionTimeoutMS != 120*1000 {
		t.Fatalf("expected session timeout converted to ms, got %d", got.SessionTimeoutMS)
	}
	if got.Setpoint != 200 {
		t.Fatalf("expected setpoint 200, got %d", got.Setpoint)
	}
	if got.PowerThreshold != 4 {
		t.Fatalf("expected power threshold 4, got %v", got.PowerThreshold)
	}
	if got.HeaterOnTemperatureDifferenceThreshold != 15 {
		t.Fatalf("expected threshold 15, got %d", got.HeaterOnTemperatureDifferenceThreshold)
	}
	if got.TemperatureUnits != "C" {
		t.Fatalf("expected units C, got %q", got.TemperatureUnits)
	}
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	path := writeConfig(t, "setpoint=180\nsome_future_key=xyz\n")
	got := Load(path, defaults(), zerolog.Nop())
	if got.Setpoint != 180 {
		t.Fatalf("expected setpoint 180, got %d", got.Setpoint)
	}
}

func TestLoadKeepsDefaultOnBadValue(t *testing.T) {
	path := writeConfig(t, "setpoint=not-a-number\n")
	got := Load(path, defaults(), zerolog.Nop())
	if got.Setpoint != defaults().Setpoint {
		t.Fatalf("expected default setpoint retained, got %d", got.Setpoint)
	}
}

func TestLoadClampsOutOfRangeSetpoint(t *testing.T) {
	path := writeConfig(t, "setpoint=5000\n")
	got := Load(path, defaults(), zerolog.Nop())
	if got.Setpoint != maxSetpoint {
		t.Fatalf("expected setpoint clamped to %d, got %d", maxSetpoint, got.Setpoint)
	}

	path = writeConfig(t, "setpoint=-4\n")
	got = Load(path, defaults(), zerolog.Nop())
	if got.Setpoint != minSetpoint {
		t.Fatalf("expected setpoint clamped to %d, got %d", minSetpoint, got.Setpoint)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	got := Load(filepath.Join(t.TempDir(), "does-not-exist.txt"), defaults(), zerolog.Nop())
	want := defaults()
	if got.SessionTimeoutMS != want.SessionTimeoutMS || got.Setpoint != want.Setpoint {
		t.Fatalf("expected defaults preserved for a missing file, got %+v", got)
	}
}
