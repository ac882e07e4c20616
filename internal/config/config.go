// Package config loads the on-device config.txt (S6) and process
// environment overrides into an internal/state.Config-shaped value,
// reusing github.com/joho/godotenv for both: its key=value/#-comment
// grammar already matches config.txt exactly, and it is the teacher's
// existing dependency for environment loading (cmd/server/main.go's
// godotenv.Load()), so no second hand-rolled parser is introduced (S2.1).
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Defaults mirrors internal/state.DefaultConfig's values relevant to the
// config.txt keys this loader recognizes (S6), kept independent of the
// state package to avoid a dependency cycle between config and state.
type Defaults struct {
	SessionTimeoutMS                       int64
	TemperatureUnits                       string
	Setpoint                               int
	PowerThreshold                         float64
	HeaterOnTemperatureDifferenceThreshold int
}

// Loaded carries the config.txt values recognized by S6, each defaulted
// independently when the key is absent or fails to convert.
type Loaded struct {
	SessionTimeoutMS                       int64
	TemperatureUnits                       string
	Setpoint                               int
	PowerThreshold                         float64
	HeaterOnTemperatureDifferenceThreshold int
}

// Load reads path (config.txt) with godotenv.Parse and converts the
// recognized keys field-by-field. A value that fails to convert for a
// recognized key is logged and that field keeps its default rather than
// aborting the whole load (matches the source's bare except OSError
// swallow-and-continue posture, narrowed to per-field granularity, S6).
// A missing or unreadable file is logged and every field keeps its
// default - config.txt is optional, not required.
func Load(path string, defaults Defaults, log zerolog.Logger) Loaded {
	out := Loaded{
		SessionTimeoutMS:                       defaults.SessionTimeoutMS,
		TemperatureUnits:                       defaults.TemperatureUnits,
		Setpoint:                               defaults.Setpoint,
		PowerThreshold:                         defaults.PowerThreshold,
		HeaterOnTemperatureDifferenceThreshold: defaults.HeaterOnTemperatureDifferenceThreshold,
	}

	f, err := os.Open(path)
	if err != nil {
		log.Info().Str("path", path).Err(err).Msg("config file not opened, using defaults")
		return out
	}
	defer f.Close()

	kv, err := godotenv.Parse(f)
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("config file parse failed, using defaults")
		return out
	}

	if v, ok := kv["session_timeout"]; ok {
		if seconds, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err != nil {
			log.Warn().Str("key", "session_timeout").Str("value", v).Err(err).Msg("bad config value, keeping default")
		} else {
			out.SessionTimeoutMS = seconds * 1000
		}
	}

	if v, ok := kv["temperature_units"]; ok {
		out.TemperatureUnits = strings.TrimSpace(v)
	}

	if v, ok := kv["setpoint"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
			log.Warn().Str("key", "setpoint").Str("value", v).Err(err).Msg("bad config value, keeping default")
		} else {
			out.Setpoint = clampSetpoint(n)
		}
	}

	if v, ok := kv["power_threshold"]; ok {
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			log.Warn().Str("key", "power_threshold").Str("value", v).Err(err).Msg("bad config value, keeping default")
		} else {
			out.PowerThreshold = n
		}
	}

	if v, ok := kv["heater_on_temperature_difference_threshold"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
			log.Warn().Str("key", "heater_on_temperature_difference_threshold").Str("value", v).Err(err).Msg("bad config value, keeping default")
		} else {
			out.HeaterOnTemperatureDifferenceThreshold = n
		}
	}

	return out
}

// minSetpoint and maxSetpoint mirror internal/state.DefaultConfig's
// MaxAllowedSetpoint bound (S6: "setpoint (integer, clamped 1..299)").
// Hardcoded rather than imported to keep config independent of state
// (see the Defaults doc comment above); internal/state.SetSetpoint
// enforces the same bound for every other setpoint write path.
const (
	minSetpoint = 1
	maxSetpoint = 299
)

func clampSetpoint(v int) int {
	if v < minSetpoint {
		return minSetpoint
	}
	if v > maxSetpoint {
		return maxSetpoint
	}
	return v
}

// LoadEnv applies godotenv.Load() the same way the teacher's main.go
// does, so TIPCTL_* process environment overrides are available
// via os.Getenv before Load reads config.txt. A missing .env file is not
// an error (godotenv.Load itself treats it as optional).
func LoadEnv() {
	_ = godotenv.Load()
}
