// Package thermocouple implements the sensor conditioning layer (S4.2): raw
// reads classified into fault kinds, and an induction-noise filter that
// rejects EMF-contaminated samples while the heater is energized.
package thermocouple

import "fmt"

// RawSensor is the narrow interface the conditioner uses to obtain an
// unfiltered sample. The bit-banged SPI read protocol itself is out of
// scope (S1) and lives in internal/hw, backed by periph.io against a
// MAX6675-style adapter.
type RawSensor interface {
	// ReadRaw returns a raw temperature reading, or an error. Signalling
	// failures (open/short/ground) should be returned as plain errors; the
	// Conditioner is responsible for classifying the *value* (zero,
	// negative, over-ceiling) into FaultKinds. A RawSensor that already
	// knows the frame itself is malformed (bad checksum, a reserved bit
	// set that the protocol guarantees is always zero) should return a
	// *Fault with InvalidReading directly, since only the sensor driver
	// can tell a corrupted frame apart from a well-formed low reading.
	ReadRaw() (int, error)
}

// Config holds the conditioner's tunable thresholds (S4.2, S6).
type Config struct {
	// AboveLimitCeiling is the hard ceiling above which a reading is
	// considered sensor saturation (AboveLimit, recoverable).
	AboveLimitCeiling int
	// HeaterOnTemperatureDifferenceThreshold bounds how far a reading may
	// deviate from the last known-safe temperature while the heater is
	// energized before it is treated as induction noise.
	HeaterOnTemperatureDifferenceThreshold int
}

// DefaultConfig matches the source's defaults.
func DefaultConfig() Config {
	return Config{
		AboveLimitCeiling:                      400,
		HeaterOnTemperatureDifferenceThreshold: 20,
	}
}

// Conditioner implements the Thermocouple Conditioner (B).
type Conditioner struct {
	sensor RawSensor
	cfg    Config

	lastKnownSafeTemp int
	haveSafeTemp      bool

	// latched permanently disables the conditioner once a fatal fault is
	// observed; only a process restart clears it (S4.2).
	latched     bool
	latchReason *Fault
}

// New constructs a Conditioner reading from sensor with the given config.
func New(sensor RawSensor, cfg Config) *Conditioner {
	return &Conditioner{sensor: sensor, cfg: cfg}
}

// Latched reports whether a fatal fault has permanently disabled this
// conditioner.
func (c *Conditioner) Latched() (bool, *Fault) {
	return c.latched, c.latchReason
}

// ReadRaw returns an unfiltered sample, classifying any failure into a
// FaultKind. Once latched by a fatal fault, ReadRaw always returns the
// latched fault without touching the underlying sensor.
func (c *Conditioner) ReadRaw() (int, error) {
	if c.latched {
		return 0, c.latchReason
	}

	r, err := c.sensor.ReadRaw()
	if err != nil {
		if f, ok := err.(*Fault); ok {
			c.maybeLatch(f)
			return 0, f
		}
		f := NewFault(ReadError, fmt.Sprintf("sensor signalling failure: %s", err.Error()))
		return 0, f
	}

	switch {
	case r < 0:
		f := NewFault(BelowZero, fmt.Sprintf("negative reading: %d", r))
		c.maybeLatch(f)
		return 0, f
	case r == 0:
		f := NewFault(ZeroReading, "persistent zero reading")
		c.maybeLatch(f)
		return 0, f
	case r >= c.cfg.AboveLimitCeiling:
		f := NewFault(AboveLimit, fmt.Sprintf("reading %d at or above ceiling %d", r, c.cfg.AboveLimitCeiling))
		return 0, f
	}

	return r, nil
}

func (c *Conditioner) maybeLatch(f *Fault) {
	if f.Kind.Fatal() && !c.latched {
		c.latched = true
		c.latchReason = f
	}
}

// ReadFiltered implements the induction-aware path (S4.2). When heaterIsOn
// is true, a reading that deviates from lastKnownSafeTemp by more than the
// configured threshold is treated as EMF noise: the last known-safe value
// is returned instead, along with needOffForSafeRead=true so the caller can
// de-energize the heater, pause, and retry with heaterIsOn=false.
func (c *Conditioner) ReadFiltered(heaterIsOn bool) (temp int, needOffForSafeRead bool, err error) {
	r, err := c.ReadRaw()
	if err != nil {
		return 0, false, err
	}

	if !heaterIsOn {
		c.lastKnownSafeTemp = r
		c.haveSafeTemp = true
		return r, false, nil
	}

	if !c.haveSafeTemp {
		// No baseline yet: accept unconditionally, as the source does on
		// its very first call regardless of heater state.
		c.lastKnownSafeTemp = r
		c.haveSafeTemp = true
		return r, false, nil
	}

	diff := r - c.lastKnownSafeTemp
	if diff < 0 {
		diff = -diff
	}
	if diff > c.cfg.HeaterOnTemperatureDifferenceThreshold {
		return c.lastKnownSafeTemp, true, nil
	}

	c.lastKnownSafeTemp = r
	return r, false, nil
}
