// Package pid implements the discrete positional PID regulator (S4.3).
//
// The teacher's coil.go drives github.com/felixge/pidctrl through a small
// surface (NewPIDController, SetOutputLimits, Update, Set, Get); this
// package keeps that naming but is implemented from scratch because the
// upstream library exposes neither Reset, per-term Components, nor a
// derivative-on-measurement toggle with back-calculation anti-windup, all
// of which S4.3 requires (see DESIGN.md).
package pid

import "time"

// NowFunc lets callers supply a monotonic clock. Defaults to time.Now.
type NowFunc func() time.Time

// Controller is a discrete PID regulator with clamped output.
type Controller struct {
	kp, ki, kd float64
	lo, hi     float64

	setpoint float64

	derivativeOnMeasurement bool

	integral     float64
	prevError    float64
	prevPV       float64
	lastTime     time.Time
	haveLastTime bool

	lastP, lastI, lastD float64

	now NowFunc
}

// New constructs a Controller with the given tunings and output clamp
// [lo, hi]. derivativeOnMeasurement suppresses derivative kick on setpoint
// changes, matching the source's default.
func New(kp, ki, kd, lo, hi float64) *Controller {
	return &Controller{
		kp: kp, ki: ki, kd: kd,
		lo: lo, hi: hi,
		derivativeOnMeasurement: true,
		now:                     time.Now,
	}
}

// SetOutputLimits adjusts the output clamp. Mirrors pidctrl's fluent
// SetOutputLimits, kept for call-site familiarity.
func (c *Controller) SetOutputLimits(lo, hi float64) *Controller {
	c.lo, c.hi = lo, hi
	return c
}

// SetTunings updates Kp, Ki, Kd without touching accumulated state.
func (c *Controller) SetTunings(kp, ki, kd float64) {
	c.kp, c.ki, c.kd = kp, ki, kd
}

// SetDerivativeOnMeasurement toggles derivative-on-measurement mode.
func (c *Controller) SetDerivativeOnMeasurement(on bool) {
	c.derivativeOnMeasurement = on
}

// Set updates the setpoint. Named after pidctrl's Set for the same reason
// as SetOutputLimits above.
func (c *Controller) Set(setpoint float64) {
	c.setpoint = setpoint
}

// Get returns the current setpoint.
func (c *Controller) Get() float64 {
	return c.setpoint
}

// Reset zeroes integral and derivative history and re-anchors the internal
// clock. Called whenever a non-Off mode is entered and when Session first
// crosses into the near-setpoint band (S4.6, S4.7).
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.prevPV = 0
	c.lastTime = c.now()
	c.haveLastTime = true
	c.lastP, c.lastI, c.lastD = 0, 0, 0
}

// Components returns the most recently computed P, I, D contributions, for
// diagnostic display (S4.3).
func (c *Controller) Components() (p, i, d float64) {
	return c.lastP, c.lastI, c.lastD
}

// Update computes a new output in [lo, hi] for the given process variable.
// dt is derived from the injected clock, not from an internally-held timer,
// per S4.3.
func (c *Controller) Update(processVariable float64) float64 {
	now := c.now()
	var dt float64
	if c.haveLastTime {
		dt = now.Sub(c.lastTime).Seconds()
	}
	c.lastTime = now
	c.haveLastTime = true

	if dt <= 0 {
		// First call, or a non-advancing clock: treat as a pure-P
		// response this cycle rather than dividing by zero.
		dt = 0
	}

	err := c.setpoint - processVariable

	p := c.kp * err

	// Anti-windup by back-calculation: provisionally advance the
	// integral, compute the pre-clamp output, and if it saturates, limit
	// the advance so the integral never pushes further past the
	// boundary than is needed to hold it there.
	candidateIntegral := c.integral
	if dt > 0 {
		candidateIntegral += c.ki * err * dt
	}
	i := candidateIntegral

	var d float64
	if dt > 0 {
		if c.derivativeOnMeasurement {
			// Derivative on measurement: d(PV)/dt, negated, so a
			// setpoint step (which changes err but not PV) causes
			// no derivative kick.
			d = -c.kd * (processVariable - c.prevPV) / dt
		} else {
			d = c.kd * (err - c.prevError) / dt
		}
	}

	unclamped := p + i + d
	output := unclamped
	switch {
	case output > c.hi:
		output = c.hi
	case output < c.lo:
		output = c.lo
	}

	if output == unclamped {
		// Not saturated: keep the provisional integral advance.
		c.integral = candidateIntegral
	} else {
		// Saturated: advance the integral at most to the value that puts
		// the output exactly on the boundary, and never move it back
		// from where it already was.
		limit := output - p - d
		switch {
		case output == c.hi && candidateIntegral > c.integral:
			c.integral = max(c.integral, min(candidateIntegral, limit))
		case output == c.lo && candidateIntegral < c.integral:
			c.integral = min(c.integral, max(candidateIntegral, limit))
		}
	}

	c.prevError = err
	c.prevPV = processVariable
	c.lastP, c.lastI, c.lastD = p, c.integral, d

	return output
}
