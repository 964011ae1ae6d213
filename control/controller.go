// Package control implements the speed tracking loop: the measured speed cell,
// the controller and the periodic scheduling that drives it.
package control

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// NominalPeriod is the tick period used when none is configured, and the
	// dt fallback for the first tick or a misbehaving timer.
	NominalPeriod = 10 * time.Millisecond
	// FrameID tags every emitted command.
	FrameID = "base_link"

	// MinTarget and MaxTarget bound the operator-set target speed.
	MinTarget = 0.0
	MaxTarget = 1.0
)

// Config is the immutable controller configuration.
type Config struct {
	// Target is the wanted speed. Nil leaves the controller inert until SetTarget.
	Target *float64

	Kp, Ki, Kd float64

	// Anti-windup bounds for the accumulated integral error.
	IntegralMin, IntegralMax float64

	Period  time.Duration
	FrameID string

	// FixedStep makes every tick use Period as dt instead of the measured
	// time since the previous tick.
	FixedStep bool
}

// DefaultConfig returns the gains and bounds the vehicle was tuned with.
func DefaultConfig() Config {
	return Config{
		Kp:          0.8,
		Ki:          0.09,
		Kd:          0.05,
		IntegralMin: -1.0,
		IntegralMax: 1.0,
		Period:      NominalPeriod,
		FrameID:     FrameID,
	}
}

// Validate checks the clamp bounds, period and optional target.
func (cfg Config) Validate() error {
	if !(cfg.IntegralMin < cfg.IntegralMax) {
		return errors.Wrapf(ErrInvalidConfig, "integral bounds [%v, %v]", cfg.IntegralMin, cfg.IntegralMax)
	}
	if cfg.Period <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "period %v", cfg.Period)
	}
	if cfg.FrameID == "" {
		return errors.Wrap(ErrInvalidConfig, "empty frame id")
	}
	if cfg.Target != nil {
		if err := ValidateTarget(*cfg.Target); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTarget reports whether v is an acceptable target speed.
func ValidateTarget(v float64) error {
	if math.IsNaN(v) || v < MinTarget || v > MaxTarget {
		return errors.Wrapf(ErrTargetOutOfRange, "%v not in [%v, %v]", v, MinTarget, MaxTarget)
	}
	return nil
}

// ControlCommand is one actuation output.
type ControlCommand struct {
	Value   float64
	FrameID string
	Stamp   time.Time
}

// Actuator receives the commands produced by the controller.
type Actuator interface {
	Publish(ctx context.Context, cmd ControlCommand) error
}

// ActuatorFunc adapts a function to the Actuator interface.
type ActuatorFunc func(ctx context.Context, cmd ControlCommand) error

// Publish calls f.
func (f ActuatorFunc) Publish(ctx context.Context, cmd ControlCommand) error {
	return f(ctx, cmd)
}

// State is a snapshot of the controller's accumulators.
type State struct {
	Integral   float64
	LastError  float64
	Derivative float64
	LastTime   time.Time
	Ticks      int
}

// Controller tracks a target speed. The error term is the absolute deviation
// from the target, and the integral is accumulated and clamped but does not
// contribute to the output.
type Controller struct {
	mu     sync.Mutex
	cfg    Config
	target *float64
	state  State

	speed  *SpeedState
	out    Actuator
	logger *zap.SugaredLogger
}

// NewController validates cfg and returns a controller reading from speed and
// emitting to out.
func NewController(logger *zap.SugaredLogger, cfg Config, speed *SpeedState, out Actuator) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if speed == nil || out == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "speed state and actuator are required")
	}
	c := &Controller{
		cfg:    cfg,
		speed:  speed,
		out:    out,
		logger: logger.Named("controller"),
	}
	if cfg.Target != nil {
		t := *cfg.Target
		c.target = &t
	}
	return c, nil
}

// Period is the nominal tick period.
func (c *Controller) Period() time.Duration {
	return c.cfg.Period
}

// SetTarget activates an inert controller. The transition is one-way.
func (c *Controller) SetTarget(v float64) error {
	if err := ValidateTarget(v); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target != nil {
		return errors.Wrapf(ErrTargetAlreadySet, "current target %v", *c.target)
	}
	c.target = &v
	c.logger.Infow("target speed set", "target", v)
	return nil
}

// Active reports whether a target has been configured.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target != nil
}

// State returns a copy of the runtime state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tick runs one control step at now, deriving dt from the previous tick.
func (c *Controller) Tick(ctx context.Context, now time.Time) (ControlCommand, bool) {
	return c.Step(ctx, now, c.elapsed(now))
}

// Step runs one control step with an explicit dt in seconds. A non-positive
// dt is replaced by the nominal period. It returns false, and emits nothing,
// while no target is set.
func (c *Controller) Step(ctx context.Context, now time.Time, dt float64) (ControlCommand, bool) {
	c.mu.Lock()
	c.state.LastTime = now
	if c.target == nil {
		c.mu.Unlock()
		c.logger.Warn("target speed is not set, skipping tick")
		return ControlCommand{}, false
	}
	if !(dt > 0) {
		c.logger.Debugw("invalid dt, using nominal period", "dt", dt)
		dt = c.cfg.Period.Seconds()
	}

	measured := c.speed.Read()
	output := c.compute(*c.target, measured, dt)
	c.mu.Unlock()

	c.logger.Infow("current speed", "speed", measured, "output", output)

	cmd := ControlCommand{Value: output, FrameID: c.cfg.FrameID, Stamp: now}
	if err := c.out.Publish(ctx, cmd); err != nil {
		c.logger.Errorw("could not publish command", "value", output, "error", err)
	}
	return cmd, true
}

// compute must be called with mu held.
func (c *Controller) compute(target, measured, dt float64) float64 {
	deviation := math.Abs(target - measured)

	c.state.Integral += deviation * dt
	c.state.Integral = math.Max(c.cfg.IntegralMin, math.Min(c.cfg.IntegralMax, c.state.Integral))

	c.state.Derivative = (deviation - c.state.LastError) / dt
	c.state.LastError = deviation
	c.state.Ticks++

	return c.cfg.Kp*deviation + c.cfg.Kd*c.state.Derivative
}

func (c *Controller) elapsed(now time.Time) float64 {
	c.mu.Lock()
	last := c.state.LastTime
	c.mu.Unlock()

	if c.cfg.FixedStep || last.IsZero() {
		return c.cfg.Period.Seconds()
	}
	return now.Sub(last).Seconds()
}
