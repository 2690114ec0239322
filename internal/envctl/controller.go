// Package envctl drives dehumidifier control from VPD sensor readings.
package envctl

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"growcore/pkg/domain"
)

// DefaultThresholds holds the built-in VPD hysteresis bands (kPa) per growth
// phase and day cycle. The dehumidifier switches on when VPD drops below On
// and off when it rises above Off.
var DefaultThresholds = map[domain.GrowthPhase]map[domain.DayCycle]domain.ThresholdBand{
	domain.PhaseVeg: {
		domain.CycleDay:   {On: 0.8, Off: 1.2},
		domain.CycleNight: {On: 0.75, Off: 1.15},
	},
	domain.PhaseEarlyFlower: {
		domain.CycleDay:   {On: 1.2, Off: 1.3},
		domain.CycleNight: {On: 1.1, Off: 1.25},
	},
	domain.PhaseMidFlower: {
		domain.CycleDay:   {On: 1.4, Off: 1.5},
		domain.CycleNight: {On: 1.3, Off: 1.45},
	},
	domain.PhaseLateFlower: {
		domain.CycleDay:   {On: 1.4, Off: 1.55},
		domain.CycleNight: {On: 1.35, Off: 1.5},
	},
}

// ThresholdFor resolves the effective band, preferring growspace overrides
// and falling back to the built-in defaults.
func ThresholdFor(env domain.EnvironmentSettings, phase domain.GrowthPhase, cycle domain.DayCycle) domain.ThresholdBand {
	if bands, ok := env.Thresholds[phase]; ok {
		if band, ok := bands[cycle]; ok {
			return band
		}
	}
	return DefaultThresholds[phase][cycle]
}

// Actuator switches the dehumidifier entity of a growspace.
type Actuator interface {
	TurnOn(ctx context.Context, entity string) error
	TurnOff(ctx context.Context, entity string) error
}

// StoreView supplies current growspace configuration and occupancy.
type StoreView interface {
	GetGrowspace(id string) (domain.Growspace, bool)
	GetGrowspacePlants(id string) []domain.Plant
}

// Controller evaluates dehumidifier state for one growspace. It is level
// triggered: every sensor change re-evaluates against the full current state,
// so missed events cannot wedge the actuator.
type Controller struct {
	growspaceID string
	view        StoreView
	actuator    Actuator
	log         *zap.Logger
	todayFn     func() domain.Date

	mu       sync.Mutex
	vpd      *float64
	lightsOn bool
	isOn     bool
	degraded bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithToday overrides the controller calendar. Intended for tests.
func WithToday(today func() domain.Date) Option {
	return func(c *Controller) { c.todayFn = today }
}

// NewController constructs a controller for one growspace. Lights are assumed
// on until a light sensor reading arrives.
func NewController(growspaceID string, view StoreView, actuator Actuator, opts ...Option) *Controller {
	c := &Controller{
		growspaceID: growspaceID,
		view:        view,
		actuator:    actuator,
		log:         zap.NewNop(),
		todayFn:     domain.Today,
		lightsOn:    true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("growspace_id", growspaceID))
	return c
}

// HandleVPDChange records a new VPD reading (kPa) and re-evaluates.
func (c *Controller) HandleVPDChange(ctx context.Context, vpd float64) {
	c.mu.Lock()
	c.vpd = &vpd
	c.mu.Unlock()
	c.Evaluate(ctx)
}

// HandleLightChange records the day cycle and re-evaluates.
func (c *Controller) HandleLightChange(ctx context.Context, lightsOn bool) {
	c.mu.Lock()
	c.lightsOn = lightsOn
	c.mu.Unlock()
	c.Evaluate(ctx)
}

// Rearm clears the degraded flag after a configuration change.
func (c *Controller) Rearm() {
	c.mu.Lock()
	c.degraded = false
	c.mu.Unlock()
}

// IsOn reports the last commanded dehumidifier state.
func (c *Controller) IsOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOn
}

// Evaluate applies the hysteresis policy against the current readings and
// growspace configuration.
func (c *Controller) Evaluate(ctx context.Context) {
	gs, ok := c.view.GetGrowspace(c.growspaceID)
	if !ok {
		return
	}
	env := gs.Environment
	if !env.ControlDehumidifier {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if env.Dehumidifier == "" {
		if !c.degraded {
			err := domain.MissingBindingError{GrowspaceID: c.growspaceID, Binding: "dehumidifier_entity"}
			c.log.Error("dehumidifier control disabled", zap.Error(err))
			c.degraded = true
		}
		return
	}
	c.degraded = false
	if c.vpd == nil {
		return
	}

	phase := domain.GrowthPhaseFor(c.view.GetGrowspacePlants(c.growspaceID), c.todayFn())
	cycle := domain.CycleDay
	if !c.lightsOn {
		cycle = domain.CycleNight
	}
	band := ThresholdFor(env, phase, cycle)
	vpd := *c.vpd

	switch {
	case vpd < band.On && !c.isOn:
		if err := c.actuator.TurnOn(ctx, env.Dehumidifier); err != nil {
			c.log.Error("failed to switch dehumidifier on", zap.Error(err))
			return
		}
		c.isOn = true
		c.log.Info("dehumidifier on",
			zap.Float64("vpd", vpd), zap.Float64("threshold", band.On),
			zap.String("phase", string(phase)), zap.String("cycle", string(cycle)))
	case vpd > band.Off && c.isOn:
		if err := c.actuator.TurnOff(ctx, env.Dehumidifier); err != nil {
			c.log.Error("failed to switch dehumidifier off", zap.Error(err))
			return
		}
		c.isOn = false
		c.log.Info("dehumidifier off",
			zap.Float64("vpd", vpd), zap.Float64("threshold", band.Off),
			zap.String("phase", string(phase)), zap.String("cycle", string(cycle)))
	}
}
