// Package irrigation schedules daily pump cycles for growspaces.
package irrigation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"growcore/pkg/domain"
)

// Actuator switches a pump entity on or off.
type Actuator interface {
	TurnOn(ctx context.Context, entity string) error
	TurnOff(ctx context.Context, entity string) error
}

// Notifier delivers pump cycle notifications. Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

// SettingsSource supplies the current growspace configuration. Settings are
// re-read on every trigger so edits apply without rearming.
type SettingsSource interface {
	GetGrowspace(id string) (domain.Growspace, bool)
}

const actuatorOffTimeout = 30 * time.Second

// cycle tracks one in-flight pump run. done is closed after the pump has
// been switched off.
type cycle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Coordinator owns the irrigation and drain timers of a single growspace.
type Coordinator struct {
	growspaceID string
	source      SettingsSource
	actuator    Actuator
	notifier    Notifier
	clock       Clock
	log         *zap.Logger

	mu      sync.Mutex
	timers  map[string]Timer
	running map[domain.ScheduleKey]*cycle
	wg      sync.WaitGroup
	closed  bool
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock substitutes the scheduling clock. Intended for tests.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithNotifier attaches a pump cycle notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// NewCoordinator constructs a coordinator for one growspace. Call Arm to
// start the timers.
func NewCoordinator(growspaceID string, source SettingsSource, actuator Actuator, opts ...Option) *Coordinator {
	c := &Coordinator{
		growspaceID: growspaceID,
		source:      source,
		actuator:    actuator,
		clock:       NewRealClock(),
		log:         zap.NewNop(),
		timers:      make(map[string]Timer),
		running:     make(map[domain.ScheduleKey]*cycle),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("growspace_id", growspaceID))
	return c
}

// Arm replaces all pending timers with ones matching the current schedule.
// Running pump cycles are left untouched.
func (c *Coordinator) Arm() {
	gs, ok := c.source.GetGrowspace(c.growspaceID)
	if !ok {
		c.log.Warn("cannot arm irrigation, growspace missing")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = make(map[string]Timer)
	c.armLocked(domain.ScheduleIrrigation, gs.Irrigation.IrrigationTimes)
	c.armLocked(domain.ScheduleDrain, gs.Irrigation.DrainTimes)
}

func (c *Coordinator) armLocked(key domain.ScheduleKey, entries []domain.ScheduleEntry) {
	for _, entry := range entries {
		at := entry.Time
		delay, err := c.untilNext(at)
		if err != nil {
			c.log.Warn("skipping malformed schedule time",
				zap.String("schedule", string(key)), zap.String("time", at))
			continue
		}
		id := timerID(key, at)
		c.timers[id] = c.clock.AfterFunc(delay, func() { c.fire(key, at) })
	}
}

func timerID(key domain.ScheduleKey, at string) string {
	return string(key) + "|" + at
}

// untilNext computes the delay to the next daily occurrence of at (HH:MM:SS).
func (c *Coordinator) untilNext(at string) (time.Duration, error) {
	parsed, err := time.Parse("15:04:05", at)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule time %q: %w", at, err)
	}
	now := c.clock.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(),
		parsed.Hour(), parsed.Minute(), parsed.Second(), 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now), nil
}

// fire reschedules the timer for the next day and triggers the pump cycle.
func (c *Coordinator) fire(key domain.ScheduleKey, at string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if delay, err := c.untilNext(at); err == nil {
		c.timers[timerID(key, at)] = c.clock.AfterFunc(delay, func() { c.fire(key, at) })
	}
	c.mu.Unlock()
	c.Trigger(key, at)
}

// Trigger runs one pump cycle for the schedule entry at the given time,
// reading configuration fresh from the settings source. A cycle already
// running for the same schedule key is cancelled and drained first.
func (c *Coordinator) Trigger(key domain.ScheduleKey, at string) {
	gs, ok := c.source.GetGrowspace(c.growspaceID)
	if !ok {
		c.log.Warn("growspace removed, skipping pump cycle", zap.String("schedule", string(key)))
		return
	}
	var (
		pump       string
		defaultDur int
		entries    []domain.ScheduleEntry
	)
	switch key {
	case domain.ScheduleIrrigation:
		pump = gs.Irrigation.IrrigationPump
		defaultDur = gs.Irrigation.IrrigationDuration
		entries = gs.Irrigation.IrrigationTimes
	case domain.ScheduleDrain:
		pump = gs.Irrigation.DrainPump
		defaultDur = gs.Irrigation.DrainDuration
		entries = gs.Irrigation.DrainTimes
	default:
		return
	}

	var entry *domain.ScheduleEntry
	for i := range entries {
		if entries[i].Time == at {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		c.log.Debug("schedule entry removed, skipping pump cycle",
			zap.String("schedule", string(key)), zap.String("time", at))
		return
	}
	duration := defaultDur
	if entry.Duration != nil {
		duration = *entry.Duration
	}
	if pump == "" {
		c.log.Warn("no pump configured, skipping pump cycle", zap.String("schedule", string(key)))
		return
	}
	if duration <= 0 {
		c.log.Warn("no duration configured, skipping pump cycle",
			zap.String("schedule", string(key)), zap.String("time", at))
		return
	}

	// Overlapping cycle for the same line: cancel it and wait until its pump
	// is off before actuating again. The running slot is re-checked under the
	// lock after every wait so two concurrent triggers cannot both observe an
	// empty slot; the new cycle is installed while the lock is still held.
	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return
		}
		prev := c.running[key]
		if prev == nil {
			break
		}
		c.mu.Unlock()
		prev.cancel()
		<-prev.done
		c.mu.Lock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cyc := &cycle{cancel: cancel, done: make(chan struct{})}
	c.running[key] = cyc
	c.wg.Add(1)
	c.mu.Unlock()
	go c.runCycle(ctx, key, pump, time.Duration(duration)*time.Second, cyc)
}

func (c *Coordinator) runCycle(ctx context.Context, key domain.ScheduleKey, pump string, duration time.Duration, cyc *cycle) {
	defer func() {
		offCtx, cancel := context.WithTimeout(context.Background(), actuatorOffTimeout)
		defer cancel()
		if err := c.actuator.TurnOff(offCtx, pump); err != nil {
			c.log.Error("failed to switch pump off", zap.String("pump", pump), zap.Error(err))
		}
		c.mu.Lock()
		if c.running[key] == cyc {
			delete(c.running, key)
		}
		c.mu.Unlock()
		close(cyc.done)
		c.wg.Done()
	}()

	if err := c.actuator.TurnOn(ctx, pump); err != nil {
		c.log.Error("failed to switch pump on", zap.String("pump", pump), zap.Error(err))
		return
	}
	if c.notifier != nil {
		title := "Irrigation started"
		if key == domain.ScheduleDrain {
			title = "Drain started"
		}
		msg := fmt.Sprintf("%s running for %s in growspace %s", pump, duration, c.growspaceID)
		if err := c.notifier.Send(ctx, title, msg); err != nil {
			c.log.Warn("pump cycle notification failed", zap.Error(err))
		}
	}
	_ = c.clock.Sleep(ctx, duration)
}

// Close stops all timers, cancels running cycles and waits until every pump
// has been switched off.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = make(map[string]Timer)
	for _, cyc := range c.running {
		cyc.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}
