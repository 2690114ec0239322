package irrigation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"growcore/pkg/domain"
)

// fakeClock drives coordinators deterministically. Sleep either returns
// immediately or blocks until the cycle context is cancelled.
type fakeClock struct {
	mu         sync.Mutex
	now        time.Time
	timers     []*fakeTimer
	blockSleep bool
}

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped atomic.Bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped.Store(true)
	return true
}

func newFakeClock(blockSleep bool) *fakeClock {
	return &fakeClock{
		now:        time.Date(2026, time.March, 15, 6, 0, 0, 0, time.UTC),
		blockSleep: blockSleep,
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if !c.blockSleep {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped.Load() {
			out = append(out, t)
		}
	}
	return out
}

type fakeSource struct {
	mu sync.Mutex
	gs domain.Growspace
	ok bool
}

func (f *fakeSource) GetGrowspace(string) (domain.Growspace, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gs, f.ok
}

func (f *fakeSource) set(gs domain.Growspace) {
	f.mu.Lock()
	f.gs = gs
	f.ok = true
	f.mu.Unlock()
}

type recordingActuator struct {
	events chan string
}

func (a *recordingActuator) TurnOn(_ context.Context, entity string) error {
	a.events <- "on:" + entity
	return nil
}

func (a *recordingActuator) TurnOff(_ context.Context, entity string) error {
	a.events <- "off:" + entity
	return nil
}

func waitEvent(t *testing.T, events <-chan string) string {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for actuator event")
		return ""
	}
}

func duration(n int) *int { return &n }

func growspaceWithSchedule() domain.Growspace {
	return domain.Growspace{
		Base: domain.Base{ID: "tent"},
		Name: "Tent",
		Rows: 2, PlantsPerRow: 2,
		Irrigation: domain.IrrigationSettings{
			IrrigationPump:  "switch.pump1",
			DrainPump:       "switch.drain1",
			DrainDuration:   30,
			IrrigationTimes: []domain.ScheduleEntry{{Time: "08:00:00", Duration: duration(60)}},
			DrainTimes:      []domain.ScheduleEntry{{Time: "20:00:00"}},
		},
	}
}

func TestTriggerRunsPumpCycle(t *testing.T) {
	clock := newFakeClock(false)
	source := &fakeSource{}
	source.set(growspaceWithSchedule())
	actuator := &recordingActuator{events: make(chan string, 16)}
	c := NewCoordinator("tent", source, actuator, WithClock(clock))
	defer c.Close()

	c.Trigger(domain.ScheduleIrrigation, "08:00:00")
	if got := waitEvent(t, actuator.events); got != "on:switch.pump1" {
		t.Fatalf("expected pump on, got %s", got)
	}
	if got := waitEvent(t, actuator.events); got != "off:switch.pump1" {
		t.Fatalf("expected pump off, got %s", got)
	}
}

func TestTriggerUsesDefaultDuration(t *testing.T) {
	clock := newFakeClock(false)
	source := &fakeSource{}
	source.set(growspaceWithSchedule())
	actuator := &recordingActuator{events: make(chan string, 16)}
	c := NewCoordinator("tent", source, actuator, WithClock(clock))
	defer c.Close()

	// drain entry has no per-entry duration; the growspace default applies
	c.Trigger(domain.ScheduleDrain, "20:00:00")
	if got := waitEvent(t, actuator.events); got != "on:switch.drain1" {
		t.Fatalf("expected drain on, got %s", got)
	}
	if got := waitEvent(t, actuator.events); got != "off:switch.drain1" {
		t.Fatalf("expected drain off, got %s", got)
	}
}

func TestTriggerSkipsWithoutPumpOrDuration(t *testing.T) {
	clock := newFakeClock(false)
	source := &fakeSource{}
	gs := growspaceWithSchedule()
	gs.Irrigation.IrrigationPump = ""
	source.set(gs)
	actuator := &recordingActuator{events: make(chan string, 16)}
	c := NewCoordinator("tent", source, actuator, WithClock(clock))
	defer c.Close()

	c.Trigger(domain.ScheduleIrrigation, "08:00:00")

	gs.Irrigation.IrrigationPump = "switch.pump1"
	gs.Irrigation.IrrigationTimes = []domain.ScheduleEntry{{Time: "08:00:00"}}
	gs.Irrigation.IrrigationDuration = 0
	source.set(gs)
	c.Trigger(domain.ScheduleIrrigation, "08:00:00")

	// removed entries are skipped as well
	c.Trigger(domain.ScheduleIrrigation, "09:00:00")

	select {
	case e := <-actuator.events:
		t.Fatalf("expected no actuation, got %s", e)
	default:
	}
}

func TestOverlapCancelsRunningCycleBeforeActuating(t *testing.T) {
	clock := newFakeClock(true)
	source := &fakeSource{}
	source.set(growspaceWithSchedule())
	actuator := &recordingActuator{events: make(chan string, 16)}
	c := NewCoordinator("tent", source, actuator, WithClock(clock))
	defer c.Close()

	c.Trigger(domain.ScheduleIrrigation, "08:00:00")
	if got := waitEvent(t, actuator.events); got != "on:switch.pump1" {
		t.Fatalf("expected first cycle on, got %s", got)
	}

	done := make(chan struct{})
	go func() {
		c.Trigger(domain.ScheduleIrrigation, "08:00:00")
		close(done)
	}()

	// the old cycle must be fully off before the new one switches on
	if got := waitEvent(t, actuator.events); got != "off:switch.pump1" {
		t.Fatalf("expected cancelled cycle off, got %s", got)
	}
	if got := waitEvent(t, actuator.events); got != "on:switch.pump1" {
		t.Fatalf("expected new cycle on, got %s", got)
	}
	<-done

	c.Close()
	if got := waitEvent(t, actuator.events); got != "off:switch.pump1" {
		t.Fatalf("expected shutdown off, got %s", got)
	}
}

// overlapActuator flags any entity switched on while already on.
type overlapActuator struct {
	mu      sync.Mutex
	active  map[string]int
	overlap bool
}

func (a *overlapActuator) TurnOn(_ context.Context, entity string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		a.active = make(map[string]int)
	}
	a.active[entity]++
	if a.active[entity] > 1 {
		a.overlap = true
	}
	return nil
}

func (a *overlapActuator) TurnOff(_ context.Context, entity string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active[entity]--
	return nil
}

func TestConcurrentSameKeyTriggersNeverOverlap(t *testing.T) {
	clock := newFakeClock(true)
	source := &fakeSource{}
	source.set(growspaceWithSchedule())
	actuator := &overlapActuator{}
	c := NewCoordinator("tent", source, actuator, WithClock(clock))

	for i := 0; i < 200; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		for j := 0; j < 2; j++ {
			go func() {
				defer wg.Done()
				c.Trigger(domain.ScheduleIrrigation, "08:00:00")
			}()
		}
		wg.Wait()
	}
	c.Close()

	actuator.mu.Lock()
	defer actuator.mu.Unlock()
	if actuator.overlap {
		t.Fatalf("two cycles for the same line had their pumps on concurrently")
	}
	if actuator.active["switch.pump1"] != 0 {
		t.Fatalf("pump left on after close: %d", actuator.active["switch.pump1"])
	}
}

func TestDrainAndIrrigationRunIndependently(t *testing.T) {
	clock := newFakeClock(true)
	source := &fakeSource{}
	source.set(growspaceWithSchedule())
	actuator := &recordingActuator{events: make(chan string, 16)}
	c := NewCoordinator("tent", source, actuator, WithClock(clock))

	c.Trigger(domain.ScheduleIrrigation, "08:00:00")
	first := waitEvent(t, actuator.events)
	c.Trigger(domain.ScheduleDrain, "20:00:00")
	second := waitEvent(t, actuator.events)
	if first != "on:switch.pump1" || second != "on:switch.drain1" {
		t.Fatalf("expected both lines on, got %s / %s", first, second)
	}

	c.Close()
	offs := map[string]bool{}
	offs[waitEvent(t, actuator.events)] = true
	offs[waitEvent(t, actuator.events)] = true
	if !offs["off:switch.pump1"] || !offs["off:switch.drain1"] {
		t.Fatalf("expected both lines off on close, got %v", offs)
	}
}

func TestArmRegistersTimersForSchedule(t *testing.T) {
	clock := newFakeClock(false)
	source := &fakeSource{}
	source.set(growspaceWithSchedule())
	actuator := &recordingActuator{events: make(chan string, 16)}
	c := NewCoordinator("tent", source, actuator, WithClock(clock))
	defer c.Close()

	c.Arm()
	timers := clock.pending()
	if len(timers) != 2 {
		t.Fatalf("expected 2 armed timers, got %d", len(timers))
	}
	// 06:00 now; 08:00 entry fires in two hours
	want := clock.Now().Add(2 * time.Hour)
	found := false
	for _, timer := range timers {
		if timer.at.Equal(want) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a timer at %v", want)
	}

	// rearming replaces timers instead of stacking them
	c.Arm()
	if got := len(clock.pending()); got != 2 {
		t.Fatalf("expected 2 timers after rearm, got %d", got)
	}
}

func TestTimerFiringRunsCycleAndReschedules(t *testing.T) {
	clock := newFakeClock(false)
	source := &fakeSource{}
	source.set(growspaceWithSchedule())
	actuator := &recordingActuator{events: make(chan string, 16)}
	c := NewCoordinator("tent", source, actuator, WithClock(clock))
	defer c.Close()

	c.Arm()
	var fired *fakeTimer
	for _, timer := range clock.pending() {
		if timer.at.Equal(clock.Now().Add(2 * time.Hour)) {
			fired = timer
		}
	}
	if fired == nil {
		t.Fatalf("irrigation timer not armed")
	}
	fired.fn()
	if got := waitEvent(t, actuator.events); got != "on:switch.pump1" {
		t.Fatalf("expected pump on after firing, got %s", got)
	}
	if got := waitEvent(t, actuator.events); got != "off:switch.pump1" {
		t.Fatalf("expected pump off, got %s", got)
	}
	// a replacement timer was registered for the next day
	replacement := false
	for _, timer := range clock.pending() {
		if timer != fired && timer.at.After(clock.Now()) {
			replacement = true
		}
	}
	if !replacement {
		t.Fatalf("expected rescheduled timer")
	}
}
