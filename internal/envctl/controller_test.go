package envctl

import (
	"context"
	"sync"
	"testing"
	"time"

	"growcore/pkg/domain"
)

type fakeView struct {
	mu     sync.Mutex
	gs     domain.Growspace
	ok     bool
	plants []domain.Plant
}

func (f *fakeView) GetGrowspace(string) (domain.Growspace, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gs, f.ok
}

func (f *fakeView) GetGrowspacePlants(string) []domain.Plant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plants
}

func (f *fakeView) set(gs domain.Growspace) {
	f.mu.Lock()
	f.gs = gs
	f.ok = true
	f.mu.Unlock()
}

type switchRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (s *switchRecorder) TurnOn(_ context.Context, entity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "on:"+entity)
	return nil
}

func (s *switchRecorder) TurnOff(_ context.Context, entity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "off:"+entity)
	return nil
}

func (s *switchRecorder) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return ""
	}
	return s.calls[len(s.calls)-1]
}

func (s *switchRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

var today = domain.NewDate(2026, time.March, 15)

func controlledGrowspace() domain.Growspace {
	return domain.Growspace{
		Base: domain.Base{ID: "tent"},
		Rows: 2, PlantsPerRow: 2,
		Environment: domain.EnvironmentSettings{
			VPDSensor:           "sensor.vpd",
			Dehumidifier:        "switch.dehu",
			ControlDehumidifier: true,
		},
	}
}

func newTestController(view *fakeView, actuator Actuator) *Controller {
	return NewController("tent", view, actuator, WithToday(func() domain.Date { return today }))
}

func TestHysteresisSwitching(t *testing.T) {
	view := &fakeView{}
	view.set(controlledGrowspace())
	sw := &switchRecorder{}
	c := newTestController(view, sw)
	ctx := context.Background()

	// veg/day band is on<0.8, off>1.2
	c.HandleVPDChange(ctx, 0.7)
	if sw.last() != "on:switch.dehu" || !c.IsOn() {
		t.Fatalf("expected dehumidifier on, calls %v", sw.calls)
	}
	// inside the band nothing changes
	c.HandleVPDChange(ctx, 1.0)
	if sw.count() != 1 {
		t.Fatalf("expected no switching inside the band, calls %v", sw.calls)
	}
	c.HandleVPDChange(ctx, 1.3)
	if sw.last() != "off:switch.dehu" || c.IsOn() {
		t.Fatalf("expected dehumidifier off, calls %v", sw.calls)
	}
	// repeated high readings do not re-send off
	c.HandleVPDChange(ctx, 1.4)
	if sw.count() != 2 {
		t.Fatalf("expected idempotent off, calls %v", sw.calls)
	}
}

func TestNightBandSelected(t *testing.T) {
	view := &fakeView{}
	view.set(controlledGrowspace())
	sw := &switchRecorder{}
	c := newTestController(view, sw)
	ctx := context.Background()

	// 0.78 is below the veg/day on-threshold 0.8 but above the night 0.75
	c.HandleLightChange(ctx, false)
	c.HandleVPDChange(ctx, 0.78)
	if sw.count() != 0 {
		t.Fatalf("expected no switching at night band, calls %v", sw.calls)
	}
	c.HandleLightChange(ctx, true)
	if sw.last() != "on:switch.dehu" {
		t.Fatalf("expected day band to switch on, calls %v", sw.calls)
	}
}

func TestPhaseBandFromPlants(t *testing.T) {
	view := &fakeView{}
	view.set(controlledGrowspace())
	flowerStart := today.AddDays(-30) // mid flower: on<1.4, off>1.5
	view.plants = []domain.Plant{{FlowerStart: &flowerStart}}
	sw := &switchRecorder{}
	c := newTestController(view, sw)
	ctx := context.Background()

	c.HandleVPDChange(ctx, 1.3)
	if sw.last() != "on:switch.dehu" {
		t.Fatalf("expected mid-flower band to switch on at 1.3, calls %v", sw.calls)
	}
}

func TestGrowspaceOverridesBeatDefaults(t *testing.T) {
	view := &fakeView{}
	gs := controlledGrowspace()
	gs.Environment.Thresholds = map[domain.GrowthPhase]map[domain.DayCycle]domain.ThresholdBand{
		domain.PhaseVeg: {domain.CycleDay: {On: 0.5, Off: 0.9}},
	}
	view.set(gs)
	sw := &switchRecorder{}
	c := newTestController(view, sw)

	c.HandleVPDChange(context.Background(), 0.7)
	if sw.count() != 0 {
		t.Fatalf("override band must suppress switching at 0.7, calls %v", sw.calls)
	}
	c.HandleVPDChange(context.Background(), 0.4)
	if sw.last() != "on:switch.dehu" {
		t.Fatalf("expected on below override threshold, calls %v", sw.calls)
	}
}

func TestControlDisabledDoesNothing(t *testing.T) {
	view := &fakeView{}
	gs := controlledGrowspace()
	gs.Environment.ControlDehumidifier = false
	view.set(gs)
	sw := &switchRecorder{}
	c := newTestController(view, sw)

	c.HandleVPDChange(context.Background(), 0.1)
	if sw.count() != 0 {
		t.Fatalf("expected no switching while control disabled, calls %v", sw.calls)
	}
}

func TestMissingBindingDegrades(t *testing.T) {
	view := &fakeView{}
	gs := controlledGrowspace()
	gs.Environment.Dehumidifier = ""
	view.set(gs)
	sw := &switchRecorder{}
	c := newTestController(view, sw)
	ctx := context.Background()

	c.HandleVPDChange(ctx, 0.1)
	if sw.count() != 0 {
		t.Fatalf("expected no switching without binding, calls %v", sw.calls)
	}

	// fixing the binding and rearming recovers control
	gs.Environment.Dehumidifier = "switch.dehu"
	view.set(gs)
	c.Rearm()
	c.HandleVPDChange(ctx, 0.1)
	if sw.last() != "on:switch.dehu" {
		t.Fatalf("expected recovery after rearm, calls %v", sw.calls)
	}
}
