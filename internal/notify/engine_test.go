package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"growcore/internal/core"
	"growcore/internal/infra/persistence/memory"
	"growcore/pkg/domain"
)

var today = domain.NewDate(2026, time.March, 15)

type capturedNotification struct {
	target, title, body string
}

type fakeNotifier struct {
	sent []capturedNotification
	fail bool
}

func (f *fakeNotifier) Send(_ context.Context, target, title, body string) error {
	if f.fail {
		return errors.New("delivery down")
	}
	f.sent = append(f.sent, capturedNotification{target: target, title: title, body: body})
	return nil
}

func seedService(t *testing.T) (*core.Service, domain.Growspace, domain.Plant) {
	t.Helper()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc := core.NewService(store, core.WithToday(func() domain.Date { return today }))
	gs, _, err := svc.AddGrowspace(context.Background(), "Tent", 2, 2, "mobile_app")
	if err != nil {
		t.Fatalf("add growspace: %v", err)
	}
	start := today.AddDays(-21)
	p, _, err := svc.AddPlant(context.Background(), core.AddPlantInput{
		GrowspaceID: gs.ID, Strain: "Haze", Phenotype: "A1",
		Row: 1, Col: 1, VegStart: &start,
	})
	if err != nil {
		t.Fatalf("add plant: %v", err)
	}
	return svc, gs, p
}

func vegRule() MilestoneRule {
	return MilestoneRule{Stage: domain.StageVeg, Day: 21, Title: "Veg check", Body: "{strain} day {day} of {stage}"}
}

func TestMilestoneFiresOnceOnExactDay(t *testing.T) {
	svc, _, _ := seedService(t)
	notifier := &fakeNotifier{}
	engine := NewEngine(svc, notifier, []MilestoneRule{vegRule()}, WithToday(func() domain.Date { return today }))

	if sent := engine.CheckMilestones(context.Background()); sent != 1 {
		t.Fatalf("expected 1 notification, got %d", sent)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected delivery, got %v", notifier.sent)
	}
	got := notifier.sent[0]
	if got.target != "mobile_app" || got.title != "Veg check" || got.body != "Haze day 21 of veg" {
		t.Fatalf("unexpected notification %+v", got)
	}

	// second sweep is deduplicated by the ledger
	if sent := engine.CheckMilestones(context.Background()); sent != 0 {
		t.Fatalf("expected dedup, got %d", sent)
	}
}

func TestMilestoneRequiresExactDay(t *testing.T) {
	svc, _, _ := seedService(t)
	notifier := &fakeNotifier{}
	rule := vegRule()
	rule.Day = 20 // plant is on day 21
	engine := NewEngine(svc, notifier, []MilestoneRule{rule}, WithToday(func() domain.Date { return today }))

	if sent := engine.CheckMilestones(context.Background()); sent != 0 {
		t.Fatalf("expected no match past the exact day, got %d", sent)
	}
}

func TestMilestoneSkipsWithoutTarget(t *testing.T) {
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc := core.NewService(store, core.WithToday(func() domain.Date { return today }))
	gs, _, err := svc.AddGrowspace(context.Background(), "Tent", 1, 1, "none")
	if err != nil {
		t.Fatalf("add growspace: %v", err)
	}
	start := today.AddDays(-21)
	if _, _, err := svc.AddPlant(context.Background(), core.AddPlantInput{GrowspaceID: gs.ID, Row: 1, Col: 1, VegStart: &start}); err != nil {
		t.Fatalf("add plant: %v", err)
	}
	notifier := &fakeNotifier{}
	engine := NewEngine(svc, notifier, []MilestoneRule{vegRule()}, WithToday(func() domain.Date { return today }))
	if sent := engine.CheckMilestones(context.Background()); sent != 0 {
		t.Fatalf("expected skip without target, got %d", sent)
	}
}

func TestMilestoneRespectsDisabledGrowspace(t *testing.T) {
	svc, gs, _ := seedService(t)
	if _, err := svc.SetNotificationsEnabled(context.Background(), gs.ID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	notifier := &fakeNotifier{}
	engine := NewEngine(svc, notifier, []MilestoneRule{vegRule()}, WithToday(func() domain.Date { return today }))
	if sent := engine.CheckMilestones(context.Background()); sent != 0 {
		t.Fatalf("expected suppressed notifications, got %d", sent)
	}
}

func TestMilestoneGrowspaceScope(t *testing.T) {
	svc, gs, _ := seedService(t)
	notifier := &fakeNotifier{}
	rule := vegRule()
	rule.Growspaces = []string{"some-other-growspace"}
	engine := NewEngine(svc, notifier, []MilestoneRule{rule}, WithToday(func() domain.Date { return today }))
	if sent := engine.CheckMilestones(context.Background()); sent != 0 {
		t.Fatalf("expected scoped rule to skip, got %d", sent)
	}

	rule.Growspaces = []string{gs.ID}
	engine = NewEngine(svc, notifier, []MilestoneRule{rule}, WithToday(func() domain.Date { return today }))
	if sent := engine.CheckMilestones(context.Background()); sent != 1 {
		t.Fatalf("expected scoped rule to fire, got %d", sent)
	}
}

func TestMarkHappensBeforeDelivery(t *testing.T) {
	svc, _, p := seedService(t)
	notifier := &fakeNotifier{fail: true}
	engine := NewEngine(svc, notifier, []MilestoneRule{vegRule()}, WithToday(func() domain.Date { return today }))

	if sent := engine.CheckMilestones(context.Background()); sent != 0 {
		t.Fatalf("failed delivery must not count, got %d", sent)
	}
	// the ledger was written before the delivery attempt, so no retry happens
	if svc.ShouldSendNotification(p.ID, domain.StageVeg, 21) {
		t.Fatalf("expected ledger marked before dispatch")
	}
	notifier.fail = false
	if sent := engine.CheckMilestones(context.Background()); sent != 0 {
		t.Fatalf("expected no redelivery after failed attempt, got %d", sent)
	}
}
