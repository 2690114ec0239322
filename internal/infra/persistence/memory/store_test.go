package memory

import (
	"context"
	"testing"

	"growcore/pkg/domain"
)

func TestRunInTransactionCommitsState(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var plantID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindGrowspace("missing"); ok {
			t.Fatalf("expected missing growspace lookup")
		}
		gs, err := tx.CreateGrowspace(domain.Growspace{Name: "Tent A", Rows: 2, PlantsPerRow: 2})
		if err != nil {
			return err
		}
		if gs.ID == "" {
			t.Fatalf("expected generated growspace ID")
		}
		plant, err := tx.CreatePlant(domain.Plant{GrowspaceID: gs.ID, Strain: "Blue Haze", Row: 1, Col: 1})
		if err != nil {
			return err
		}
		plantID = plant.ID
		if got := tx.Snapshot().ListGrowspacePlants(gs.ID); len(got) != 1 {
			t.Fatalf("snapshot mismatch: %d plants", len(got))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListGrowspaces()) != 1 || len(store.ListPlants()) != 1 {
		t.Fatalf("expected committed entities")
	}
	if _, ok := store.GetPlant(plantID); !ok {
		t.Fatalf("expected plant %s", plantID)
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateGrowspace(domain.Growspace{Name: "Doomed", Rows: 1, PlantsPerRow: 1}); err != nil {
			return err
		}
		return context.Canceled
	})
	if err == nil {
		t.Fatalf("expected propagated error")
	}
	if len(store.ListGrowspaces()) != 0 {
		t.Fatalf("expected rollback, found %d growspaces", len(store.ListGrowspaces()))
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block_everything" }

func (blockingRule) Evaluate(_ context.Context, _ domain.RuleView, _ []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block_everything", Severity: domain.SeverityBlock}}}, nil
}

func TestBlockingRulePreventsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := NewStore(engine)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateGrowspace(domain.Growspace{Name: "Blocked", Rows: 1, PlantsPerRow: 1})
		return e
	})
	if err == nil {
		t.Fatalf("expected rule violation error")
	}
	if _, ok := err.(domain.RuleViolationError); !ok {
		t.Fatalf("expected RuleViolationError, got %T", err)
	}
	if len(store.ListGrowspaces()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

func TestNotificationLedger(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var gsID, plantID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		gs, err := tx.CreateGrowspace(domain.Growspace{Name: "Tent", Rows: 1, PlantsPerRow: 1})
		if err != nil {
			return err
		}
		gsID = gs.ID
		p, err := tx.CreatePlant(domain.Plant{GrowspaceID: gs.ID, Row: 1, Col: 1})
		if err != nil {
			return err
		}
		plantID = p.ID
		if err := tx.MarkNotificationSent(p.ID, "veg_day_21"); err != nil {
			return err
		}
		// second mark is a no-op
		return tx.MarkNotificationSent(p.ID, "veg_day_21")
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if !store.NotificationSent(plantID, "veg_day_21") {
		t.Fatalf("expected ledger entry")
	}
	if store.NotificationSent(plantID, "veg_day_22") {
		t.Fatalf("unexpected ledger entry")
	}
	if !store.NotificationsEnabled(gsID) {
		t.Fatalf("notifications must default to enabled")
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		tx.SetNotificationsEnabled(gsID, false)
		return nil
	})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if store.NotificationsEnabled(gsID) {
		t.Fatalf("expected notifications disabled")
	}

	// deleting the plant purges its ledger
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeletePlant(plantID)
	})
	if err != nil {
		t.Fatalf("delete plant: %v", err)
	}
	if store.NotificationSent(plantID, "veg_day_21") {
		t.Fatalf("expected purged ledger")
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.MarkNotificationSent("missing", "veg_day_1")
	})
	if err == nil {
		t.Fatalf("expected error marking for missing plant")
	}
}

func TestExportImportStateRoundTrip(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		gs, err := tx.CreateGrowspace(domain.Growspace{Name: "Tent", Rows: 2, PlantsPerRow: 2})
		if err != nil {
			return err
		}
		_, err = tx.CreatePlant(domain.Plant{GrowspaceID: gs.ID, Strain: "Kush", Row: 1, Col: 2})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	data, err := store.ExportState()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	restored := NewStore(nil)
	if err := restored.ImportState(data); err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(restored.ListGrowspaces()) != 1 || len(restored.ListPlants()) != 1 {
		t.Fatalf("round trip lost entities")
	}
	if restored.ListPlants()[0].Strain != "Kush" {
		t.Fatalf("round trip lost fields")
	}
}

func TestImportSnapshotDropsDanglingReferences(t *testing.T) {
	store := NewStore(nil)
	store.ImportSnapshot(Snapshot{
		Growspaces: map[string]domain.Growspace{"g1": {Name: "Tent", Rows: 1, PlantsPerRow: 1}},
		Plants: map[string]domain.Plant{
			"p1": {GrowspaceID: "g1", Row: 1, Col: 1},
			"p2": {GrowspaceID: "gone", Row: 1, Col: 1},
		},
		NotificationsSent: map[string]map[string]bool{
			"p1": {"veg_day_1": true},
			"p2": {"veg_day_1": true},
		},
		NotificationsEnabled: map[string]bool{"g1": false, "gone": true},
	})
	if len(store.ListPlants()) != 1 {
		t.Fatalf("expected dangling plant dropped")
	}
	if store.NotificationSent("p2", "veg_day_1") {
		t.Fatalf("expected dangling ledger dropped")
	}
	if store.NotificationsEnabled("g1") {
		t.Fatalf("expected imported switch preserved")
	}
}
