package core

import (
	"context"
	"fmt"

	"growcore/pkg/domain"
)

// NewGridOccupancyRule returns the default in-transaction rule blocking two
// plants from sharing one grid cell.
func NewGridOccupancyRule() domain.Rule {
	return gridOccupancyRule{}
}

type gridOccupancyRule struct{}

func (gridOccupancyRule) Name() string { return "grid_occupancy" }

func (gridOccupancyRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	type cell struct {
		growspace string
		row, col  int
	}
	seen := make(map[cell]string)
	res := domain.Result{}
	for _, plant := range view.ListPlants() {
		key := cell{growspace: plant.GrowspaceID, row: plant.Row, col: plant.Col}
		if other, dup := seen[key]; dup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "grid_occupancy",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("plants %s and %s share position (%d,%d) in growspace %s", other, plant.ID, plant.Row, plant.Col, plant.GrowspaceID),
				Entity:   domain.EntityPlant,
				EntityID: plant.ID,
			})
			continue
		}
		seen[key] = plant.ID
	}
	return res, nil
}

// NewGridBoundsRule returns the default in-transaction rule blocking plants
// positioned outside their growspace grid. Special overview growspaces are
// exempt; resizing a regular growspace below its occupants only warns.
func NewGridBoundsRule() domain.Rule {
	return gridBoundsRule{}
}

type gridBoundsRule struct{}

func (gridBoundsRule) Name() string { return "grid_bounds" }

func (gridBoundsRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	resized := make(map[string]bool)
	for _, change := range changes {
		if change.Entity != domain.EntityGrowspace || change.Action != domain.ActionUpdate {
			continue
		}
		before, okB := change.Before.(domain.Growspace)
		after, okA := change.After.(domain.Growspace)
		if okB && okA && (before.Rows != after.Rows || before.PlantsPerRow != after.PlantsPerRow) {
			resized[after.ID] = true
		}
	}

	res := domain.Result{}
	for _, plant := range view.ListPlants() {
		gs, ok := view.FindGrowspace(plant.GrowspaceID)
		if !ok || gs.Special() {
			continue
		}
		if plant.Row >= 1 && plant.Row <= gs.Rows && plant.Col >= 1 && plant.Col <= gs.PlantsPerRow {
			continue
		}
		severity := domain.SeverityBlock
		if resized[gs.ID] {
			severity = domain.SeverityWarn
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "grid_bounds",
			Severity: severity,
			Message:  fmt.Sprintf("plant %s at (%d,%d) outside %dx%d grid of growspace %s", plant.ID, plant.Row, plant.Col, gs.Rows, gs.PlantsPerRow, gs.ID),
			Entity:   domain.EntityPlant,
			EntityID: plant.ID,
		})
	}
	return res, nil
}
