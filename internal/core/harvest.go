package core

import (
	"context"
	"strings"
	"time"

	"growcore/pkg/domain"
)

// HarvestRequest selects where a harvested plant should go. TargetID wins
// over TargetName; with neither set the destination follows the plant's
// current stage.
type HarvestRequest struct {
	PlantID    string
	TargetID   string
	TargetName string
	At         *Date
}

// harvestNameHints is checked in order against a lowercased target name.
var harvestNameHints = []struct {
	substr string
	stage  Stage
}{
	{"dry", StageDry},
	{"cure", StageCure},
	{"clone", StageClone},
	{"mother", StageMother},
}

func stageFromTargetName(name string) (Stage, bool) {
	lowered := strings.ToLower(name)
	for _, hint := range harvestNameHints {
		if strings.Contains(lowered, hint.substr) {
			return hint.stage, true
		}
	}
	return "", false
}

// nextHarvestStage advances a plant along the post-harvest chain.
func nextHarvestStage(current Stage) Stage {
	switch current {
	case StageFlower:
		return StageDry
	case StageDry:
		return StageCure
	case StageMother:
		return StageClone
	default:
		return StageDry
	}
}

// HarvestPlant routes a plant into the next lifecycle space. An explicit
// target becomes the destination: a special target implies its stage, any
// other existing growspace receives the plant as its drying location.
// Otherwise a target name is matched against well-known hints, falling back
// to the stage chain. Entering dry records the harvest with the analytics
// sink once.
func (s *Service) HarvestPlant(ctx context.Context, req HarvestRequest) (Plant, Result, error) {
	date := s.today()
	if req.At != nil {
		date = *req.At
	}
	var (
		updated Plant
		record  *HarvestRecord
	)
	res, err := s.run(ctx, "harvest_plant", func(tx Transaction) error {
		record = nil
		plant, ok := tx.FindPlant(req.PlantID)
		if !ok {
			return domain.NotFoundError{Entity: EntityPlant, ID: req.PlantID}
		}
		current := domain.DeriveStage(plant, date)

		var dest Growspace
		stage := Stage("")
		if req.TargetID != "" {
			target, ok := tx.FindGrowspace(req.TargetID)
			if !ok {
				return domain.NotFoundError{Entity: EntityGrowspace, ID: req.TargetID}
			}
			if spec, ok := domain.SpecialSpec(req.TargetID); ok {
				stage = spec.Stage
				ensured, err := ensureSpecialLocked(tx, spec, "", 0, 0)
				if err != nil {
					return err
				}
				dest = ensured
			} else {
				// An ordinary explicit destination is treated as the drying
				// location: the plant moves there and enters dry.
				stage = StageDry
				dest = target
			}
		} else {
			if req.TargetName != "" {
				if hinted, ok := stageFromTargetName(req.TargetName); ok {
					stage = hinted
				} else {
					stage = nextHarvestStage(current)
				}
			} else {
				stage = nextHarvestStage(current)
			}
			spec, ok := domain.SpecialSpec(string(stage))
			if !ok {
				return domain.InvalidStageError{Stage: stage}
			}
			ensured, err := ensureSpecialLocked(tx, spec, "", 0, 0)
			if err != nil {
				return err
			}
			dest = ensured
		}
		pos, err := placeInto(tx, dest, 0, 0)
		if err != nil {
			return err
		}
		updated, err = tx.UpdatePlant(plant.ID, func(p *Plant) error {
			p.GrowspaceID = dest.ID
			p.Row = pos.Row
			p.Col = pos.Col
			p.Stage = stage
			p.SetStageStart(stage, date)
			return nil
		})
		if err != nil {
			return err
		}
		if stage == StageDry {
			record = &HarvestRecord{
				Strain:      plant.Strain,
				Phenotype:   plant.Phenotype,
				VegDays:     vegDays(plant, date),
				FlowerDays:  flowerDays(plant, date),
				HarvestedAt: time.Now().UTC(),
			}
		}
		return nil
	})
	if err != nil {
		return Plant{}, res, err
	}
	if record != nil && s.harvests != nil {
		if rErr := s.harvests.RecordHarvest(ctx, *record); rErr != nil {
			return updated, res, rErr
		}
	}
	return updated, res, nil
}

// vegDays measures the vegetative phase, closed by the flower start when
// present, otherwise open until the harvest date.
func vegDays(p Plant, harvest Date) int {
	if p.VegStart == nil {
		return 0
	}
	end := harvest
	if p.FlowerStart != nil {
		end = *p.FlowerStart
	}
	days := p.VegStart.DaysUntil(end)
	if days < 0 {
		return 0
	}
	return days
}

func flowerDays(p Plant, harvest Date) int {
	if p.FlowerStart == nil {
		return 0
	}
	days := p.FlowerStart.DaysUntil(harvest)
	if days < 0 {
		return 0
	}
	return days
}
