package domain

// SpecialGrowspaceSpec describes a canonical stage overview growspace and the
// legacy identifiers that older installations used for it.
type SpecialGrowspaceSpec struct {
	ID           string
	Stage        Stage
	Aliases      []string
	Rows         int
	PlantsPerRow int
}

// SpecialGrowspaces enumerates the canonical overview spaces. Plants placed in
// one of these derive their stage from membership alone.
var SpecialGrowspaces = []SpecialGrowspaceSpec{
	{ID: "dry", Stage: StageDry, Aliases: []string{"dry_overview", "drying"}, Rows: 3, PlantsPerRow: 3},
	{ID: "cure", Stage: StageCure, Aliases: []string{"cure_overview"}, Rows: 3, PlantsPerRow: 3},
	{ID: "mother", Stage: StageMother, Aliases: []string{"mother_overview"}, Rows: 3, PlantsPerRow: 3},
	{ID: "clone", Stage: StageClone, Aliases: []string{"clone_overview"}, Rows: 5, PlantsPerRow: 5},
	{ID: "veg", Stage: StageVeg, Aliases: nil, Rows: 5, PlantsPerRow: 5},
}

// SpecialStage returns the stage implied by a canonical special growspace ID.
func SpecialStage(growspaceID string) (Stage, bool) {
	for _, spec := range SpecialGrowspaces {
		if spec.ID == growspaceID {
			return spec.Stage, true
		}
	}
	return "", false
}

// SpecialSpec returns the canonical spec matching the given ID or alias.
func SpecialSpec(id string) (SpecialGrowspaceSpec, bool) {
	for _, spec := range SpecialGrowspaces {
		if spec.ID == id {
			return spec, true
		}
		for _, alias := range spec.Aliases {
			if alias == id {
				return spec, true
			}
		}
	}
	return SpecialGrowspaceSpec{}, false
}

// stagesByRecency lists lifecycle stages from most to least advanced; the
// first stage whose start date is set and not in the future wins derivation.
var stagesByRecency = []Stage{StageCure, StageDry, StageFlower, StageVeg, StageClone, StageMother, StageSeedling}

// DeriveStage computes the effective lifecycle stage of a plant as of today.
//
// Membership in a stage-deriving special growspace (mother, clone, dry, cure)
// overrides everything else: a plant hanging in the dry space is drying no
// matter what its date fields say. Otherwise the most advanced stage with a
// start date on or before today applies, then the explicit stage field, then
// seedling.
func DeriveStage(p Plant, today Date) Stage {
	if stage, ok := SpecialStage(p.GrowspaceID); ok && stage != StageVeg {
		return stage
	}
	for _, stage := range stagesByRecency {
		if start := p.StageStart(stage); start != nil && !start.After(today) {
			return stage
		}
	}
	if p.Stage.Valid() {
		return p.Stage
	}
	return StageSeedling
}

// DaysInStage returns the whole days elapsed since the plant entered the given
// stage, or 0 when the stage has no recorded start.
func DaysInStage(p Plant, stage Stage, today Date) int {
	start := p.StageStart(stage)
	if start == nil {
		return 0
	}
	days := start.DaysUntil(today)
	if days < 0 {
		return 0
	}
	return days
}

// GrowthPhaseFor buckets the most advanced plant in a growspace into a coarse
// phase for environment threshold selection. Only flower progress selects the
// band; anything not yet flowering sits in the veg band regardless of veg age.
func GrowthPhaseFor(plants []Plant, today Date) GrowthPhase {
	var maxFlower int
	for _, p := range plants {
		if d := DaysInStage(p, StageFlower, today); d > maxFlower {
			maxFlower = d
		}
	}
	switch {
	case maxFlower >= 50:
		return PhaseLateFlower
	case maxFlower >= 22:
		return PhaseMidFlower
	case maxFlower > 0:
		return PhaseEarlyFlower
	default:
		return PhaseVeg
	}
}
