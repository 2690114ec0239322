// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by growcore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityGrowspace identifies a growspace record.
	EntityGrowspace EntityType = "growspace"
	// EntityPlant identifies an individual plant record.
	EntityPlant EntityType = "plant"
	// EntityNotification identifies a notification ledger mutation.
	EntityNotification EntityType = "notification"
)

// Stage represents the canonical plant lifecycle states.
type Stage string

// Canonical plant lifecycle stages in chronological order.
const (
	// StageSeedling indicates a germinated plant not yet rooted or transitioned.
	StageSeedling Stage = "seedling"
	// StageClone indicates a rooted cutting taken from a mother plant.
	StageClone  Stage = "clone"
	StageMother Stage = "mother"
	StageVeg    Stage = "veg"
	StageFlower Stage = "flower"
	StageDry    Stage = "dry"
	StageCure   Stage = "cure"
)

// Stages lists all lifecycle stages in chronological order.
var Stages = []Stage{StageSeedling, StageClone, StageMother, StageVeg, StageFlower, StageDry, StageCure}

// Valid reports whether s is one of the canonical lifecycle stages.
func (s Stage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// GrowthPhase buckets a growspace's overall maturity for environment control.
type GrowthPhase string

// Growth phases used to select dehumidifier threshold bands.
const (
	PhaseVeg         GrowthPhase = "veg"
	PhaseEarlyFlower GrowthPhase = "early_flower"
	PhaseMidFlower   GrowthPhase = "mid_flower"
	PhaseLateFlower  GrowthPhase = "late_flower"
)

// DayCycle distinguishes lights-on from lights-off threshold bands.
type DayCycle string

// Day cycle values keyed into threshold tables.
const (
	CycleDay   DayCycle = "day"
	CycleNight DayCycle = "night"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Growspace represents a physical grow area laid out as a rows x plants-per-row grid.
type Growspace struct {
	Base
	Name               string              `json:"name"`
	Rows               int                 `json:"rows"`
	PlantsPerRow       int                 `json:"plants_per_row"`
	NotificationTarget *string             `json:"notification_target"`
	Environment        EnvironmentSettings `json:"environment_config"`
	Irrigation         IrrigationSettings  `json:"irrigation_config"`
}

// Special reports whether the growspace is one of the canonical stage overview spaces.
func (g Growspace) Special() bool {
	_, ok := SpecialStage(g.ID)
	return ok
}

// ThresholdBand holds a VPD hysteresis pair. On must be below Off.
type ThresholdBand struct {
	On  float64 `json:"on"`
	Off float64 `json:"off"`
}

// EnvironmentSettings configures sensor and actuator bindings for climate control.
type EnvironmentSettings struct {
	VPDSensor           string                                     `json:"vpd_sensor,omitempty"`
	LightSensor         string                                     `json:"light_sensor,omitempty"`
	Dehumidifier        string                                     `json:"dehumidifier_entity,omitempty"`
	ControlDehumidifier bool                                       `json:"control_dehumidifier"`
	Thresholds          map[GrowthPhase]map[DayCycle]ThresholdBand `json:"dehumidifier_thresholds,omitempty"`
}

// ScheduleEntry is a single daily trigger within an irrigation schedule.
// Duration, when set, overrides the growspace default for that event.
type ScheduleEntry struct {
	Time     string `json:"time"`
	Duration *int   `json:"duration,omitempty"`
}

// IrrigationSettings configures pump bindings and daily schedules for a growspace.
type IrrigationSettings struct {
	IrrigationPump     string          `json:"irrigation_pump,omitempty"`
	DrainPump          string          `json:"drain_pump,omitempty"`
	IrrigationDuration int             `json:"irrigation_duration,omitempty"`
	DrainDuration      int             `json:"drain_duration,omitempty"`
	IrrigationTimes    []ScheduleEntry `json:"irrigation_times,omitempty"`
	DrainTimes         []ScheduleEntry `json:"drain_times,omitempty"`
}

// ScheduleKey names one of the two irrigation schedule families.
type ScheduleKey string

// Schedule keys for pump cycle routing.
const (
	ScheduleIrrigation ScheduleKey = "irrigation"
	ScheduleDrain      ScheduleKey = "drain"
)

// Plant represents an individual plant occupying a grid cell in a growspace.
type Plant struct {
	Base
	GrowspaceID   string `json:"growspace_id"`
	Strain        string `json:"strain"`
	Phenotype     string `json:"phenotype"`
	Row           int    `json:"row"`
	Col           int    `json:"col"`
	Stage         Stage  `json:"stage,omitempty"`
	SeedlingStart *Date  `json:"seedling_start"`
	CloneStart    *Date  `json:"clone_start"`
	MotherStart   *Date  `json:"mother_start"`
	VegStart      *Date  `json:"veg_start"`
	FlowerStart   *Date  `json:"flower_start"`
	DryStart      *Date  `json:"dry_start"`
	CureStart     *Date  `json:"cure_start"`
	SourceMother  string `json:"source_mother,omitempty"`
}

// StageStart returns the recorded start date for the given stage, if any.
func (p Plant) StageStart(stage Stage) *Date {
	switch stage {
	case StageSeedling:
		return p.SeedlingStart
	case StageClone:
		return p.CloneStart
	case StageMother:
		return p.MotherStart
	case StageVeg:
		return p.VegStart
	case StageFlower:
		return p.FlowerStart
	case StageDry:
		return p.DryStart
	case StageCure:
		return p.CureStart
	}
	return nil
}

// SetStageStart records the start date for the given stage. Unknown stages are ignored.
func (p *Plant) SetStageStart(stage Stage, d Date) {
	switch stage {
	case StageSeedling:
		p.SeedlingStart = &d
	case StageClone:
		p.CloneStart = &d
	case StageMother:
		p.MotherStart = &d
	case StageVeg:
		p.VegStart = &d
	case StageFlower:
		p.FlowerStart = &d
	case StageDry:
		p.DryStart = &d
	case StageCure:
		p.CureStart = &d
	}
}

// HarvestRecord captures one completed grow of a strain for later analysis.
type HarvestRecord struct {
	Strain      string    `json:"strain"`
	Phenotype   string    `json:"phenotype"`
	VegDays     int       `json:"veg_days"`
	FlowerDays  int       `json:"flower_days"`
	HarvestedAt time.Time `json:"harvested_at"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
