package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"growcore/pkg/domain"
)

// Grid layout limits for user-created growspaces.
const (
	MaxRows         = 20
	MaxPlantsPerRow = 20
)

// HarvestRecorder receives one observation per plant routed into drying.
type HarvestRecorder interface {
	RecordHarvest(ctx context.Context, record HarvestRecord) error
}

// Service exposes higher-level transactional operations for the growspace schema.
type Service struct {
	store    PersistentStore
	metrics  MetricsRecorder
	tracer   Tracer
	harvests HarvestRecorder
	todayFn  func() Date
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithMetricsRecorder attaches an operation metrics sink.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer attaches an operation tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) { s.tracer = tracer }
}

// WithHarvestRecorder attaches the harvest analytics sink.
func WithHarvestRecorder(rec HarvestRecorder) ServiceOption {
	return func(s *Service) { s.harvests = rec }
}

// WithToday overrides the service calendar. Intended for tests.
func WithToday(today func() Date) ServiceOption {
	return func(s *Service) { s.todayFn = today }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		todayFn: domain.Today,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) today() Date {
	return s.todayFn()
}

func (s *Service) run(ctx context.Context, op string, fn func(tx Transaction) error) (Result, error) {
	started := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
	}
	res, err := s.store.RunInTransaction(ctx, fn)
	if s.metrics != nil {
		s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	}
	if span != nil {
		span.End(err)
	}
	return res, err
}

// normalizeNotificationTarget maps the legacy "none" spellings to absent.
func normalizeNotificationTarget(target string) *string {
	switch strings.TrimSpace(target) {
	case "", "none", "None":
		return nil
	}
	t := strings.TrimSpace(target)
	return &t
}

// Growspaces -----------------------------------------------------------------

// AddGrowspace creates a user growspace with the given grid dimensions.
func (s *Service) AddGrowspace(ctx context.Context, name string, rows, plantsPerRow int, notificationTarget string) (Growspace, Result, error) {
	if rows < 1 || rows > MaxRows || plantsPerRow < 1 || plantsPerRow > MaxPlantsPerRow {
		return Growspace{}, Result{}, fmt.Errorf("grid %dx%d outside allowed range 1..%d", rows, plantsPerRow, MaxRows)
	}
	var created Growspace
	res, err := s.run(ctx, "add_growspace", func(tx Transaction) error {
		var err error
		created, err = tx.CreateGrowspace(Growspace{
			Name:               name,
			Rows:               rows,
			PlantsPerRow:       plantsPerRow,
			NotificationTarget: normalizeNotificationTarget(notificationTarget),
		})
		return err
	})
	return created, res, err
}

// GrowspacePatch carries optional growspace field updates.
type GrowspacePatch struct {
	Name               *string
	Rows               *int
	PlantsPerRow       *int
	NotificationTarget *string
}

// UpdateGrowspace renames or resizes a growspace. Shrinking below occupied
// positions commits with a warning violation rather than failing.
func (s *Service) UpdateGrowspace(ctx context.Context, id string, patch GrowspacePatch) (Growspace, Result, error) {
	var updated Growspace
	res, err := s.run(ctx, "update_growspace", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateGrowspace(id, func(g *Growspace) error {
			if patch.Name != nil {
				g.Name = *patch.Name
			}
			if patch.Rows != nil {
				if *patch.Rows < 1 || *patch.Rows > MaxRows {
					return fmt.Errorf("rows %d outside allowed range 1..%d", *patch.Rows, MaxRows)
				}
				g.Rows = *patch.Rows
			}
			if patch.PlantsPerRow != nil {
				if *patch.PlantsPerRow < 1 || *patch.PlantsPerRow > MaxPlantsPerRow {
					return fmt.Errorf("plants per row %d outside allowed range 1..%d", *patch.PlantsPerRow, MaxPlantsPerRow)
				}
				g.PlantsPerRow = *patch.PlantsPerRow
			}
			if patch.NotificationTarget != nil {
				g.NotificationTarget = normalizeNotificationTarget(*patch.NotificationTarget)
			}
			return nil
		})
		return err
	})
	return updated, res, err
}

// ConfigureEnvironment replaces the climate control settings of a growspace.
func (s *Service) ConfigureEnvironment(ctx context.Context, id string, settings domain.EnvironmentSettings) (Growspace, Result, error) {
	var updated Growspace
	res, err := s.run(ctx, "configure_environment", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateGrowspace(id, func(g *Growspace) error {
			g.Environment = settings
			return nil
		})
		return err
	})
	return updated, res, err
}

// IrrigationPatch carries optional irrigation setting updates. Schedules are
// managed separately through AddScheduleEntry and RemoveScheduleEntry.
type IrrigationPatch struct {
	IrrigationPump     *string
	DrainPump          *string
	IrrigationDuration *int
	DrainDuration      *int
}

// ConfigureIrrigation updates pump bindings and default durations.
func (s *Service) ConfigureIrrigation(ctx context.Context, id string, patch IrrigationPatch) (Growspace, Result, error) {
	var updated Growspace
	res, err := s.run(ctx, "configure_irrigation", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateGrowspace(id, func(g *Growspace) error {
			if patch.IrrigationPump != nil {
				g.Irrigation.IrrigationPump = *patch.IrrigationPump
			}
			if patch.DrainPump != nil {
				g.Irrigation.DrainPump = *patch.DrainPump
			}
			if patch.IrrigationDuration != nil {
				g.Irrigation.IrrigationDuration = *patch.IrrigationDuration
			}
			if patch.DrainDuration != nil {
				g.Irrigation.DrainDuration = *patch.DrainDuration
			}
			return nil
		})
		return err
	})
	return updated, res, err
}

// NormalizeScheduleTime canonicalizes HH:MM and HH:MM:SS inputs to HH:MM:SS.
func NormalizeScheduleTime(value string) (string, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("15:04:05", value); err == nil {
		return t.Format("15:04:05"), nil
	}
	if t, err := time.Parse("15:04", value); err == nil {
		return t.Format("15:04:05"), nil
	}
	return "", fmt.Errorf("invalid schedule time %q", value)
}

func scheduleSlot(g *Growspace, key domain.ScheduleKey) (*[]ScheduleEntry, error) {
	switch key {
	case domain.ScheduleIrrigation:
		return &g.Irrigation.IrrigationTimes, nil
	case domain.ScheduleDrain:
		return &g.Irrigation.DrainTimes, nil
	default:
		return nil, fmt.Errorf("unknown schedule key %q", string(key))
	}
}

// AddScheduleEntry adds a daily trigger to a growspace schedule. A duplicate
// time updates the duration of the existing entry instead of appending.
func (s *Service) AddScheduleEntry(ctx context.Context, growspaceID string, key domain.ScheduleKey, at string, duration *int) (Growspace, Result, error) {
	normalized, err := NormalizeScheduleTime(at)
	if err != nil {
		return Growspace{}, Result{}, err
	}
	var updated Growspace
	res, err := s.run(ctx, "add_schedule_entry", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateGrowspace(growspaceID, func(g *Growspace) error {
			slot, err := scheduleSlot(g, key)
			if err != nil {
				return err
			}
			for i := range *slot {
				if (*slot)[i].Time == normalized {
					(*slot)[i].Duration = duration
					return nil
				}
			}
			*slot = append(*slot, ScheduleEntry{Time: normalized, Duration: duration})
			return nil
		})
		return err
	})
	return updated, res, err
}

// RemoveScheduleEntry deletes a daily trigger. Removing an absent time is a
// no-op and reports removed=false.
func (s *Service) RemoveScheduleEntry(ctx context.Context, growspaceID string, key domain.ScheduleKey, at string) (bool, Result, error) {
	normalized, err := NormalizeScheduleTime(at)
	if err != nil {
		return false, Result{}, err
	}
	removed := false
	res, err := s.run(ctx, "remove_schedule_entry", func(tx Transaction) error {
		_, err := tx.UpdateGrowspace(growspaceID, func(g *Growspace) error {
			slot, err := scheduleSlot(g, key)
			if err != nil {
				return err
			}
			for i := range *slot {
				if (*slot)[i].Time == normalized {
					*slot = append((*slot)[:i], (*slot)[i+1:]...)
					removed = true
					return nil
				}
			}
			return nil
		})
		return err
	})
	return removed, res, err
}

// EnsureSpecialGrowspace idempotently creates the canonical overview space for
// id (or one of its legacy aliases), migrating plants out of alias spaces and
// refreshing the display name when changed. rows/plantsPerRow of 0 use the
// canonical defaults.
func (s *Service) EnsureSpecialGrowspace(ctx context.Context, id, name string, rows, plantsPerRow int) (Growspace, Result, error) {
	spec, ok := domain.SpecialSpec(id)
	if !ok {
		return Growspace{}, Result{}, fmt.Errorf("%q is not a special growspace", id)
	}
	var ensured Growspace
	res, err := s.run(ctx, "ensure_special_growspace", func(tx Transaction) error {
		var err error
		ensured, err = ensureSpecialLocked(tx, spec, name, rows, plantsPerRow)
		return err
	})
	return ensured, res, err
}

func ensureSpecialLocked(tx Transaction, spec domain.SpecialGrowspaceSpec, name string, rows, plantsPerRow int) (Growspace, error) {
	if rows <= 0 {
		rows = spec.Rows
	}
	if plantsPerRow <= 0 {
		plantsPerRow = spec.PlantsPerRow
	}
	if name == "" {
		name = spec.ID
	}

	canonical, exists := tx.FindGrowspace(spec.ID)
	if !exists {
		created, err := tx.CreateGrowspace(Growspace{
			Base:         Base{ID: spec.ID},
			Name:         name,
			Rows:         rows,
			PlantsPerRow: plantsPerRow,
		})
		if err != nil {
			return Growspace{}, err
		}
		canonical = created
	} else if canonical.Name != name {
		updated, err := tx.UpdateGrowspace(spec.ID, func(g *Growspace) error {
			g.Name = name
			return nil
		})
		if err != nil {
			return Growspace{}, err
		}
		canonical = updated
	}

	for _, alias := range spec.Aliases {
		legacy, ok := tx.FindGrowspace(alias)
		if !ok {
			continue
		}
		for _, plant := range tx.Snapshot().ListGrowspacePlants(legacy.ID) {
			pos, err := placeInto(tx, canonical, plant.Row, plant.Col)
			if err != nil {
				return Growspace{}, err
			}
			if _, err := tx.UpdatePlant(plant.ID, func(p *Plant) error {
				p.GrowspaceID = canonical.ID
				p.Row = pos.Row
				p.Col = pos.Col
				return nil
			}); err != nil {
				return Growspace{}, err
			}
		}
		if err := tx.DeleteGrowspace(alias); err != nil {
			return Growspace{}, err
		}
	}
	return canonical, nil
}

// placeInto keeps the preferred cell when free, otherwise allocates the first
// free cell of the growspace grid.
func placeInto(tx Transaction, gs Growspace, preferRow, preferCol int) (GridPosition, error) {
	occupied := domain.OccupiedPositions(tx.Snapshot().ListGrowspacePlants(gs.ID))
	prefer := GridPosition{Row: preferRow, Col: preferCol}
	if preferRow >= 1 && preferRow <= gs.Rows && preferCol >= 1 && preferCol <= gs.PlantsPerRow && !occupied[prefer] {
		return prefer, nil
	}
	pos := domain.FirstFreePosition(gs.Rows, gs.PlantsPerRow, occupied)
	if occupied[pos] {
		return GridPosition{}, domain.OccupiedError{GrowspaceID: gs.ID, Row: pos.Row, Col: pos.Col}
	}
	return pos, nil
}

// RemoveGrowspace deletes a growspace together with its plants and their
// notification ledger entries.
func (s *Service) RemoveGrowspace(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "remove_growspace", func(tx Transaction) error {
		if _, ok := tx.FindGrowspace(id); !ok {
			return domain.NotFoundError{Entity: EntityGrowspace, ID: id}
		}
		for _, plant := range tx.Snapshot().ListGrowspacePlants(id) {
			if err := tx.DeletePlant(plant.ID); err != nil {
				return err
			}
		}
		return tx.DeleteGrowspace(id)
	})
}

// SetNotificationsEnabled toggles milestone notifications for a growspace.
func (s *Service) SetNotificationsEnabled(ctx context.Context, growspaceID string, enabled bool) (Result, error) {
	return s.run(ctx, "set_notifications_enabled", func(tx Transaction) error {
		if _, ok := tx.FindGrowspace(growspaceID); !ok {
			return domain.NotFoundError{Entity: EntityGrowspace, ID: growspaceID}
		}
		tx.SetNotificationsEnabled(growspaceID, enabled)
		return nil
	})
}

// Plants ---------------------------------------------------------------------

// AddPlantInput describes a new plant placement.
type AddPlantInput struct {
	GrowspaceID   string
	Strain        string
	Phenotype     string
	Row           int
	Col           int
	Stage         Stage
	SeedlingStart *Date
	CloneStart    *Date
	MotherStart   *Date
	VegStart      *Date
	FlowerStart   *Date
	DryStart      *Date
	CureStart     *Date
	SourceMother  string
}

func checkPlacement(tx Transaction, gs Growspace, row, col int, excludePlantID string) error {
	if !gs.Special() {
		if row < 1 || row > gs.Rows || col < 1 || col > gs.PlantsPerRow {
			return domain.OutOfBoundsError{GrowspaceID: gs.ID, Row: row, Col: col, Rows: gs.Rows, PlantsPerRow: gs.PlantsPerRow}
		}
	}
	for _, other := range tx.Snapshot().ListGrowspacePlants(gs.ID) {
		if other.ID == excludePlantID {
			continue
		}
		if other.Row == row && other.Col == col {
			return domain.OccupiedError{GrowspaceID: gs.ID, Row: row, Col: col, PlantID: other.ID}
		}
	}
	return nil
}

// AddPlant places a new plant at an explicit grid position.
func (s *Service) AddPlant(ctx context.Context, input AddPlantInput) (Plant, Result, error) {
	if input.Stage != "" && !input.Stage.Valid() {
		return Plant{}, Result{}, domain.InvalidStageError{Stage: input.Stage}
	}
	var created Plant
	res, err := s.run(ctx, "add_plant", func(tx Transaction) error {
		gs, ok := tx.FindGrowspace(input.GrowspaceID)
		if !ok {
			return domain.NotFoundError{Entity: EntityGrowspace, ID: input.GrowspaceID}
		}
		if err := checkPlacement(tx, gs, input.Row, input.Col, ""); err != nil {
			return err
		}
		var err error
		created, err = tx.CreatePlant(Plant{
			GrowspaceID:   input.GrowspaceID,
			Strain:        input.Strain,
			Phenotype:     input.Phenotype,
			Row:           input.Row,
			Col:           input.Col,
			Stage:         input.Stage,
			SeedlingStart: input.SeedlingStart,
			CloneStart:    input.CloneStart,
			MotherStart:   input.MotherStart,
			VegStart:      input.VegStart,
			FlowerStart:   input.FlowerStart,
			DryStart:      input.DryStart,
			CureStart:     input.CureStart,
			SourceMother:  input.SourceMother,
		})
		return err
	})
	return created, res, err
}

// AddMotherPlant places a new mother in the canonical mother growspace at the
// first free cell.
func (s *Service) AddMotherPlant(ctx context.Context, strain, phenotype string, start *Date) (Plant, Result, error) {
	spec, _ := domain.SpecialSpec(string(StageMother))
	startDate := s.today()
	if start != nil {
		startDate = *start
	}
	var created Plant
	res, err := s.run(ctx, "add_mother_plant", func(tx Transaction) error {
		gs, err := ensureSpecialLocked(tx, spec, "", 0, 0)
		if err != nil {
			return err
		}
		pos, err := placeInto(tx, gs, 0, 0)
		if err != nil {
			return err
		}
		created, err = tx.CreatePlant(Plant{
			GrowspaceID: gs.ID,
			Strain:      strain,
			Phenotype:   phenotype,
			Row:         pos.Row,
			Col:         pos.Col,
			Stage:       StageMother,
			MotherStart: &startDate,
		})
		return err
	})
	return created, res, err
}

// MovePlant relocates a plant within its growspace. Moving onto an occupied
// cell swaps the two plants atomically.
func (s *Service) MovePlant(ctx context.Context, plantID string, row, col int) (Plant, Result, error) {
	var moved Plant
	res, err := s.run(ctx, "move_plant", func(tx Transaction) error {
		plant, ok := tx.FindPlant(plantID)
		if !ok {
			return domain.NotFoundError{Entity: EntityPlant, ID: plantID}
		}
		gs, ok := tx.FindGrowspace(plant.GrowspaceID)
		if !ok {
			return domain.NotFoundError{Entity: EntityGrowspace, ID: plant.GrowspaceID}
		}
		if !gs.Special() {
			if row < 1 || row > gs.Rows || col < 1 || col > gs.PlantsPerRow {
				return domain.OutOfBoundsError{GrowspaceID: gs.ID, Row: row, Col: col, Rows: gs.Rows, PlantsPerRow: gs.PlantsPerRow}
			}
		}
		var occupant *Plant
		for _, other := range tx.Snapshot().ListGrowspacePlants(gs.ID) {
			if other.ID != plantID && other.Row == row && other.Col == col {
				o := other
				occupant = &o
				break
			}
		}
		if occupant != nil {
			if _, err := tx.UpdatePlant(occupant.ID, func(p *Plant) error {
				p.Row = plant.Row
				p.Col = plant.Col
				return nil
			}); err != nil {
				return err
			}
		}
		var err error
		moved, err = tx.UpdatePlant(plantID, func(p *Plant) error {
			p.Row = row
			p.Col = col
			return nil
		})
		return err
	})
	return moved, res, err
}

// SwitchPlants swaps the grid positions of two plants in the same growspace.
func (s *Service) SwitchPlants(ctx context.Context, plantID1, plantID2 string) (Result, error) {
	return s.run(ctx, "switch_plants", func(tx Transaction) error {
		first, ok := tx.FindPlant(plantID1)
		if !ok {
			return domain.NotFoundError{Entity: EntityPlant, ID: plantID1}
		}
		second, ok := tx.FindPlant(plantID2)
		if !ok {
			return domain.NotFoundError{Entity: EntityPlant, ID: plantID2}
		}
		if first.GrowspaceID != second.GrowspaceID {
			return fmt.Errorf("plants %s and %s are in different growspaces", plantID1, plantID2)
		}
		if _, err := tx.UpdatePlant(plantID1, func(p *Plant) error {
			p.Row = second.Row
			p.Col = second.Col
			return nil
		}); err != nil {
			return err
		}
		_, err := tx.UpdatePlant(plantID2, func(p *Plant) error {
			p.Row = first.Row
			p.Col = first.Col
			return nil
		})
		return err
	})
}

// TransitionStage sets an explicit lifecycle stage and records its start date.
func (s *Service) TransitionStage(ctx context.Context, plantID string, stage Stage, at *Date) (Plant, Result, error) {
	if !stage.Valid() {
		return Plant{}, Result{}, domain.InvalidStageError{Stage: stage}
	}
	date := s.today()
	if at != nil {
		date = *at
	}
	var updated Plant
	res, err := s.run(ctx, "transition_stage", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdatePlant(plantID, func(p *Plant) error {
			p.Stage = stage
			p.SetStageStart(stage, date)
			return nil
		})
		return err
	})
	return updated, res, err
}

// TransitionCloneToVeg moves a clone into the canonical veg growspace at the
// first free cell and starts its veg phase.
func (s *Service) TransitionCloneToVeg(ctx context.Context, plantID string, at *Date) (Plant, Result, error) {
	spec, _ := domain.SpecialSpec(string(StageVeg))
	date := s.today()
	if at != nil {
		date = *at
	}
	var updated Plant
	res, err := s.run(ctx, "transition_clone_to_veg", func(tx Transaction) error {
		if _, ok := tx.FindPlant(plantID); !ok {
			return domain.NotFoundError{Entity: EntityPlant, ID: plantID}
		}
		gs, err := ensureSpecialLocked(tx, spec, "", 0, 0)
		if err != nil {
			return err
		}
		pos, err := placeInto(tx, gs, 0, 0)
		if err != nil {
			return err
		}
		updated, err = tx.UpdatePlant(plantID, func(p *Plant) error {
			p.GrowspaceID = gs.ID
			p.Row = pos.Row
			p.Col = pos.Col
			p.Stage = StageVeg
			p.SetStageStart(StageVeg, date)
			return nil
		})
		return err
	})
	return updated, res, err
}

// TakeClones cuts count clones from a mother plant into the canonical clone
// growspace, copying strain and phenotype and recording the lineage.
func (s *Service) TakeClones(ctx context.Context, motherID string, count int, at *Date) ([]Plant, Result, error) {
	if count < 1 {
		return nil, Result{}, fmt.Errorf("clone count must be positive, got %d", count)
	}
	spec, _ := domain.SpecialSpec(string(StageClone))
	date := s.today()
	if at != nil {
		date = *at
	}
	var clones []Plant
	res, err := s.run(ctx, "take_clones", func(tx Transaction) error {
		mother, ok := tx.FindPlant(motherID)
		if !ok {
			return domain.NotFoundError{Entity: EntityPlant, ID: motherID}
		}
		gs, err := ensureSpecialLocked(tx, spec, "", 0, 0)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			pos, err := placeInto(tx, gs, 0, 0)
			if err != nil {
				return err
			}
			clone, err := tx.CreatePlant(Plant{
				GrowspaceID:  gs.ID,
				Strain:       mother.Strain,
				Phenotype:    mother.Phenotype,
				Row:          pos.Row,
				Col:          pos.Col,
				Stage:        StageClone,
				CloneStart:   &date,
				SourceMother: mother.ID,
			})
			if err != nil {
				return err
			}
			clones = append(clones, clone)
		}
		return nil
	})
	if err != nil {
		return nil, res, err
	}
	return clones, res, nil
}

// RemovePlant deletes a plant and its ledger entries. Removing an unknown
// plant reports removed=false without error.
func (s *Service) RemovePlant(ctx context.Context, plantID string) (bool, Result, error) {
	removed := false
	res, err := s.run(ctx, "remove_plant", func(tx Transaction) error {
		if _, ok := tx.FindPlant(plantID); !ok {
			return nil
		}
		if err := tx.DeletePlant(plantID); err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, res, err
}

// Queries --------------------------------------------------------------------

// GetGrowspace retrieves a growspace by ID.
func (s *Service) GetGrowspace(id string) (Growspace, bool) {
	return s.store.GetGrowspace(id)
}

// ListGrowspaces returns all growspaces ordered by ID.
func (s *Service) ListGrowspaces() []Growspace {
	return s.store.ListGrowspaces()
}

// GetPlant retrieves a plant by ID.
func (s *Service) GetPlant(id string) (Plant, bool) {
	return s.store.GetPlant(id)
}

// ListPlants returns all plants ordered by ID.
func (s *Service) ListPlants() []Plant {
	return s.store.ListPlants()
}

// GetGrowspacePlants returns the plants of a growspace in grid order.
func (s *Service) GetGrowspacePlants(growspaceID string) []Plant {
	return s.store.ListGrowspacePlants(growspaceID)
}

// GetGrowspaceGrid renders the growspace occupancy matrix.
func (s *Service) GetGrowspaceGrid(growspaceID string) ([][]string, error) {
	gs, ok := s.store.GetGrowspace(growspaceID)
	if !ok {
		return nil, domain.NotFoundError{Entity: EntityGrowspace, ID: growspaceID}
	}
	return domain.Grid(gs.Rows, gs.PlantsPerRow, s.store.ListGrowspacePlants(growspaceID)), nil
}

// DeriveStage computes the effective lifecycle stage of a plant.
func (s *Service) DeriveStage(plantID string) (Stage, error) {
	plant, ok := s.store.GetPlant(plantID)
	if !ok {
		return "", domain.NotFoundError{Entity: EntityPlant, ID: plantID}
	}
	return domain.DeriveStage(plant, s.today()), nil
}

// CalculateDaysInStage returns whole days since the plant entered the stage.
func (s *Service) CalculateDaysInStage(plantID string, stage Stage) (int, error) {
	plant, ok := s.store.GetPlant(plantID)
	if !ok {
		return 0, domain.NotFoundError{Entity: EntityPlant, ID: plantID}
	}
	return domain.DaysInStage(plant, stage, s.today()), nil
}

// FindFirstFreePosition returns the next allocation cell of a growspace grid.
func (s *Service) FindFirstFreePosition(growspaceID string) (GridPosition, error) {
	gs, ok := s.store.GetGrowspace(growspaceID)
	if !ok {
		return GridPosition{}, domain.NotFoundError{Entity: EntityGrowspace, ID: growspaceID}
	}
	occupied := domain.OccupiedPositions(s.store.ListGrowspacePlants(growspaceID))
	return domain.FirstFreePosition(gs.Rows, gs.PlantsPerRow, occupied), nil
}

// Notifications ----------------------------------------------------------------

// NotificationKey formats the ledger key for a stage/day milestone.
func NotificationKey(stage Stage, day int) string {
	return fmt.Sprintf("%s_day_%d", stage, day)
}

// ShouldSendNotification reports whether a milestone has not fired yet and
// notifications are enabled for the plant's growspace.
func (s *Service) ShouldSendNotification(plantID string, stage Stage, day int) bool {
	plant, ok := s.store.GetPlant(plantID)
	if !ok {
		return false
	}
	if !s.store.NotificationsEnabled(plant.GrowspaceID) {
		return false
	}
	return !s.store.NotificationSent(plantID, NotificationKey(stage, day))
}

// MarkNotificationSent records a milestone in the dedup ledger. Idempotent.
func (s *Service) MarkNotificationSent(ctx context.Context, plantID string, stage Stage, day int) (Result, error) {
	return s.run(ctx, "mark_notification_sent", func(tx Transaction) error {
		return tx.MarkNotificationSent(plantID, NotificationKey(stage, day))
	})
}
