// Package memory provides the canonical in-memory transactional store for the
// growcore domain. Durable drivers embed it and snapshot its state.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"growcore/pkg/domain"

	"github.com/google/uuid"
)

type state struct {
	growspaces           map[string]domain.Growspace
	plants               map[string]domain.Plant
	notificationsSent    map[string]map[string]bool
	notificationsEnabled map[string]bool
}

func newState() state {
	return state{
		growspaces:           make(map[string]domain.Growspace),
		plants:               make(map[string]domain.Plant),
		notificationsSent:    make(map[string]map[string]bool),
		notificationsEnabled: make(map[string]bool),
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.growspaces {
		cloned.growspaces[k] = cloneGrowspace(v)
	}
	for k, v := range s.plants {
		cloned.plants[k] = clonePlant(v)
	}
	for plantID, keys := range s.notificationsSent {
		cp := make(map[string]bool, len(keys))
		for k, v := range keys {
			cp[k] = v
		}
		cloned.notificationsSent[plantID] = cp
	}
	for k, v := range s.notificationsEnabled {
		cloned.notificationsEnabled[k] = v
	}
	return cloned
}

func cloneGrowspace(g domain.Growspace) domain.Growspace {
	cp := g
	if g.NotificationTarget != nil {
		target := *g.NotificationTarget
		cp.NotificationTarget = &target
	}
	cp.Environment = cloneEnvironment(g.Environment)
	cp.Irrigation = cloneIrrigation(g.Irrigation)
	return cp
}

func cloneEnvironment(e domain.EnvironmentSettings) domain.EnvironmentSettings {
	cp := e
	if e.Thresholds != nil {
		cp.Thresholds = make(map[domain.GrowthPhase]map[domain.DayCycle]domain.ThresholdBand, len(e.Thresholds))
		for phase, cycles := range e.Thresholds {
			inner := make(map[domain.DayCycle]domain.ThresholdBand, len(cycles))
			for cycle, band := range cycles {
				inner[cycle] = band
			}
			cp.Thresholds[phase] = inner
		}
	}
	return cp
}

func cloneIrrigation(i domain.IrrigationSettings) domain.IrrigationSettings {
	cp := i
	cp.IrrigationTimes = cloneSchedule(i.IrrigationTimes)
	cp.DrainTimes = cloneSchedule(i.DrainTimes)
	return cp
}

func cloneSchedule(entries []domain.ScheduleEntry) []domain.ScheduleEntry {
	if entries == nil {
		return nil
	}
	out := make([]domain.ScheduleEntry, len(entries))
	for idx, e := range entries {
		cp := e
		if e.Duration != nil {
			d := *e.Duration
			cp.Duration = &d
		}
		out[idx] = cp
	}
	return out
}

func clonePlant(p domain.Plant) domain.Plant {
	cp := p
	cp.SeedlingStart = cloneDate(p.SeedlingStart)
	cp.CloneStart = cloneDate(p.CloneStart)
	cp.MotherStart = cloneDate(p.MotherStart)
	cp.VegStart = cloneDate(p.VegStart)
	cp.FlowerStart = cloneDate(p.FlowerStart)
	cp.DryStart = cloneDate(p.DryStart)
	cp.CureStart = cloneDate(p.CureStart)
	return cp
}

func cloneDate(d *domain.Date) *domain.Date {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}

// Store provides an in-memory transactional store for the growcore domain.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
	idFn   func() string
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
}

// SetClock overrides the store clock. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

// Transaction represents a mutation set applied to the store state.
type Transaction struct {
	store   *Store
	state   state
	changes []domain.Change
	now     time.Time
}

var (
	_ domain.Transaction     = (*Transaction)(nil)
	_ domain.PersistentStore = (*Store)(nil)
)

// view exposes a read-only snapshot of transactional state.
type view struct {
	state *state
}

func (v view) ListGrowspaces() []domain.Growspace {
	out := make([]domain.Growspace, 0, len(v.state.growspaces))
	for _, g := range v.state.growspaces {
		out = append(out, cloneGrowspace(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v view) ListPlants() []domain.Plant {
	out := make([]domain.Plant, 0, len(v.state.plants))
	for _, p := range v.state.plants {
		out = append(out, clonePlant(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v view) FindGrowspace(id string) (domain.Growspace, bool) {
	g, ok := v.state.growspaces[id]
	if !ok {
		return domain.Growspace{}, false
	}
	return cloneGrowspace(g), true
}

func (v view) FindPlant(id string) (domain.Plant, bool) {
	p, ok := v.state.plants[id]
	if !ok {
		return domain.Plant{}, false
	}
	return clonePlant(p), true
}

func (v view) ListGrowspacePlants(growspaceID string) []domain.Plant {
	var out []domain.Plant
	for _, p := range v.state.plants {
		if p.GrowspaceID == growspaceID {
			out = append(out, clonePlant(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		if out[i].Col != out[j].Col {
			return out[i].Col < out[j].Col
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v view) NotificationSent(plantID, key string) bool {
	return v.state.notificationsSent[plantID][key]
}

// NotificationsEnabled defaults to true for growspaces without an explicit switch.
func (v view) NotificationsEnabled(growspaceID string) bool {
	enabled, ok := v.state.notificationsEnabled[growspaceID]
	if !ok {
		return true
	}
	return enabled
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &tx.state}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(view{state: &snapshot})
}

// Engine returns the rules engine evaluating transactions.
func (s *Store) Engine() *domain.RulesEngine { return s.engine }

func (tx *Transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view of the transactional state.
func (tx *Transaction) Snapshot() domain.TransactionView {
	return view{state: &tx.state}
}

// CreateGrowspace stores a new growspace within the transaction.
func (tx *Transaction) CreateGrowspace(g domain.Growspace) (domain.Growspace, error) {
	if g.ID == "" {
		g.ID = tx.store.idFn()
	}
	if _, exists := tx.state.growspaces[g.ID]; exists {
		return domain.Growspace{}, fmt.Errorf("growspace %q already exists", g.ID)
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.growspaces[g.ID] = cloneGrowspace(g)
	tx.recordChange(domain.Change{Entity: domain.EntityGrowspace, Action: domain.ActionCreate, After: cloneGrowspace(g)})
	return cloneGrowspace(g), nil
}

// UpdateGrowspace mutates a growspace using the provided mutator function.
func (tx *Transaction) UpdateGrowspace(id string, mutator func(*domain.Growspace) error) (domain.Growspace, error) {
	current, ok := tx.state.growspaces[id]
	if !ok {
		return domain.Growspace{}, domain.NotFoundError{Entity: domain.EntityGrowspace, ID: id}
	}
	before := cloneGrowspace(current)
	if err := mutator(&current); err != nil {
		return domain.Growspace{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.growspaces[id] = cloneGrowspace(current)
	tx.recordChange(domain.Change{Entity: domain.EntityGrowspace, Action: domain.ActionUpdate, Before: before, After: cloneGrowspace(current)})
	return cloneGrowspace(current), nil
}

// DeleteGrowspace removes a growspace from the transaction state.
func (tx *Transaction) DeleteGrowspace(id string) error {
	current, ok := tx.state.growspaces[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityGrowspace, ID: id}
	}
	delete(tx.state.growspaces, id)
	delete(tx.state.notificationsEnabled, id)
	tx.recordChange(domain.Change{Entity: domain.EntityGrowspace, Action: domain.ActionDelete, Before: cloneGrowspace(current)})
	return nil
}

// CreatePlant stores a new plant within the transaction.
func (tx *Transaction) CreatePlant(p domain.Plant) (domain.Plant, error) {
	if p.ID == "" {
		p.ID = tx.store.idFn()
	}
	if _, exists := tx.state.plants[p.ID]; exists {
		return domain.Plant{}, fmt.Errorf("plant %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.plants[p.ID] = clonePlant(p)
	tx.recordChange(domain.Change{Entity: domain.EntityPlant, Action: domain.ActionCreate, After: clonePlant(p)})
	return clonePlant(p), nil
}

// UpdatePlant mutates a plant using the provided mutator function.
func (tx *Transaction) UpdatePlant(id string, mutator func(*domain.Plant) error) (domain.Plant, error) {
	current, ok := tx.state.plants[id]
	if !ok {
		return domain.Plant{}, domain.NotFoundError{Entity: domain.EntityPlant, ID: id}
	}
	before := clonePlant(current)
	if err := mutator(&current); err != nil {
		return domain.Plant{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.plants[id] = clonePlant(current)
	tx.recordChange(domain.Change{Entity: domain.EntityPlant, Action: domain.ActionUpdate, Before: before, After: clonePlant(current)})
	return clonePlant(current), nil
}

// DeletePlant removes a plant and its notification ledger entries.
func (tx *Transaction) DeletePlant(id string) error {
	current, ok := tx.state.plants[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityPlant, ID: id}
	}
	delete(tx.state.plants, id)
	delete(tx.state.notificationsSent, id)
	tx.recordChange(domain.Change{Entity: domain.EntityPlant, Action: domain.ActionDelete, Before: clonePlant(current)})
	return nil
}

// FindGrowspace retrieves a growspace from the transaction state.
func (tx *Transaction) FindGrowspace(id string) (domain.Growspace, bool) {
	g, ok := tx.state.growspaces[id]
	if !ok {
		return domain.Growspace{}, false
	}
	return cloneGrowspace(g), true
}

// FindPlant retrieves a plant from the transaction state.
func (tx *Transaction) FindPlant(id string) (domain.Plant, bool) {
	p, ok := tx.state.plants[id]
	if !ok {
		return domain.Plant{}, false
	}
	return clonePlant(p), true
}

// MarkNotificationSent records that a milestone key fired for a plant.
// Marking the same key twice is a no-op.
func (tx *Transaction) MarkNotificationSent(plantID, key string) error {
	if _, ok := tx.state.plants[plantID]; !ok {
		return domain.NotFoundError{Entity: domain.EntityPlant, ID: plantID}
	}
	keys, ok := tx.state.notificationsSent[plantID]
	if !ok {
		keys = make(map[string]bool)
		tx.state.notificationsSent[plantID] = keys
	}
	if keys[key] {
		return nil
	}
	keys[key] = true
	tx.recordChange(domain.Change{Entity: domain.EntityNotification, Action: domain.ActionCreate, After: plantID + "/" + key})
	return nil
}

// ClearNotifications drops all ledger entries for a plant.
func (tx *Transaction) ClearNotifications(plantID string) {
	delete(tx.state.notificationsSent, plantID)
}

// SetNotificationsEnabled toggles the per-growspace notification switch.
func (tx *Transaction) SetNotificationsEnabled(growspaceID string, enabled bool) {
	tx.state.notificationsEnabled[growspaceID] = enabled
}

// Read helpers ---------------------------------------------------------------

// GetGrowspace retrieves a growspace by ID from committed state.
func (s *Store) GetGrowspace(id string) (domain.Growspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.state.growspaces[id]
	if !ok {
		return domain.Growspace{}, false
	}
	return cloneGrowspace(g), true
}

// ListGrowspaces returns all growspaces from committed state ordered by ID.
func (s *Store) ListGrowspaces() []domain.Growspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListGrowspaces()
}

// GetPlant retrieves a plant by ID from committed state.
func (s *Store) GetPlant(id string) (domain.Plant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.plants[id]
	if !ok {
		return domain.Plant{}, false
	}
	return clonePlant(p), true
}

// ListPlants returns all plants from committed state ordered by ID.
func (s *Store) ListPlants() []domain.Plant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListPlants()
}

// ListGrowspacePlants returns the plants of one growspace in grid order.
func (s *Store) ListGrowspacePlants(growspaceID string) []domain.Plant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListGrowspacePlants(growspaceID)
}

// NotificationSent reports whether a milestone key already fired for a plant.
func (s *Store) NotificationSent(plantID, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.NotificationSent(plantID, key)
}

// NotificationsEnabled reports the per-growspace notification switch.
func (s *Store) NotificationsEnabled(growspaceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.NotificationsEnabled(growspaceID)
}

// Snapshot is the serialized shape of the full store state. Durable drivers
// persist its buckets individually.
type Snapshot struct {
	Growspaces           map[string]domain.Growspace `json:"growspaces"`
	Plants               map[string]domain.Plant     `json:"plants"`
	NotificationsSent    map[string]map[string]bool  `json:"notifications_sent"`
	NotificationsEnabled map[string]bool             `json:"notifications_enabled"`
}

// ExportSnapshot returns a deep copy of committed state.
func (s *Store) ExportSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cloned := s.state.clone()
	return Snapshot{
		Growspaces:           cloned.growspaces,
		Plants:               cloned.plants,
		NotificationsSent:    cloned.notificationsSent,
		NotificationsEnabled: cloned.notificationsEnabled,
	}
}

// ImportSnapshot replaces committed state with the snapshot contents. Plants
// referencing a missing growspace are dropped, as are ledger entries for
// missing plants.
func (s *Store) ImportSnapshot(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := newState()
	for id, g := range snapshot.Growspaces {
		g.ID = id
		next.growspaces[id] = cloneGrowspace(g)
	}
	for id, p := range snapshot.Plants {
		if _, ok := next.growspaces[p.GrowspaceID]; !ok {
			continue
		}
		p.ID = id
		next.plants[id] = clonePlant(p)
	}
	for plantID, keys := range snapshot.NotificationsSent {
		if _, ok := next.plants[plantID]; !ok {
			continue
		}
		cp := make(map[string]bool, len(keys))
		for k, v := range keys {
			cp[k] = v
		}
		next.notificationsSent[plantID] = cp
	}
	for id, enabled := range snapshot.NotificationsEnabled {
		if _, ok := next.growspaces[id]; !ok {
			continue
		}
		next.notificationsEnabled[id] = enabled
	}
	s.state = next
}

// ExportState serializes the full store state as JSON.
func (s *Store) ExportState() ([]byte, error) {
	return json.MarshalIndent(s.ExportSnapshot(), "", "  ")
}

// ImportState replaces the store state from serialized snapshot JSON.
func (s *Store) ImportState(data []byte) error {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	s.ImportSnapshot(snapshot)
	return nil
}
