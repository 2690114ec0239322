// Package notify fires at-most-once milestone notifications for plants.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"growcore/pkg/domain"
)

// Notifier delivers a notification to an opaque target. Delivery is best
// effort and never retried.
type Notifier interface {
	Send(ctx context.Context, target, title, body string) error
}

// Store is the slice of the service surface the engine needs.
type Store interface {
	ListPlants() []domain.Plant
	GetGrowspace(id string) (domain.Growspace, bool)
	ShouldSendNotification(plantID string, stage domain.Stage, day int) bool
	MarkNotificationSent(ctx context.Context, plantID string, stage domain.Stage, day int) (domain.Result, error)
}

// MilestoneRule fires when a plant is exactly Day days into Stage. Title and
// Body may reference {strain}, {phenotype}, {day} and {stage} placeholders.
// An empty Growspaces list applies the rule everywhere.
type MilestoneRule struct {
	Stage      domain.Stage `json:"stage"`
	Day        int          `json:"day"`
	Title      string       `json:"title"`
	Body       string       `json:"body"`
	Growspaces []string     `json:"growspaces,omitempty"`
}

func (r MilestoneRule) appliesTo(growspaceID string) bool {
	if len(r.Growspaces) == 0 {
		return true
	}
	for _, id := range r.Growspaces {
		if id == growspaceID {
			return true
		}
	}
	return false
}

// Engine walks all plants against the configured milestone rules.
type Engine struct {
	store    Store
	notifier Notifier
	rules    []MilestoneRule
	log      *zap.Logger
	todayFn  func() domain.Date
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithToday overrides the engine calendar. Intended for tests.
func WithToday(today func() domain.Date) Option {
	return func(e *Engine) { e.todayFn = today }
}

// NewEngine constructs a milestone engine over the given rules.
func NewEngine(store Store, notifier Notifier, rules []MilestoneRule, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: notifier,
		rules:    rules,
		log:      zap.NewNop(),
		todayFn:  domain.Today,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckMilestones evaluates every plant against every rule, marking each hit
// in the ledger before dispatching so a crash mid-delivery cannot duplicate.
// Returns the number of notifications dispatched.
func (e *Engine) CheckMilestones(ctx context.Context) int {
	today := e.todayFn()
	sent := 0
	for _, plant := range e.store.ListPlants() {
		gs, ok := e.store.GetGrowspace(plant.GrowspaceID)
		if !ok || gs.NotificationTarget == nil {
			continue
		}
		stage := domain.DeriveStage(plant, today)
		day := domain.DaysInStage(plant, stage, today)
		for _, rule := range e.rules {
			if rule.Stage != stage || rule.Day != day || !rule.appliesTo(plant.GrowspaceID) {
				continue
			}
			if !e.store.ShouldSendNotification(plant.ID, stage, day) {
				continue
			}
			if _, err := e.store.MarkNotificationSent(ctx, plant.ID, stage, day); err != nil {
				e.log.Error("failed to mark notification sent",
					zap.String("plant_id", plant.ID), zap.Error(err))
				continue
			}
			title := expand(rule.Title, plant, stage, day)
			body := expand(rule.Body, plant, stage, day)
			if err := e.notifier.Send(ctx, *gs.NotificationTarget, title, body); err != nil {
				e.log.Warn("milestone notification delivery failed",
					zap.String("plant_id", plant.ID),
					zap.String("stage", string(stage)),
					zap.Int("day", day),
					zap.Error(err))
				continue
			}
			sent++
		}
	}
	return sent
}

func expand(template string, p domain.Plant, stage domain.Stage, day int) string {
	r := strings.NewReplacer(
		"{strain}", p.Strain,
		"{phenotype}", p.Phenotype,
		"{stage}", string(stage),
		"{day}", fmt.Sprintf("%d", day),
	)
	return r.Replace(template)
}
