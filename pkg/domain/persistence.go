package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateGrowspace(Growspace) (Growspace, error)
	UpdateGrowspace(id string, mutator func(*Growspace) error) (Growspace, error)
	DeleteGrowspace(id string) error
	CreatePlant(Plant) (Plant, error)
	UpdatePlant(id string, mutator func(*Plant) error) (Plant, error)
	DeletePlant(id string) error
	FindGrowspace(id string) (Growspace, bool)
	FindPlant(id string) (Plant, bool)
	MarkNotificationSent(plantID, key string) error
	ClearNotifications(plantID string)
	SetNotificationsEnabled(growspaceID string, enabled bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// higher-layer queries.
type TransactionView interface {
	RuleView
	ListGrowspacePlants(growspaceID string) []Plant
	NotificationSent(plantID, key string) bool
	NotificationsEnabled(growspaceID string) bool
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetGrowspace(id string) (Growspace, bool)
	ListGrowspaces() []Growspace
	GetPlant(id string) (Plant, bool)
	ListPlants() []Plant
	ListGrowspacePlants(growspaceID string) []Plant
	NotificationSent(plantID, key string) bool
	NotificationsEnabled(growspaceID string) bool
	ExportState() ([]byte, error)
	ImportState(data []byte) error
}
