package domain

import "fmt"

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// OutOfBoundsError is returned when a plant position exceeds the growspace grid.
type OutOfBoundsError struct {
	GrowspaceID  string
	Row          int
	Col          int
	Rows         int
	PlantsPerRow int
}

func (e OutOfBoundsError) Error() string {
	return fmt.Sprintf("position (%d,%d) outside %dx%d grid of growspace %s",
		e.Row, e.Col, e.Rows, e.PlantsPerRow, e.GrowspaceID)
}

// OccupiedError is returned when a grid cell already holds another plant.
type OccupiedError struct {
	GrowspaceID string
	Row         int
	Col         int
	PlantID     string
}

func (e OccupiedError) Error() string {
	return fmt.Sprintf("position (%d,%d) in growspace %s occupied by plant %s",
		e.Row, e.Col, e.GrowspaceID, e.PlantID)
}

// InvalidStageError is returned when a stage value is not a canonical lifecycle stage.
type InvalidStageError struct {
	Stage Stage
}

func (e InvalidStageError) Error() string {
	return fmt.Sprintf("invalid stage %q", string(e.Stage))
}

// MissingBindingError indicates a feature cannot run because a required sensor
// or actuator binding is not configured. Callers log it and disable the feature
// rather than failing the growspace.
type MissingBindingError struct {
	GrowspaceID string
	Binding     string
}

func (e MissingBindingError) Error() string {
	return fmt.Sprintf("growspace %s missing %s binding", e.GrowspaceID, e.Binding)
}
