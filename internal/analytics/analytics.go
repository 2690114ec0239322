// Package analytics aggregates harvest outcomes per strain.
package analytics

import (
	"context"

	"growcore/pkg/domain"
)

// Recorder persists harvest observations and answers aggregate queries.
type Recorder interface {
	RecordHarvest(ctx context.Context, record domain.HarvestRecord) error
	StrainStats(ctx context.Context) ([]StrainStats, error)
}

// StrainStats aggregates all harvests of one strain and phenotype.
type StrainStats struct {
	Strain        string  `json:"strain"`
	Phenotype     string  `json:"phenotype"`
	Harvests      int     `json:"harvests"`
	AvgVegDays    float64 `json:"avg_veg_days"`
	AvgFlowerDays float64 `json:"avg_flower_days"`
}
