package analytics

import (
	"context"
	"sort"
	"sync"

	"growcore/pkg/domain"
)

// Memory is an in-process Recorder. Intended for tests and the memory
// storage driver.
type Memory struct {
	mu      sync.Mutex
	records []domain.HarvestRecord
}

var _ Recorder = (*Memory)(nil)

// NewMemory returns an empty in-memory recorder.
func NewMemory() *Memory { return &Memory{} }

// RecordHarvest appends one observation.
func (m *Memory) RecordHarvest(_ context.Context, record domain.HarvestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

// Records returns a copy of all observations in insertion order.
func (m *Memory) Records() []domain.HarvestRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.HarvestRecord, len(m.records))
	copy(out, m.records)
	return out
}

// StrainStats aggregates the stored records per strain and phenotype.
func (m *Memory) StrainStats(_ context.Context) ([]StrainStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type key struct{ strain, phenotype string }
	type acc struct {
		count      int
		vegDays    int
		flowerDays int
	}
	accs := make(map[key]*acc)
	for _, r := range m.records {
		k := key{strain: r.Strain, phenotype: r.Phenotype}
		a, ok := accs[k]
		if !ok {
			a = &acc{}
			accs[k] = a
		}
		a.count++
		a.vegDays += r.VegDays
		a.flowerDays += r.FlowerDays
	}

	out := make([]StrainStats, 0, len(accs))
	for k, a := range accs {
		out = append(out, StrainStats{
			Strain:        k.strain,
			Phenotype:     k.phenotype,
			Harvests:      a.count,
			AvgVegDays:    float64(a.vegDays) / float64(a.count),
			AvgFlowerDays: float64(a.flowerDays) / float64(a.count),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strain != out[j].Strain {
			return out[i].Strain < out[j].Strain
		}
		return out[i].Phenotype < out[j].Phenotype
	})
	return out, nil
}
