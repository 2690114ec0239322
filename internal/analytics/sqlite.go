package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // cgo-free sqlite driver

	"growcore/pkg/domain"
)

// SQLite persists harvest records to an embedded database so strain history
// survives restarts.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Recorder = (*SQLite)(nil)

// NewSQLite opens (or creates) the harvest database at path. An empty path
// defaults to ./growcore-harvests.db.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "growcore-harvests.db"
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create analytics dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS harvests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		strain TEXT NOT NULL,
		phenotype TEXT NOT NULL,
		veg_days INTEGER NOT NULL,
		flower_days INTEGER NOT NULL,
		harvested_at TIMESTAMP NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create harvests table: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// RecordHarvest inserts one observation.
func (s *SQLite) RecordHarvest(ctx context.Context, record domain.HarvestRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO harvests(strain, phenotype, veg_days, flower_days, harvested_at) VALUES(?,?,?,?,?)`,
		record.Strain, record.Phenotype, record.VegDays, record.FlowerDays, record.HarvestedAt)
	if err != nil {
		return fmt.Errorf("insert harvest: %w", err)
	}
	return nil
}

// StrainStats aggregates all stored harvests per strain and phenotype.
func (s *SQLite) StrainStats(ctx context.Context) ([]StrainStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT strain, phenotype, COUNT(*),
		AVG(veg_days), AVG(flower_days)
		FROM harvests GROUP BY strain, phenotype ORDER BY strain, phenotype`)
	if err != nil {
		return nil, fmt.Errorf("query strain stats: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []StrainStats
	for rows.Next() {
		var st StrainStats
		if err := rows.Scan(&st.Strain, &st.Phenotype, &st.Harvests, &st.AvgVegDays, &st.AvgFlowerDays); err != nil {
			return nil, fmt.Errorf("scan strain stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }
