// Package postgres persists the in-memory growcore state to PostgreSQL as
// JSONB snapshot buckets.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"growcore/internal/infra/persistence/memory"
	"growcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// DefaultDSN is used when no connection string is configured.
const DefaultDSN = "postgres://localhost/growcore?sslmode=disable"

// Store snapshots the full state after every successful transaction into a
// state table keyed by bucket.
type Store struct {
	*memory.Store
	db  *sql.DB
	mu  sync.Mutex
	dsn string
}

var _ domain.PersistentStore = (*Store)(nil)

// NewStore connects to PostgreSQL, applies DDL and loads any prior snapshot.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, dsn: dsn}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

var buckets = []string{"growspaces", "plants", "notifications_sent", "notifications_enabled"}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := memory.Snapshot{}
	loaded := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		loaded = true
		switch bucket {
		case "growspaces":
			if err := json.Unmarshal(payload, &snapshot.Growspaces); err != nil {
				return fmt.Errorf("decode growspaces: %w", err)
			}
		case "plants":
			if err := json.Unmarshal(payload, &snapshot.Plants); err != nil {
				return fmt.Errorf("decode plants: %w", err)
			}
		case "notifications_sent":
			if err := json.Unmarshal(payload, &snapshot.NotificationsSent); err != nil {
				return fmt.Errorf("decode notifications_sent: %w", err)
			}
		case "notifications_enabled":
			if err := json.Unmarshal(payload, &snapshot.NotificationsEnabled); err != nil {
				return fmt.Errorf("decode notifications_enabled: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if loaded {
		s.ImportSnapshot(snapshot)
	}
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportSnapshot()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		var data []byte
		switch bucket {
		case "growspaces":
			data, err = json.Marshal(snapshot.Growspaces)
		case "plants":
			data, err = json.Marshal(snapshot.Plants)
		case "notifications_sent":
			data, err = json.Marshal(snapshot.NotificationsSent)
		case "notifications_enabled":
			data, err = json.Marshal(snapshot.NotificationsEnabled)
		}
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// RunInTransaction applies fn within a transaction, then snapshots state to
// PostgreSQL when the commit succeeded.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// ImportState replaces the store state and persists the result.
func (s *Store) ImportState(data []byte) error {
	if err := s.Store.ImportState(data); err != nil {
		return err
	}
	return s.persist()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
