// Package sqlite persists merge-run manifests: one row per completed batch
// merge, grouped by run.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/cellmerge/internal/merge"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunStore provides persistence for merge batch records.
type RunStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the manifest database at path and
// applies any pending schema migrations.
func Open(path string) (*RunStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open manifest db: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &RunStore{db: db}, nil
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: we don't close m here because it would close the underlying DB
	// connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// InsertBatch persists one batch record. If BatchID is empty, a UUID is
// generated; if CreatedAt is zero, the current time is used.
func (s *RunStore) InsertBatch(rec *merge.BatchRecord) error {
	if rec.BatchID == "" {
		rec.BatchID = uuid.New().String()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixNano()
	}
	_, err := s.db.Exec(`
		INSERT INTO merge_batches (
			batch_id, run_id, batch_file,
			cp_rows, dp_rows, merged_rows, images,
			mean_match_distance, max_match_distance, duplicate_cp_matches,
			duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BatchID, rec.RunID, rec.BatchFile,
		rec.CPRows, rec.DPRows, rec.MergedRows, rec.Images,
		rec.MeanMatchDistance, rec.MaxMatchDistance, rec.DuplicateCPMatches,
		rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch record: %w", err)
	}
	return nil
}

// ListByRun returns all batch records for a run in batch-file order.
func (s *RunStore) ListByRun(runID string) ([]*merge.BatchRecord, error) {
	rows, err := s.db.Query(`
		SELECT batch_id, run_id, batch_file,
		       cp_rows, dp_rows, merged_rows, images,
		       mean_match_distance, max_match_distance, duplicate_cp_matches,
		       duration_ms, created_at
		FROM merge_batches
		WHERE run_id = ?
		ORDER BY batch_file`, runID)
	if err != nil {
		return nil, fmt.Errorf("query batch records: %w", err)
	}
	defer rows.Close()

	var recs []*merge.BatchRecord
	for rows.Next() {
		rec, err := scanBatchRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Get returns a single batch record by ID, or nil if it does not exist.
func (s *RunStore) Get(batchID string) (*merge.BatchRecord, error) {
	row := s.db.QueryRow(`
		SELECT batch_id, run_id, batch_file,
		       cp_rows, dp_rows, merged_rows, images,
		       mean_match_distance, max_match_distance, duplicate_cp_matches,
		       duration_ms, created_at
		FROM merge_batches
		WHERE batch_id = ?`, batchID)
	rec, err := scanBatchRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBatchRecord(r rowScanner) (*merge.BatchRecord, error) {
	var rec merge.BatchRecord
	err := r.Scan(
		&rec.BatchID, &rec.RunID, &rec.BatchFile,
		&rec.CPRows, &rec.DPRows, &rec.MergedRows, &rec.Images,
		&rec.MeanMatchDistance, &rec.MaxMatchDistance, &rec.DuplicateCPMatches,
		&rec.DurationMs, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan batch record: %w", err)
	}
	return &rec, nil
}
