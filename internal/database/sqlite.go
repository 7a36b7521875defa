package database

import (
	"context"
	"database/sql"
	"fmt"

	"ysnap/internal/database/migrations"
	"ysnap/internal/ysnap"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteHistory implements ysnap.History using SQLite.
type SQLiteHistory struct {
	db   *sql.DB
	path string
}

// NewSQLiteHistory opens (creating if needed) the history database and
// migrates it to the latest schema.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("checking history database: %w", err)
	}

	return &SQLiteHistory{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// The daemon and a manual run may write at the same time.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (s *SQLiteHistory) StartRotation(rec *ysnap.RotationRecord) error {
	res, err := s.db.ExecContext(context.Background(), `
		INSERT INTO rotations (operation_id, source, target, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		rec.OperationID, rec.Source, rec.Target, rec.StartedAt.UTC(), string(rec.Status))
	if err != nil {
		return fmt.Errorf("inserting rotation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading rotation id: %w", err)
	}
	rec.ID = id
	return nil
}

func (s *SQLiteHistory) FinishRotation(rec *ysnap.RotationRecord) error {
	var finished any
	if rec.FinishedAt.Valid {
		finished = rec.FinishedAt.Time.UTC()
	}
	res, err := s.db.ExecContext(context.Background(), `
		UPDATE rotations
		SET finished_at = ?, status = ?, snapshot = ?, pruned = ?, actions = ?, message = ?
		WHERE id = ?`,
		finished, string(rec.Status), rec.Snapshot, rec.Pruned, rec.Actions, rec.Message, rec.ID)
	if err != nil {
		return fmt.Errorf("updating rotation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating rotation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rotation %d not found", rec.ID)
	}
	return nil
}

func (s *SQLiteHistory) ListRotations(limit int) ([]*ysnap.RotationRecord, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, operation_id, source, target, started_at, finished_at,
		       status, snapshot, pruned, actions, message
		FROM rotations
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing rotations: %w", err)
	}
	defer rows.Close()

	var result []*ysnap.RotationRecord
	for rows.Next() {
		var rec ysnap.RotationRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.OperationID, &rec.Source, &rec.Target,
			&rec.StartedAt, &rec.FinishedAt, &status, &rec.Snapshot,
			&rec.Pruned, &rec.Actions, &rec.Message); err != nil {
			return nil, fmt.Errorf("scanning rotation: %w", err)
		}
		rec.Status = ysnap.RotationStatus(status)
		rec.StartedAt = rec.StartedAt.Local()
		if rec.FinishedAt.Valid {
			rec.FinishedAt.Time = rec.FinishedAt.Time.Local()
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing rotations: %w", err)
	}
	return result, nil
}

// Path returns the database location.
func (s *SQLiteHistory) Path() string {
	return s.path
}

func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

// Compile-time check that SQLiteHistory implements ysnap.History interface
var _ ysnap.History = (*SQLiteHistory)(nil)
