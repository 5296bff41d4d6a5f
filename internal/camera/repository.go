package camera

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// WebcamRepository persists the webcam list so the API can serve it
// while the printer is offline.
type WebcamRepository interface {
	// List returns all stored webcams ordered by name.
	List(ctx context.Context) ([]Webcam, error)

	// Sync replaces the stored webcam list with the given one.
	Sync(ctx context.Context, cams []Webcam) error
}

// SQLiteWebcamRepository implements WebcamRepository using SQLite.
type SQLiteWebcamRepository struct {
	db *sql.DB
}

// NewSQLiteWebcamRepository creates a new SQLite-backed repository.
func NewSQLiteWebcamRepository(db *sql.DB) *SQLiteWebcamRepository {
	return &SQLiteWebcamRepository{db: db}
}

// List returns all stored webcams ordered by name.
func (r *SQLiteWebcamRepository) List(ctx context.Context) ([]Webcam, error) {
	query := `
		SELECT name, service, snapshot_url, stream_url, target_fps,
			location, enabled, updated_at
		FROM webcams ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying webcams: %w", err)
	}
	defer rows.Close()

	var cams []Webcam
	for rows.Next() {
		var c Webcam
		var enabled int
		var updatedAt string

		err := rows.Scan(
			&c.Name,
			&c.Service,
			&c.SnapshotURL,
			&c.StreamURL,
			&c.TargetFPS,
			&c.Location,
			&enabled,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning webcam: %w", err)
		}

		c.Enabled = enabled != 0
		c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		cams = append(cams, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webcams: %w", err)
	}

	return cams, nil
}

// Sync replaces the stored webcam list inside one transaction so
// readers never observe a partially updated table.
func (r *SQLiteWebcamRepository) Sync(ctx context.Context, cams []Webcam) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning webcam sync: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM webcams"); err != nil {
		return fmt.Errorf("clearing webcams: %w", err)
	}

	query := `
		INSERT INTO webcams (
			name, service, snapshot_url, stream_url, target_fps,
			location, enabled, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for _, c := range cams {
		updatedAt := c.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}

		enabled := 0
		if c.Enabled {
			enabled = 1
		}

		_, err := tx.ExecContext(ctx, query,
			c.Name,
			c.Service,
			c.SnapshotURL,
			c.StreamURL,
			c.TargetFPS,
			c.Location,
			enabled,
			updatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("inserting webcam %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing webcam sync: %w", err)
	}

	return nil
}
