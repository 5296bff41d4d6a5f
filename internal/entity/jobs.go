package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PrintJob is a recorded print job, mirroring Moonraker's history
// component with local persistence so job records survive printer
// database resets.
type PrintJob struct {
	ID            string         `json:"id"`
	Filename      string         `json:"filename"`
	Status        string         `json:"status"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       *time.Time     `json:"ended_at,omitempty"`
	PrintDuration float64        `json:"print_duration"`
	TotalDuration float64        `json:"total_duration"`
	FilamentUsed  float64        `json:"filament_used"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Job status values, following Moonraker's history component.
const (
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"
	JobStatusError      = "error"
	JobStatusKlippyShut = "klippy_shutdown"
)

// JobRepository defines persistence for print job records.
type JobRepository interface {
	// GetByID retrieves a job by its identifier.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id string) (*PrintJob, error)

	// List returns recent jobs ordered by start time, newest first.
	List(ctx context.Context, limit int) ([]PrintJob, error)

	// Upsert inserts or updates a job record.
	Upsert(ctx context.Context, job *PrintJob) error
}

// SQLiteJobRepository implements JobRepository using SQLite.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository creates a new SQLite-backed job repository.
func NewSQLiteJobRepository(db *sql.DB) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

const jobColumns = `id, filename, status, started_at, ended_at,
	print_duration, total_duration, filament_used, metadata, created_at`

// GetByID retrieves a job by its identifier.
func (r *SQLiteJobRepository) GetByID(ctx context.Context, id string) (*PrintJob, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("querying job by id: %w", err)
	}
	return job, nil
}

// List returns recent jobs ordered by start time, newest first.
func (r *SQLiteJobRepository) List(ctx context.Context, limit int) ([]PrintJob, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	query := `SELECT ` + jobColumns + ` FROM print_jobs ORDER BY started_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]PrintJob, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	return jobs, nil
}

// Upsert inserts or updates a job record. Moonraker re-announces jobs
// as they progress, so the same ID arrives multiple times with updated
// durations and status.
func (r *SQLiteJobRepository) Upsert(ctx context.Context, job *PrintJob) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}

	metadata := job.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	var endedAt sql.NullString
	if job.EndedAt != nil {
		endedAt = sql.NullString{String: job.EndedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	query := `
		INSERT INTO print_jobs (
			id, filename, status, started_at, ended_at,
			print_duration, total_duration, filament_used, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			status = excluded.status,
			ended_at = excluded.ended_at,
			print_duration = excluded.print_duration,
			total_duration = excluded.total_duration,
			filament_used = excluded.filament_used,
			metadata = excluded.metadata`

	_, err = r.db.ExecContext(ctx, query,
		job.ID,
		job.Filename,
		job.Status,
		job.StartedAt.UTC().Format(time.RFC3339),
		endedAt,
		job.PrintDuration,
		job.TotalDuration,
		job.FilamentUsed,
		string(metadataJSON),
		job.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting job: %w", err)
	}

	return nil
}

// scanJob scans a row or rows result into a PrintJob.
func scanJob(scanner rowScanner) (*PrintJob, error) {
	var job PrintJob
	var startedAt, createdAt, metadataJSON string
	var endedAt sql.NullString

	err := scanner.Scan(
		&job.ID,
		&job.Filename,
		&job.Status,
		&startedAt,
		&endedAt,
		&job.PrintDuration,
		&job.TotalDuration,
		&job.FilamentUsed,
		&metadataJSON,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	var parseErr error
	job.StartedAt, parseErr = time.Parse(time.RFC3339, startedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing started_at: %w", parseErr)
	}
	job.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}

	if endedAt.Valid {
		t, err := time.Parse(time.RFC3339, endedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing ended_at: %w", err)
		}
		job.EndedAt = &t
	}

	if err := json.Unmarshal([]byte(metadataJSON), &job.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}

	return &job, nil
}
