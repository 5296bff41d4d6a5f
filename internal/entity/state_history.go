package entity

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// StateHistoryEntry is a single recorded state change.
type StateHistoryEntry struct {
	ID         int64     `json:"id"`
	EntityID   string    `json:"entity_id"`
	Value      string    `json:"value"`
	Numeric    *float64  `json:"numeric,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// StateHistoryRepository defines persistence for entity state history.
type StateHistoryRepository interface {
	// Record inserts a state change. numeric may be nil for
	// non-numeric states such as print_state.
	Record(ctx context.Context, entityID, value string, numeric *float64) error

	// GetHistory returns recent entries for an entity, newest first.
	GetHistory(ctx context.Context, entityID string, limit int) ([]StateHistoryEntry, error)

	// GetHistoryRange returns entries within [from, to], newest first.
	// A zero from or to leaves that end of the range open.
	GetHistoryRange(ctx context.Context, entityID string, from, to time.Time, limit int) ([]StateHistoryEntry, error)

	// Prune deletes entries older than the given duration.
	// Returns the number of rows deleted.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteStateHistoryRepository implements StateHistoryRepository using SQLite.
type SQLiteStateHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteStateHistoryRepository creates a new SQLite state history repository.
func NewSQLiteStateHistoryRepository(db *sql.DB) *SQLiteStateHistoryRepository {
	return &SQLiteStateHistoryRepository{db: db}
}

// Record inserts a new state history entry for an entity.
func (r *SQLiteStateHistoryRepository) Record(ctx context.Context, entityID, value string, numeric *float64) error {
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}

	var numericVal sql.NullFloat64
	if numeric != nil {
		numericVal = sql.NullFloat64{Float64: *numeric, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO entity_state_history (entity_id, value, numeric_value, recorded_at) VALUES (?, ?, ?, ?)",
		entityID,
		value,
		numericVal,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}

	return nil
}

// GetHistory returns recent state history entries for an entity,
// ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - entityID: Entity identifier
//   - limit: Maximum entries to return (default 50, max 500)
func (r *SQLiteStateHistoryRepository) GetHistory(ctx context.Context, entityID string, limit int) ([]StateHistoryEntry, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_id, value, numeric_value, recorded_at
		 FROM entity_state_history
		 WHERE entity_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		entityID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		var entry StateHistoryEntry
		var numeric sql.NullFloat64
		var recordedAt string

		if err := rows.Scan(&entry.ID, &entry.EntityID, &entry.Value, &numeric, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}

		if numeric.Valid {
			entry.Numeric = &numeric.Float64
		}

		timestamp, err := time.Parse(time.RFC3339, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		entry.RecordedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}

	return entries, nil
}

// GetHistoryRange returns entries within the time range, newest first.
// Zero-valued bounds are treated as open.
func (r *SQLiteStateHistoryRepository) GetHistoryRange(ctx context.Context, entityID string, from, to time.Time, limit int) ([]StateHistoryEntry, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	query := `SELECT id, entity_id, value, numeric_value, recorded_at
		 FROM entity_state_history
		 WHERE entity_id = ?`
	args := []any{entityID}

	if !from.IsZero() {
		query += " AND recorded_at >= ?"
		args = append(args, from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		query += " AND recorded_at <= ?"
		args = append(args, to.UTC().Format(time.RFC3339))
	}

	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying state history range: %w", err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		var entry StateHistoryEntry
		var numeric sql.NullFloat64
		var recordedAt string

		if err := rows.Scan(&entry.ID, &entry.EntityID, &entry.Value, &numeric, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}

		if numeric.Valid {
			entry.Numeric = &numeric.Float64
		}

		timestamp, err := time.Parse(time.RFC3339, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		entry.RecordedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}

	return entries, nil
}

// Prune deletes history entries older than the given duration.
func (r *SQLiteStateHistoryRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM entity_state_history WHERE recorded_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}
