package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for entity persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves an entity by its unique identifier.
	// Returns ErrEntityNotFound if the entity does not exist.
	GetByID(ctx context.Context, id string) (*Entity, error)

	// List retrieves all entities.
	List(ctx context.Context) ([]Entity, error)

	// Upsert inserts or updates an entity's identity and metadata.
	// Called at startup to sync the catalog into the database.
	Upsert(ctx context.Context, e *Entity) error

	// UpdateState updates only the state and availability of an entity.
	// This is optimised for frequent updates from the bridge.
	UpdateState(ctx context.Context, id, state string, available bool) error

	// SetEnabled enables or disables an entity.
	SetEnabled(ctx context.Context, id string, enabled bool) error

	// Delete removes an entity by ID.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entityColumns = `id, name, class, device_class, unit, icon, category,
	enabled, state, available, updated_at, created_at`

// GetByID retrieves an entity by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("querying entity by id: %w", err)
	}
	return e, nil
}

// List retrieves all entities ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}

	return entities, nil
}

// Upsert inserts or updates an entity. State and availability are
// preserved on conflict; only identity and metadata are refreshed.
func (r *SQLiteRepository) Upsert(ctx context.Context, e *Entity) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	query := `
		INSERT INTO entities (
			id, name, class, device_class, unit, icon, category,
			enabled, state, available, updated_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			class = excluded.class,
			device_class = excluded.device_class,
			unit = excluded.unit,
			icon = excluded.icon,
			category = excluded.category,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.Name,
		string(e.Class),
		e.DeviceClass,
		e.Unit,
		e.Icon,
		e.Category,
		boolToInt(e.Enabled),
		e.State,
		boolToInt(e.Available),
		e.UpdatedAt.Format(time.RFC3339),
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting entity: %w", err)
	}

	return nil
}

// UpdateState updates only the state and availability of an entity.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id, state string, available bool) error {
	now := time.Now().UTC()
	query := `
		UPDATE entities
		SET state = ?, available = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		state,
		boolToInt(available),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating entity state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEntityNotFound
	}

	return nil
}

// SetEnabled enables or disables an entity.
func (r *SQLiteRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		"UPDATE entities SET enabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(enabled),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating entity enabled: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEntityNotFound
	}

	return nil
}

// Delete removes an entity by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEntityNotFound
	}

	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntity scans a row or rows result into an Entity.
func scanEntity(scanner rowScanner) (*Entity, error) {
	var e Entity
	var class string
	var enabled, available int
	var updatedAt, createdAt string

	err := scanner.Scan(
		&e.ID,
		&e.Name,
		&class,
		&e.DeviceClass,
		&e.Unit,
		&e.Icon,
		&e.Category,
		&enabled,
		&e.State,
		&available,
		&updatedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	e.Class = Class(class)
	e.Enabled = enabled != 0
	e.Available = available != 0

	var parseErr error
	e.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	e.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}

	return &e, nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
