package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/moonbridge/moonbridge/internal/infrastructure/database"

	// Registers the embedded production migrations.
	_ "github.com/moonbridge/moonbridge/migrations"
)

// schemaTables are the tables the initial schema must create.
var schemaTables = []string{"entities", "entity_state_history", "print_jobs", "webcams"}

// openSchemaDB opens a temporary database with the production migrations
// registered via the migrations package import above.
func openSchemaDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "moonbridge.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func tableExists(t *testing.T, db *database.DB, name string) bool {
	t.Helper()

	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("sqlite_master query error = %v", err)
	}
	return count == 1
}

// TestMigrate_CreatesSchema verifies the production schema comes up.
func TestMigrate_CreatesSchema(t *testing.T) {
	db := openSchemaDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, table := range schemaTables {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("expected 1 applied migration, got %d", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("expected 0 pending migrations, got %d", len(pending))
	}

	// Running again should be idempotent
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

// TestMigrate_SchemaIsUsable writes and reads domain rows through the
// migrated schema.
func TestMigrate_SchemaIsUsable(t *testing.T) {
	db := openSchemaDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `
		INSERT INTO entities (id, name, class, state, available, updated_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"extruder_temperature", "Extruder Temperature", "sensor", "215.4", 1, now, now)
	if err != nil {
		t.Fatalf("entity INSERT error = %v", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO entity_state_history (entity_id, value, numeric_value, recorded_at)
		VALUES (?, ?, ?, ?)`,
		"extruder_temperature", "215.4", 215.4, now)
	if err != nil {
		t.Fatalf("history INSERT error = %v", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO print_jobs (id, filename, status, started_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		"job-1", "benchy.gcode", "completed", now, now)
	if err != nil {
		t.Fatalf("job INSERT error = %v", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO webcams (name, service, snapshot_url, updated_at)
		VALUES (?, ?, ?, ?)`,
		"bed_cam", "mjpegstreamer", "http://printer.local/webcam/?action=snapshot", now)
	if err != nil {
		t.Fatalf("webcam INSERT error = %v", err)
	}

	var state string
	err = db.QueryRowContext(ctx,
		"SELECT state FROM entities WHERE id = ?", "extruder_temperature",
	).Scan(&state)
	if err != nil {
		t.Fatalf("entity SELECT error = %v", err)
	}
	if state != "215.4" {
		t.Errorf("state = %q, want 215.4", state)
	}

	// History rows cascade when their entity is deleted
	if _, err := db.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", "extruder_temperature"); err != nil {
		t.Fatalf("entity DELETE error = %v", err)
	}
	var count int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entity_state_history WHERE entity_id = ?", "extruder_temperature",
	).Scan(&count)
	if err != nil {
		t.Fatalf("history SELECT error = %v", err)
	}
	if count != 0 {
		t.Errorf("expected history rows to cascade on entity delete, got %d", count)
	}
}

// TestMigrateDown_DropsSchema verifies rollback removes the schema.
func TestMigrateDown_DropsSchema(t *testing.T) {
	db := openSchemaDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	for _, table := range schemaTables {
		if tableExists(t, db, table) {
			t.Errorf("table %s should have been dropped", table)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied migrations after rollback, got %d", len(applied))
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending migration after rollback, got %d", len(pending))
	}
}
