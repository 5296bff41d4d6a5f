package entity

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

// insertHistoryRow inserts a history row with a specific timestamp.
func insertHistoryRow(t *testing.T, db *sql.DB, entityID, value string, recordedAt time.Time) {
	t.Helper()

	_, err := db.Exec(
		"INSERT INTO entity_state_history (entity_id, value, recorded_at) VALUES (?, ?, ?)",
		entityID,
		value,
		recordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("failed to insert history row: %v", err)
	}
}

func TestStateHistory_Record(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	temp := 215.31
	if err := repo.Record(ctx, "extruder_temperature", "215.31", &temp); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := repo.Record(ctx, "print_state", "printing", nil); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "extruder_temperature", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Value != "215.31" {
		t.Errorf("Value = %q, want %q", entry.Value, "215.31")
	}
	if entry.Numeric == nil || *entry.Numeric != 215.31 {
		t.Errorf("Numeric = %v, want 215.31", entry.Numeric)
	}
	if entry.RecordedAt.IsZero() {
		t.Error("RecordedAt is zero, want non-zero")
	}

	states, err := repo.GetHistory(ctx, "print_state", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("entries length = %d, want 1", len(states))
	}
	if states[0].Numeric != nil {
		t.Errorf("Numeric = %v, want nil for non-numeric state", states[0].Numeric)
	}
}

func TestStateHistory_RecordEmptyID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)

	if err := repo.Record(context.Background(), "", "x", nil); err == nil {
		t.Error("Expected error for empty entity id")
	}
}

func TestStateHistory_Ordering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	insertHistoryRow(t, db, "print_state", "standby", now.Add(-2*time.Hour))
	insertHistoryRow(t, db, "print_state", "printing", now.Add(-1*time.Hour))
	insertHistoryRow(t, db, "print_state", "complete", now)
	insertHistoryRow(t, db, "bed_temperature", "60", now)

	entries, err := repo.GetHistory(ctx, "print_state", 2)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries length = %d, want 2", len(entries))
	}
	if entries[0].Value != "complete" {
		t.Errorf("entry[0] = %q, want newest first", entries[0].Value)
	}
	if entries[1].Value != "printing" {
		t.Errorf("entry[1] = %q, want %q", entries[1].Value, "printing")
	}
}

func TestStateHistory_Range(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	insertHistoryRow(t, db, "print_state", "standby", now.Add(-3*time.Hour))
	insertHistoryRow(t, db, "print_state", "printing", now.Add(-2*time.Hour))
	insertHistoryRow(t, db, "print_state", "complete", now.Add(-1*time.Hour))

	// Bounded range excludes the oldest and newest entries
	entries, err := repo.GetHistoryRange(ctx, "print_state",
		now.Add(-150*time.Minute), now.Add(-90*time.Minute), 10)
	if err != nil {
		t.Fatalf("GetHistoryRange() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}
	if entries[0].Value != "printing" {
		t.Errorf("entry = %q, want %q", entries[0].Value, "printing")
	}

	// Open-ended range behaves like GetHistory
	all, err := repo.GetHistoryRange(ctx, "print_state", time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("GetHistoryRange() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("entries length = %d, want 3", len(all))
	}
	if all[0].Value != "complete" {
		t.Errorf("entry[0] = %q, want newest first", all[0].Value)
	}

	// From-only range
	recent, err := repo.GetHistoryRange(ctx, "print_state", now.Add(-150*time.Minute), time.Time{}, 10)
	if err != nil {
		t.Fatalf("GetHistoryRange() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("entries length = %d, want 2", len(recent))
	}
}

func TestStateHistory_Prune(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	insertHistoryRow(t, db, "print_state", "old", now.Add(-40*24*time.Hour))
	insertHistoryRow(t, db, "print_state", "recent", now.Add(-12*time.Hour))

	deleted, err := repo.Prune(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	entries, err := repo.GetHistory(ctx, "print_state", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}
	if entries[0].Value != "recent" {
		t.Errorf("remaining = %q, want %q", entries[0].Value, "recent")
	}
}

func TestStateHistory_PruneInvalidDuration(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)

	if _, err := repo.Prune(context.Background(), 0); err == nil {
		t.Error("Expected error for non-positive duration")
	}
}
