package camera

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE webcams (
			name         TEXT PRIMARY KEY,
			service      TEXT NOT NULL DEFAULT '',
			snapshot_url TEXT NOT NULL DEFAULT '',
			stream_url   TEXT NOT NULL DEFAULT '',
			target_fps   INTEGER NOT NULL DEFAULT 0,
			location     TEXT NOT NULL DEFAULT '',
			enabled      INTEGER NOT NULL DEFAULT 1,
			updated_at   TEXT NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return db
}

func testWebcams() []Webcam {
	now := time.Now().UTC().Truncate(time.Second)
	return []Webcam{
		{
			Name:        "toolhead",
			Service:     "mjpegstreamer",
			SnapshotURL: "http://printer:7125/webcam/?action=snapshot",
			StreamURL:   "http://printer:7125/webcam/?action=stream",
			TargetFPS:   15,
			Location:    "printer",
			Enabled:     true,
			UpdatedAt:   now,
		},
		{
			Name:      "chamber",
			Service:   "uv4l-mjpeg",
			Enabled:   false,
			UpdatedAt: now,
		},
	}
}

func TestWebcamRepository_SyncAndList(t *testing.T) {
	repo := NewSQLiteWebcamRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Sync(ctx, testWebcams()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	cams, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cams) != 2 {
		t.Fatalf("expected 2 webcams, got %d", len(cams))
	}

	// Ordered by name
	if cams[0].Name != "chamber" || cams[1].Name != "toolhead" {
		t.Errorf("unexpected order: %s, %s", cams[0].Name, cams[1].Name)
	}

	if !cams[1].Enabled {
		t.Error("expected toolhead enabled")
	}
	if cams[0].Enabled {
		t.Error("expected chamber disabled")
	}
	if cams[1].TargetFPS != 15 {
		t.Errorf("expected target_fps 15, got %d", cams[1].TargetFPS)
	}
}

func TestWebcamRepository_SyncReplaces(t *testing.T) {
	repo := NewSQLiteWebcamRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Sync(ctx, testWebcams()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// A second sync with one webcam removes the other
	replacement := []Webcam{{Name: "toolhead", Service: "mjpegstreamer", Enabled: true, UpdatedAt: time.Now().UTC()}}
	if err := repo.Sync(ctx, replacement); err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}

	cams, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cams) != 1 || cams[0].Name != "toolhead" {
		t.Errorf("expected only toolhead after replacement, got %+v", cams)
	}
}

func TestWebcamRepository_SyncEmpty(t *testing.T) {
	repo := NewSQLiteWebcamRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Sync(ctx, testWebcams()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if err := repo.Sync(ctx, nil); err != nil {
		t.Fatalf("empty Sync failed: %v", err)
	}

	cams, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cams) != 0 {
		t.Errorf("expected empty list, got %d", len(cams))
	}
}
