package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/moonbridge/moonbridge/internal/auth"
	"github.com/moonbridge/moonbridge/internal/bridge"
	"github.com/moonbridge/moonbridge/internal/camera"
	"github.com/moonbridge/moonbridge/internal/entity"
	"github.com/moonbridge/moonbridge/internal/infrastructure/config"
	"github.com/moonbridge/moonbridge/internal/infrastructure/logging"
	"github.com/moonbridge/moonbridge/internal/moonraker"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

// stubBridge implements CommandBridge for handler tests.
type stubBridge struct {
	mu          sync.Mutex
	executed    []bridge.CommandMessage
	execErr     error
	klippyReady bool
}

func (b *stubBridge) ExecuteCommand(_ context.Context, cmd bridge.CommandMessage) error {
	b.mu.Lock()
	b.executed = append(b.executed, cmd)
	b.mu.Unlock()
	return b.execErr
}

func (b *stubBridge) GetMetrics() bridge.Metrics {
	return bridge.Metrics{PrinterConnected: true, KlippyReady: b.klippyReady, Status: "healthy"}
}

func (b *stubBridge) KlippyReady() bool                          { return b.klippyReady }
func (b *stubBridge) AddListener(func(entity.Entity))            {}
func (b *stubBridge) AddEventListener(func(bridge.EventMessage)) {}

// stubPrinter implements moonraker.API with canned responses.
type stubPrinter struct{}

func (*stubPrinter) Call(context.Context, string, any) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (*stubPrinter) PrinterInfo(context.Context) (*moonraker.PrinterInfo, error) {
	return &moonraker.PrinterInfo{Hostname: "voron", SoftwareVersion: "v0.12.0", State: "ready"}, nil
}

func (*stubPrinter) ServerInfo(context.Context) (*moonraker.ServerInfo, error) {
	return &moonraker.ServerInfo{KlippyConnected: true, KlippyState: "ready", MoonrakerVersion: "v0.9.3"}, nil
}

func (*stubPrinter) QueryObjects(context.Context, map[string][]string) (*moonraker.ObjectsQueryResult, error) {
	return &moonraker.ObjectsQueryResult{}, nil
}

func (*stubPrinter) SubscribeObjects(context.Context, map[string][]string) (*moonraker.ObjectsQueryResult, error) {
	return &moonraker.ObjectsQueryResult{}, nil
}

func (*stubPrinter) FileMetadata(context.Context, string) (*moonraker.GCodeMetadata, error) {
	return &moonraker.GCodeMetadata{}, nil
}

func (*stubPrinter) ListWebcams(context.Context) ([]moonraker.Webcam, error) { return nil, nil }
func (*stubPrinter) ListHistory(context.Context, int) ([]moonraker.HistoryJob, error) {
	return nil, nil
}
func (*stubPrinter) PausePrint(context.Context) error               { return nil }
func (*stubPrinter) ResumePrint(context.Context) error              { return nil }
func (*stubPrinter) CancelPrint(context.Context) error              { return nil }
func (*stubPrinter) EmergencyStop(context.Context) error            { return nil }
func (*stubPrinter) FirmwareRestart(context.Context) error          { return nil }
func (*stubPrinter) RunGCode(context.Context, string) error         { return nil }
func (*stubPrinter) SetOnNotification(func(moonraker.Notification)) {}
func (*stubPrinter) SetOnConnect(func())                            {}
func (*stubPrinter) IsConnected() bool                              { return true }
func (*stubPrinter) Stats() moonraker.Stats                         { return moonraker.Stats{Connected: true} }
func (*stubPrinter) Close() error                                   { return nil }

// stubCameras implements CameraSource.
type stubCameras struct {
	cams        []camera.Webcam
	snapErr     error
	thumbErr    error
	refreshErr  error
	refreshed   bool
	snapData    []byte
	contentType string
}

func (c *stubCameras) List() []camera.Webcam { return c.cams }

func (c *stubCameras) Refresh(context.Context) error {
	c.refreshed = true
	return c.refreshErr
}

func (c *stubCameras) Snapshot(_ context.Context, name string) ([]byte, string, error) {
	if c.snapErr != nil {
		return nil, "", c.snapErr
	}
	for _, cam := range c.cams {
		if cam.Name == name {
			return c.snapData, c.contentType, nil
		}
	}
	return nil, "", camera.ErrCameraNotFound
}

func (c *stubCameras) PrintThumbnail(context.Context, string) ([]byte, string, error) {
	if c.thumbErr != nil {
		return nil, "", c.thumbErr
	}
	return c.snapData, c.contentType, nil
}

func setupAPITestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE entities (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			class        TEXT NOT NULL,
			device_class TEXT NOT NULL DEFAULT '',
			unit         TEXT NOT NULL DEFAULT '',
			icon         TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL DEFAULT '',
			enabled      INTEGER NOT NULL DEFAULT 1,
			state        TEXT NOT NULL DEFAULT '',
			available    INTEGER NOT NULL DEFAULT 0,
			updated_at   TEXT NOT NULL,
			created_at   TEXT NOT NULL
		);
		CREATE TABLE entity_state_history (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id     TEXT NOT NULL,
			value         TEXT NOT NULL,
			numeric_value REAL,
			recorded_at   TEXT NOT NULL
		);
		CREATE TABLE print_jobs (
			id             TEXT PRIMARY KEY,
			filename       TEXT NOT NULL,
			status         TEXT NOT NULL,
			started_at     TEXT NOT NULL,
			ended_at       TEXT,
			print_duration REAL NOT NULL DEFAULT 0,
			total_duration REAL NOT NULL DEFAULT 0,
			filament_used  REAL NOT NULL DEFAULT 0,
			metadata       TEXT NOT NULL DEFAULT '{}',
			created_at     TEXT NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return db
}

type testServer struct {
	server  *Server
	handler http.Handler
	bridge  *stubBridge
	cameras *stubCameras
	history entity.StateHistoryRepository
	jobs    entity.JobRepository
	db      *sql.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := setupAPITestDB(t)
	registry := entity.NewRegistry(entity.NewSQLiteRepository(db), entity.Catalog())
	if err := registry.Sync(context.Background()); err != nil {
		t.Fatalf("registry sync failed: %v", err)
	}

	history := entity.NewSQLiteStateHistoryRepository(db)
	jobs := entity.NewSQLiteJobRepository(db)
	stubBr := &stubBridge{klippyReady: true}
	cams := &stubCameras{
		cams:        []camera.Webcam{{Name: "toolhead", SnapshotURL: "http://printer/snap", Enabled: true}},
		snapData:    []byte{0xFF, 0xD8, 0xFF},
		contentType: "image/jpeg",
	}

	cfg := config.APIConfig{Host: "127.0.0.1", Port: 8080}
	secCfg := config.SecurityConfig{JWT: config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 15}}

	srv, err := New(Deps{
		Config:   cfg,
		Security: secCfg,
		Logger:   logging.Default(),
		Registry: registry,
		History:  history,
		Jobs:     jobs,
		Bridge:   stubBr,
		Printer:  &stubPrinter{},
		Cameras:  cams,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	srv.hub = NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, srv.logger)

	return &testServer{
		server:  srv,
		handler: srv.buildRouter(),
		bridge:  stubBr,
		cameras: cams,
		history: history,
		jobs:    jobs,
		db:      db,
	}
}

func (ts *testServer) request(t *testing.T, method, path string, body []byte, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	return body
}

func TestNew_Validation(t *testing.T) {
	registry := entity.NewRegistry(entity.NewSQLiteRepository(setupAPITestDB(t)), entity.Catalog())

	tests := []struct {
		name string
		deps Deps
	}{
		{"missing logger", Deps{Registry: registry, Bridge: &stubBridge{}, Printer: &stubPrinter{}}},
		{"missing registry", Deps{Logger: logging.Default(), Bridge: &stubBridge{}, Printer: &stubPrinter{}}},
		{"missing bridge", Deps{Logger: logging.Default(), Registry: registry, Printer: &stubPrinter{}}},
		{"missing printer", Deps{Logger: logging.Default(), Registry: registry, Bridge: &stubBridge{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestHandleMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/metrics", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var metrics SystemMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("invalid metrics response: %v", err)
	}
	if !metrics.Printer.Connected {
		t.Error("expected printer connected")
	}
	if metrics.Entities.Total != len(entity.Catalog()) {
		t.Errorf("entities total = %d, want %d", metrics.Entities.Total, len(entity.Catalog()))
	}
}

func TestHandleGetPrinter(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/printer", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["hostname"] != "voron" {
		t.Errorf("hostname = %v, want voron", body["hostname"])
	}
	if body["klippy_ready"] != true {
		t.Error("expected klippy_ready true")
	}
}

func TestHandleListEntities(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/entities", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if int(body["count"].(float64)) != len(entity.Catalog()) {
		t.Errorf("count = %v, want %d", body["count"], len(entity.Catalog()))
	}
}

func TestHandleGetEntity(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/entities/print_state", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["id"] != "print_state" {
		t.Errorf("id = %v, want print_state", body["id"])
	}
}

func TestHandleGetEntity_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/entities/no_such_entity", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleEntityHistory(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	temp := 215.31
	if err := ts.history.Record(ctx, "extruder_temperature", "215.31", &temp); err != nil {
		t.Fatalf("history record failed: %v", err)
	}
	temp2 := 216.0
	if err := ts.history.Record(ctx, "extruder_temperature", "216", &temp2); err != nil {
		t.Fatalf("history record failed: %v", err)
	}

	rec := ts.request(t, http.MethodGet, "/api/v1/entities/extruder_temperature/history", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if int(body["count"].(float64)) != 2 {
		t.Errorf("count = %v, want 2", body["count"])
	}

	// limit applies
	rec = ts.request(t, http.MethodGet, "/api/v1/entities/extruder_temperature/history?limit=1", nil, "")
	body = decodeBody(t, rec)
	if int(body["count"].(float64)) != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}

	// invalid limit rejected
	rec = ts.request(t, http.MethodGet, "/api/v1/entities/extruder_temperature/history?limit=-3", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// future from excludes everything
	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	rec = ts.request(t, http.MethodGet, "/api/v1/entities/extruder_temperature/history?from="+future, nil, "")
	body = decodeBody(t, rec)
	if int(body["count"].(float64)) != 0 {
		t.Errorf("count = %v, want 0", body["count"])
	}
}

func TestHandleListJobs(t *testing.T) {
	ts := newTestServer(t)

	job := &entity.PrintJob{
		ID:        "000001",
		Filename:  "benchy.gcode",
		Status:    "completed",
		StartedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := ts.jobs.Upsert(context.Background(), job); err != nil {
		t.Fatalf("job upsert failed: %v", err)
	}

	rec := ts.request(t, http.MethodGet, "/api/v1/jobs", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if int(body["count"].(float64)) != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestHandlePostCommand_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	payload := []byte(`{"command": "pause"}`)

	// No token
	rec := ts.request(t, http.MethodPost, "/api/v1/printer/commands", payload, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Garbage token
	rec = ts.request(t, http.MethodPost, "/api/v1/printer/commands", payload, "not.a.token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	if len(ts.bridge.executed) != 0 {
		t.Error("command must not execute without auth")
	}
}

func TestHandlePostCommand(t *testing.T) {
	ts := newTestServer(t)

	token, err := auth.GenerateToken("operator", testJWTSecret, 15)
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}

	payload := []byte(`{"command": "gcode", "parameters": {"script": "G28"}}`)
	rec := ts.request(t, http.MethodPost, "/api/v1/printer/commands", payload, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["status"] != "completed" || body["command_id"] == "" {
		t.Errorf("unexpected body: %v", body)
	}

	if len(ts.bridge.executed) != 1 {
		t.Fatalf("expected 1 executed command, got %d", len(ts.bridge.executed))
	}
	cmd := ts.bridge.executed[0]
	if cmd.Command != "gcode" || cmd.Source != "api" {
		t.Errorf("unexpected command: %+v", cmd)
	}
	if cmd.Parameters["script"] != "G28" {
		t.Errorf("unexpected parameters: %v", cmd.Parameters)
	}
}

func TestHandlePostCommand_Errors(t *testing.T) {
	ts := newTestServer(t)

	token, err := auth.GenerateToken("operator", testJWTSecret, 15)
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}

	// Invalid body
	rec := ts.request(t, http.MethodPost, "/api/v1/printer/commands", []byte(`{`), token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// Missing command
	rec = ts.request(t, http.MethodPost, "/api/v1/printer/commands", []byte(`{}`), token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// Invalid command maps to 400
	ts.bridge.execErr = bridge.ErrInvalidCommand
	rec = ts.request(t, http.MethodPost, "/api/v1/printer/commands", []byte(`{"command": "levitate"}`), token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// Klippy down maps to 409
	ts.bridge.execErr = bridge.ErrKlippyNotReady
	rec = ts.request(t, http.MethodPost, "/api/v1/printer/commands", []byte(`{"command": "pause"}`), token)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestHandleListCameras(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/cameras", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if int(body["count"].(float64)) != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}
	if ts.cameras.refreshed {
		t.Error("refresh must not run without the refresh parameter")
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/cameras?refresh=true", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !ts.cameras.refreshed {
		t.Error("expected refresh to run")
	}
}

func TestHandleCameraSnapshot(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/cameras/toolhead/snapshot", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("content type = %s, want image/jpeg", got)
	}
	if rec.Body.Len() != 3 {
		t.Errorf("body length = %d, want 3", rec.Body.Len())
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/cameras/missing/snapshot", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandlePrinterThumbnail(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/printer/thumbnail", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	ts.cameras.thumbErr = camera.ErrNoThumbnail
	rec = ts.request(t, http.MethodGet, "/api/v1/printer/thumbnail", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/health", nil, "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request ID header")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "custom-id")
	rec2 := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec2, req)
	if rec2.Header().Get("X-Request-ID") != "custom-id" {
		t.Error("expected the client request ID to be echoed")
	}
}
