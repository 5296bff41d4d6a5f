package moonraker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockServer is a minimal Moonraker stand-in: it upgrades WebSocket
// connections, answers JSON-RPC requests via registered handlers and
// can push notifications.
type mockServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[string]func(params json.RawMessage) (any, *RPCError)
	conns    []*websocket.Conn
	writeMu  sync.Mutex
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()

	m := &mockServer{
		t:        t,
		handlers: make(map[string]func(params json.RawMessage) (any, *RPCError)),
	}
	m.srv = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mockServer) handle(method string, fn func(params json.RawMessage) (any, *RPCError)) {
	m.mu.Lock()
	m.handlers[method] = fn
	m.mu.Unlock()
}

func (m *mockServer) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.conns = append(m.conns, conn)
	m.mu.Unlock()

	for {
		var req struct {
			JSONRPC string          `json:"jsonrpc"`
			Method  string          `json:"method"`
			Params  json.RawMessage `json:"params"`
			ID      uint64          `json:"id"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		m.mu.Lock()
		handler := m.handlers[req.Method]
		m.mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if handler != nil {
			result, rpcErr := handler(req.Params)
			if rpcErr != nil {
				resp["error"] = rpcErr
			} else {
				resp["result"] = result
			}
		} else {
			resp["result"] = map[string]any{}
		}

		m.writeMu.Lock()
		err := conn.WriteJSON(resp)
		m.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// notify pushes a notification frame to every connected client.
func (m *mockServer) notify(method, params string) {
	frame := fmt.Sprintf(`{"jsonrpc": "2.0", "method": %q, "params": %s}`, method, params)

	m.mu.Lock()
	conns := append([]*websocket.Conn(nil), m.conns...)
	m.mu.Unlock()

	for _, conn := range conns {
		m.writeMu.Lock()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		m.writeMu.Unlock()
	}
}

// dropConnections closes every server-side connection, simulating an
// abrupt network failure.
func (m *mockServer) dropConnections() {
	m.mu.Lock()
	conns := m.conns
	m.conns = nil
	m.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

// config returns a Config pointing at the mock server.
func (m *mockServer) config() Config {
	m.t.Helper()

	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(m.srv.URL, "http://"))
	if err != nil {
		m.t.Fatalf("Failed to parse server URL: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		m.t.Fatalf("Failed to parse server port: %v", err)
	}

	return Config{
		Host:           host,
		Port:           port,
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

func mustConnect(t *testing.T, m *mockServer) *Client {
	t.Helper()

	client, err := Connect(context.Background(), m.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect_NoHost(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Expected ErrConnectionFailed, got %v", err)
	}
}

func TestConnect_Refused(t *testing.T) {
	cfg := Config{
		Host:           "127.0.0.1",
		Port:           1, // Nothing listens here
		ConnectTimeout: 2 * time.Second,
	}

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Expected ErrConnectionFailed, got %v", err)
	}
}

func TestPrinterInfo(t *testing.T) {
	mock := newMockServer(t)
	mock.handle("printer.info", func(json.RawMessage) (any, *RPCError) {
		return map[string]any{
			"state":            "ready",
			"hostname":         "voron24",
			"software_version": "v0.12.0-100",
		}, nil
	})

	client := mustConnect(t, mock)

	info, err := client.PrinterInfo(context.Background())
	if err != nil {
		t.Fatalf("PrinterInfo() error = %v", err)
	}
	if info.Hostname != "voron24" {
		t.Errorf("Expected hostname 'voron24', got %q", info.Hostname)
	}
	if info.State != KlippyStateReady {
		t.Errorf("Expected state ready, got %q", info.State)
	}
}

func TestServerInfo(t *testing.T) {
	mock := newMockServer(t)
	mock.handle("server.info", func(json.RawMessage) (any, *RPCError) {
		return map[string]any{
			"klippy_connected": true,
			"klippy_state":     "ready",
			"components":       []string{"history", "webcam"},
		}, nil
	})

	client := mustConnect(t, mock)

	info, err := client.ServerInfo(context.Background())
	if err != nil {
		t.Fatalf("ServerInfo() error = %v", err)
	}
	if !info.KlippyConnected {
		t.Error("Expected klippy_connected true")
	}
	if info.KlippyState != KlippyStateReady {
		t.Errorf("Expected klippy_state ready, got %q", info.KlippyState)
	}
}

func TestCall_FailsOnDisconnect(t *testing.T) {
	mock := newMockServer(t)

	inFlight := make(chan struct{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	mock.handle("printer.info", func(json.RawMessage) (any, *RPCError) {
		close(inFlight)
		<-release
		return map[string]any{}, nil
	})

	client := mustConnect(t, mock)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Call(ctx, "printer.info", nil)
		errCh <- err
	}()

	// Drop the socket while the call is waiting on its response. The
	// pending call must fail immediately, not sit out the deadline.
	<-inFlight
	mock.dropConnections()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConnectionLost) {
			t.Errorf("Expected ErrConnectionLost, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Call did not fail after the connection dropped")
	}
}

func TestCall_RPCError(t *testing.T) {
	mock := newMockServer(t)
	mock.handle("printer.print.pause", func(json.RawMessage) (any, *RPCError) {
		return nil, &RPCError{Code: 400, Message: "Print not in progress"}
	})

	client := mustConnect(t, mock)

	err := client.PausePrint(context.Background())
	if err == nil {
		t.Fatal("Expected error from server")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Expected *RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != 400 {
		t.Errorf("Expected code 400, got %d", rpcErr.Code)
	}
}

func TestCall_AfterClose(t *testing.T) {
	mock := newMockServer(t)
	client := mustConnect(t, mock)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err := client.Call(context.Background(), "printer.info", nil)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	mock := newMockServer(t)
	client := mustConnect(t, mock)

	if err := client.Close(); err != nil {
		t.Errorf("First Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestQueryObjects(t *testing.T) {
	mock := newMockServer(t)
	mock.handle("printer.objects.query", func(params json.RawMessage) (any, *RPCError) {
		var p struct {
			Objects map[string][]string `json:"objects"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: 400, Message: "bad params"}
		}
		if _, ok := p.Objects["extruder"]; !ok {
			return nil, &RPCError{Code: 400, Message: "missing extruder"}
		}
		return map[string]any{
			"eventtime": 42.5,
			"status": map[string]any{
				"extruder": map[string]any{"temperature": 210.1, "target": 215.0},
			},
		}, nil
	})

	client := mustConnect(t, mock)

	result, err := client.QueryObjects(context.Background(), map[string][]string{
		"extruder": {"temperature", "target"},
	})
	if err != nil {
		t.Fatalf("QueryObjects() error = %v", err)
	}
	if result.EventTime != 42.5 {
		t.Errorf("Expected eventtime 42.5, got %f", result.EventTime)
	}
	if _, ok := result.Status["extruder"]; !ok {
		t.Error("Expected extruder in status")
	}
}

func TestSubscribeObjects(t *testing.T) {
	mock := newMockServer(t)
	mock.handle("printer.objects.subscribe", func(params json.RawMessage) (any, *RPCError) {
		return map[string]any{
			"eventtime": 10.0,
			"status": map[string]any{
				"print_stats": map[string]any{"state": "standby"},
			},
		}, nil
	})

	client := mustConnect(t, mock)

	result, err := client.SubscribeObjects(context.Background(), map[string][]string{
		"print_stats": nil,
	})
	if err != nil {
		t.Fatalf("SubscribeObjects() error = %v", err)
	}
	if _, ok := result.Status["print_stats"]; !ok {
		t.Error("Expected print_stats in initial subscription state")
	}
}

func TestNotificationDelivery(t *testing.T) {
	mock := newMockServer(t)
	client := mustConnect(t, mock)

	received := make(chan Notification, 1)
	client.SetOnNotification(func(n Notification) {
		select {
		case received <- n:
		default:
		}
	})

	mock.notify(NotifyStatusUpdate, `[{"extruder": {"temperature": 199.9}}, 55.5]`)

	select {
	case n := <-received:
		if n.Method != NotifyStatusUpdate {
			t.Errorf("Expected %s, got %s", NotifyStatusUpdate, n.Method)
		}
		status, eventtime, err := ParseStatusUpdate(n.Params)
		if err != nil {
			t.Fatalf("ParseStatusUpdate() error = %v", err)
		}
		if _, ok := status["extruder"]; !ok {
			t.Error("Expected extruder in notification status")
		}
		if eventtime != 55.5 {
			t.Errorf("Expected eventtime 55.5, got %f", eventtime)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for notification")
	}
}

func TestRunGCode(t *testing.T) {
	mock := newMockServer(t)

	var gotScript string
	var scriptMu sync.Mutex
	mock.handle("printer.gcode.script", func(params json.RawMessage) (any, *RPCError) {
		var p struct {
			Script string `json:"script"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: 400, Message: "bad params"}
		}
		scriptMu.Lock()
		gotScript = p.Script
		scriptMu.Unlock()
		return "ok", nil
	})

	client := mustConnect(t, mock)

	if err := client.RunGCode(context.Background(), "G28"); err != nil {
		t.Fatalf("RunGCode() error = %v", err)
	}

	scriptMu.Lock()
	defer scriptMu.Unlock()
	if gotScript != "G28" {
		t.Errorf("Expected script 'G28', got %q", gotScript)
	}
}

func TestRunGCode_Empty(t *testing.T) {
	mock := newMockServer(t)
	client := mustConnect(t, mock)

	if err := client.RunGCode(context.Background(), ""); !errors.Is(err, ErrCallFailed) {
		t.Errorf("Expected ErrCallFailed for empty script, got %v", err)
	}
}

func TestListWebcams(t *testing.T) {
	mock := newMockServer(t)
	mock.handle("server.webcams.list", func(json.RawMessage) (any, *RPCError) {
		return map[string]any{
			"webcams": []map[string]any{
				{"name": "toolhead", "service": "mjpegstreamer", "snapshot_url": "/webcam/?action=snapshot", "enabled": true},
			},
		}, nil
	})

	client := mustConnect(t, mock)

	webcams, err := client.ListWebcams(context.Background())
	if err != nil {
		t.Fatalf("ListWebcams() error = %v", err)
	}
	if len(webcams) != 1 {
		t.Fatalf("Expected 1 webcam, got %d", len(webcams))
	}
	if webcams[0].Name != "toolhead" {
		t.Errorf("Expected name 'toolhead', got %q", webcams[0].Name)
	}
}

func TestListHistory(t *testing.T) {
	mock := newMockServer(t)
	mock.handle("server.history.list", func(json.RawMessage) (any, *RPCError) {
		return map[string]any{
			"count": 1,
			"jobs": []map[string]any{
				{"job_id": "000001", "filename": "benchy.gcode", "status": "completed", "print_duration": 3600.0},
			},
		}, nil
	})

	client := mustConnect(t, mock)

	jobs, err := client.ListHistory(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Status != "completed" {
		t.Errorf("Expected status 'completed', got %q", jobs[0].Status)
	}
}

func TestFileMetadata(t *testing.T) {
	mock := newMockServer(t)
	mock.handle("server.files.metadata", func(params json.RawMessage) (any, *RPCError) {
		return map[string]any{
			"filename":       "benchy.gcode",
			"estimated_time": 5400.0,
			"thumbnails": []map[string]any{
				{"width": 32, "height": 32, "relative_path": ".thumbs/benchy-32x32.png"},
				{"width": 300, "height": 300, "relative_path": ".thumbs/benchy-300x300.png"},
			},
		}, nil
	})

	client := mustConnect(t, mock)

	meta, err := client.FileMetadata(context.Background(), "benchy.gcode")
	if err != nil {
		t.Fatalf("FileMetadata() error = %v", err)
	}

	best := meta.LargestThumbnail()
	if best == nil {
		t.Fatal("Expected a thumbnail")
	}
	if best.Width != 300 {
		t.Errorf("Expected 300px thumbnail, got %d", best.Width)
	}
}

func TestStats(t *testing.T) {
	mock := newMockServer(t)
	client := mustConnect(t, mock)

	if _, err := client.Call(context.Background(), "server.info", nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	stats := client.Stats()
	if !stats.Connected {
		t.Error("Expected Connected true")
	}
	if stats.MessagesTx == 0 {
		t.Error("Expected MessagesTx > 0")
	}
	if stats.MessagesRx == 0 {
		t.Error("Expected MessagesRx > 0")
	}
	if stats.LastActivity.IsZero() {
		t.Error("Expected LastActivity to be set")
	}
}

func TestHealthCheck(t *testing.T) {
	mock := newMockServer(t)
	client := mustConnect(t, mock)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() on connected client error = %v", err)
	}

	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected after close, got %v", err)
	}
}

func TestConcurrentCalls(t *testing.T) {
	mock := newMockServer(t)
	mock.handle("server.info", func(json.RawMessage) (any, *RPCError) {
		return map[string]any{"klippy_state": "ready"}, nil
	})

	client := mustConnect(t, mock)

	var wg sync.WaitGroup
	errCh := make(chan error, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.ServerInfo(context.Background()); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("Concurrent call failed: %v", err)
	}
}
