package moonraker

import (
	"encoding/json"
	"testing"
)

func TestParseStatusUpdate(t *testing.T) {
	params := json.RawMessage(`[{"extruder": {"temperature": 215.3}, "print_stats": {"state": "printing"}}, 123456.789]`)

	status, eventtime, err := ParseStatusUpdate(params)
	if err != nil {
		t.Fatalf("ParseStatusUpdate() error = %v", err)
	}

	if len(status) != 2 {
		t.Errorf("Expected 2 objects, got %d", len(status))
	}
	if _, ok := status["extruder"]; !ok {
		t.Error("Expected extruder in status")
	}
	if eventtime != 123456.789 {
		t.Errorf("Expected eventtime 123456.789, got %f", eventtime)
	}
}

func TestParseStatusUpdate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		params string
	}{
		{"not an array", `{"extruder": {}}`},
		{"wrong element type", `["not-an-object", 1.0]`},
		{"malformed json", `[{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseStatusUpdate(json.RawMessage(tt.params))
			if err == nil {
				t.Error("Expected error for invalid params")
			}
		})
	}
}

func TestParseStatusUpdate_EmptyArray(t *testing.T) {
	status, eventtime, err := ParseStatusUpdate(json.RawMessage(`[]`))
	if err != nil {
		t.Fatalf("ParseStatusUpdate() error = %v", err)
	}
	if status != nil {
		t.Error("Expected nil status for empty array")
	}
	if eventtime != 0 {
		t.Errorf("Expected zero eventtime, got %f", eventtime)
	}
}

func TestParseHistoryChanged(t *testing.T) {
	params := json.RawMessage(`[{"action": "finished", "job": {"job_id": "00001A", "filename": "benchy.gcode", "status": "completed", "print_duration": 3600.5}}]`)

	event, err := ParseHistoryChanged(params)
	if err != nil {
		t.Fatalf("ParseHistoryChanged() error = %v", err)
	}

	if event.Action != "finished" {
		t.Errorf("Expected action 'finished', got %q", event.Action)
	}
	if event.Job.Filename != "benchy.gcode" {
		t.Errorf("Expected filename 'benchy.gcode', got %q", event.Job.Filename)
	}
	if event.Job.PrintDuration != 3600.5 {
		t.Errorf("Expected print_duration 3600.5, got %f", event.Job.PrintDuration)
	}
}

func TestParseHistoryChanged_Empty(t *testing.T) {
	if _, err := ParseHistoryChanged(json.RawMessage(`[]`)); err == nil {
		t.Error("Expected error for empty params array")
	}
}

func TestEnvelope_IsNotification(t *testing.T) {
	response := rpcEnvelope{ID: 42, Result: json.RawMessage(`{}`)}
	if response.isNotification() {
		t.Error("Response with ID should not be a notification")
	}

	notification := rpcEnvelope{Method: NotifyStatusUpdate}
	if !notification.isNotification() {
		t.Error("Frame with method should be a notification")
	}
}

func TestGCodeMetadata_LargestThumbnail(t *testing.T) {
	meta := GCodeMetadata{
		Thumbnails: []Thumbnail{
			{Width: 32, Height: 32, RelativePath: ".thumbs/small.png"},
			{Width: 300, Height: 300, RelativePath: ".thumbs/large.png"},
			{Width: 64, Height: 64, RelativePath: ".thumbs/medium.png"},
		},
	}

	best := meta.LargestThumbnail()
	if best == nil {
		t.Fatal("Expected a thumbnail")
	}
	if best.RelativePath != ".thumbs/large.png" {
		t.Errorf("Expected largest thumbnail, got %q", best.RelativePath)
	}
}

func TestGCodeMetadata_LargestThumbnail_None(t *testing.T) {
	meta := GCodeMetadata{}
	if meta.LargestThumbnail() != nil {
		t.Error("Expected nil for file without thumbnails")
	}
}

func TestConfig_URLs(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantWS  string
		wantURL string
	}{
		{
			name:    "defaults",
			cfg:     Config{Host: "printer.local"},
			wantWS:  "ws://printer.local:7125/websocket",
			wantURL: "http://printer.local:7125",
		},
		{
			name:    "custom port",
			cfg:     Config{Host: "192.168.1.50", Port: 7126},
			wantWS:  "ws://192.168.1.50:7126/websocket",
			wantURL: "http://192.168.1.50:7126",
		},
		{
			name:    "tls",
			cfg:     Config{Host: "printer.local", Port: 443, TLS: true},
			wantWS:  "wss://printer.local:443/websocket",
			wantURL: "https://printer.local:443",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.WebsocketURL(); got != tt.wantWS {
				t.Errorf("WebsocketURL() = %q, want %q", got, tt.wantWS)
			}
			if got := tt.cfg.BaseURL(); got != tt.wantURL {
				t.Errorf("BaseURL() = %q, want %q", got, tt.wantURL)
			}
		})
	}
}
