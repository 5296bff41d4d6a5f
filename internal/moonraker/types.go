package moonraker

import "encoding/json"

// PrinterInfo is the response to a printer.info call.
type PrinterInfo struct {
	State           string `json:"state"`
	StateMessage    string `json:"state_message"`
	Hostname        string `json:"hostname"`
	SoftwareVersion string `json:"software_version"`
	CPUInfo         string `json:"cpu_info"`
	KlipperPath     string `json:"klipper_path"`
	PythonPath      string `json:"python_path"`
	ConfigFile      string `json:"config_file"`
	LogFile         string `json:"log_file"`
}

// Klippy states reported via printer.info and server.info.
const (
	KlippyStateReady    = "ready"
	KlippyStateStartup  = "startup"
	KlippyStateShutdown = "shutdown"
	KlippyStateError    = "error"
)

// ServerInfo is the response to a server.info call.
type ServerInfo struct {
	KlippyConnected       bool     `json:"klippy_connected"`
	KlippyState           string   `json:"klippy_state"`
	Components            []string `json:"components"`
	FailedComponents      []string `json:"failed_components"`
	MoonrakerVersion      string   `json:"moonraker_version"`
	APIVersionString      string   `json:"api_version_string"`
	WebsocketCount        int      `json:"websocket_count"`
	RegisteredDirectories []string `json:"registered_directories"`
}

// ObjectsQueryResult is the response to a printer.objects.query or
// printer.objects.subscribe call. Status maps printer object names
// (e.g. "extruder", "print_stats") to their raw field sets.
type ObjectsQueryResult struct {
	EventTime float64                    `json:"eventtime"`
	Status    map[string]json.RawMessage `json:"status"`
}

// Thumbnail is a single preview image entry in gcode file metadata.
// RelativePath is relative to the gcode file's directory.
type Thumbnail struct {
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int    `json:"size"`
	RelativePath string `json:"relative_path"`
}

// GCodeMetadata is the response to a server.files.metadata call.
type GCodeMetadata struct {
	Filename         string      `json:"filename"`
	Size             int64       `json:"size"`
	Modified         float64     `json:"modified"`
	Slicer           string      `json:"slicer"`
	SlicerVersion    string      `json:"slicer_version"`
	LayerHeight      float64     `json:"layer_height"`
	FirstLayerHeight float64     `json:"first_layer_height"`
	ObjectHeight     float64     `json:"object_height"`
	FilamentTotal    float64     `json:"filament_total"`
	EstimatedTime    float64     `json:"estimated_time"`
	Thumbnails       []Thumbnail `json:"thumbnails"`
}

// LargestThumbnail returns the highest-resolution thumbnail, or nil if
// the file has none. Slicers list thumbnails smallest-first but that
// ordering is not guaranteed, so compare by area.
func (m *GCodeMetadata) LargestThumbnail() *Thumbnail {
	var best *Thumbnail
	for i := range m.Thumbnails {
		t := &m.Thumbnails[i]
		if best == nil || t.Width*t.Height > best.Width*best.Height {
			best = t
		}
	}
	return best
}

// Webcam is a single entry in the server.webcams.list response.
type Webcam struct {
	Name        string `json:"name"`
	Service     string `json:"service"`
	SnapshotURL string `json:"snapshot_url"`
	StreamURL   string `json:"stream_url"`
	TargetFPS   int    `json:"target_fps"`
	Location    string `json:"location"`
	Enabled     bool   `json:"enabled"`
}

// webcamsListResult wraps the server.webcams.list response.
type webcamsListResult struct {
	Webcams []Webcam `json:"webcams"`
}

// HistoryJob is a job record from the Moonraker history component.
type HistoryJob struct {
	JobID         string  `json:"job_id"`
	Filename      string  `json:"filename"`
	Status        string  `json:"status"`
	StartTime     float64 `json:"start_time"`
	EndTime       float64 `json:"end_time"`
	PrintDuration float64 `json:"print_duration"`
	TotalDuration float64 `json:"total_duration"`
	FilamentUsed  float64 `json:"filament_used"`
	Exists        bool    `json:"exists"`
}

// HistoryEvent is the payload of a notify_history_changed notification.
// Action is "added" when a job starts and "finished" when it completes.
type HistoryEvent struct {
	Action string     `json:"action"`
	Job    HistoryJob `json:"job"`
}

// historyListResult wraps the server.history.list response.
type historyListResult struct {
	Count int          `json:"count"`
	Jobs  []HistoryJob `json:"jobs"`
}
