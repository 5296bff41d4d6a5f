package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/moonbridge/moonbridge/internal/moonraker"
)

const (
	// defaultSnapshotTimeout bounds a single snapshot HTTP fetch.
	defaultSnapshotTimeout = 10 * time.Second

	// maxImageSize caps snapshot and thumbnail downloads (16 MB).
	maxImageSize = 16 << 20

	// gcodesRoot is the Moonraker file root holding sliced files.
	gcodesRoot = "server/files/gcodes"
)

// Webcam describes one camera attached to the printer.
type Webcam struct {
	// Name is the webcam identifier from Moonraker.
	Name string `json:"name"`

	// Service is the streaming service type (e.g., "mjpegstreamer").
	Service string `json:"service"`

	// SnapshotURL is the absolute URL for still frames.
	SnapshotURL string `json:"snapshot_url"`

	// StreamURL is the absolute URL for the video stream.
	StreamURL string `json:"stream_url"`

	// TargetFPS is the configured stream frame rate.
	TargetFPS int `json:"target_fps"`

	// Location is the physical placement (e.g., "printer").
	Location string `json:"location"`

	// Enabled reports whether the webcam is active in Moonraker.
	Enabled bool `json:"enabled"`

	// UpdatedAt is when this record was last refreshed.
	UpdatedAt time.Time `json:"updated_at"`
}

// printerSource is the subset of the Moonraker API the manager needs.
type printerSource interface {
	ListWebcams(ctx context.Context) ([]moonraker.Webcam, error)
	FileMetadata(ctx context.Context, filename string) (*moonraker.GCodeMetadata, error)
}

// Logger defines the logging interface used by the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds configuration for creating a camera manager.
type Config struct {
	// Printer is the Moonraker connection.
	Printer printerSource

	// BaseURL is the Moonraker HTTP endpoint, used to resolve
	// relative webcam URLs and to fetch thumbnails.
	BaseURL string

	// Repository is optional webcam persistence.
	Repository WebcamRepository

	// SnapshotTimeout bounds a single image fetch.
	// Default: 10 seconds.
	SnapshotTimeout time.Duration

	// HTTPClient is optional; a default client is created if nil.
	HTTPClient *http.Client

	// Logger is optional structured logger.
	Logger Logger
}

// Manager mirrors the printer's webcam list and fetches image data.
//
// Thread Safety: All methods are safe for concurrent use.
type Manager struct {
	printer printerSource
	base    *url.URL
	repo    WebcamRepository
	client  *http.Client

	cams   map[string]Webcam
	camsMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewManager creates a camera manager.
// Call Refresh to populate the webcam list.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Printer == nil {
		return nil, fmt.Errorf("printer client is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	timeout := cfg.SnapshotTimeout
	if timeout == 0 {
		timeout = defaultSnapshotTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &Manager{
		printer: cfg.Printer,
		base:    base,
		repo:    cfg.Repository, // May be nil (optional)
		client:  client,
		cams:    make(map[string]Webcam),
		logger:  cfg.Logger,
	}, nil
}

// Refresh reloads the webcam list from Moonraker and persists it.
func (m *Manager) Refresh(ctx context.Context) error {
	raw, err := m.printer.ListWebcams(ctx)
	if err != nil {
		return fmt.Errorf("listing webcams: %w", err)
	}

	now := time.Now().UTC()
	cams := make(map[string]Webcam, len(raw))
	for _, w := range raw {
		cams[w.Name] = Webcam{
			Name:        w.Name,
			Service:     w.Service,
			SnapshotURL: m.resolveURL(w.SnapshotURL),
			StreamURL:   m.resolveURL(w.StreamURL),
			TargetFPS:   w.TargetFPS,
			Location:    w.Location,
			Enabled:     w.Enabled,
			UpdatedAt:   now,
		}
	}

	m.camsMu.Lock()
	m.cams = cams
	m.camsMu.Unlock()

	if m.repo != nil {
		list := make([]Webcam, 0, len(cams))
		for _, c := range cams {
			list = append(list, c)
		}
		if err := m.repo.Sync(ctx, list); err != nil {
			m.logError("webcam persistence failed", err)
		}
	}

	m.logInfo("webcam list refreshed", "count", len(cams))
	return nil
}

// List returns all known webcams sorted by name.
func (m *Manager) List() []Webcam {
	m.camsMu.RLock()
	defer m.camsMu.RUnlock()

	out := make([]Webcam, 0, len(m.cams))
	for _, c := range m.cams {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a webcam by name.
func (m *Manager) Get(name string) (Webcam, error) {
	m.camsMu.RLock()
	defer m.camsMu.RUnlock()

	cam, ok := m.cams[name]
	if !ok {
		return Webcam{}, ErrCameraNotFound
	}
	return cam, nil
}

// Snapshot fetches a still frame from the named webcam.
// Returns the image bytes and the content type.
func (m *Manager) Snapshot(ctx context.Context, name string) ([]byte, string, error) {
	cam, err := m.Get(name)
	if err != nil {
		return nil, "", err
	}
	if cam.SnapshotURL == "" {
		return nil, "", ErrNoSnapshotURL
	}

	return m.fetchImage(ctx, cam.SnapshotURL)
}

// PrintThumbnail fetches the largest embedded thumbnail for a gcode
// file. Returns ErrNoThumbnail when the filename is empty or the file
// carries no thumbnails.
func (m *Manager) PrintThumbnail(ctx context.Context, filename string) ([]byte, string, error) {
	if filename == "" {
		return nil, "", ErrNoThumbnail
	}

	meta, err := m.printer.FileMetadata(ctx, filename)
	if err != nil {
		return nil, "", fmt.Errorf("fetching file metadata: %w", err)
	}

	thumb := meta.LargestThumbnail()
	if thumb == nil {
		return nil, "", ErrNoThumbnail
	}

	// Thumbnail paths are relative to the gcode file's directory
	dir := path.Dir(filename)
	if dir == "." {
		dir = ""
	}
	rel := path.Join(gcodesRoot, dir, thumb.RelativePath)

	u := *m.base
	u.Path = path.Join(u.Path, rel)

	return m.fetchImage(ctx, u.String())
}

// resolveURL makes a webcam URL absolute against the Moonraker base.
// Absolute URLs pass through unchanged.
func (m *Manager) resolveURL(raw string) string {
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return m.base.ResolveReference(ref).String()
}

// fetchImage downloads an image with a size cap.
func (m *Manager) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSnapshotFailed, err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSnapshotFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d", ErrSnapshotFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSnapshotFailed, err)
	}
	if len(data) > maxImageSize {
		return nil, "", fmt.Errorf("%w: image exceeds %d bytes", ErrSnapshotFailed, maxImageSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return data, contentType, nil
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

// logInfo logs an info message if logger is set.
func (m *Manager) logInfo(msg string, keysAndValues ...any) {
	m.loggerMu.RLock()
	logger := m.logger
	m.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (m *Manager) logError(msg string, err error) {
	m.loggerMu.RLock()
	logger := m.logger
	m.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
