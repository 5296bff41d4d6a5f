package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/moonbridge/moonbridge/internal/moonraker"
)

// HealthReporter manages periodic health status reporting.
// It publishes health messages to MQTT at regular intervals.
type HealthReporter struct {
	serviceID string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	printer   moonraker.API
	topic     string

	// Entity count and Klippy readiness (updated externally)
	entityCount int
	klippyReady bool
	stateMu     sync.RWMutex

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// ServiceID is the service identifier for health messages.
	ServiceID string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Printer provides connection statistics.
	Printer moonraker.API

	// Topic is the health topic to publish on.
	Topic string
}

// NewHealthReporter creates a new health reporter.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	return &HealthReporter{
		serviceID: cfg.ServiceID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		printer:   cfg.Printer,
		topic:     cfg.Topic,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting.
// Must be called after creation. Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting.
// Publishes a final "stopping" status before returning.
// Safe to call multiple times (uses sync.Once).
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		// Best-effort during shutdown, nothing we can do if it fails
		//nolint:errcheck
		h.publishStatus(HealthStopping, "")
	})
}

// SetEntityCount updates the tracked entity count.
func (h *HealthReporter) SetEntityCount(count int) {
	h.stateMu.Lock()
	h.entityCount = count
	h.stateMu.Unlock()
}

// SetKlippyReady updates the reported Klippy readiness.
func (h *HealthReporter) SetKlippyReady(ready bool) {
	h.stateMu.Lock()
	h.klippyReady = ready
	h.stateMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
// Called during bridge initialization.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
// Useful for forcing an update after a significant event.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthState, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	if h.printer == nil || !h.printer.IsConnected() {
		return HealthDegraded, "printer disconnected"
	}

	h.stateMu.RLock()
	klippyReady := h.klippyReady
	h.stateMu.RUnlock()

	if !klippyReady {
		return HealthDegraded, "klippy not ready"
	}

	return HealthHealthy, ""
}

// publishStatus publishes a health status message.
func (h *HealthReporter) publishStatus(status HealthState, reason string) error {
	if h.publisher == nil {
		return nil
	}

	h.stateMu.RLock()
	entityCount := h.entityCount
	klippyReady := h.klippyReady
	h.stateMu.RUnlock()

	msg := HealthMessage{
		Service:       h.serviceID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		EntityCount:   entityCount,
		Reason:        reason,
	}

	if h.printer != nil {
		stats := h.printer.Stats()

		printerStatus := "disconnected"
		switch {
		case stats.Connected:
			printerStatus = "connected"
		case stats.Reconnecting:
			printerStatus = "reconnecting"
		}

		lastActivity := stats.LastActivity
		msg.Printer = &PrinterStatus{
			Status:       printerStatus,
			KlippyReady:  klippyReady,
			LastActivity: &lastActivity,
		}
		msg.Statistics = &BridgeStatistics{
			MessagesReceived: stats.MessagesRx,
			MessagesSent:     stats.MessagesTx,
			Reconnects:       stats.ReconnectsTotal,
			Errors:           stats.ErrorsTotal,
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(h.topic, payload, 1, true)
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
