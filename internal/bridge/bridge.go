package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moonbridge/moonbridge/internal/entity"
	"github.com/moonbridge/moonbridge/internal/infrastructure/config"
	"github.com/moonbridge/moonbridge/internal/infrastructure/mqtt"
	"github.com/moonbridge/moonbridge/internal/moonraker"
)

// Bridge operation constants.
const (
	// commandTimeout is the timeout for sending commands to the printer.
	commandTimeout = 30 * time.Second

	// jobHistoryFetchLimit caps the initial job history import.
	jobHistoryFetchLimit = 50
)

// Bridge orchestrates the flow between Moonraker and MQTT.
// It handles:
//   - Polling and push subscription of printer objects
//   - Translating status changes into entity state publishes
//   - Home Assistant discovery announcements
//   - Receiving printer commands via MQTT and acknowledging them
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg     *config.Config
	mqtt    MQTTClient
	printer moonraker.API
	topics  mqtt.Topics

	registry *entity.Registry
	history  entity.StateHistoryRepository // Optional state history persistence
	jobs     entity.JobRepository          // Optional print job persistence
	metrics  TelemetryWriter               // Optional time-series telemetry
	health   *HealthReporter

	// Last full snapshot, used to merge partial push updates
	snapshot   entity.Snapshot
	snapshotMu sync.Mutex

	// Klippy readiness gate for printer commands
	klippyReady atomic.Bool

	// Printer identity from printer.info, set during Start
	device   DeviceInfo
	deviceMu sync.RWMutex

	// Listeners receive changed entities and lifecycle events (used by
	// the API websocket hub)
	listeners      []func(entity.Entity)
	eventListeners []func(EventMessage)
	listenerMu     sync.RWMutex

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// TelemetryWriter pushes numeric entity values to a time-series store.
// This is optional - if nil, the bridge operates without telemetry.
type TelemetryWriter interface {
	// WriteEntityMetric records one numeric sample for an entity.
	WriteEntityMetric(entityID, measurement string, value float64)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// Config is the loaded service configuration.
	Config *config.Config

	// MQTT is the MQTT client implementation.
	MQTT MQTTClient

	// Printer is the Moonraker connection.
	Printer moonraker.API

	// Registry tracks entity state.
	Registry *entity.Registry

	// History is optional state history persistence.
	History entity.StateHistoryRepository

	// Jobs is optional print job persistence.
	Jobs entity.JobRepository

	// Metrics is optional time-series telemetry.
	Metrics TelemetryWriter

	// Logger is optional structured logger.
	Logger Logger

	// Version is the service version reported in health messages.
	Version string
}

// New creates a new bridge instance.
// Call Start() to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Printer == nil {
		return nil, fmt.Errorf("printer client is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("entity registry is required")
	}

	// Create bridge-level context for command cancellation on shutdown
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       opts.Config,
		mqtt:      opts.MQTT,
		printer:   opts.Printer,
		topics:    mqtt.Topics{Base: opts.Config.MQTT.BaseTopic},
		registry:  opts.Registry,
		history:   opts.History, // May be nil (optional)
		jobs:      opts.Jobs,    // May be nil (optional)
		metrics:   opts.Metrics, // May be nil (optional)
		snapshot:  make(entity.Snapshot),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		ServiceID: opts.Config.Service.ID,
		Version:   version,
		Publisher: opts.MQTT,
		Printer:   opts.Printer,
		Topic:     b.topics.BridgeHealth(),
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation.
// It wires the printer callbacks, subscribes objects, publishes
// discovery configs, subscribes to the command topic, and starts the
// poll loop and health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	// Wire printer callbacks before the first subscription so no
	// notifications are missed.
	b.printer.SetOnNotification(b.handleNotification)
	b.printer.SetOnConnect(b.handleReconnect)

	// Subscribe to the command topic
	commandTopic := b.topics.PrinterCommand()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	// Identify the printer and publish discovery configs
	if err := b.refreshDeviceInfo(ctx); err != nil {
		b.logError("printer identification failed", err)
	}
	if err := b.publishDiscovery(b.DeviceInfo()); err != nil {
		b.logError("discovery publish failed", err)
	}

	// Determine Klippy readiness and subscribe printer objects
	b.refreshKlippyState(ctx)
	if err := b.subscribeObjects(ctx); err != nil {
		b.logError("initial object subscription failed", err)
	}

	// Import recent job history
	b.importJobHistory(ctx)

	b.health.SetEntityCount(b.registry.Count())
	b.health.Start(ctx)

	// Start the periodic poll loop
	b.wg.Add(1)
	go b.pollLoop()

	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started",
		"service", b.cfg.Service.ID,
		"entities", b.registry.Count(),
		"scan_interval", b.cfg.GetScanInterval().String())

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Cancel bridge context to abort in-flight commands
		b.ctxCancel()

		// Stop health reporting (publishes "stopping" status)
		b.health.Stop()

		// Wait for pending operations
		b.wg.Wait()

		b.logInfo("bridge stopped")
	})
}

// AddListener registers a callback invoked for every changed entity.
// Listeners must not block; they are called from the publish path.
func (b *Bridge) AddListener(fn func(entity.Entity)) {
	b.listenerMu.Lock()
	b.listeners = append(b.listeners, fn)
	b.listenerMu.Unlock()
}

// AddEventListener registers a callback invoked for every published
// bridge event. Listeners must not block.
func (b *Bridge) AddEventListener(fn func(EventMessage)) {
	b.listenerMu.Lock()
	b.eventListeners = append(b.eventListeners, fn)
	b.listenerMu.Unlock()
}

// DeviceInfo returns the printer identity discovered at startup.
func (b *Bridge) DeviceInfo() DeviceInfo {
	b.deviceMu.RLock()
	defer b.deviceMu.RUnlock()
	return b.device
}

// KlippyReady reports whether Klipper currently accepts commands.
func (b *Bridge) KlippyReady() bool {
	return b.klippyReady.Load()
}

// refreshDeviceInfo queries printer.info and caches the identity used
// in discovery payloads.
func (b *Bridge) refreshDeviceInfo(ctx context.Context) error {
	info, err := b.printer.PrinterInfo(ctx)
	if err != nil {
		// Fall back to the configured service identity
		b.deviceMu.Lock()
		if b.device.ID == "" {
			b.device = DeviceInfo{ID: b.cfg.Service.ID, Name: b.cfg.Service.Name}
		}
		b.deviceMu.Unlock()
		return err
	}

	name := info.Hostname
	if name == "" {
		name = b.cfg.Service.Name
	}

	b.deviceMu.Lock()
	b.device = DeviceInfo{
		ID:              b.cfg.Service.ID,
		Name:            name,
		SoftwareVersion: info.SoftwareVersion,
	}
	b.deviceMu.Unlock()

	return nil
}

// refreshKlippyState queries server.info and updates the readiness gate
// and the klippy_connected entity.
func (b *Bridge) refreshKlippyState(ctx context.Context) {
	info, err := b.printer.ServerInfo(ctx)
	if err != nil {
		b.logError("server.info failed", err)
		b.setKlippyReady(false)
		return
	}
	b.setKlippyReady(info.KlippyConnected && info.KlippyState == moonraker.KlippyStateReady)
}

// setKlippyReady updates the readiness gate, the klippy_connected
// entity and the health reporter.
func (b *Bridge) setKlippyReady(ready bool) {
	b.klippyReady.Store(ready)
	b.health.SetKlippyReady(ready)

	state := "off"
	if ready {
		state = "on"
	}
	changed, err := b.registry.SetState(b.ctx, entity.IDKlippyConnected, state)
	if err != nil {
		b.logError("klippy entity update failed", err)
		return
	}
	if changed != nil {
		b.publishEntity(*changed)
	}
}

// subscribeObjects registers the merged catalog subscription with
// Moonraker and applies the returned initial state.
func (b *Bridge) subscribeObjects(ctx context.Context) error {
	result, err := b.printer.SubscribeObjects(ctx, b.registry.Subscriptions())
	if err != nil {
		return fmt.Errorf("subscribing printer objects: %w", err)
	}

	return b.applyStatus(result.Status, true)
}

// pollLoop periodically queries the full object set. Push updates keep
// state fresh between polls; the poll guarantees recovery from missed
// notifications.
func (b *Bridge) pollLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.GetScanInterval())
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.poll()
		}
	}
}

// poll performs one full printer.objects.query cycle. A disconnected
// printer marks every entity unavailable until the client reconnects.
func (b *Bridge) poll() {
	if !b.printer.IsConnected() {
		b.markUnavailable()
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.GetRequestTimeout())
	defer cancel()

	result, err := b.printer.QueryObjects(ctx, b.registry.Subscriptions())
	if err != nil {
		b.logError("object query failed", err)
		return
	}

	if err := b.applyStatus(result.Status, true); err != nil {
		b.logError("applying poll result failed", err)
	}
}

// markUnavailable flips all entities offline after the printer
// connection is lost. SetAllAvailability is a no-op when entities are
// already offline, so repeated polls publish nothing.
func (b *Bridge) markUnavailable() {
	changed, err := b.registry.SetAllAvailability(b.ctx, false)
	if err != nil {
		b.logError("availability update failed", err)
		return
	}
	if len(changed) == 0 {
		return
	}

	b.logInfo("printer unreachable, marking entities unavailable", "count", len(changed))
	for _, e := range changed {
		b.publishEntity(e)
	}
	b.publishEvent(EventPrinterLost, nil)
}

// applyStatus decodes a raw status map, merges it into the running
// snapshot, and publishes resulting entity changes. full marks a
// complete query result rather than a partial push update.
func (b *Bridge) applyStatus(raw map[string]json.RawMessage, full bool) error {
	decoded, err := entity.DecodeStatus(raw)
	if err != nil {
		return err
	}

	b.snapshotMu.Lock()
	if full {
		b.snapshot = decoded
	} else {
		b.snapshot.Merge(decoded)
	}
	// Clone before releasing the lock: extractors read the snapshot
	// outside the critical section while other updates keep merging.
	snap := b.snapshot.Clone()
	b.snapshotMu.Unlock()

	changed, err := b.registry.ApplySnapshot(b.ctx, snap)
	if err != nil {
		return err
	}

	for _, e := range changed {
		b.publishEntity(e)
	}

	return nil
}

// publishEntity publishes an entity's state and availability, records
// history and telemetry, and notifies listeners.
func (b *Bridge) publishEntity(e entity.Entity) {
	qos := byte(b.cfg.MQTT.QoS)

	if err := b.mqtt.Publish(b.topics.EntityState(e.ID), []byte(e.State), qos, b.cfg.MQTT.Retain); err != nil {
		b.logError("state publish failed", err)
	}

	availability := payloadOffline
	if e.Available {
		availability = payloadOnline
	}
	if err := b.mqtt.Publish(b.topics.EntityAvailability(e.ID), []byte(availability), qos, true); err != nil {
		b.logError("availability publish failed", err)
	}

	if b.history != nil {
		var numeric *float64
		if v, ok := parseNumeric(e.State); ok {
			numeric = &v
		}
		if err := b.history.Record(b.ctx, e.ID, e.State, numeric); err != nil {
			b.logDebug("history record skipped", "entity", e.ID, "reason", err.Error())
		}
	}

	if b.metrics != nil {
		if v, ok := parseNumeric(e.State); ok {
			b.metrics.WriteEntityMetric(e.ID, "value", v)
		}
	}

	b.listenerMu.RLock()
	listeners := b.listeners
	b.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(e)
	}
}

// parseNumeric converts a state string to a float where possible.
// Binary sensor states map to 1/0.
func parseNumeric(state string) (float64, bool) {
	switch state {
	case "on":
		return 1, true
	case "off":
		return 0, true
	}
	var v float64
	if _, err := fmt.Sscanf(state, "%g", &v); err != nil {
		return 0, false
	}
	return v, true
}

// handleReconnect runs after the printer connection is re-established.
// Moonraker drops subscriptions on disconnect, so everything is redone.
func (b *Bridge) handleReconnect() {
	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.GetRequestTimeout())
	defer cancel()

	b.logInfo("printer reconnected, restoring subscriptions")

	if err := b.refreshDeviceInfo(ctx); err != nil {
		b.logError("printer identification failed", err)
	}
	b.refreshKlippyState(ctx)

	if err := b.subscribeObjects(ctx); err != nil {
		b.logError("resubscription failed", err)
		return
	}

	if _, err := b.registry.SetAllAvailability(b.ctx, true); err != nil {
		b.logError("availability restore failed", err)
	}

	b.publishEvent(EventPrinterConnected, nil)
}

// handleNotification processes server-initiated messages from Moonraker.
func (b *Bridge) handleNotification(n moonraker.Notification) {
	switch n.Method {
	case moonraker.NotifyStatusUpdate:
		status, _, err := moonraker.ParseStatusUpdate(n.Params)
		if err != nil {
			b.logError("status update parse failed", err)
			return
		}
		if err := b.applyStatus(status, false); err != nil {
			b.logError("applying status update failed", err)
		}

	case moonraker.NotifyKlippyReady:
		b.logInfo("klippy ready")
		b.setKlippyReady(true)
		b.publishEvent(EventKlippyReady, nil)

		// Klipper restarts invalidate object subscriptions
		ctx, cancel := context.WithTimeout(b.ctx, b.cfg.GetRequestTimeout())
		if err := b.subscribeObjects(ctx); err != nil {
			b.logError("resubscription after klippy restart failed", err)
		}
		cancel()

	case moonraker.NotifyKlippyShutdown:
		b.logInfo("klippy shutdown")
		b.setKlippyReady(false)
		b.publishEvent(EventKlippyShutdown, nil)

	case moonraker.NotifyKlippyDisconnected:
		b.logInfo("klippy disconnected")
		b.setKlippyReady(false)
		b.publishEvent(EventKlippyDisconnected, nil)

	case moonraker.NotifyHistoryChanged:
		event, err := moonraker.ParseHistoryChanged(n.Params)
		if err != nil {
			b.logError("history event parse failed", err)
			return
		}
		b.handleHistoryEvent(event)
	}
}

// handleHistoryEvent persists job records and announces job lifecycle
// events.
func (b *Bridge) handleHistoryEvent(event *moonraker.HistoryEvent) {
	if b.jobs != nil {
		job := jobFromHistory(event.Job)
		if err := b.jobs.Upsert(b.ctx, job); err != nil {
			b.logError("job record failed", err)
		}
	}

	data := map[string]any{
		"job_id":   event.Job.JobID,
		"filename": event.Job.Filename,
		"status":   event.Job.Status,
	}

	switch event.Action {
	case "added":
		b.publishEvent(EventJobStarted, data)
	case "finished":
		data["print_duration"] = event.Job.PrintDuration
		data["filament_used"] = event.Job.FilamentUsed
		b.publishEvent(EventJobFinished, data)
	}
}

// importJobHistory seeds the local job table from Moonraker's history
// component on startup.
func (b *Bridge) importJobHistory(ctx context.Context) {
	if b.jobs == nil {
		return
	}

	jobs, err := b.printer.ListHistory(ctx, jobHistoryFetchLimit)
	if err != nil {
		b.logError("job history import failed", err)
		return
	}

	imported := 0
	for i := range jobs {
		if err := b.jobs.Upsert(ctx, jobFromHistory(jobs[i])); err != nil {
			b.logError("job import failed", err)
			continue
		}
		imported++
	}

	if imported > 0 {
		b.logInfo("job history imported", "count", imported)
	}
}

// jobFromHistory converts a Moonraker history record to a local job.
func jobFromHistory(h moonraker.HistoryJob) *entity.PrintJob {
	job := &entity.PrintJob{
		ID:            h.JobID,
		Filename:      h.Filename,
		Status:        h.Status,
		StartedAt:     time.Unix(int64(h.StartTime), 0).UTC(),
		PrintDuration: h.PrintDuration,
		TotalDuration: h.TotalDuration,
		FilamentUsed:  h.FilamentUsed,
	}
	if h.EndTime > 0 {
		ended := time.Unix(int64(h.EndTime), 0).UTC()
		job.EndedAt = &ended
	}
	return job
}

// publishEvent publishes a bridge event message.
func (b *Bridge) publishEvent(eventType string, data map[string]any) {
	msg := NewEventMessage(eventType, data)

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal event", err)
		return
	}

	if err := b.mqtt.Publish(b.topics.Event(eventType), payload, 1, false); err != nil {
		b.logError("failed to publish event", err)
	}

	b.listenerMu.RLock()
	listeners := b.eventListeners
	b.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(msg)
	}
}

// handleCommandMessage routes incoming MQTT command messages.
func (b *Bridge) handleCommandMessage(_ string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"command", cmd.Command,
		"source", cmd.Source)

	if err := b.ExecuteCommand(b.ctx, cmd); err != nil {
		b.logError("command execution failed", err)
	}
}

// ExecuteCommand validates and executes a printer command, publishing
// acknowledgments along the way. Exposed so the REST API can share the
// command path with MQTT.
func (b *Bridge) ExecuteCommand(ctx context.Context, cmd CommandMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	// Recovery commands are allowed while Klippy is down; everything
	// else requires a ready printer.
	switch cmd.Command {
	case "firmware_restart", "emergency_stop":
	default:
		if !b.klippyReady.Load() {
			b.publishAckError(cmd, ErrCodeKlippyNotReady, "klippy is not ready")
			return ErrKlippyNotReady
		}
	}

	var err error
	switch cmd.Command {
	case "pause":
		b.publishAck(cmd, AckAccepted)
		err = b.printer.PausePrint(ctx)
	case "resume":
		b.publishAck(cmd, AckAccepted)
		err = b.printer.ResumePrint(ctx)
	case "cancel":
		b.publishAck(cmd, AckAccepted)
		err = b.printer.CancelPrint(ctx)
	case "emergency_stop":
		b.publishAck(cmd, AckAccepted)
		err = b.printer.EmergencyStop(ctx)
	case "firmware_restart":
		b.publishAck(cmd, AckAccepted)
		err = b.printer.FirmwareRestart(ctx)
	case "gcode":
		script, ok := cmd.Parameters["script"].(string)
		if !ok || script == "" {
			b.publishAckError(cmd, ErrCodeInvalidParameters, "missing 'script' parameter")
			return fmt.Errorf("%w: missing script parameter", ErrInvalidCommand)
		}
		b.publishAck(cmd, AckAccepted)
		err = b.printer.RunGCode(ctx, script)
	default:
		b.publishAckError(cmd, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown command: %s", cmd.Command))
		return fmt.Errorf("%w: %s", ErrInvalidCommand, cmd.Command)
	}

	if err != nil {
		b.publishAckError(cmd, ErrCodeCommandFailed, err.Error())
		return err
	}

	b.publishAck(cmd, AckCompleted)
	return nil
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(cmd CommandMessage, status AckStatus) {
	ack := NewAckMessage(cmd, status)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.mqtt.Publish(b.topics.PrinterAck(), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(cmd CommandMessage, code, message string) {
	ack := NewAckError(cmd, code, message)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack error", err)
		return
	}

	if err := b.mqtt.Publish(b.topics.PrinterAck(), payload, 1, false); err != nil {
		b.logError("failed to publish ack error", err)
	}

	b.logError("command failed",
		fmt.Errorf("code=%s message=%s", code, message))
}

// Metrics contains bridge metrics for the API metrics endpoint.
type Metrics struct {
	PrinterConnected bool
	KlippyReady      bool
	Status           string
	MessagesTx       uint64
	MessagesRx       uint64
	Reconnects       uint64
	Errors           uint64
	EntityCount      int
}

// GetMetrics returns current bridge metrics for the API metrics endpoint.
func (b *Bridge) GetMetrics() Metrics {
	connected := b.printer != nil && b.printer.IsConnected()
	status := "disconnected"
	var stats moonraker.Stats

	if b.printer != nil {
		stats = b.printer.Stats()
		if connected {
			status = "healthy"
		}
	}

	return Metrics{
		PrinterConnected: connected,
		KlippyReady:      b.klippyReady.Load(),
		Status:           status,
		MessagesTx:       stats.MessagesTx,
		MessagesRx:       stats.MessagesRx,
		Reconnects:       stats.ReconnectsTotal,
		Errors:           stats.ErrorsTotal,
		EntityCount:      b.registry.Count(),
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
