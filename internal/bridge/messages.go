package bridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// MQTT message types for the printer command channel and health
// reporting.

// CommandMessage is received on the command topic to execute a printer
// operation.
// Topic: moonbridge/command/printer
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Command is the command name (e.g., "pause", "resume", "cancel",
	// "emergency_stop", "firmware_restart", "gcode").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Example: {"script": "G28"} for gcode
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	// Values: "api", "mqtt", "automation"
	Source string `json:"source"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was received and sent to the printer.
	AckAccepted AckStatus = "accepted"

	// AckCompleted indicates the printer confirmed the command.
	AckCompleted AckStatus = "completed"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is published to acknowledge a command.
// Topic: moonbridge/ack/printer
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Command is the command name from the original message.
	Command string `json:"command"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Error contains details if status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "KLIPPY_NOT_READY", "INVALID_COMMAND").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodePrinterUnreachable = "PRINTER_UNREACHABLE"
	ErrCodeKlippyNotReady     = "KLIPPY_NOT_READY"
	ErrCodeInvalidCommand     = "INVALID_COMMAND"
	ErrCodeInvalidParameters  = "INVALID_PARAMETERS"
	ErrCodeCommandFailed      = "COMMAND_FAILED"
)

// EventMessage announces a printer lifecycle event.
// Topic: moonbridge/event/{type}
type EventMessage struct {
	// Type is the event name (e.g., "job_started", "job_finished",
	// "klippy_shutdown").
	Type string `json:"type"`

	// Timestamp is when the event occurred (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Data contains event-specific payload.
	Data map[string]any `json:"data,omitempty"`
}

// Event type names.
const (
	EventJobStarted         = "job_started"
	EventJobFinished        = "job_finished"
	EventKlippyReady        = "klippy_ready"
	EventKlippyShutdown     = "klippy_shutdown"
	EventKlippyDisconnected = "klippy_disconnected"
	EventPrinterConnected   = "printer_connected"
	EventPrinterLost        = "printer_lost"
)

// HealthState represents the operational status of the bridge.
type HealthState string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthState = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthState = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthState = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthState = "stopping"
)

// HealthMessage reports bridge operational status.
// Topic: moonbridge/health/bridge
// QoS: 1, Retained: Yes
// Interval: Every 30 seconds
type HealthMessage struct {
	// Service is the bridge identifier.
	Service string `json:"service"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthState `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Printer contains Moonraker connection details.
	Printer *PrinterStatus `json:"printer,omitempty"`

	// Statistics contains operational metrics.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// EntityCount is the number of tracked entities.
	EntityCount int `json:"entity_count"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}

// PrinterStatus describes the Moonraker connection state.
type PrinterStatus struct {
	// Status is the connection status ("connected", "disconnected", "reconnecting").
	Status string `json:"status"`

	// KlippyReady reports whether Klipper is ready for commands.
	KlippyReady bool `json:"klippy_ready"`

	// LastActivity is when traffic was last seen on the connection.
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	// MessagesReceived is the total number of frames received from Moonraker.
	MessagesReceived uint64 `json:"messages_received"`

	// MessagesSent is the total number of frames sent to Moonraker.
	MessagesSent uint64 `json:"messages_sent"`

	// Reconnects is the number of successful reconnections.
	Reconnects uint64 `json:"reconnects"`

	// Errors is the total number of errors encountered.
	Errors uint64 `json:"errors"`
}

// MarshalJSON marshals a CommandMessage to JSON.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON unmarshals a CommandMessage from JSON.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Command:   cmd.Command,
		Status:    status,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Command:   cmd.Command,
		Status:    AckFailed,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewEventMessage creates an event announcement.
func NewEventMessage(eventType string, data map[string]any) EventMessage {
	return EventMessage{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
