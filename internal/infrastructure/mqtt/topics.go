package mqtt

import "fmt"

// DefaultBaseTopic is the topic prefix used when no base topic is configured.
//
// All bridge topics use the flat scheme: {base}/{category}/{id}
const DefaultBaseTopic = "moonbridge"

// Topics provides builders for Moonbridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Base is the configured topic prefix; the zero value falls back to
// DefaultBaseTopic so Topics{} works in tests and helpers:
//
//	topics := mqtt.Topics{Base: cfg.MQTT.BaseTopic}
//	stateTopic := topics.EntityState("extruder_temperature")
//	// Returns: "moonbridge/state/extruder_temperature"
type Topics struct {
	Base string
}

func (t Topics) base() string {
	if t.Base == "" {
		return DefaultBaseTopic
	}
	return t.Base
}

// =============================================================================
// Entity Topics
// =============================================================================

// EntityState returns the topic for entity state updates.
//
// Example: moonbridge/state/extruder_temperature
func (t Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/state/%s", t.base(), entityID)
}

// EntityAvailability returns the topic for per-entity availability.
//
// Example: moonbridge/availability/extruder_temperature
func (t Topics) EntityAvailability(entityID string) string {
	return fmt.Sprintf("%s/availability/%s", t.base(), entityID)
}

// =============================================================================
// Printer Topics
// =============================================================================

// PrinterStatus returns the topic for the aggregated printer status document.
//
// Example: moonbridge/printer/status
func (t Topics) PrinterStatus() string {
	return fmt.Sprintf("%s/printer/status", t.base())
}

// PrinterCommand returns the topic commands are received on.
//
// Example: moonbridge/command/printer
func (t Topics) PrinterCommand() string {
	return fmt.Sprintf("%s/command/printer", t.base())
}

// PrinterAck returns the topic command acknowledgements are published on.
//
// Example: moonbridge/ack/printer
func (t Topics) PrinterAck() string {
	return fmt.Sprintf("%s/ack/printer", t.base())
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeHealth returns the topic for bridge health status.
//
// Example: moonbridge/health/bridge
func (t Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/health/bridge", t.base())
}

// Event returns the topic for bridge events.
//
// Example: moonbridge/event/job_finished
func (t Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", t.base(), eventType)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic. This doubles as the
// Home Assistant availability topic and the LWT target.
//
// Example: moonbridge/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.base())
}

// =============================================================================
// Home Assistant Discovery Topics
// =============================================================================

// DiscoveryConfig returns the Home Assistant discovery config topic for
// an entity. The prefix is the configured discovery prefix (typically
// "homeassistant"), component is "sensor", "binary_sensor" or "camera".
//
// Example: homeassistant/sensor/moonbridge/extruder_temperature/config
func (Topics) DiscoveryConfig(prefix, component, nodeID, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, component, nodeID, objectID)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllEntityStates returns a pattern matching all entity state updates.
//
// Pattern: moonbridge/state/+
func (t Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/state/+", t.base())
}

// AllEvents returns a pattern matching all bridge events.
//
// Pattern: moonbridge/event/+
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", t.base())
}

// AllTopics returns a pattern matching all Moonbridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: moonbridge/#
func (t Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", t.base())
}
