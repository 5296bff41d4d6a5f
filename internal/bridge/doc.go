// Package bridge connects the Moonraker client to MQTT.
//
// The Bridge is the central coordinator of the service. It subscribes
// printer objects on the Moonraker connection, feeds status data
// through the entity registry, and publishes resulting state changes
// to per-entity MQTT topics. It also publishes Home Assistant MQTT
// discovery configs, executes printer commands received over MQTT or
// the REST API, announces printer lifecycle events, and reports its
// own health on a retained topic.
//
// State flows in two directions:
//
//	Moonraker -> Bridge -> MQTT:  object status, job history, events
//	MQTT/API -> Bridge -> Moonraker:  printer commands with acks
//
// A periodic poll backs up the push subscription so state recovers
// from missed notifications.
package bridge
