package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/moonbridge/moonbridge/internal/entity"
	"github.com/moonbridge/moonbridge/internal/infrastructure/mqtt"
)

// DeviceInfo describes the printer for Home Assistant discovery.
// Populated from printer.info after connecting.
type DeviceInfo struct {
	ID              string
	Name            string
	SoftwareVersion string
}

// discoveryDevice is the device block shared by all discovery configs,
// grouping entities under one Home Assistant device.
type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// discoveryConfig is a Home Assistant MQTT discovery payload.
// Published retained to {prefix}/{component}/{node}/{object}/config.
type discoveryConfig struct {
	Name                string          `json:"name"`
	UniqueID            string          `json:"unique_id"`
	StateTopic          string          `json:"state_topic"`
	AvailabilityTopic   string          `json:"availability_topic"`
	PayloadAvailable    string          `json:"payload_available"`
	PayloadNotAvailable string          `json:"payload_not_available"`
	UnitOfMeasurement   string          `json:"unit_of_measurement,omitempty"`
	DeviceClass         string          `json:"device_class,omitempty"`
	Icon                string          `json:"icon,omitempty"`
	EntityCategory      string          `json:"entity_category,omitempty"`
	PayloadOn           string          `json:"payload_on,omitempty"`
	PayloadOff          string          `json:"payload_off,omitempty"`
	Device              discoveryDevice `json:"device"`
}

// Availability payloads, matching the system status topic values.
const (
	payloadOnline  = "online"
	payloadOffline = "offline"
)

// buildDiscoveryConfig renders the discovery payload for one entity.
func buildDiscoveryConfig(def entity.Definition, device DeviceInfo, topics mqtt.Topics) discoveryConfig {
	cfg := discoveryConfig{
		Name:                def.Name,
		UniqueID:            fmt.Sprintf("moonbridge_%s_%s", device.ID, def.ID),
		StateTopic:          topics.EntityState(def.ID),
		AvailabilityTopic:   topics.EntityAvailability(def.ID),
		PayloadAvailable:    payloadOnline,
		PayloadNotAvailable: payloadOffline,
		UnitOfMeasurement:   def.Unit,
		DeviceClass:         def.DeviceClass,
		Icon:                def.Icon,
		EntityCategory:      def.Category,
		Device: discoveryDevice{
			Identifiers:  []string{"moonbridge_" + device.ID},
			Name:         device.Name,
			Manufacturer: "Klipper",
			Model:        "Moonraker",
			SWVersion:    device.SoftwareVersion,
		},
	}

	if def.Class == entity.ClassBinarySensor {
		cfg.PayloadOn = "on"
		cfg.PayloadOff = "off"
	}

	return cfg
}

// discoveryComponent maps an entity class to its Home Assistant
// discovery component name.
func discoveryComponent(class entity.Class) string {
	return string(class)
}

// publishDiscovery publishes retained discovery configs for every
// catalog definition so Home Assistant creates the entities.
func (b *Bridge) publishDiscovery(device DeviceInfo) error {
	if !b.cfg.Discovery.Enabled {
		return nil
	}

	for _, def := range b.registry.Definitions() {
		cfg := buildDiscoveryConfig(def, device, b.topics)

		payload, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling discovery config for %s: %w", def.ID, err)
		}

		topic := b.topics.DiscoveryConfig(
			b.cfg.Discovery.Prefix,
			discoveryComponent(def.Class),
			device.ID,
			def.ID,
		)
		if err := b.mqtt.Publish(topic, payload, 1, true); err != nil {
			return fmt.Errorf("publishing discovery config for %s: %w", def.ID, err)
		}
	}

	b.logInfo("discovery configs published",
		"prefix", b.cfg.Discovery.Prefix,
		"entities", len(b.registry.Definitions()))
	return nil
}
