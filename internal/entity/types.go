package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Class is the Home Assistant component an entity maps to.
type Class string

// Class constants.
const (
	ClassSensor       Class = "sensor"
	ClassBinarySensor Class = "binary_sensor"
	ClassCamera       Class = "camera"
	ClassButton       Class = "button"
)

// Device classes used in discovery payloads. These follow the Home
// Assistant sensor device class vocabulary.
const (
	DeviceClassTemperature  = "temperature"
	DeviceClassDuration     = "duration"
	DeviceClassDistance     = "distance"
	DeviceClassRunning      = "running"
	DeviceClassConnectivity = "connectivity"
)

// Category marks diagnostic entities so Home Assistant groups them
// separately from primary sensors.
const (
	CategoryPrimary    = ""
	CategoryDiagnostic = "diagnostic"
)

// Entity represents a single exposed printer value.
// This matches the database schema in migrations/20260310_100000_initial_schema.up.sql.
type Entity struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Class       Class     `json:"class"`
	DeviceClass string    `json:"device_class,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Category    string    `json:"category,omitempty"`
	Enabled     bool      `json:"enabled"`
	State       string    `json:"state"`
	Available   bool      `json:"available"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeepCopy creates an independent copy of the Entity. All fields are
// value types, so a shallow copy is sufficient, but the method exists
// so callers never hand out cache pointers.
func (e *Entity) DeepCopy() *Entity {
	if e == nil {
		return nil
	}
	cpy := *e
	return &cpy
}

// Snapshot is a decoded printer status: object name to field map.
// Partial updates (from notify_status_update) contain only the objects
// and fields that changed.
type Snapshot map[string]map[string]any

// DecodeStatus decodes a raw Moonraker status map into a Snapshot.
func DecodeStatus(raw map[string]json.RawMessage) (Snapshot, error) {
	snap := make(Snapshot, len(raw))
	for object, payload := range raw {
		fields := make(map[string]any)
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, fmt.Errorf("entity: decoding object %q: %w", object, err)
		}
		snap[object] = fields
	}
	return snap, nil
}

// Merge applies the fields of other on top of this snapshot, returning
// the receiver. Used to fold partial push updates into the last full
// poll result.
func (s Snapshot) Merge(other Snapshot) Snapshot {
	for object, fields := range other {
		existing, ok := s[object]
		if !ok {
			existing = make(map[string]any, len(fields))
			s[object] = existing
		}
		for k, v := range fields {
			existing[k] = v
		}
	}
	return s
}

// Clone returns an independent copy of the snapshot. The inner field
// maps are copied so the clone can be read while the original keeps
// absorbing Merge calls; field values are decoded JSON and never
// mutated, so they are shared.
func (s Snapshot) Clone() Snapshot {
	cloned := make(Snapshot, len(s))
	for object, fields := range s {
		cf := make(map[string]any, len(fields))
		for k, v := range fields {
			cf[k] = v
		}
		cloned[object] = cf
	}
	return cloned
}

// Float reads a numeric field from the snapshot.
func (s Snapshot) Float(object, field string) (float64, bool) {
	fields, ok := s[object]
	if !ok {
		return 0, false
	}
	switch v := fields[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// String reads a string field from the snapshot.
func (s Snapshot) String(object, field string) (string, bool) {
	fields, ok := s[object]
	if !ok {
		return "", false
	}
	v, ok := fields[field].(string)
	return v, ok
}

// Position reads one axis from an array field such as toolhead.position.
func (s Snapshot) Position(object, field string, index int) (float64, bool) {
	fields, ok := s[object]
	if !ok {
		return 0, false
	}
	arr, ok := fields[field].([]any)
	if !ok || index < 0 || index >= len(arr) {
		return 0, false
	}
	v, ok := arr[index].(float64)
	return v, ok
}

// Definition describes one catalog entry: the entity's identity and
// discovery metadata plus the printer objects it derives its value from.
type Definition struct {
	ID          string
	Name        string
	Class       Class
	DeviceClass string
	Unit        string
	Icon        string
	Category    string

	// Subscriptions maps printer object names to the fields this
	// entity needs. A nil field slice subscribes to all fields.
	Subscriptions map[string][]string

	// Extract computes the entity value from a snapshot. The second
	// return is false when the snapshot does not carry the source
	// fields (partial updates), in which case the previous state is kept.
	Extract func(s Snapshot) (any, bool)
}

// FormatState renders an extracted value as the canonical state string.
func FormatState(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "on"
		}
		return "off"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// NumericState returns the numeric form of an extracted value, or
// false for non-numeric states. Used for history and telemetry.
func NumericState(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// MergeSubscriptions builds the union of all definitions' subscriptions
// for a single printer.objects.subscribe call. A nil field list for an
// object wins over explicit field lists (all fields requested).
func MergeSubscriptions(defs []Definition) map[string][]string {
	merged := make(map[string][]string)
	allFields := make(map[string]bool)

	for _, def := range defs {
		for object, fields := range def.Subscriptions {
			if allFields[object] {
				continue
			}
			if fields == nil {
				merged[object] = nil
				allFields[object] = true
				continue
			}
			existing := merged[object]
			for _, f := range fields {
				if !containsString(existing, f) {
					existing = append(existing, f)
				}
			}
			merged[object] = existing
		}
	}

	return merged
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
