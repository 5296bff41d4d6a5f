package entity

import "math"

// Entity IDs in the standard catalog.
const (
	IDPrintState      = "print_state"
	IDPrintFilename   = "print_filename"
	IDPrintProgress   = "print_progress"
	IDPrintDuration   = "print_duration"
	IDTotalDuration   = "total_duration"
	IDFilamentUsed    = "filament_used"
	IDExtruderTemp    = "extruder_temperature"
	IDExtruderTarget  = "extruder_target"
	IDBedTemp         = "bed_temperature"
	IDBedTarget       = "bed_target"
	IDToolheadX       = "toolhead_position_x"
	IDToolheadY       = "toolhead_position_y"
	IDToolheadZ       = "toolhead_position_z"
	IDSpeedFactor     = "speed_factor"
	IDExtrusionFactor = "extrusion_factor"
	IDFanSpeed        = "fan_speed"
	IDKlippyConnected = "klippy_connected"
	IDPrinting        = "printing"
)

// Catalog returns the standard entity definitions derived from
// Klipper printer objects.
//
// The klippy_connected binary sensor has no subscription: its state is
// driven by Klippy lifecycle notifications, not status updates.
func Catalog() []Definition {
	return []Definition{
		{
			ID:    IDPrintState,
			Name:  "Print State",
			Class: ClassSensor,
			Icon:  "mdi:printer-3d",
			Subscriptions: map[string][]string{
				"print_stats": {"state"},
			},
			Extract: func(s Snapshot) (any, bool) {
				return s.String("print_stats", "state")
			},
		},
		{
			ID:    IDPrintFilename,
			Name:  "Filename",
			Class: ClassSensor,
			Icon:  "mdi:file-document-outline",
			Subscriptions: map[string][]string{
				"print_stats": {"filename"},
			},
			Extract: func(s Snapshot) (any, bool) {
				return s.String("print_stats", "filename")
			},
		},
		{
			ID:    IDPrintProgress,
			Name:  "Progress",
			Class: ClassSensor,
			Unit:  "%",
			Icon:  "mdi:progress-clock",
			Subscriptions: map[string][]string{
				"display_status": {"progress"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Float("display_status", "progress")
				if !ok {
					return nil, false
				}
				// Klipper reports 0..1
				return math.Round(v * 1000) / 10, true
			},
		},
		{
			ID:          IDPrintDuration,
			Name:        "Print Duration",
			Class:       ClassSensor,
			DeviceClass: DeviceClassDuration,
			Unit:        "s",
			Icon:        "mdi:timer-outline",
			Subscriptions: map[string][]string{
				"print_stats": {"print_duration"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Float("print_stats", "print_duration")
				if !ok {
					return nil, false
				}
				return math.Round(v), true
			},
		},
		{
			ID:          IDTotalDuration,
			Name:        "Total Duration",
			Class:       ClassSensor,
			DeviceClass: DeviceClassDuration,
			Unit:        "s",
			Icon:        "mdi:timer-sand",
			Subscriptions: map[string][]string{
				"print_stats": {"total_duration"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Float("print_stats", "total_duration")
				if !ok {
					return nil, false
				}
				return math.Round(v), true
			},
		},
		{
			ID:          IDFilamentUsed,
			Name:        "Filament Used",
			Class:       ClassSensor,
			DeviceClass: DeviceClassDistance,
			Unit:        "m",
			Icon:        "mdi:printer-3d-nozzle",
			Subscriptions: map[string][]string{
				"print_stats": {"filament_used"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Float("print_stats", "filament_used")
				if !ok {
					return nil, false
				}
				// Klipper reports millimetres
				return math.Round(v) / 1000, true
			},
		},
		{
			ID:          IDExtruderTemp,
			Name:        "Extruder Temperature",
			Class:       ClassSensor,
			DeviceClass: DeviceClassTemperature,
			Unit:        "°C",
			Subscriptions: map[string][]string{
				"extruder": {"temperature", "target"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Float("extruder", "temperature")
				if !ok {
					return nil, false
				}
				return math.Round(v*100) / 100, true
			},
		},
		{
			ID:          IDExtruderTarget,
			Name:        "Extruder Target",
			Class:       ClassSensor,
			DeviceClass: DeviceClassTemperature,
			Unit:        "°C",
			Category:    CategoryDiagnostic,
			Subscriptions: map[string][]string{
				"extruder": {"temperature", "target"},
			},
			Extract: func(s Snapshot) (any, bool) {
				return s.Float("extruder", "target")
			},
		},
		{
			ID:          IDBedTemp,
			Name:        "Bed Temperature",
			Class:       ClassSensor,
			DeviceClass: DeviceClassTemperature,
			Unit:        "°C",
			Subscriptions: map[string][]string{
				"heater_bed": {"temperature", "target"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Float("heater_bed", "temperature")
				if !ok {
					return nil, false
				}
				return math.Round(v*100) / 100, true
			},
		},
		{
			ID:          IDBedTarget,
			Name:        "Bed Target",
			Class:       ClassSensor,
			DeviceClass: DeviceClassTemperature,
			Unit:        "°C",
			Category:    CategoryDiagnostic,
			Subscriptions: map[string][]string{
				"heater_bed": {"temperature", "target"},
			},
			Extract: func(s Snapshot) (any, bool) {
				return s.Float("heater_bed", "target")
			},
		},
		{
			ID:       IDToolheadX,
			Name:     "Toolhead X",
			Class:    ClassSensor,
			Unit:     "mm",
			Category: CategoryDiagnostic,
			Icon:     "mdi:axis-x-arrow",
			Subscriptions: map[string][]string{
				"toolhead": {"position"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Position("toolhead", "position", 0)
				if !ok {
					return nil, false
				}
				return math.Round(v*100) / 100, true
			},
		},
		{
			ID:       IDToolheadY,
			Name:     "Toolhead Y",
			Class:    ClassSensor,
			Unit:     "mm",
			Category: CategoryDiagnostic,
			Icon:     "mdi:axis-y-arrow",
			Subscriptions: map[string][]string{
				"toolhead": {"position"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Position("toolhead", "position", 1)
				if !ok {
					return nil, false
				}
				return math.Round(v*100) / 100, true
			},
		},
		{
			ID:       IDToolheadZ,
			Name:     "Toolhead Z",
			Class:    ClassSensor,
			Unit:     "mm",
			Category: CategoryDiagnostic,
			Icon:     "mdi:axis-z-arrow",
			Subscriptions: map[string][]string{
				"toolhead": {"position"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Position("toolhead", "position", 2)
				if !ok {
					return nil, false
				}
				return math.Round(v*100) / 100, true
			},
		},
		{
			ID:       IDSpeedFactor,
			Name:     "Speed Factor",
			Class:    ClassSensor,
			Unit:     "%",
			Category: CategoryDiagnostic,
			Icon:     "mdi:speedometer",
			Subscriptions: map[string][]string{
				"gcode_move": {"speed_factor", "extrude_factor"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Float("gcode_move", "speed_factor")
				if !ok {
					return nil, false
				}
				return math.Round(v * 100), true
			},
		},
		{
			ID:       IDExtrusionFactor,
			Name:     "Extrusion Factor",
			Class:    ClassSensor,
			Unit:     "%",
			Category: CategoryDiagnostic,
			Icon:     "mdi:printer-3d-nozzle-outline",
			Subscriptions: map[string][]string{
				"gcode_move": {"speed_factor", "extrude_factor"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Float("gcode_move", "extrude_factor")
				if !ok {
					return nil, false
				}
				return math.Round(v * 100), true
			},
		},
		{
			ID:       IDFanSpeed,
			Name:     "Fan Speed",
			Class:    ClassSensor,
			Unit:     "%",
			Icon:     "mdi:fan",
			Subscriptions: map[string][]string{
				"fan": {"speed"},
			},
			Extract: func(s Snapshot) (any, bool) {
				v, ok := s.Float("fan", "speed")
				if !ok {
					return nil, false
				}
				return math.Round(v * 100), true
			},
		},
		{
			ID:          IDKlippyConnected,
			Name:        "Klippy Connected",
			Class:       ClassBinarySensor,
			DeviceClass: DeviceClassConnectivity,
			Category:    CategoryDiagnostic,
		},
		{
			ID:          IDPrinting,
			Name:        "Printing",
			Class:       ClassBinarySensor,
			DeviceClass: DeviceClassRunning,
			Subscriptions: map[string][]string{
				"print_stats": {"state"},
			},
			Extract: func(s Snapshot) (any, bool) {
				state, ok := s.String("print_stats", "state")
				if !ok {
					return nil, false
				}
				return state == "printing", true
			},
		},
	}
}
