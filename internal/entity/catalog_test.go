package entity

import (
	"encoding/json"
	"testing"
)

// fullSnapshot returns a snapshot resembling a complete
// printer.objects.query response from a printing machine.
func fullSnapshot() Snapshot {
	return Snapshot{
		"print_stats": {
			"state":          "printing",
			"filename":       "benchy.gcode",
			"print_duration": 1234.6,
			"total_duration": 1300.2,
			"filament_used":  2517.0,
		},
		"display_status": {
			"progress": 0.423,
		},
		"extruder": {
			"temperature": 215.31,
			"target":      215.0,
		},
		"heater_bed": {
			"temperature": 60.02,
			"target":      60.0,
		},
		"toolhead": {
			"position": []any{100.5, 120.25, 5.8, 0.0},
		},
		"gcode_move": {
			"speed_factor":   1.0,
			"extrude_factor": 0.95,
		},
		"fan": {
			"speed": 0.6,
		},
	}
}

func TestCatalog_Extractors(t *testing.T) {
	snap := fullSnapshot()

	tests := []struct {
		id   string
		want string
	}{
		{IDPrintState, "printing"},
		{IDPrintFilename, "benchy.gcode"},
		{IDPrintProgress, "42.3"},
		{IDPrintDuration, "1235"},
		{IDTotalDuration, "1300"},
		{IDFilamentUsed, "2.517"},
		{IDExtruderTemp, "215.31"},
		{IDExtruderTarget, "215"},
		{IDBedTemp, "60.02"},
		{IDBedTarget, "60"},
		{IDToolheadX, "100.5"},
		{IDToolheadY, "120.25"},
		{IDToolheadZ, "5.8"},
		{IDSpeedFactor, "100"},
		{IDExtrusionFactor, "95"},
		{IDFanSpeed, "60"},
		{IDPrinting, "on"},
	}

	defs := make(map[string]Definition)
	for _, def := range Catalog() {
		defs[def.ID] = def
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			def, ok := defs[tt.id]
			if !ok {
				t.Fatalf("Definition %s not in catalog", tt.id)
			}
			value, ok := def.Extract(snap)
			if !ok {
				t.Fatalf("Extract() returned not ok")
			}
			if got := FormatState(value); got != tt.want {
				t.Errorf("FormatState() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCatalog_PartialSnapshot(t *testing.T) {
	// A push update touching only the extruder must not extract
	// values for unrelated definitions.
	snap := Snapshot{
		"extruder": {"temperature": 200.0},
	}

	defs := make(map[string]Definition)
	for _, def := range Catalog() {
		defs[def.ID] = def
	}

	if _, ok := defs[IDExtruderTemp].Extract(snap); !ok {
		t.Error("Expected extruder temperature to extract")
	}
	if _, ok := defs[IDBedTemp].Extract(snap); ok {
		t.Error("Bed temperature should not extract from extruder-only update")
	}
	if _, ok := defs[IDPrintState].Extract(snap); ok {
		t.Error("Print state should not extract from extruder-only update")
	}
	// Target absent from this update even though the object is present
	if _, ok := defs[IDExtruderTarget].Extract(snap); ok {
		t.Error("Extruder target should not extract when field is absent")
	}
}

func TestCatalog_KlippyHasNoExtractor(t *testing.T) {
	for _, def := range Catalog() {
		if def.ID == IDKlippyConnected {
			if def.Extract != nil {
				t.Error("klippy_connected must be lifecycle-driven, not snapshot-driven")
			}
			if len(def.Subscriptions) != 0 {
				t.Error("klippy_connected must not subscribe to printer objects")
			}
			return
		}
	}
	t.Fatal("klippy_connected not in catalog")
}

func TestMergeSubscriptions(t *testing.T) {
	defs := []Definition{
		{ID: "a", Subscriptions: map[string][]string{"extruder": {"temperature"}}},
		{ID: "b", Subscriptions: map[string][]string{"extruder": {"temperature", "target"}}},
		{ID: "c", Subscriptions: map[string][]string{"print_stats": {"state"}}},
		{ID: "d", Subscriptions: map[string][]string{"toolhead": nil}},
		{ID: "e", Subscriptions: map[string][]string{"toolhead": {"position"}}},
	}

	merged := MergeSubscriptions(defs)

	extruder := merged["extruder"]
	if len(extruder) != 2 {
		t.Errorf("extruder fields = %v, want [temperature target]", extruder)
	}
	if !containsString(extruder, "temperature") || !containsString(extruder, "target") {
		t.Errorf("extruder fields = %v, missing expected fields", extruder)
	}

	if fields, ok := merged["toolhead"]; !ok || fields != nil {
		t.Errorf("toolhead fields = %v, want nil (all fields)", fields)
	}

	if len(merged["print_stats"]) != 1 {
		t.Errorf("print_stats fields = %v, want [state]", merged["print_stats"])
	}
}

func TestMergeSubscriptions_Catalog(t *testing.T) {
	merged := MergeSubscriptions(Catalog())

	for _, object := range []string{"print_stats", "display_status", "extruder", "heater_bed", "toolhead", "gcode_move", "fan"} {
		if _, ok := merged[object]; !ok {
			t.Errorf("Merged subscription missing object %q", object)
		}
	}
}

func TestDecodeStatus(t *testing.T) {
	raw := map[string]json.RawMessage{
		"extruder": json.RawMessage(`{"temperature": 210.5, "target": 215.0}`),
	}

	snap, err := DecodeStatus(raw)
	if err != nil {
		t.Fatalf("DecodeStatus() error = %v", err)
	}

	v, ok := snap.Float("extruder", "temperature")
	if !ok || v != 210.5 {
		t.Errorf("Float() = %v, %v; want 210.5, true", v, ok)
	}
}

func TestDecodeStatus_Invalid(t *testing.T) {
	raw := map[string]json.RawMessage{
		"extruder": json.RawMessage(`[1, 2]`),
	}
	if _, err := DecodeStatus(raw); err == nil {
		t.Error("Expected error for non-object payload")
	}
}

func TestSnapshot_Merge(t *testing.T) {
	base := Snapshot{
		"extruder":    {"temperature": 200.0, "target": 215.0},
		"print_stats": {"state": "printing"},
	}
	update := Snapshot{
		"extruder": {"temperature": 205.5},
		"fan":      {"speed": 0.5},
	}

	base.Merge(update)

	if v, _ := base.Float("extruder", "temperature"); v != 205.5 {
		t.Errorf("temperature = %v, want 205.5", v)
	}
	if v, _ := base.Float("extruder", "target"); v != 215.0 {
		t.Errorf("target = %v, want preserved 215.0", v)
	}
	if v, _ := base.Float("fan", "speed"); v != 0.5 {
		t.Errorf("fan speed = %v, want 0.5", v)
	}
	if s, _ := base.String("print_stats", "state"); s != "printing" {
		t.Errorf("state = %q, want preserved", s)
	}
}

func TestFormatState(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "printing", "printing"},
		{"bool true", true, "on"},
		{"bool false", false, "off"},
		{"float whole", 60.0, "60"},
		{"float fraction", 215.31, "215.31"},
		{"int", 42, "42"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatState(tt.in); got != tt.want {
				t.Errorf("FormatState(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNumericState(t *testing.T) {
	if v, ok := NumericState(215.31); !ok || v != 215.31 {
		t.Errorf("NumericState(float) = %v, %v", v, ok)
	}
	if v, ok := NumericState(true); !ok || v != 1 {
		t.Errorf("NumericState(true) = %v, %v; want 1, true", v, ok)
	}
	if _, ok := NumericState("printing"); ok {
		t.Error("NumericState(string) should not be numeric")
	}
}
