package geojson_test

import (
	"testing"

	"github.com/ricardomussett/ms-server-gps-socket/pkg/geojson"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/position"
)

func TestWrap(t *testing.T) {
	rec := position.Record{
		"gpsPseudoIP":   "10.0.0.1",
		"longitude":     "-66.9036",
		"latitude":      "10.4806",
		"vehicleId":     "V-77",
		"vehiclePlate":  "AB123CD",
		"vehicleColor":  "#ff0000",
		"speed":         "42.5",
		"angle":         "180",
		"ignition":      "true",
		"nightTraffic":  "false",
		"overSpeed":     "1",
		"timestamp":     "2024-01-01T00:00:00Z",
		"oilResistance": "not-a-number",
	}

	f := geojson.Wrap(rec)

	if f.Type != "Feature" || f.Geometry.Type != "Point" {
		t.Errorf("unexpected feature framing: %q/%q", f.Type, f.Geometry.Type)
	}
	if f.Geometry.Coordinates[0] != -66.9036 || f.Geometry.Coordinates[1] != 10.4806 {
		t.Errorf("unexpected coordinates %v", f.Geometry.Coordinates)
	}
	if f.Properties.Device.IP != "10.0.0.1" {
		t.Errorf("expected device ip from gpsPseudoIP, got %q", f.Properties.Device.IP)
	}
	if f.Properties.Telemetry.Speed != 42.5 || f.Properties.Telemetry.Heading != 180 {
		t.Errorf("unexpected telemetry %+v", f.Properties.Telemetry)
	}
	if !f.Properties.Sensors.Ignition {
		t.Error("expected ignition true")
	}
	if f.Properties.Sensors.NightDriving != 0 || f.Properties.Sensors.OverSpeed != 1 {
		t.Errorf("unexpected sensor flags %+v", f.Properties.Sensors)
	}
	if f.Properties.Sensors.OilResistance != 0 {
		t.Error("unparsable numeric field should map to zero")
	}
	if f.Properties.Visualization.Icon != "truck" || f.Properties.Visualization.IconColor != "#ff0000" {
		t.Errorf("unexpected visualization %+v", f.Properties.Visualization)
	}
}

func TestWrapAll(t *testing.T) {
	recs := []position.Record{
		{"gpsPseudoIP": "10.0.0.1"},
		{"gpsPseudoIP": "10.0.0.2"},
	}
	features := geojson.WrapAll(recs)
	if len(features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(features))
	}
	if features[1].Properties.Device.IP != "10.0.0.2" {
		t.Errorf("unexpected second feature %+v", features[1].Properties.Device)
	}
}
