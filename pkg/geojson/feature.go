// Package geojson shapes flat position records into the GeoJSON Feature form
// some map frontends consume. It is pure data transformation, enabled by the
// server.geojson config switch.
package geojson

import (
	"strconv"

	"github.com/ricardomussett/ms-server-gps-socket/pkg/position"
)

type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [longitude, latitude]
}

type Vehicle struct {
	ID       string `json:"id"`
	Plate    string `json:"plate"`
	District string `json:"district"`
}

type Device struct {
	ClientID string `json:"clientId"`
	IP       string `json:"ip"`
	SIM      string `json:"sim"`
}

type Telemetry struct {
	Timestamp   string  `json:"timestamp"`
	Speed       float64 `json:"speed"`
	Heading     float64 `json:"heading"`
	Mileage     float64 `json:"mileage"`
	Temperature float64 `json:"temperature"`
	Voltage     float64 `json:"voltage"`
}

type Sensors struct {
	Ignition      bool    `json:"ignition"`
	NightDriving  int     `json:"nightDriving"`
	OilResistance float64 `json:"oilResistance"`
	OverSpeed     int     `json:"overSpeed"`
}

type Visualization struct {
	Icon      string `json:"icon"`
	IconColor string `json:"iconColor"`
}

type Properties struct {
	Vehicle       Vehicle       `json:"vehicle"`
	Device        Device        `json:"device"`
	Telemetry     Telemetry     `json:"telemetry"`
	Sensors       Sensors       `json:"sensors"`
	Visualization Visualization `json:"visualization"`
}

type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Wrap shapes one record into a Point Feature.
func Wrap(rec position.Record) Feature {
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: [2]float64{num(rec, "longitude"), num(rec, "latitude")},
		},
		Properties: Properties{
			Vehicle: Vehicle{
				ID:       rec["vehicleId"],
				Plate:    rec["vehiclePlate"],
				District: rec["vehicleDistrict"],
			},
			Device: Device{
				ClientID: rec["clientId"],
				IP:       rec.DeviceID(),
				SIM:      rec["sim"],
			},
			Telemetry: Telemetry{
				Timestamp:   rec["timestamp"],
				Speed:       num(rec, "speed"),
				Heading:     num(rec, "angle"),
				Mileage:     num(rec, "mileage"),
				Temperature: num(rec, "temperature"),
				Voltage:     num(rec, "voltage"),
			},
			Sensors: Sensors{
				Ignition:      rec["ignition"] == "true",
				NightDriving:  flag(rec, "nightTraffic"),
				OilResistance: num(rec, "oilResistance"),
				OverSpeed:     flag(rec, "overSpeed"),
			},
			Visualization: Visualization{
				Icon:      "truck",
				IconColor: rec["vehicleColor"],
			},
		},
	}
}

// WrapAll shapes a batch of records.
func WrapAll(recs []position.Record) []Feature {
	out := make([]Feature, len(recs))
	for i, rec := range recs {
		out[i] = Wrap(rec)
	}
	return out
}

func num(rec position.Record, field string) float64 {
	v, err := strconv.ParseFloat(rec[field], 64)
	if err != nil {
		return 0
	}
	return v
}

func flag(rec position.Record, field string) int {
	if rec[field] == "true" || rec[field] == "1" {
		return 1
	}
	return 0
}
