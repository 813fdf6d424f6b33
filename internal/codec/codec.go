// Package codec turns raw report JSON into typed, filtered
// observations, applying the per-report and per-observation validity
// rules before anything reaches the processing engine.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/geobeacon/backend/internal/models"
)

// MaxAccuracyM and MaxAltitudeM gate an entire report.
const (
	MaxAccuracyM = 250.0
	MaxAltitudeM = 5000.0

	MaxAgeDeltaMs       = 30000.0
	MaxImplausibleDistM = 150000.0
)

// Observation is a single filtered, typed sighting ready for the engine.
type Observation struct {
	Key            models.TransmitterKey
	SignalStrength *float64
	Age            *int64
}

// Decode parses one report's raw JSON body.
func Decode(raw []byte) (*models.Report, error) {
	var r models.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// Observations applies the report-level and per-observation filters and
// returns the surviving, typed observations. An empty slice (not an
// error) is the correct outcome for a filtered-out report.
func Observations(r *models.Report) []Observation {
	if r.Position.Accuracy != nil && *r.Position.Accuracy > MaxAccuracyM {
		return nil
	}
	if r.Position.Altitude != nil && *r.Position.Altitude > MaxAltitudeM {
		return nil
	}

	var out []Observation
	for _, c := range r.CellTowers {
		if obs, ok := cellObservation(r.Position, c); ok {
			out = append(out, obs)
		}
	}
	for _, w := range r.WifiAPs {
		if obs, ok := wifiObservation(r.Position, w); ok {
			out = append(out, obs)
		}
	}
	for _, b := range r.Bluetooth {
		if obs, ok := bluetoothObservation(r.Position, b); ok {
			out = append(out, obs)
		}
	}
	return out
}

func ageFilterRejects(pos models.Position, obsAge *int64, speed *float64) bool {
	if pos.Age == nil || obsAge == nil {
		return false
	}
	delta := float64(*obsAge - *pos.Age)
	if delta < 0 {
		delta = -delta
	}
	if delta > MaxAgeDeltaMs {
		return true
	}
	if speed != nil {
		if *speed*delta > MaxImplausibleDistM {
			return true
		}
	}
	return false
}

func cellObservation(pos models.Position, c models.CellReport) (Observation, bool) {
	if ageFilterRejects(pos, c.Age, pos.Speed) {
		return Observation{}, false
	}

	country := int32(0)
	if c.MobileCountryCode != nil {
		country = *c.MobileCountryCode
	}
	area := int32(0)
	if c.LocationAreaCode != nil {
		area = *c.LocationAreaCode
	}
	cellID := int64(0)
	if c.CellID != nil {
		cellID = *c.CellID
	}
	if country == 0 || area == 0 || cellID == 0 || c.PrimaryScramblingCode == nil {
		return Observation{}, false
	}

	network := int32(0)
	if c.MobileNetworkCode != nil {
		network = *c.MobileNetworkCode
	}

	radio, err := models.ParseCellRadio(c.RadioType)
	if err != nil {
		return Observation{}, false
	}

	key := models.CellTransmitterKey(models.CellKey{
		Radio:   radio,
		Country: country,
		Network: network,
		Area:    area,
		CellID:  cellID,
		Unit:    *c.PrimaryScramblingCode,
	})

	signal := cellSignalDBm(radio, c)
	return Observation{Key: key, SignalStrength: signal, Age: c.Age}, true
}

// cellSignalDBm derives dBm from signal_strength when present, else from
// ASU using the radio-specific linear conversion.
func cellSignalDBm(radio models.CellRadio, c models.CellReport) *float64 {
	if c.SignalStrength != nil {
		return c.SignalStrength
	}
	if c.ASU == nil || *c.ASU == 99 {
		return nil
	}
	asu := float64(*c.ASU)
	var dbm float64
	switch radio {
	case models.RadioGSM:
		dbm = 2*asu - 113
	case models.RadioWCDMA:
		dbm = asu - 120
	case models.RadioLTE, models.RadioNR:
		dbm = asu - 140
	default:
		return nil
	}
	return &dbm
}

func normalizeSSID(ssid string) string {
	return strings.ReplaceAll(ssid, "\x00", "")
}

func isOptOutSSID(ssid string) bool {
	clean := normalizeSSID(ssid)
	return strings.Contains(clean, "_nomap") || strings.Contains(clean, "_optout")
}

func wifiObservation(pos models.Position, w models.WifiReport) (Observation, bool) {
	if ageFilterRejects(pos, w.Age, pos.Speed) {
		return Observation{}, false
	}
	if w.SSID != nil && isOptOutSSID(*w.SSID) {
		return Observation{}, false
	}
	mac, err := models.ParseMAC(w.MacAddress)
	if err != nil {
		return Observation{}, false
	}
	return Observation{
		Key:            models.WifiTransmitterKey(mac),
		SignalStrength: w.SignalStrength,
		Age:            w.Age,
	}, true
}

func bluetoothObservation(pos models.Position, b models.BluetoothReport) (Observation, bool) {
	if ageFilterRejects(pos, b.Age, pos.Speed) {
		return Observation{}, false
	}
	mac, err := models.ParseMAC(b.MacAddress)
	if err != nil {
		return Observation{}, false
	}
	return Observation{
		Key:            models.BluetoothTransmitterKey(mac),
		SignalStrength: b.SignalStrength,
		Age:            b.Age,
	}, true
}
