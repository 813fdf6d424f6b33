package models

// Report is one client submission: a GNSS fix plus co-observed
// transmitters. JSON tags follow the legacy geosubmit wire format
// (camelCase), decoded leniently by internal/codec.
type Report struct {
	Timestamp int64            `json:"timestamp"`
	Position  Position         `json:"position"`
	CellTowers []CellReport    `json:"cellTowers,omitempty"`
	WifiAPs    []WifiReport    `json:"wifiAccessPoints,omitempty"`
	Bluetooth  []BluetoothReport `json:"bluetoothBeacons,omitempty"`
}

// Position is the reported GNSS fix.
type Position struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Speed     *float64 `json:"speed,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Age       *int64   `json:"age,omitempty"`
}

// CellReport is one cell-tower sighting as submitted.
type CellReport struct {
	RadioType             string   `json:"radioType"`
	MobileCountryCode     *int32   `json:"mobileCountryCode,omitempty"`
	MobileNetworkCode     *int32   `json:"mobileNetworkCode,omitempty"`
	LocationAreaCode      *int32   `json:"locationAreaCode,omitempty"`
	CellID                *int64   `json:"cellId,omitempty"`
	PrimaryScramblingCode *int32   `json:"primaryScramblingCode,omitempty"`
	Age                   *int64   `json:"age,omitempty"`
	SignalStrength        *float64 `json:"signalStrength,omitempty"`
	ASU                   *int32   `json:"asu,omitempty"`
}

// WifiReport is one Wi-Fi access point sighting as submitted.
type WifiReport struct {
	MacAddress     string   `json:"macAddress"`
	SSID           *string  `json:"ssid,omitempty"`
	Age            *int64   `json:"age,omitempty"`
	SignalStrength *float64 `json:"signalStrength,omitempty"`
}

// BluetoothReport is one Bluetooth beacon sighting as submitted.
type BluetoothReport struct {
	MacAddress     string   `json:"macAddress"`
	Name           *string  `json:"name,omitempty"`
	Age            *int64   `json:"age,omitempty"`
	SignalStrength *float64 `json:"signalStrength,omitempty"`
}

// Submission is the geosubmit request envelope: POST /v2/geosubmit body
// {items: [Report, ...]}.
type Submission struct {
	Items []Report `json:"items"`
}
