package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// CellRadio is the radio access technology of a cell observation.
type CellRadio int32

const (
	RadioGSM   CellRadio = 2
	RadioWCDMA CellRadio = 3
	RadioLTE   CellRadio = 4
	RadioNR    CellRadio = 5
)

// String renders the wire encoding (lowercase, "umts" accepted as "wcdma").
func (r CellRadio) String() string {
	switch r {
	case RadioGSM:
		return "gsm"
	case RadioWCDMA:
		return "wcdma"
	case RadioLTE:
		return "lte"
	case RadioNR:
		return "nr"
	default:
		return "unknown"
	}
}

// ParseCellRadio accepts the wire-encoded radio strings, including the
// "umts" alias for "wcdma".
func ParseCellRadio(s string) (CellRadio, error) {
	switch strings.ToLower(s) {
	case "gsm":
		return RadioGSM, nil
	case "wcdma", "umts":
		return RadioWCDMA, nil
	case "lte":
		return RadioLTE, nil
	case "nr":
		return RadioNR, nil
	default:
		return 0, fmt.Errorf("unknown cell radio %q", s)
	}
}

// MAC is a 48-bit hardware address used for Wi-Fi and Bluetooth keys.
type MAC [6]byte

// ParseMAC accepts colon or dash separated hex octets.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	clean := strings.NewReplacer(":", "", "-", "").Replace(s)
	if len(clean) != 12 {
		return m, fmt.Errorf("invalid mac address %q", s)
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return m, fmt.Errorf("invalid mac address %q: %w", s, err)
	}
	copy(m[:], raw)
	return m, nil
}

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

func (m MAC) Compare(o MAC) int {
	for i := range m {
		if m[i] != o[i] {
			if m[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// TransmitterKind discriminates the closed TransmitterKey union.
type TransmitterKind int

const (
	KindCell TransmitterKind = iota
	KindWifi
	KindBluetooth
)

// CellKey identifies one physical cell sector. Unit is the scrambling
// code (UMTS PSC, LTE PCI) or 0 when absent.
type CellKey struct {
	Radio   CellRadio
	Country int32
	Network int32
	Area    int32
	CellID  int64
	Unit    int32
}

func (k CellKey) Compare(o CellKey) int {
	switch {
	case k.Radio != o.Radio:
		return cmpInt(int64(k.Radio), int64(o.Radio))
	case k.Country != o.Country:
		return cmpInt(int64(k.Country), int64(o.Country))
	case k.Network != o.Network:
		return cmpInt(int64(k.Network), int64(o.Network))
	case k.Area != o.Area:
		return cmpInt(int64(k.Area), int64(o.Area))
	case k.CellID != o.CellID:
		return cmpInt(k.CellID, o.CellID)
	default:
		return cmpInt(int64(k.Unit), int64(o.Unit))
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// TransmitterKey is a closed tagged union over the three transmitter
// kinds. Dispatch on Kind explicitly; there is no dynamic interface
// dispatch here, deliberately, since the set of variants is fixed.
type TransmitterKey struct {
	Kind TransmitterKind
	Cell CellKey
	MAC  MAC
}

func CellTransmitterKey(c CellKey) TransmitterKey {
	return TransmitterKey{Kind: KindCell, Cell: c}
}

func WifiTransmitterKey(mac MAC) TransmitterKey {
	return TransmitterKey{Kind: KindWifi, MAC: mac}
}

func BluetoothTransmitterKey(mac MAC) TransmitterKey {
	return TransmitterKey{Kind: KindBluetooth, MAC: mac}
}

// Compare gives a total order across all kinds, so batches of keys can
// be iterated deterministically regardless of Go's randomized map order.
func (k TransmitterKey) Compare(o TransmitterKey) int {
	if k.Kind != o.Kind {
		return cmpInt(int64(k.Kind), int64(o.Kind))
	}
	switch k.Kind {
	case KindCell:
		return k.Cell.Compare(o.Cell)
	default:
		return k.MAC.Compare(o.MAC)
	}
}

func (k TransmitterKey) String() string {
	switch k.Kind {
	case KindCell:
		return fmt.Sprintf("cell:%s:%d:%d:%d:%d:%d", k.Cell.Radio, k.Cell.Country, k.Cell.Network, k.Cell.Area, k.Cell.CellID, k.Cell.Unit)
	case KindWifi:
		return "wifi:" + k.MAC.String()
	case KindBluetooth:
		return "bt:" + k.MAC.String()
	default:
		return "unknown"
	}
}

// Bounds is a bounding box over latitude/longitude, a commutative
// monoid under Union with an explicit empty identity. The zero value
// (Empty: false, all corners 0) is NOT the identity — use EmptyBounds(),
// which sets Empty explicitly, or NewEstimate, which starts from a
// zero-area box at its first point, as the starting point.
type Bounds struct {
	Empty          bool
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// EmptyBounds is the identity element of the Union monoid.
func EmptyBounds() Bounds {
	return Bounds{Empty: true}
}

// UnionPoint folds a point into the box.
func (b Bounds) UnionPoint(lat, lon float64) Bounds {
	if b.Empty {
		return Bounds{MinLat: lat, MinLon: lon, MaxLat: lat, MaxLon: lon}
	}
	return Bounds{
		MinLat: minF(b.MinLat, lat),
		MinLon: minF(b.MinLon, lon),
		MaxLat: maxF(b.MaxLat, lat),
		MaxLon: maxF(b.MaxLon, lon),
	}
}

// UnionBounds folds another box into this one.
func (b Bounds) UnionBounds(o Bounds) Bounds {
	if o.Empty {
		return b
	}
	if b.Empty {
		return o
	}
	return Bounds{
		MinLat: minF(b.MinLat, o.MinLat),
		MinLon: minF(b.MinLon, o.MinLon),
		MaxLat: maxF(b.MaxLat, o.MaxLat),
		MaxLon: maxF(b.MaxLon, o.MaxLon),
	}
}

func (b Bounds) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Estimate is the persisted weighted-mean position of one transmitter.
type Estimate struct {
	Bounds      Bounds
	Lat, Lon    float64
	Accuracy    float64
	TotalWeight float64
}

// WeightedUpdate folds one more observation (lat, lon, accuracy, weight)
// into the estimate using the online weighted-mean rule: folding
// observations one at a time gives the same result as folding them as
// a single batch, so the engine can process reports incrementally.
func (e Estimate) WeightedUpdate(lat, lon, accuracy, weight float64) Estimate {
	newWeight := e.TotalWeight + weight
	return Estimate{
		Bounds:      e.Bounds.UnionPoint(lat, lon),
		Lat:         (e.Lat*e.TotalWeight + lat*weight) / newWeight,
		Lon:         (e.Lon*e.TotalWeight + lon*weight) / newWeight,
		Accuracy:    (e.Accuracy*e.TotalWeight + accuracy*weight) / newWeight,
		TotalWeight: newWeight,
	}
}

// NewEstimate builds the initial estimate for a transmitter's first
// valid observation: a zero-area bbox at (lat, lon).
func NewEstimate(lat, lon, accuracy, weight float64) Estimate {
	return Estimate{
		Bounds:      Bounds{MinLat: lat, MinLon: lon, MaxLat: lat, MaxLon: lon},
		Lat:         lat,
		Lon:         lon,
		Accuracy:    accuracy,
		TotalWeight: weight,
	}
}

// KindCounts is the result of Store.CountByKind.
type KindCounts struct {
	Wifi                   int64
	Cell                   int64
	Bluetooth              int64
	DistinctCellCountries int64
}

// ReportState is the report lifecycle (intake -> engine transition).
type ReportState string

const (
	ReportPending   ReportState = "pending"
	ReportProcessed ReportState = "processed"
	ReportErrored   ReportState = "errored"
)

func (r CellKey) WithoutUnit() CellKey {
	k := r
	k.Unit = 0
	return k
}
