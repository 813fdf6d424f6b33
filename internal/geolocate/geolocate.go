// Package geolocate implements the geolocate responder (component F):
// given a client's live observation list, it picks the best position
// estimate via the precedence Wi-Fi-weighted -> cell-bbox ->
// MLS-fallback -> IP-country.
package geolocate

import (
	"context"
	"errors"
	"math"
	"net/netip"

	"github.com/geobeacon/backend/internal/geo"
	"github.com/geobeacon/backend/internal/geoip"
	"github.com/geobeacon/backend/internal/mls"
	"github.com/geobeacon/backend/internal/models"
)

// TransmitterStore is the narrow slice of internal/store the responder
// needs: a read-only, non-transactional lookup.
type TransmitterStore interface {
	LookupDefault(ctx context.Context, key models.TransmitterKey) (*models.Estimate, error)
}

// MLSStore is the narrow slice of internal/mls the responder needs.
type MLSStore interface {
	Lookup(ctx context.Context, key models.CellKey) (*mls.Row, error)
}

// CountryTable is the narrow slice of internal/geoip the responder needs.
type CountryTable interface {
	Lookup(ip netip.Addr) (geoip.Country, bool)
}

// ErrNotFound means no precedence branch produced a location.
var ErrNotFound = errors.New("geolocate: not found")

const (
	minWifiRingM = 1.0
	maxWifiRingM = 500.0
	minWifiAPs   = 2
	ipAccuracyM  = 25000.0
)

// Request is the geolocate request body, lenient and entirely optional.
type Request struct {
	CellTowers       []models.CellReport `json:"cellTowers"`
	WifiAccessPoints []models.WifiReport `json:"wifiAccessPoints"`
	ConsiderIP       *bool               `json:"considerIp"`
	Fallbacks        *Fallbacks          `json:"fallbacks"`
}

type Fallbacks struct {
	IPF *bool `json:"ipf"`
}

func (r Request) considerIP() bool {
	if r.ConsiderIP == nil {
		return true
	}
	return *r.ConsiderIP
}

func (r Request) ipfEnabled() bool {
	if r.Fallbacks == nil || r.Fallbacks.IPF == nil {
		return true
	}
	return *r.Fallbacks.IPF
}

// Result is the successful geolocate response.
type Result struct {
	Lat, Lng float64
	Accuracy int
	Fallback string
}

// Responder answers geolocate requests by reading the transmitter
// store, the MLS fallback table, and the IP-country table.
type Responder struct {
	store TransmitterStore
	mls   MLSStore
	geoip CountryTable
}

func New(s TransmitterStore, m MLSStore, g CountryTable) *Responder {
	return &Responder{store: s, mls: m, geoip: g}
}

// Locate runs the precedence chain; the first matching branch wins.
func (r *Responder) Locate(ctx context.Context, req Request, clientIP netip.Addr) (*Result, error) {
	if res, ok, err := r.wifiWeightedAverage(ctx, req.WifiAccessPoints); err != nil {
		return nil, err
	} else if ok {
		return res, nil
	}

	if res, ok, err := r.cellExactMatch(ctx, req.CellTowers); err != nil {
		return nil, err
	} else if ok {
		return res, nil
	}

	if res, ok, err := r.cellMLSFallback(ctx, req.CellTowers); err != nil {
		return nil, err
	} else if ok {
		return res, nil
	}

	if req.considerIP() && req.ipfEnabled() && clientIP.IsValid() {
		if res, ok := r.ipCountryFallback(clientIP); ok {
			return res, nil
		}
	}

	return nil, ErrNotFound
}

func (r *Responder) wifiWeightedAverage(ctx context.Context, aps []models.WifiReport) (*Result, bool, error) {
	seen := make(map[models.MAC]bool)
	var sumLat, sumLon, sumAcc, sumW float64
	var count int

	for _, ap := range aps {
		mac, err := models.ParseMAC(ap.MacAddress)
		if err != nil || seen[mac] {
			continue
		}
		seen[mac] = true

		est, err := r.store.LookupDefault(ctx, models.WifiTransmitterKey(mac))
		if err != nil {
			return nil, false, err
		}
		if est == nil {
			continue
		}

		minCorner := geo.Point{Lat: est.Bounds.MinLat, Lon: est.Bounds.MinLon}
		centerLat, centerLon := est.Bounds.Center()
		ringM := geo.Haversine(geo.Point{Lat: centerLat, Lon: centerLon}, minCorner)
		if ringM < minWifiRingM || ringM > maxWifiRingM {
			continue
		}

		rssi := geo.DefaultRSSIDBm
		if ap.SignalStrength != nil {
			rssi = *ap.SignalStrength
		}
		w := geo.SignalWeight(rssi)

		sumLat += est.Lat * w
		sumLon += est.Lon * w
		sumAcc += est.Accuracy * w
		sumW += w
		count++
	}

	if count < minWifiAPs {
		return nil, false, nil
	}
	lat, lon, acc := sumLat/sumW, sumLon/sumW, sumAcc/sumW
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsNaN(acc) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return nil, false, errDegenerate()
	}
	return finalize(lat, lon, math.Max(50, acc), ""), true, nil
}

func (r *Responder) cellExactMatch(ctx context.Context, cells []models.CellReport) (*Result, bool, error) {
	for _, c := range cells {
		key, ok := cellKeyFromReport(c)
		if !ok {
			continue
		}

		est, err := r.store.LookupDefault(ctx, models.CellTransmitterKey(key))
		if err != nil {
			return nil, false, err
		}
		if est == nil && key.Unit != 0 {
			withoutUnit := key.WithoutUnit()
			est, err = r.store.LookupDefault(ctx, models.CellTransmitterKey(withoutUnit))
			if err != nil {
				return nil, false, err
			}
		}
		if est == nil {
			continue
		}

		lat, lon := est.Bounds.Center()
		accuracy := math.Max(50, geo.Haversine(geo.Point{Lat: lat, Lon: lon}, geo.Point{Lat: est.Bounds.MinLat, Lon: est.Bounds.MinLon}))
		return finalize(lat, lon, accuracy, ""), true, nil
	}
	return nil, false, nil
}

func (r *Responder) cellMLSFallback(ctx context.Context, cells []models.CellReport) (*Result, bool, error) {
	for _, c := range cells {
		key, ok := cellKeyFromReport(c)
		if !ok {
			continue
		}
		row, err := r.mls.Lookup(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if row == nil && key.Unit != 0 {
			row, err = r.mls.Lookup(ctx, key.WithoutUnit())
			if err != nil {
				return nil, false, err
			}
		}
		if row == nil {
			continue
		}
		return finalize(row.Lat, row.Lon, math.Max(50, row.Radius), ""), true, nil
	}
	return nil, false, nil
}

func (r *Responder) ipCountryFallback(ip netip.Addr) (*Result, bool) {
	country, ok := r.geoip.Lookup(ip)
	if !ok {
		return nil, false
	}
	res := finalize(country.Lat, country.Lon, ipAccuracyM, "ipf")
	return res, true
}

func cellKeyFromReport(c models.CellReport) (models.CellKey, bool) {
	radio, err := models.ParseCellRadio(c.RadioType)
	if err != nil {
		return models.CellKey{}, false
	}
	if c.MobileCountryCode == nil || c.LocationAreaCode == nil || c.CellID == nil {
		return models.CellKey{}, false
	}
	network := int32(0)
	if c.MobileNetworkCode != nil {
		network = *c.MobileNetworkCode
	}
	unit := int32(0)
	if c.PrimaryScramblingCode != nil {
		unit = *c.PrimaryScramblingCode
	}
	return models.CellKey{
		Radio:   radio,
		Country: *c.MobileCountryCode,
		Network: network,
		Area:    *c.LocationAreaCode,
		CellID:  *c.CellID,
		Unit:    unit,
	}, true
}

// finalize rounds lat/lng to 6 decimal places and rounds accuracy to
// the nearest integer metre count.
func finalize(lat, lon, accuracy float64, fallback string) *Result {
	return &Result{
		Lat:      round6(lat),
		Lng:      round6(lon),
		Accuracy: int(math.Round(accuracy)),
		Fallback: fallback,
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func errDegenerate() error {
	return errors.New("geolocate: degenerate numeric result")
}
