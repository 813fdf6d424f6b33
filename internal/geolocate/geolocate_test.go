package geolocate

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobeacon/backend/internal/geoip"
	"github.com/geobeacon/backend/internal/mls"
	"github.com/geobeacon/backend/internal/models"
)

type fakeStore struct {
	byKey map[string]*models.Estimate
}

func newFakeStore() *fakeStore {
	return &fakeStore{byKey: make(map[string]*models.Estimate)}
}

func (f *fakeStore) put(key models.TransmitterKey, est models.Estimate) {
	f.byKey[key.String()] = &est
}

func (f *fakeStore) LookupDefault(_ context.Context, key models.TransmitterKey) (*models.Estimate, error) {
	return f.byKey[key.String()], nil
}

type fakeMLS struct {
	rows map[models.CellKey]mls.Row
}

func (f *fakeMLS) Lookup(_ context.Context, key models.CellKey) (*mls.Row, error) {
	if row, ok := f.rows[key]; ok {
		return &row, nil
	}
	return nil, nil
}

type fakeCountryTable struct {
	country geoip.Country
	found   bool
}

func (f fakeCountryTable) Lookup(netip.Addr) (geoip.Country, bool) {
	return f.country, f.found
}

func ptr[T any](v T) *T { return &v }

func estimateAt(lat, lon, accuracy float64) models.Estimate {
	est := models.NewEstimate(lat, lon, accuracy, 1)
	est.Bounds = est.Bounds.UnionPoint(lat+0.001, lon+0.001)
	return est
}

func TestLocate_WifiWeightedAverage(t *testing.T) {
	store := newFakeStore()
	mac1, err := models.ParseMAC("00:11:22:33:44:55")
	require.NoError(t, err)
	mac2, err := models.ParseMAC("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	store.put(models.WifiTransmitterKey(mac1), estimateAt(48.85, 2.35, 30))
	store.put(models.WifiTransmitterKey(mac2), estimateAt(48.86, 2.36, 30))

	r := New(store, &fakeMLS{}, fakeCountryTable{})
	req := Request{WifiAccessPoints: []models.WifiReport{
		{MacAddress: "00:11:22:33:44:55", SignalStrength: ptr(-60)},
		{MacAddress: "aa:bb:cc:dd:ee:ff", SignalStrength: ptr(-60)},
	}}

	res, err := r.Locate(context.Background(), req, netip.Addr{})
	require.NoError(t, err)
	assert.Empty(t, res.Fallback)
	assert.InDelta(t, 48.855, res.Lat, 0.01)
	assert.InDelta(t, 2.355, res.Lng, 0.01)
}

func TestLocate_WifiDedupesDuplicateMAC(t *testing.T) {
	store := newFakeStore()
	mac, err := models.ParseMAC("00:11:22:33:44:55")
	require.NoError(t, err)
	store.put(models.WifiTransmitterKey(mac), estimateAt(48.85, 2.35, 30))

	r := New(store, &fakeMLS{}, fakeCountryTable{})
	req := Request{WifiAccessPoints: []models.WifiReport{
		{MacAddress: "00:11:22:33:44:55"},
		{MacAddress: "00:11:22:33:44:55"},
	}}

	_, err = r.Locate(context.Background(), req, netip.Addr{})
	assert.Equal(t, ErrNotFound, err)
}

func TestLocate_CellExactMatch(t *testing.T) {
	store := newFakeStore()
	key := models.CellKey{Radio: models.RadioLTE, Country: 310, Network: 260, Area: 1234, CellID: 5678}
	store.put(models.CellTransmitterKey(key), estimateAt(40.0, -73.0, 100))

	r := New(store, &fakeMLS{}, fakeCountryTable{})
	req := Request{CellTowers: []models.CellReport{{
		RadioType:         "lte",
		MobileCountryCode: ptr(int32(310)),
		MobileNetworkCode: ptr(int32(260)),
		LocationAreaCode:  ptr(int32(1234)),
		CellID:            ptr(int64(5678)),
	}}}

	res, err := r.Locate(context.Background(), req, netip.Addr{})
	require.NoError(t, err)
	assert.Empty(t, res.Fallback)
	assert.InDelta(t, 40.0, res.Lat, 0.01)
}

func TestLocate_CellFallsBackToMLS(t *testing.T) {
	store := newFakeStore()
	key := models.CellKey{Radio: models.RadioGSM, Country: 208, Network: 1, Area: 10, CellID: 99}
	fake := &fakeMLS{rows: map[models.CellKey]mls.Row{key: {Lat: 12.0, Lon: 34.0, Radius: 5000}}}

	r := New(store, fake, fakeCountryTable{})
	req := Request{CellTowers: []models.CellReport{{
		RadioType:         "gsm",
		MobileCountryCode: ptr(int32(208)),
		MobileNetworkCode: ptr(int32(1)),
		LocationAreaCode:  ptr(int32(10)),
		CellID:            ptr(int64(99)),
	}}}

	res, err := r.Locate(context.Background(), req, netip.Addr{})
	require.NoError(t, err)
	assert.Equal(t, 12.0, res.Lat)
	assert.Equal(t, 34.0, res.Lng)
	assert.Equal(t, 5000, res.Accuracy)
}

func TestLocate_IPCountryFallback(t *testing.T) {
	r := New(newFakeStore(), &fakeMLS{}, fakeCountryTable{
		found:   true,
		country: geoip.Country{Code: "FR", Name: "France", Lat: 46.0, Lon: 2.0},
	})

	clientIP := netip.MustParseAddr("203.0.113.5")
	res, err := r.Locate(context.Background(), Request{}, clientIP)
	require.NoError(t, err)
	assert.Equal(t, "ipf", res.Fallback)
	assert.Equal(t, 46.0, res.Lat)
	assert.Equal(t, ipAccuracyM, float64(res.Accuracy))
}

func TestLocate_IPFallbackDisabledByRequest(t *testing.T) {
	r := New(newFakeStore(), &fakeMLS{}, fakeCountryTable{
		found:   true,
		country: geoip.Country{Code: "FR", Lat: 46.0, Lon: 2.0},
	})

	req := Request{Fallbacks: &Fallbacks{IPF: ptr(false)}}
	_, err := r.Locate(context.Background(), req, netip.MustParseAddr("203.0.113.5"))
	assert.Equal(t, ErrNotFound, err)
}

func TestLocate_NotFoundWhenNothingMatches(t *testing.T) {
	r := New(newFakeStore(), &fakeMLS{}, fakeCountryTable{})
	_, err := r.Locate(context.Background(), Request{}, netip.Addr{})
	assert.Equal(t, ErrNotFound, err)
}

func TestLocate_AccuracyFloorAndRounding(t *testing.T) {
	store := newFakeStore()
	key := models.CellKey{Radio: models.RadioNR, Country: 310, Network: 410, Area: 1, CellID: 1}
	est := models.NewEstimate(40.123456789, -73.987654321, 10, 1)
	store.put(models.CellTransmitterKey(key), est)

	r := New(store, &fakeMLS{}, fakeCountryTable{})
	req := Request{CellTowers: []models.CellReport{{
		RadioType:         "nr",
		MobileCountryCode: ptr(int32(310)),
		MobileNetworkCode: ptr(int32(410)),
		LocationAreaCode:  ptr(int32(1)),
		CellID:            ptr(int64(1)),
	}}}

	res, err := r.Locate(context.Background(), req, netip.Addr{})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Accuracy, "accuracy floors at 50m even for a zero-area bbox")
	assert.Equal(t, 40.123457, res.Lat)
	assert.Equal(t, -73.987654, res.Lng)
}
