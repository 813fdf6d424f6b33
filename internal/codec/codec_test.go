package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobeacon/backend/internal/models"
)

func f(v float64) *float64 { return &v }
func i32(v int32) *int32   { return &v }
func i64(v int64) *int64   { return &v }
func s(v string) *string   { return &v }

func validCell() models.CellReport {
	return models.CellReport{
		RadioType:             "lte",
		MobileCountryCode:     i32(208),
		MobileNetworkCode:     i32(10),
		LocationAreaCode:      i32(1234),
		CellID:                i64(56789),
		PrimaryScramblingCode: i32(0),
	}
}

func TestObservations_HighAccuracyDropsWholeReport(t *testing.T) {
	r := &models.Report{
		Position:   models.Position{Latitude: 1, Longitude: 1, Accuracy: f(251)},
		CellTowers: []models.CellReport{validCell()},
	}
	assert.Empty(t, Observations(r))
}

func TestObservations_HighAltitudeDropsWholeReport(t *testing.T) {
	r := &models.Report{
		Position:   models.Position{Latitude: 1, Longitude: 1, Altitude: f(5001)},
		CellTowers: []models.CellReport{validCell()},
	}
	assert.Empty(t, Observations(r))
}

func TestObservations_AgeDeltaDrops(t *testing.T) {
	r := &models.Report{
		Position:   models.Position{Latitude: 1, Longitude: 1, Age: i64(0)},
		CellTowers: []models.CellReport{withAge(validCell(), i64(30001))},
	}
	assert.Empty(t, Observations(r))
}

func withAge(c models.CellReport, age *int64) models.CellReport {
	c.Age = age
	return c
}

func TestObservations_MobileNetworkCodeZeroIsValid(t *testing.T) {
	c := validCell()
	c.MobileNetworkCode = i32(0)
	r := &models.Report{
		Position:   models.Position{Latitude: 1, Longitude: 1},
		CellTowers: []models.CellReport{c},
	}
	require.Len(t, Observations(r), 1)
}

func TestObservations_CountryZeroRejected(t *testing.T) {
	c := validCell()
	c.MobileCountryCode = i32(0)
	r := &models.Report{
		Position:   models.Position{Latitude: 1, Longitude: 1},
		CellTowers: []models.CellReport{c},
	}
	assert.Empty(t, Observations(r))
}

func TestObservations_MissingScramblingCodeRejected(t *testing.T) {
	c := validCell()
	c.PrimaryScramblingCode = nil
	r := &models.Report{
		Position:   models.Position{Latitude: 1, Longitude: 1},
		CellTowers: []models.CellReport{c},
	}
	assert.Empty(t, Observations(r))
}

func TestObservations_OptOutSSIDDropped(t *testing.T) {
	r := &models.Report{
		Position: models.Position{Latitude: 1, Longitude: 1},
		WifiAPs: []models.WifiReport{
			{MacAddress: "aa:bb:cc:00:00:01", SSID: s("home_nomap")},
			{MacAddress: "aa:bb:cc:00:00:02", SSID: s("guest_optout")},
		},
	}
	assert.Empty(t, Observations(r))
}

func TestObservations_NULStrippedEmptySSIDIsHidden(t *testing.T) {
	r := &models.Report{
		Position: models.Position{Latitude: 1, Longitude: 1},
		WifiAPs: []models.WifiReport{
			{MacAddress: "aa:bb:cc:00:00:01", SSID: s("\x00\x00")},
		},
	}
	require.Len(t, Observations(r), 1)
}

func TestCellSignalDBm_ASUConversions(t *testing.T) {
	cases := []struct {
		radio models.CellRadio
		asu   int32
		want  *float64
	}{
		{models.RadioGSM, 15, f(-83)},
		{models.RadioWCDMA, 35, f(-85)},
		{models.RadioLTE, 32, f(-108)},
		{models.RadioLTE, 99, nil},
	}
	for _, tc := range cases {
		got := cellSignalDBm(tc.radio, models.CellReport{ASU: i32(tc.asu)})
		if tc.want == nil {
			assert.Nil(t, got)
			continue
		}
		require.NotNil(t, got)
		assert.InDelta(t, *tc.want, *got, 1e-9)
	}
}
