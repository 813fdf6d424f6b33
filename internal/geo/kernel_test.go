package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geobeacon/backend/internal/models"
)

func TestHaversine_KnownDistance(t *testing.T) {
	paris := Point{Lat: 48.8566, Lon: 2.3522}
	london := Point{Lat: 51.5074, Lon: -0.1278}

	d := Haversine(paris, london)
	assert.InDelta(t, 343500, d, 3000, "Paris-London great circle distance")
}

func TestHaversine_SamePoint(t *testing.T) {
	p := Point{Lat: 43.2965, Lon: 5.3698}
	assert.Equal(t, 0.0, Haversine(p, p))
}

func TestRhumbDestination_RoundTrip(t *testing.T) {
	start := Point{Lat: 48.8566, Lon: 2.3522}
	dest := RhumbDestination(start, 45, 10000)
	back := RhumbDestination(dest, 45, -10000)

	assert.InDelta(t, start.Lat, back.Lat, 1e-6)
	assert.InDelta(t, start.Lon, back.Lon, 1e-6)
}

func TestRhumbDestination_ZeroDistance(t *testing.T) {
	start := Point{Lat: 10, Lon: 20}
	dest := RhumbDestination(start, 123, 0)
	assert.InDelta(t, start.Lat, dest.Lat, 1e-9)
	assert.InDelta(t, start.Lon, dest.Lon, 1e-9)
}

// Invariant 1: incremental weighted update equals the batch mean, to
// 1e-9 relative error, for any sequence of updates.
func TestWeightedUpdate_MatchesBatchMean(t *testing.T) {
	type obs struct{ lat, lon, acc, w float64 }
	batches := [][]obs{
		{{48.85, 2.35, 25, 4}, {48.86, 2.36, 30, 2}, {48.84, 2.34, 10, 8}},
		{{-33.8688, 151.2093, 1, 1}},
		{{10, -10, 5, 0.5}, {10.001, -9.999, 5, 0.5}, {9.999, -10.001, 5, 0.5}},
	}

	for _, b := range batches {
		var est models.Estimate
		var sumLat, sumLon, sumAcc, sumW float64
		for i, o := range b {
			if i == 0 {
				est = models.NewEstimate(o.lat, o.lon, o.acc, o.w)
			} else {
				est = est.WeightedUpdate(o.lat, o.lon, o.acc, o.w)
			}
			sumLat += o.lat * o.w
			sumLon += o.lon * o.w
			sumAcc += o.acc * o.w
			sumW += o.w
		}

		assert.InEpsilon(t, sumLat/sumW, est.Lat, 1e-9)
		assert.InEpsilon(t, sumLon/sumW, est.Lon, 1e-9)
		assert.InEpsilon(t, sumAcc/sumW, est.Accuracy, 1e-9)
		assert.InDelta(t, sumW, est.TotalWeight, 1e-9)
	}
}

// Invariant 2: every point folded into a bbox lies inside the final box.
func TestBoundsUnion_ContainsEveryPoint(t *testing.T) {
	points := []struct{ lat, lon float64 }{
		{48.85, 2.35}, {48.90, 2.30}, {48.80, 2.40}, {48.87, 2.36},
	}

	var b models.Bounds
	b.Empty = true
	for _, p := range points {
		b = b.UnionPoint(p.lat, p.lon)
	}

	for _, p := range points {
		assert.True(t, p.lat >= b.MinLat && p.lat <= b.MaxLat)
		assert.True(t, p.lon >= b.MinLon && p.lon <= b.MaxLon)
	}
	assert.False(t, math.IsNaN(b.MinLat))
}
