package geo

import "math"

// SignalDropCoefficient (n) and BaseRSSI are the baseline propagation
// constants shared by the processing engine and the geolocate responder.
const (
	SignalDropCoefficient = 3.0
	BaseRSSIDBm           = -30.0
	DefaultRSSIDBm        = -90.0
	DefaultGNSSAccuracyM  = 10.0
)

// SignalWeight is the log-linear signal weight: higher (closer to 0 dBm)
// is better. Both the engine and the geolocate responder use it.
func SignalWeight(rssiDBm float64) float64 {
	return math.Pow(10, rssiDBm/(10*SignalDropCoefficient))
}

// DistanceFromTransmitter estimates range from signal strength using the
// same log-distance path-loss shape as SignalWeight.
func DistanceFromTransmitter(rssiDBm float64) float64 {
	return math.Pow(10, (BaseRSSIDBm-rssiDBm)/(10*SignalDropCoefficient))
}

// AgeWeight discounts an observation by how far the device is estimated
// to have moved between the position fix and the observation, in
// metres; distanceSinceScan may be negative, only its magnitude matters.
func AgeWeight(distanceSinceScanM float64) float64 {
	return math.Pow(10, -math.Abs(distanceSinceScanM)/25)
}

// GNSSWeight discounts an observation by the reported GNSS accuracy.
func GNSSWeight(accuracyM float64) float64 {
	return math.Pow(10, -accuracyM/10)
}
