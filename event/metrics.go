package event

import "strings"

// Canonical metric names.
const (
	MetricHeartRate        = "heart_rate"
	MetricOxygenSaturation = "oxygen_saturation"
	MetricTemperature      = "temperature"
	MetricBloodPressure    = "blood_pressure"
	MetricRespiratoryRate  = "respiratory_rate"
)

// Canonical units.
const (
	UnitBPM            = "bpm"
	UnitPercent        = "percent"
	UnitCelsius        = "celsius"
	UnitFahrenheit     = "fahrenheit"
	UnitMMHG           = "mmhg"
	UnitBreathsPerMin  = "breaths_per_min"
)

// metricAliases maps lower-cased wire names to canonical metric names.
var metricAliases = map[string]string{
	"heart_rate":         MetricHeartRate,
	"hr":                 MetricHeartRate,
	"heartrate":          MetricHeartRate,
	"pulse":              MetricHeartRate,
	"oxygen_saturation":  MetricOxygenSaturation,
	"spo2":               MetricOxygenSaturation,
	"o2sat":              MetricOxygenSaturation,
	"o2":                 MetricOxygenSaturation,
	"temperature":        MetricTemperature,
	"temp":               MetricTemperature,
	"body_temp":          MetricTemperature,
	"blood_pressure":     MetricBloodPressure,
	"bp":                 MetricBloodPressure,
	"respiratory_rate":   MetricRespiratoryRate,
	"resp_rate":          MetricRespiratoryRate,
	"rr":                 MetricRespiratoryRate,
}

// CanonicalMetric maps a wire metric name to its canonical form. The second
// return is false for unknown metrics.
func CanonicalMetric(name string) (string, bool) {
	canonical, ok := metricAliases[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

// DefaultUnit returns the unit assumed when a measurement omits one.
func DefaultUnit(metric string) string {
	switch metric {
	case MetricHeartRate:
		return UnitBPM
	case MetricOxygenSaturation:
		return UnitPercent
	case MetricTemperature:
		return UnitCelsius
	case MetricBloodPressure:
		return UnitMMHG
	case MetricRespiratoryRate:
		return UnitBreathsPerMin
	default:
		return ""
	}
}
