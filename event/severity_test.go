package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityOrdering(t *testing.T) {
	ordered := []Severity{SeverityOK, SeverityLow, SeverityMedium, SeverityWarning, SeverityHigh, SeverityCritical}
	for i := 1; i < len(ordered); i++ {
		assert.True(t, ordered[i].Exceeds(ordered[i-1]),
			"%s should exceed %s", ordered[i], ordered[i-1])
	}
}

func TestMaxSeverity(t *testing.T) {
	assert.Equal(t, SeverityOK, MaxSeverity())
	assert.Equal(t, SeverityOK, MaxSeverity(SeverityOK, SeverityOK))
	assert.Equal(t, SeverityCritical, MaxSeverity(SeverityWarning, SeverityCritical, SeverityLow))
	assert.Equal(t, SeverityWarning, MaxSeverity(SeverityLow, SeverityWarning))
}

func TestFromScorer(t *testing.T) {
	assert.Equal(t, SeverityOK, FromScorer("normal"))
	assert.Equal(t, SeverityOK, FromScorer(""))
	assert.Equal(t, SeverityLow, FromScorer("low"))
	assert.Equal(t, SeverityMedium, FromScorer("medium"))
	assert.Equal(t, SeverityHigh, FromScorer("high"))
	assert.Equal(t, SeverityCritical, FromScorer("critical"))
	assert.Equal(t, SeverityOK, FromScorer("unrecognized"))
}

func TestCanonicalMetricAliases(t *testing.T) {
	tests := map[string]string{
		"hr":        MetricHeartRate,
		"HeartRate": MetricHeartRate,
		"pulse":     MetricHeartRate,
		"SpO2":      MetricOxygenSaturation,
		"o2sat":     MetricOxygenSaturation,
		"o2":        MetricOxygenSaturation,
		"temp":      MetricTemperature,
		"body_temp": MetricTemperature,
		" bp ":      MetricBloodPressure,
		"rr":        MetricRespiratoryRate,
	}
	for alias, want := range tests {
		got, ok := CanonicalMetric(alias)
		assert.True(t, ok, "alias %q unmapped", alias)
		assert.Equal(t, want, got)
	}

	_, ok := CanonicalMetric("glucose")
	assert.False(t, ok)
}
