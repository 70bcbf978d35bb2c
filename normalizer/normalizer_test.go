package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
)

func testNormalizeConfig() core.NormalizeConfig {
	return core.NormalizeConfig{
		HeartRateMin: 20,
		HeartRateMax: 240,
		SpO2Min:      50,
		SpO2Max:      100,
		TempMinC:     30,
		TempMaxC:     45,
		RulesVersion: "v1",
	}
}

func rawWith(measurements ...event.Measurement) *event.RawTelemetry {
	return &event.RawTelemetry{
		Envelope:     event.NewEnvelope(event.TopicRaw),
		DeviceID:     "D1",
		RecordedAt:   "2026-01-15T10:30:00Z",
		Measurements: measurements,
	}
}

func TestNormalizeCanonicalizesAliases(t *testing.T) {
	n := New(testNormalizeConfig(), nil, nil)

	out := n.Normalize(rawWith(
		event.Measurement{Metric: "hr", Value: 72, Unit: "bpm"},
		event.Measurement{Metric: "o2sat", Value: 97, Unit: "percent"},
		event.Measurement{Metric: "body_temp", Value: 37.0, Unit: "c"},
	))

	require.Contains(t, out.Vitals, event.MetricHeartRate)
	require.Contains(t, out.Vitals, event.MetricOxygenSaturation)
	require.Contains(t, out.Vitals, event.MetricTemperature)
	assert.Equal(t, 72.0, out.Vitals[event.MetricHeartRate].Value)
	assert.Equal(t, event.UnitCelsius, out.Vitals[event.MetricTemperature].Unit)
	assert.Equal(t, event.ValidationValid, out.ValidationStatus)
	assert.Empty(t, out.NormalizationMetadata.Warnings)
}

func TestNormalizeDerivesEnvelope(t *testing.T) {
	n := New(testNormalizeConfig(), nil, nil)
	raw := rawWith(event.Measurement{Metric: "hr", Value: 72, Unit: "bpm"})

	out := n.Normalize(raw)
	assert.NotEqual(t, raw.EventID, out.EventID)
	assert.Equal(t, raw.TraceID, out.TraceID)
	assert.Equal(t, raw.EventID, out.SourceEventID)
	assert.Equal(t, event.TopicNormalized, out.EventType)
	assert.Equal(t, "v1", out.NormalizationMetadata.RulesVersion)
}

func TestNormalizeClampsOutOfRangeHeartRate(t *testing.T) {
	n := New(testNormalizeConfig(), nil, nil)

	out := n.Normalize(rawWith(event.Measurement{Metric: "hr", Value: 500, Unit: "bpm"}))

	assert.Equal(t, 240.0, out.Vitals[event.MetricHeartRate].Value)
	assert.Equal(t, event.ValidationClamped, out.ValidationStatus)
	require.Len(t, out.NormalizationMetadata.Warnings, 1)
	assert.Contains(t, out.NormalizationMetadata.Warnings[0], "heart_rate clamped")
}

func TestNormalizeClampWindowsPerUnit(t *testing.T) {
	n := New(testNormalizeConfig(), nil, nil)

	cases := []struct {
		name   string
		in     event.Measurement
		metric string
		want   float64
		status string
	}{
		{"hr below floor", event.Measurement{Metric: "hr", Value: 5, Unit: "bpm"}, event.MetricHeartRate, 20, event.ValidationClamped},
		{"spo2 above 100", event.Measurement{Metric: "spo2", Value: 104, Unit: "percent"}, event.MetricOxygenSaturation, 100, event.ValidationClamped},
		{"temp celsius high", event.Measurement{Metric: "temp", Value: 52, Unit: "c"}, event.MetricTemperature, 45, event.ValidationClamped},
		{"temp fahrenheit high", event.Measurement{Metric: "temp", Value: 120, Unit: "f"}, event.MetricTemperature, 113, event.ValidationClamped},
		{"temp fahrenheit in window", event.Measurement{Metric: "temp", Value: 98.6, Unit: "f"}, event.MetricTemperature, 98.6, event.ValidationValid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := n.Normalize(rawWith(tc.in))
			assert.Equal(t, tc.want, out.Vitals[tc.metric].Value)
			assert.Equal(t, tc.status, out.ValidationStatus)
		})
	}
}

func TestNormalizePreservesTemperatureUnit(t *testing.T) {
	n := New(testNormalizeConfig(), nil, nil)

	out := n.Normalize(rawWith(event.Measurement{Metric: "temp", Value: 98.6, Unit: "F"}))
	assert.Equal(t, event.UnitFahrenheit, out.Vitals[event.MetricTemperature].Unit)
	assert.Equal(t, 98.6, out.Vitals[event.MetricTemperature].Value)
}

func TestNormalizeDropsUnknownMetrics(t *testing.T) {
	n := New(testNormalizeConfig(), nil, nil)

	out := n.Normalize(rawWith(
		event.Measurement{Metric: "hr", Value: 72, Unit: "bpm"},
		event.Measurement{Metric: "steps", Value: 4200, Unit: "count"},
	))

	assert.Len(t, out.Vitals, 1)
	require.Len(t, out.NormalizationMetadata.Warnings, 1)
	assert.Contains(t, out.NormalizationMetadata.Warnings[0], `unknown metric "steps" dropped`)
	// an unknown metric alone does not degrade the validation status
	assert.Equal(t, event.ValidationValid, out.ValidationStatus)
}

func TestNormalizeSubstitutesBadTimestamp(t *testing.T) {
	n := New(testNormalizeConfig(), nil, nil)
	raw := rawWith(event.Measurement{Metric: "hr", Value: 72, Unit: "bpm"})
	raw.RecordedAt = "half past ten"

	before := time.Now().UTC().Add(-time.Second)
	out := n.Normalize(raw)

	assert.Equal(t, event.ValidationTimestampSubstituted, out.ValidationStatus)
	got, err := event.ParseTimestamp(out.ObservedAt)
	require.NoError(t, err)
	assert.True(t, got.After(before))
}

func TestNormalizeClampOutranksTimestampSubstitution(t *testing.T) {
	n := New(testNormalizeConfig(), nil, nil)
	raw := rawWith(event.Measurement{Metric: "hr", Value: 500, Unit: "bpm"})
	raw.RecordedAt = ""

	out := n.Normalize(raw)
	assert.Equal(t, event.ValidationClamped, out.ValidationStatus)
}

func TestNormalizeNumericTimestamps(t *testing.T) {
	n := New(testNormalizeConfig(), nil, nil)
	raw := rawWith(event.Measurement{Metric: "hr", Value: 72, Unit: "bpm"})
	raw.RecordedAt = "1705314600"

	out := n.Normalize(raw)
	assert.Equal(t, event.ValidationValid, out.ValidationStatus)
	assert.Equal(t, "2024-01-15T10:30:00.000Z", out.ObservedAt)
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New(testNormalizeConfig(), nil, nil)
	raw := rawWith(
		event.Measurement{Metric: "hr", Value: 500, Unit: "bpm"},
		event.Measurement{Metric: "temp", Value: 98.6, Unit: "f"},
	)

	a := n.Normalize(raw)
	b := n.Normalize(raw)

	assert.Equal(t, a.Vitals, b.Vitals)
	assert.Equal(t, a.ValidationStatus, b.ValidationStatus)
	assert.Equal(t, a.ObservedAt, b.ObservedAt)
	assert.Equal(t, a.SourceEventID, b.SourceEventID)
}
