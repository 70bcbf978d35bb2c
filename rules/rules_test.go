package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
)

func testRulesConfig() core.RulesConfig {
	return core.RulesConfig{
		HeartRateMax:    100,
		SpO2Min:         95,
		TemperatureMaxF: 100.4,
		HeartRateCombo:  120,
		SpO2Combo:       90,
	}
}

func defaultProfile() *event.ThresholdProfile {
	return &event.ThresholdProfile{
		PatientID:        "P1",
		HeartRate:        event.VitalRange{Min: 60, Max: 100},
		OxygenSaturation: event.VitalRange{Min: 95, Max: 100},
		Temperature:      event.VitalRange{Min: 36, Max: 37.5},
	}
}

func enrichedWith(vitals event.Vitals, thresholds *event.ThresholdProfile) *event.EnrichedTelemetry {
	e := &event.EnrichedTelemetry{
		NormalizedTelemetry: event.NormalizedTelemetry{
			Envelope:         event.NewEnvelope(event.TopicEnriched),
			DeviceID:         "D1",
			PatientID:        "P1",
			ObservedAt:       "2026-01-15T10:30:00.000Z",
			Vitals:           vitals,
			ValidationStatus: event.ValidationValid,
		},
		Thresholds: thresholds,
	}
	return e
}

func ruleIDs(triggered []event.TriggeredRule) []string {
	ids := make([]string, 0, len(triggered))
	for _, r := range triggered {
		ids = append(ids, r.RuleID)
	}
	return ids
}

func TestEvaluateNoRulesOnNormalVitals(t *testing.T) {
	in := enrichedWith(event.Vitals{
		event.MetricHeartRate:        {Value: 72, Unit: event.UnitBPM},
		event.MetricOxygenSaturation: {Value: 97, Unit: event.UnitPercent},
		event.MetricTemperature:      {Value: 37.0, Unit: event.UnitCelsius},
	}, defaultProfile())

	assert.Empty(t, Evaluate(in, testRulesConfig()))
}

func TestEvaluateHeartRateMax(t *testing.T) {
	in := enrichedWith(event.Vitals{
		event.MetricHeartRate: {Value: 110, Unit: event.UnitBPM},
	}, defaultProfile())

	triggered := Evaluate(in, testRulesConfig())
	require.Len(t, triggered, 1)
	assert.Equal(t, RuleHeartRateMax, triggered[0].RuleID)
	assert.Equal(t, event.SeverityWarning, triggered[0].Severity)
	assert.Equal(t, 110.0, triggered[0].Observed)
	assert.Equal(t, 100.0, triggered[0].Threshold)
}

func TestEvaluateSpO2Min(t *testing.T) {
	in := enrichedWith(event.Vitals{
		event.MetricOxygenSaturation: {Value: 92, Unit: event.UnitPercent},
	}, defaultProfile())

	triggered := Evaluate(in, testRulesConfig())
	require.Len(t, triggered, 1)
	assert.Equal(t, RuleSpO2Min, triggered[0].RuleID)
	assert.Equal(t, event.SeverityCritical, triggered[0].Severity)
}

func TestEvaluateBoundaryIsNotABreach(t *testing.T) {
	in := enrichedWith(event.Vitals{
		event.MetricHeartRate:        {Value: 100, Unit: event.UnitBPM},
		event.MetricOxygenSaturation: {Value: 95, Unit: event.UnitPercent},
		event.MetricTemperature:      {Value: 37.5, Unit: event.UnitCelsius},
	}, defaultProfile())

	assert.Empty(t, Evaluate(in, testRulesConfig()))
}

func TestEvaluateCombinedRule(t *testing.T) {
	in := enrichedWith(event.Vitals{
		event.MetricHeartRate:        {Value: 130, Unit: event.UnitBPM},
		event.MetricOxygenSaturation: {Value: 88, Unit: event.UnitPercent},
	}, defaultProfile())

	triggered := Evaluate(in, testRulesConfig())
	ids := ruleIDs(triggered)
	assert.Contains(t, ids, RuleHeartRateMax)
	assert.Contains(t, ids, RuleSpO2Min)
	assert.Contains(t, ids, RuleCombined)
}

func TestEvaluateCombinedRequiresBothBreaches(t *testing.T) {
	cfg := testRulesConfig()

	in := enrichedWith(event.Vitals{
		event.MetricHeartRate:        {Value: 130, Unit: event.UnitBPM},
		event.MetricOxygenSaturation: {Value: 96, Unit: event.UnitPercent},
	}, defaultProfile())
	assert.NotContains(t, ruleIDs(Evaluate(in, cfg)), RuleCombined)

	in = enrichedWith(event.Vitals{
		event.MetricOxygenSaturation: {Value: 85, Unit: event.UnitPercent},
	}, defaultProfile())
	assert.NotContains(t, ruleIDs(Evaluate(in, cfg)), RuleCombined)
}

func TestEvaluateStaticDefaultsWithoutProfile(t *testing.T) {
	in := enrichedWith(event.Vitals{
		event.MetricHeartRate: {Value: 105, Unit: event.UnitBPM},
	}, nil)

	triggered := Evaluate(in, testRulesConfig())
	require.Len(t, triggered, 1)
	assert.Equal(t, 100.0, triggered[0].Threshold)
}

func TestEvaluateProfileOverridesStaticDefault(t *testing.T) {
	profile := defaultProfile()
	profile.HeartRate.Max = 140

	in := enrichedWith(event.Vitals{
		event.MetricHeartRate: {Value: 120, Unit: event.UnitBPM},
	}, profile)

	assert.Empty(t, Evaluate(in, testRulesConfig()))
}

func TestEvaluateTemperatureThresholdConvertsToObservationUnit(t *testing.T) {
	cfg := testRulesConfig()

	// profile ceiling is Celsius, observation Fahrenheit: 37.5C -> 99.5F
	in := enrichedWith(event.Vitals{
		event.MetricTemperature: {Value: 100.0, Unit: event.UnitFahrenheit},
	}, defaultProfile())
	triggered := Evaluate(in, cfg)
	require.Len(t, triggered, 1)
	assert.Equal(t, RuleTempMax, triggered[0].RuleID)
	assert.InDelta(t, 99.5, triggered[0].Threshold, 1e-9)

	// static default is Fahrenheit, observation Celsius: 100.4F -> 38C
	in = enrichedWith(event.Vitals{
		event.MetricTemperature: {Value: 38.5, Unit: event.UnitCelsius},
	}, nil)
	triggered = Evaluate(in, cfg)
	require.Len(t, triggered, 1)
	assert.InDelta(t, 38.0, triggered[0].Threshold, 1e-9)

	// same reading below the converted ceiling does not fire
	in = enrichedWith(event.Vitals{
		event.MetricTemperature: {Value: 37.8, Unit: event.UnitCelsius},
	}, nil)
	assert.Empty(t, Evaluate(in, cfg))
}

func TestEvaluateSkipsAbsentMetrics(t *testing.T) {
	in := enrichedWith(event.Vitals{}, defaultProfile())
	assert.Empty(t, Evaluate(in, testRulesConfig()))
}
