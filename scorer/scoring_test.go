package scorer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
)

func testScorerConfig() core.ScorerConfig {
	return core.ScorerConfig{
		WindowSize:  100,
		MinSamples:  10,
		BaselineTTL: 7 * 24 * time.Hour,
	}
}

func newTestEngine(t *testing.T) (*Engine, *MemoryBaselineStore) {
	t.Helper()
	store := NewMemoryBaselineStore(100, time.Hour)
	return NewEngine(store, nil, testScorerConfig(), nil), store
}

func seedBaseline(t *testing.T, store BaselineStore, patientID, metric, unit string, values ...float64) {
	t.Helper()
	for _, v := range values {
		require.NoError(t, store.Append(context.Background(), patientID, metric, unit, v))
	}
}

func steady(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value + float64(i%5) // a little spread so stddev is not degenerate
	}
	return out
}

func TestScoreValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Score(ctx, &ScoreVitalsRequest{Vitals: event.Vitals{
		event.MetricHeartRate: {Value: 72, Unit: event.UnitBPM},
	}})
	assert.True(t, core.IsValidation(err))

	_, err = engine.Score(ctx, &ScoreVitalsRequest{PatientID: "P1"})
	assert.True(t, core.IsValidation(err))
}

func TestScoreBootstrapInsideHardRange(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp, err := engine.Score(context.Background(), &ScoreVitalsRequest{
		PatientID: "P1",
		Vitals: event.Vitals{
			event.MetricHeartRate: {Value: 72, Unit: event.UnitBPM},
		},
	})
	require.NoError(t, err)

	ms := resp.AnomalyScores[event.MetricHeartRate]
	assert.True(t, ms.Bootstrap)
	assert.Equal(t, "normal", ms.Severity)
	assert.InDelta(t, 0.2, ms.Score, 1e-9)
	assert.Zero(t, ms.BaselineSamples)
}

func TestScoreBootstrapOutsideHardRange(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp, err := engine.Score(context.Background(), &ScoreVitalsRequest{
		PatientID: "P1",
		Vitals: event.Vitals{
			event.MetricOxygenSaturation: {Value: 40, Unit: event.UnitPercent},
		},
	})
	require.NoError(t, err)

	ms := resp.AnomalyScores[event.MetricOxygenSaturation]
	assert.True(t, ms.Bootstrap)
	assert.Equal(t, "low", ms.Severity)
	// spo2 hard range [50,100]: distance 10 over half-span 25
	assert.InDelta(t, 0.2+0.3*(10.0/25.0), ms.Score, 1e-9)
}

func TestScoreAgainstBaseline(t *testing.T) {
	engine, store := newTestEngine(t)
	seedBaseline(t, store, "P1", event.MetricHeartRate, event.UnitBPM, steady(70, 20)...)

	resp, err := engine.Score(context.Background(), &ScoreVitalsRequest{
		PatientID: "P1",
		Vitals: event.Vitals{
			event.MetricHeartRate: {Value: 72, Unit: event.UnitBPM},
		},
	})
	require.NoError(t, err)

	ms := resp.AnomalyScores[event.MetricHeartRate]
	assert.False(t, ms.Bootstrap)
	assert.Equal(t, 20, ms.BaselineSamples)
	assert.Equal(t, "normal", ms.Severity)

	// far above the baseline scores critical
	resp, err = engine.Score(context.Background(), &ScoreVitalsRequest{
		PatientID: "P1",
		Vitals: event.Vitals{
			event.MetricHeartRate: {Value: 180, Unit: event.UnitBPM},
		},
	})
	require.NoError(t, err)
	ms = resp.AnomalyScores[event.MetricHeartRate]
	assert.Equal(t, "critical", ms.Severity)
	assert.Greater(t, ms.ZScore, 4.0)
}

func TestScoreAppendsToBaseline(t *testing.T) {
	engine, store := newTestEngine(t)

	_, err := engine.Score(context.Background(), &ScoreVitalsRequest{
		PatientID: "P1",
		Vitals: event.Vitals{
			event.MetricHeartRate: {Value: 72, Unit: event.UnitBPM},
		},
	})
	require.NoError(t, err)

	samples, err := store.Samples(context.Background(), "P1", event.MetricHeartRate, event.UnitBPM)
	require.NoError(t, err)
	assert.Equal(t, []float64{72}, samples)
}

func TestScoreSkipsUnscoreableMetrics(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp, err := engine.Score(context.Background(), &ScoreVitalsRequest{
		PatientID: "P1",
		Vitals: event.Vitals{
			event.MetricHeartRate:       {Value: 72, Unit: event.UnitBPM},
			event.MetricRespiratoryRate: {Value: 16, Unit: event.UnitBreathsPerMin},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, resp.AnomalyScores, event.MetricHeartRate)
	assert.NotContains(t, resp.AnomalyScores, event.MetricRespiratoryRate)
}

func TestOverallRiskRenormalizesWeights(t *testing.T) {
	engine, store := newTestEngine(t)
	seedBaseline(t, store, "P1", event.MetricHeartRate, event.UnitBPM, steady(70, 20)...)
	seedBaseline(t, store, "P1", event.MetricOxygenSaturation, event.UnitPercent, steady(96, 20)...)

	resp, err := engine.Score(context.Background(), &ScoreVitalsRequest{
		PatientID: "P1",
		Vitals: event.Vitals{
			event.MetricHeartRate:        {Value: 72, Unit: event.UnitBPM},
			event.MetricOxygenSaturation: {Value: 97, Unit: event.UnitPercent},
		},
	})
	require.NoError(t, err)

	hr := resp.AnomalyScores[event.MetricHeartRate].Score
	spo2 := resp.AnomalyScores[event.MetricOxygenSaturation].Score
	// hr and spo2 carry equal weight, so the overall is their mean
	assert.InDelta(t, (hr+spo2)/2, resp.OverallRiskScore, 1e-9)
	assert.GreaterOrEqual(t, resp.OverallRiskScore, 0.0)
	assert.LessOrEqual(t, resp.OverallRiskScore, 1.0)
}

func TestOverallRiskAlwaysInUnitInterval(t *testing.T) {
	engine, store := newTestEngine(t)
	seedBaseline(t, store, "P1", event.MetricHeartRate, event.UnitBPM, steady(70, 20)...)
	seedBaseline(t, store, "P1", event.MetricOxygenSaturation, event.UnitPercent, steady(96, 20)...)
	seedBaseline(t, store, "P1", event.MetricTemperature, event.UnitFahrenheit, steady(98, 20)...)

	extremes := []event.Vitals{
		{
			event.MetricHeartRate:        {Value: 240, Unit: event.UnitBPM},
			event.MetricOxygenSaturation: {Value: 50, Unit: event.UnitPercent},
			event.MetricTemperature:      {Value: 113, Unit: event.UnitFahrenheit},
		},
		{
			event.MetricHeartRate: {Value: 70, Unit: event.UnitBPM},
		},
	}
	for _, vitals := range extremes {
		resp, err := engine.Score(context.Background(), &ScoreVitalsRequest{PatientID: "P1", Vitals: vitals})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, resp.OverallRiskScore, 0.0)
		assert.LessOrEqual(t, resp.OverallRiskScore, 1.0)
		for metric, ms := range resp.AnomalyScores {
			assert.GreaterOrEqual(t, ms.Score, 0.0, metric)
			assert.LessOrEqual(t, ms.Score, 1.0, metric)
		}
	}
}

func TestDedupeBySourceEventSkipsBaselineUpdate(t *testing.T) {
	store := NewMemoryBaselineStore(100, time.Hour)
	dedupe := core.NewMemoryStore()
	t.Cleanup(dedupe.Close)

	cfg := testScorerConfig()
	cfg.DedupeBySourceEvent = true
	cfg.DedupeTTL = time.Minute
	engine := NewEngine(store, dedupe, cfg, nil)

	req := &ScoreVitalsRequest{
		PatientID:     "P1",
		SourceEventID: "evt_1",
		Vitals: event.Vitals{
			event.MetricHeartRate: {Value: 72, Unit: event.UnitBPM},
		},
	}
	for i := 0; i < 3; i++ {
		_, err := engine.Score(context.Background(), req)
		require.NoError(t, err)
	}

	samples, err := store.Samples(context.Background(), "P1", event.MetricHeartRate, event.UnitBPM)
	require.NoError(t, err)
	// replays of the same source event must not inflate the baseline
	assert.Len(t, samples, 1)

	// a fresh source event appends again
	req.SourceEventID = "evt_2"
	_, err = engine.Score(context.Background(), req)
	require.NoError(t, err)
	samples, err = store.Samples(context.Background(), "P1", event.MetricHeartRate, event.UnitBPM)
	require.NoError(t, err)
	assert.Len(t, samples, 2)
}

func TestScoreSurvivesBrokenStore(t *testing.T) {
	engine := NewEngine(brokenBaselineStore{}, nil, testScorerConfig(), nil)

	resp, err := engine.Score(context.Background(), &ScoreVitalsRequest{
		PatientID: "P1",
		Vitals: event.Vitals{
			event.MetricHeartRate: {Value: 72, Unit: event.UnitBPM},
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.AnomalyScores[event.MetricHeartRate].Bootstrap)
}
