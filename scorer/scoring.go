package scorer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
	"github.com/pulseward/pulseward/rpc"
)

// ScoreVitalsRequest is the scoring RPC input. Thresholds are accepted for
// context but scoring is purely statistical.
type ScoreVitalsRequest struct {
	PatientID     string                  `json:"patient_id"`
	DeviceID      string                  `json:"device_id,omitempty"`
	Vitals        event.Vitals            `json:"vitals"`
	Thresholds    *event.ThresholdProfile `json:"thresholds,omitempty"`
	SourceEventID string                  `json:"source_event_id,omitempty"`
}

// ScoreVitalsResponse carries per-metric scores and the weighted overall
// risk.
type ScoreVitalsResponse struct {
	Status           rpc.ScoreStatus              `json:"status"`
	Message          string                       `json:"message,omitempty"`
	PatientID        string                       `json:"patient_id"`
	AnomalyScores    map[string]event.MetricScore `json:"anomaly_scores"`
	OverallRiskScore float64                      `json:"overall_risk_score"`
	Metadata         map[string]string            `json:"metadata,omitempty"`
}

// Metric weights for the overall risk score. Missing metrics renormalize
// the remaining weights.
var riskWeights = map[string]float64{
	event.MetricHeartRate:        0.35,
	event.MetricOxygenSaturation: 0.35,
	event.MetricTemperature:      0.30,
}

// Hard physiological ranges used by the bootstrap path, per declared unit.
func hardRange(metric, unit string) (lo, hi float64, ok bool) {
	switch metric {
	case event.MetricHeartRate:
		return 20, 240, true
	case event.MetricOxygenSaturation:
		return 50, 100, true
	case event.MetricTemperature:
		if unit == event.UnitFahrenheit {
			return 86, 113, true
		}
		return 30, 45, true
	default:
		return 0, 0, false
	}
}

// Engine scores vitals against rolling baselines.
type Engine struct {
	store  BaselineStore
	dedupe core.KeyValueStore
	cfg    core.ScorerConfig
	logger core.Logger
}

// NewEngine creates a scoring engine. dedupe may be nil when the
// source-event dedupe knob is off.
func NewEngine(store BaselineStore, dedupe core.KeyValueStore, cfg core.ScorerConfig, logger core.Logger) *Engine {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Engine{store: store, dedupe: dedupe, cfg: cfg, logger: logger}
}

// Score evaluates every scoreable vital in the request, updates the
// baselines, and aggregates the overall risk.
func (e *Engine) Score(ctx context.Context, req *ScoreVitalsRequest) (*ScoreVitalsResponse, error) {
	if req.PatientID == "" {
		return nil, fmt.Errorf("%w: patient_id is required", core.ErrValidation)
	}
	if len(req.Vitals) == 0 {
		return nil, fmt.Errorf("%w: no vitals to score", core.ErrValidation)
	}

	updateBaselines := e.shouldUpdateBaselines(ctx, req.SourceEventID)

	scores := make(map[string]event.MetricScore)
	var weightedSum, weightTotal float64

	for metric, vital := range req.Vitals {
		weight, scoreable := riskWeights[metric]
		if !scoreable {
			continue
		}

		ms := e.scoreMetric(ctx, req.PatientID, metric, vital)
		scores[metric] = ms
		weightedSum += weight * ms.Score
		weightTotal += weight

		if updateBaselines {
			if err := e.store.Append(ctx, req.PatientID, metric, vital.Unit, vital.Value); err != nil {
				e.logger.Warn("baseline update failed", map[string]interface{}{
					"patient_id": req.PatientID,
					"metric":     metric,
					"error":      err.Error(),
				})
			}
		}
	}

	var overall float64
	if weightTotal > 0 {
		overall = weightedSum / weightTotal
	}

	return &ScoreVitalsResponse{
		Status:           rpc.ScoreStatusSuccess,
		PatientID:        req.PatientID,
		AnomalyScores:    scores,
		OverallRiskScore: overall,
		Metadata: map[string]string{
			"scored_at": event.Now(),
		},
	}, nil
}

func (e *Engine) scoreMetric(ctx context.Context, patientID, metric string, vital event.VitalSign) event.MetricScore {
	samples, err := e.store.Samples(ctx, patientID, metric, vital.Unit)
	if err != nil {
		e.logger.Warn("baseline read failed, bootstrapping", map[string]interface{}{
			"patient_id": patientID,
			"metric":     metric,
			"error":      err.Error(),
		})
		samples = nil
	}

	if len(samples) < e.cfg.MinSamples {
		score, severity := bootstrapScore(metric, vital.Unit, vital.Value)
		return event.MetricScore{
			Score:           score,
			Severity:        severity,
			BaselineSamples: len(samples),
			Bootstrap:       true,
		}
	}

	mean, stddev := stats(samples)
	z := zScore(vital.Value, mean, stddev)
	score, severity := mapZScore(z)
	return event.MetricScore{
		Score:           score,
		ZScore:          z,
		Severity:        severity,
		BaselineSamples: len(samples),
	}
}

// bootstrapScore is used while the baseline has too few samples: a score in
// [0.2, 0.5] growing linearly with the distance outside the metric's hard
// physiological range. Values comfortably inside the range are normal.
func bootstrapScore(metric, unit string, value float64) (float64, string) {
	lo, hi, ok := hardRange(metric, unit)
	if !ok {
		return 0.2, "normal"
	}
	span := hi - lo
	distance := math.Max(0, math.Max(lo-value, value-hi))
	if distance == 0 {
		return 0.2, "normal"
	}
	frac := math.Min(1.0, distance/(0.5*span))
	return 0.2 + 0.3*frac, "low"
}

// shouldUpdateBaselines applies the optional source-event dedupe: when
// enabled, a source_event_id already seen within the dedupe TTL skips the
// baseline append so replays do not double-count samples.
func (e *Engine) shouldUpdateBaselines(ctx context.Context, sourceEventID string) bool {
	if !e.cfg.DedupeBySourceEvent || e.dedupe == nil || sourceEventID == "" {
		return true
	}
	key := "scorer:dedupe:" + sourceEventID
	if seen, err := e.dedupe.Exists(ctx, key); err == nil && seen {
		return false
	}
	ttl := e.cfg.DedupeTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := e.dedupe.Set(ctx, key, "1", ttl); err != nil {
		e.logger.Warn("dedupe marker write failed", map[string]interface{}{
			"source_event_id": sourceEventID,
			"error":           err.Error(),
		})
	}
	return true
}
