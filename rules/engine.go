package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pulseward/pulseward/broker"
	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
	"github.com/pulseward/pulseward/scorer"
)

// Engine is the rules stage: it acquires anomaly scores, evaluates the rule
// set, and publishes scored telemetry plus conditional alerts.
type Engine struct {
	scorer   scorer.Scorer
	producer *broker.Producer
	cfg      core.RulesConfig
	logger   core.Logger
}

// NewEngine creates the stage. producer may be nil in unit tests that only
// call Process.
func NewEngine(sc scorer.Scorer, producer *broker.Producer, cfg core.RulesConfig, logger core.Logger) *Engine {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Engine{scorer: sc, producer: producer, cfg: cfg, logger: logger}
}

// Handle is the broker consumer entry point for the enriched topic. The
// input is acknowledged only if every publish succeeds, so a failed alert
// publish redelivers the input (duplicate scored events are tolerated
// downstream).
func (e *Engine) Handle(ctx context.Context, payload []byte) error {
	var in event.EnrichedTelemetry
	if err := json.Unmarshal(payload, &in); err != nil {
		return fmt.Errorf("%w: unmarshaling enriched telemetry: %v", core.ErrValidation, err)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	scored, alert := e.Process(ctx, &in)

	if err := e.producer.Publish(ctx, event.TopicScored, in.DeviceID, scored.EventID, scored); err != nil {
		return err
	}
	if alert != nil {
		if err := e.producer.Publish(ctx, event.TopicAlerts, in.DeviceID, alert.EventID, alert); err != nil {
			return err
		}
		e.logger.Info("alert raised", map[string]interface{}{
			"alert_id":   alert.AlertID,
			"trace_id":   alert.TraceID,
			"patient_id": alert.PatientID,
			"device_id":  alert.DeviceID,
			"severity":   alert.Severity,
			"alert_type": alert.AlertType,
		})
	}
	return nil
}

// Process scores and evaluates one enriched event. The scored event is
// always produced; the alert is non-nil iff severity exceeds ok.
func (e *Engine) Process(ctx context.Context, in *event.EnrichedTelemetry) (*event.ScoredTelemetry, *event.Alert) {
	scored := &event.ScoredTelemetry{
		EnrichedTelemetry: *in,
		AnomalyScores:     map[string]event.MetricScore{},
		Severity:          event.SeverityOK,
	}
	scored.Envelope = in.Envelope.Derive(event.TopicScored)

	if in.Orphan {
		// no patient context: no scoring, no rules, no alert
		return scored, nil
	}

	anomalySeverity := e.acquireScores(ctx, in, scored)

	triggered := Evaluate(in, e.cfg)
	scored.RulesTriggered = triggered

	ruleSeverity := event.SeverityOK
	for _, r := range triggered {
		ruleSeverity = event.MaxSeverity(ruleSeverity, r.Severity)
	}
	scored.Severity = event.MaxSeverity(ruleSeverity, anomalySeverity)

	if scored.Severity == event.SeverityOK {
		return scored, nil
	}
	return scored, e.buildAlert(in, scored)
}

// acquireScores calls the anomaly scorer and folds the response into the
// scored event. Scorer failure degrades to zero scores, never blocks.
func (e *Engine) acquireScores(ctx context.Context, in *event.EnrichedTelemetry, scored *event.ScoredTelemetry) event.Severity {
	if e.scorer == nil || len(in.Vitals) == 0 {
		return event.SeverityOK
	}

	resp, err := e.scorer.ScoreVitals(ctx, &scorer.ScoreVitalsRequest{
		PatientID:     in.PatientID,
		DeviceID:      in.DeviceID,
		Vitals:        in.Vitals,
		Thresholds:    in.Thresholds,
		SourceEventID: in.SourceEventID,
	})
	if err != nil {
		scored.AnomalyDegraded = true
		e.logger.Warn("anomaly scoring degraded", map[string]interface{}{
			"patient_id": in.PatientID,
			"event_id":   in.EventID,
			"error":      err.Error(),
		})
		return event.SeverityOK
	}

	scored.AnomalyScores = resp.AnomalyScores
	scored.OverallRiskScore = resp.OverallRiskScore

	severity := event.SeverityOK
	for _, ms := range resp.AnomalyScores {
		severity = event.MaxSeverity(severity, event.FromScorer(ms.Severity))
	}
	return severity
}

func (e *Engine) buildAlert(in *event.EnrichedTelemetry, scored *event.ScoredTelemetry) *event.Alert {
	alert := &event.Alert{
		Envelope:       in.Envelope.Derive(event.TopicAlerts),
		AlertID:        core.NewAlertID(),
		PatientID:      in.PatientID,
		DeviceID:       in.DeviceID,
		Severity:       scored.Severity,
		AlertType:      alertType(scored),
		Condition:      condition(scored),
		RulesTriggered: scored.RulesTriggered,
		Details: event.AlertDetails{
			Metrics:          in.Vitals,
			AnomalyScores:    scored.AnomalyScores,
			OverallRiskScore: scored.OverallRiskScore,
		},
		AlertMetadata: event.AlertMetadata{
			RaisedBy:    "rules-engine",
			RuleVersion: RuleVersion,
		},
	}
	return alert
}

// alertType classifies the alert: threshold rules on individual vitals
// raise vital_sign_anomaly; the combined rule alone raises
// critical_condition; a purely score-driven alert is multi_vital_anomaly
// when more than one metric is anomalous.
func alertType(scored *event.ScoredTelemetry) string {
	var thresholdRules, combinedRules int
	for _, r := range scored.RulesTriggered {
		if r.RuleID == RuleCombined {
			combinedRules++
		} else {
			thresholdRules++
		}
	}
	switch {
	case thresholdRules > 0:
		return event.AlertTypeVitalSign
	case combinedRules > 0:
		return event.AlertTypeCriticalCondition
	default:
		anomalous := 0
		for _, ms := range scored.AnomalyScores {
			if event.FromScorer(ms.Severity) != event.SeverityOK {
				anomalous++
			}
		}
		if anomalous > 1 {
			return event.AlertTypeMultiVital
		}
		return event.AlertTypeVitalSign
	}
}

// condition summarizes the first triggering rule, or the anomaly signal
// when no rule fired.
func condition(scored *event.ScoredTelemetry) string {
	if len(scored.RulesTriggered) > 0 {
		return scored.RulesTriggered[0].Message
	}
	return fmt.Sprintf("anomaly risk score %.2f", scored.OverallRiskScore)
}
