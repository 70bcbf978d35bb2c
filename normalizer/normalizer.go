// Package normalizer consumes raw telemetry, canonicalizes metric names,
// clamps values into physiological windows, normalizes timestamps, and
// publishes NormalizedTelemetry. Normalization is a pure function of the
// input; envelope derivation carries trace and source linkage.
package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pulseward/pulseward/broker"
	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
)

// Normalizer is the stage handler.
type Normalizer struct {
	cfg      core.NormalizeConfig
	producer *broker.Producer
	logger   core.Logger
}

// New creates the stage. producer may be nil in unit tests that only call
// Normalize.
func New(cfg core.NormalizeConfig, producer *broker.Producer, logger core.Logger) *Normalizer {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Normalizer{cfg: cfg, producer: producer, logger: logger}
}

// Handle is the broker consumer entry point for the raw topic.
func (n *Normalizer) Handle(ctx context.Context, payload []byte) error {
	var raw event.RawTelemetry
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("%w: unmarshaling raw telemetry: %v", core.ErrValidation, err)
	}
	if err := raw.Validate(); err != nil {
		return err
	}

	normalized := n.Normalize(&raw)

	if err := n.producer.Publish(ctx, event.TopicNormalized, raw.DeviceID, normalized.EventID, normalized); err != nil {
		return err
	}
	n.logger.Debug("telemetry normalized", map[string]interface{}{
		"event_id":          normalized.EventID,
		"trace_id":          normalized.TraceID,
		"source_event_id":   normalized.SourceEventID,
		"validation_status": normalized.ValidationStatus,
	})
	return nil
}

// Normalize converts a raw event into its normalized form.
func (n *Normalizer) Normalize(raw *event.RawTelemetry) *event.NormalizedTelemetry {
	vitals := event.Vitals{}
	var warnings []string
	clamped := false

	for _, m := range raw.Measurements {
		canonical, ok := event.CanonicalMetric(m.Metric)
		if !ok {
			n.logger.Warn("dropping unknown metric", map[string]interface{}{
				"metric":    m.Metric,
				"device_id": raw.DeviceID,
				"event_id":  raw.EventID,
			})
			warnings = append(warnings, fmt.Sprintf("unknown metric %q dropped", m.Metric))
			continue
		}

		unit := canonicalUnit(canonical, m.Unit)
		value, wasClamped := n.clamp(canonical, unit, m.Value)
		if wasClamped {
			clamped = true
			warnings = append(warnings, fmt.Sprintf("%s clamped from %g to %g %s", canonical, m.Value, value, unit))
			n.logger.Warn("value clamped", map[string]interface{}{
				"metric":    canonical,
				"raw":       m.Value,
				"clamped":   value,
				"unit":      unit,
				"device_id": raw.DeviceID,
				"event_id":  raw.EventID,
			})
		}
		vitals[canonical] = event.VitalSign{Value: value, Unit: unit}
	}

	observedAt, substituted := n.normalizeTimestamp(raw)

	status := event.ValidationValid
	switch {
	case clamped:
		status = event.ValidationClamped
	case substituted:
		status = event.ValidationTimestampSubstituted
	}

	return &event.NormalizedTelemetry{
		Envelope:         raw.Envelope.Derive(event.TopicNormalized),
		DeviceID:         raw.DeviceID,
		ObservedAt:       observedAt,
		Vitals:           vitals,
		ValidationStatus: status,
		NormalizationMetadata: event.NormalizationMetadata{
			NormalizedAt: event.Now(),
			RulesVersion: n.cfg.RulesVersion,
			Warnings:     warnings,
		},
	}
}

// clamp bounds the value for the clamped metrics; blood pressure and
// respiratory rate pass through untouched.
func (n *Normalizer) clamp(metric, unit string, value float64) (float64, bool) {
	var lo, hi float64
	switch metric {
	case event.MetricHeartRate:
		lo, hi = n.cfg.HeartRateMin, n.cfg.HeartRateMax
	case event.MetricOxygenSaturation:
		lo, hi = n.cfg.SpO2Min, n.cfg.SpO2Max
	case event.MetricTemperature:
		lo, hi = n.cfg.TempMinC, n.cfg.TempMaxC
		if unit == event.UnitFahrenheit {
			lo, hi = celsiusToFahrenheit(lo), celsiusToFahrenheit(hi)
		}
	default:
		return value, false
	}
	if value < lo {
		return lo, true
	}
	if value > hi {
		return hi, true
	}
	return value, false
}

func (n *Normalizer) normalizeTimestamp(raw *event.RawTelemetry) (string, bool) {
	t, err := event.ParseTimestamp(raw.RecordedAt)
	if err != nil {
		n.logger.Warn("substituting timestamp", map[string]interface{}{
			"recorded_at": raw.RecordedAt,
			"device_id":   raw.DeviceID,
			"event_id":    raw.EventID,
		})
		return event.Now(), true
	}
	return event.FormatTime(t), false
}

// canonicalUnit normalizes the declared unit, defaulting when absent.
// Temperature keeps its declared scale; no implicit conversion happens
// here or anywhere downstream.
func canonicalUnit(metric, unit string) string {
	if metric == event.MetricTemperature {
		switch strings.ToLower(strings.TrimSpace(unit)) {
		case "f", "°f", "fahrenheit":
			return event.UnitFahrenheit
		case "c", "°c", "celsius", "":
			return event.UnitCelsius
		default:
			return event.UnitCelsius
		}
	}
	if unit == "" {
		return event.DefaultUnit(metric)
	}
	return strings.ToLower(strings.TrimSpace(unit))
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9.0/5.0 + 32.0
}
