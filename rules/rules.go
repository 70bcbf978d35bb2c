// Package rules evaluates threshold and combined rules against enriched
// telemetry, fuses them with anomaly scores, and emits scored telemetry
// plus alerts when severity exceeds ok.
package rules

import (
	"fmt"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
)

// Rule ids.
const (
	RuleHeartRateMax = "hr_max_exceeded"
	RuleSpO2Min      = "spo2_min_below"
	RuleTempMax      = "temp_max_exceeded"
	RuleCombined     = "hr_high_spo2_low_combined"
)

// RuleVersion is stamped into alert metadata.
const RuleVersion = "v1"

// Evaluate runs the fixed rule set against the event's vitals. Thresholds
// prefer the enriched per-patient profile and fall back to the configured
// static defaults. Orphan events are not evaluated by the caller.
func Evaluate(in *event.EnrichedTelemetry, cfg core.RulesConfig) []event.TriggeredRule {
	var triggered []event.TriggeredRule

	if hr, ok := in.Vitals[event.MetricHeartRate]; ok {
		max := cfg.HeartRateMax
		if in.Thresholds != nil {
			max = in.Thresholds.HeartRate.Max
		}
		if hr.Value > max {
			triggered = append(triggered, event.TriggeredRule{
				RuleID:    RuleHeartRateMax,
				Severity:  event.SeverityWarning,
				Metric:    event.MetricHeartRate,
				Observed:  hr.Value,
				Threshold: max,
				Message:   fmt.Sprintf("heart_rate %g exceeds max %g", hr.Value, max),
			})
		}
	}

	if spo2, ok := in.Vitals[event.MetricOxygenSaturation]; ok {
		min := cfg.SpO2Min
		if in.Thresholds != nil {
			min = in.Thresholds.OxygenSaturation.Min
		}
		if spo2.Value < min {
			triggered = append(triggered, event.TriggeredRule{
				RuleID:    RuleSpO2Min,
				Severity:  event.SeverityCritical,
				Metric:    event.MetricOxygenSaturation,
				Observed:  spo2.Value,
				Threshold: min,
				Message:   fmt.Sprintf("oxygen_saturation %g below min %g", spo2.Value, min),
			})
		}
	}

	if temp, ok := in.Vitals[event.MetricTemperature]; ok {
		max, comparable := tempMaxFor(in, cfg, temp.Unit)
		if comparable && temp.Value > max {
			triggered = append(triggered, event.TriggeredRule{
				RuleID:    RuleTempMax,
				Severity:  event.SeverityWarning,
				Metric:    event.MetricTemperature,
				Observed:  temp.Value,
				Threshold: max,
				Message:   fmt.Sprintf("temperature %g %s exceeds max %g", temp.Value, temp.Unit, max),
			})
		}
	}

	hr, hasHR := in.Vitals[event.MetricHeartRate]
	spo2, hasSpO2 := in.Vitals[event.MetricOxygenSaturation]
	if hasHR && hasSpO2 && hr.Value > cfg.HeartRateCombo && spo2.Value < cfg.SpO2Combo {
		triggered = append(triggered, event.TriggeredRule{
			RuleID:    RuleCombined,
			Severity:  event.SeverityCritical,
			Metric:    event.MetricHeartRate,
			Observed:  hr.Value,
			Threshold: cfg.HeartRateCombo,
			Message: fmt.Sprintf("heart_rate %g with oxygen_saturation %g indicates combined deterioration",
				hr.Value, spo2.Value),
		})
	}

	return triggered
}

// tempMaxFor resolves the temperature ceiling in the vital's declared unit.
// Profile bounds are Celsius; the static default is Fahrenheit. The
// threshold converts, never the observation.
func tempMaxFor(in *event.EnrichedTelemetry, cfg core.RulesConfig, unit string) (float64, bool) {
	if in.Thresholds != nil {
		maxC := in.Thresholds.Temperature.Max
		if unit == event.UnitFahrenheit {
			return maxC*9.0/5.0 + 32.0, true
		}
		return maxC, true
	}
	maxF := cfg.TemperatureMaxF
	if unit == event.UnitFahrenheit {
		return maxF, true
	}
	return (maxF - 32.0) * 5.0 / 9.0, true
}
