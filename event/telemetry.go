package event

// Measurement is a single reading as submitted by a device.
type Measurement struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
}

// VitalSign is a normalized reading. Unit is canonical for the metric;
// temperature keeps its declared unit, never silently converted.
type VitalSign struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Vitals maps canonical metric names to readings.
type Vitals map[string]VitalSign

// RawTelemetry is the Gateway's output on telemetry.raw. RecordedAt is the
// device-declared timestamp, passed through untouched for the Normalizer.
type RawTelemetry struct {
	Envelope
	DeviceID     string            `json:"device_id"`
	RecordedAt   string            `json:"recorded_at,omitempty"`
	Measurements []Measurement     `json:"measurements"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Validation statuses set by the Normalizer.
const (
	ValidationValid                = "valid"
	ValidationClamped              = "clamped"
	ValidationTimestampSubstituted = "timestamp_substituted"
)

// NormalizationMetadata records how the Normalizer treated the event.
type NormalizationMetadata struct {
	NormalizedAt string   `json:"normalized_at"`
	RulesVersion string   `json:"rules_version"`
	Warnings     []string `json:"warnings,omitempty"`
}

// NormalizedTelemetry is the Normalizer's output on telemetry.normalized.
// ObservedAt is the device timestamp after normalization to ISO-8601 UTC.
type NormalizedTelemetry struct {
	Envelope
	DeviceID              string                `json:"device_id"`
	PatientID             string                `json:"patient_id,omitempty"`
	ObservedAt            string                `json:"observed_at"`
	Vitals                Vitals                `json:"vitals"`
	ValidationStatus      string                `json:"validation_status"`
	NormalizationMetadata NormalizationMetadata `json:"normalization_metadata"`
}

// PatientProfile is the slice of patient data the pipeline carries.
type PatientProfile struct {
	Age int    `json:"age"`
	Sex string `json:"sex"`
}

// VitalRange is an inclusive [Min, Max] threshold window.
type VitalRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// BloodPressureRange splits systolic and diastolic windows.
type BloodPressureRange struct {
	Systolic  VitalRange `json:"systolic"`
	Diastolic VitalRange `json:"diastolic"`
}

// ThresholdProfile is the per-patient (optionally per-device) alerting
// thresholds served by the Registry. Temperature bounds are Celsius.
type ThresholdProfile struct {
	PatientID        string             `json:"patient_id"`
	DeviceID         string             `json:"device_id,omitempty"`
	HeartRate        VitalRange         `json:"heart_rate"`
	BloodPressure    BloodPressureRange `json:"blood_pressure"`
	Temperature      VitalRange         `json:"temperature"`
	OxygenSaturation VitalRange         `json:"oxygen_saturation"`
	RespiratoryRate  VitalRange         `json:"respiratory_rate"`
}

// EnrichmentMetadata records which registry lookups contributed.
type EnrichmentMetadata struct {
	EnrichedAt        string   `json:"enriched_at"`
	EnrichmentSources []string `json:"enrichment_sources"`
}

// EnrichedTelemetry is the Enricher's output on telemetry.enriched.
// Orphan means no patient could be resolved; in that case PatientProfile
// and Thresholds are absent.
type EnrichedTelemetry struct {
	NormalizedTelemetry
	Orphan             bool               `json:"orphan"`
	PatientProfile     *PatientProfile    `json:"patientProfile,omitempty"`
	Thresholds         *ThresholdProfile  `json:"thresholds,omitempty"`
	EnrichmentMetadata EnrichmentMetadata `json:"enrichment_metadata"`
}

// MetricScore is a per-metric anomaly result.
type MetricScore struct {
	Score           float64 `json:"score"`
	ZScore          float64 `json:"z_score"`
	Severity        string  `json:"severity"`
	BaselineSamples int     `json:"baseline_samples"`
	Bootstrap       bool    `json:"bootstrap,omitempty"`
}

// TriggeredRule describes one rule that fired.
type TriggeredRule struct {
	RuleID    string   `json:"rule_id"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Metric    string   `json:"metric"`
	Observed  float64  `json:"observed"`
	Threshold float64  `json:"threshold"`
}

// ScoredTelemetry is the Rules Engine's output on telemetry.scored.
// It is always emitted, alert or not.
type ScoredTelemetry struct {
	EnrichedTelemetry
	AnomalyScores    map[string]MetricScore `json:"anomaly_scores"`
	OverallRiskScore float64                `json:"overall_risk_score"`
	AnomalyDegraded  bool                   `json:"anomaly_degraded,omitempty"`
	Severity         Severity               `json:"severity"`
	RulesTriggered   []TriggeredRule        `json:"rulesTriggered"`
}

// Alert types.
const (
	AlertTypeVitalSign         = "vital_sign_anomaly"
	AlertTypeMultiVital        = "multi_vital_anomaly"
	AlertTypeCriticalCondition = "critical_condition"
)

// AlertDetails carries the evidence behind an alert.
type AlertDetails struct {
	Metrics          Vitals                 `json:"metrics"`
	AnomalyScores    map[string]MetricScore `json:"anomaly_scores,omitempty"`
	OverallRiskScore float64                `json:"overall_risk_score"`
}

// AlertMetadata tracks the alert's provenance and workflow state.
type AlertMetadata struct {
	RaisedBy     string `json:"raised_by"`
	RuleVersion  string `json:"rule_version"`
	Acknowledged bool   `json:"acknowledged"`
	Resolved     bool   `json:"resolved"`
}

// Alert is published to alerts.raised when severity exceeds ok.
type Alert struct {
	Envelope
	AlertID        string          `json:"alert_id"`
	PatientID      string          `json:"patient_id"`
	DeviceID       string          `json:"device_id"`
	Severity       Severity        `json:"severity"`
	AlertType      string          `json:"alert_type"`
	Condition      string          `json:"condition"`
	RulesTriggered []TriggeredRule `json:"rulesTriggered"`
	Details        AlertDetails    `json:"details"`
	AlertMetadata  AlertMetadata   `json:"alert_metadata"`
}
