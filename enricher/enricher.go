// Package enricher consumes normalized telemetry and attaches patient and
// threshold context from the registry. Lookup failures are non-fatal: the
// enriched event always flows, degraded to orphan when nothing resolves.
package enricher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pulseward/pulseward/broker"
	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
	"github.com/pulseward/pulseward/registry"
)

// Enricher is the stage handler.
type Enricher struct {
	registry registry.Lookup
	producer *broker.Producer
	logger   core.Logger
}

// New creates the stage. producer may be nil in unit tests that only call
// Enrich.
func New(reg registry.Lookup, producer *broker.Producer, logger core.Logger) *Enricher {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Enricher{registry: reg, producer: producer, logger: logger}
}

// Handle is the broker consumer entry point for the normalized topic.
func (e *Enricher) Handle(ctx context.Context, payload []byte) error {
	var in event.NormalizedTelemetry
	if err := json.Unmarshal(payload, &in); err != nil {
		return fmt.Errorf("%w: unmarshaling normalized telemetry: %v", core.ErrValidation, err)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	enriched := e.Enrich(ctx, &in)

	if err := e.producer.Publish(ctx, event.TopicEnriched, in.DeviceID, enriched.EventID, enriched); err != nil {
		return err
	}
	e.logger.Debug("telemetry enriched", map[string]interface{}{
		"event_id":        enriched.EventID,
		"trace_id":        enriched.TraceID,
		"source_event_id": enriched.SourceEventID,
		"orphan":          enriched.Orphan,
		"sources":         enriched.EnrichmentMetadata.EnrichmentSources,
	})
	return nil
}

// Enrich performs the three ordered registry lookups: device, patient,
// thresholds.
func (e *Enricher) Enrich(ctx context.Context, in *event.NormalizedTelemetry) *event.EnrichedTelemetry {
	var sources []string
	patientID := in.PatientID

	device, err := e.registry.GetDevice(ctx, in.DeviceID)
	switch {
	case err == nil:
		sources = append(sources, "device")
		if device.PatientID != "" {
			patientID = device.PatientID
		}
	case core.IsNotFound(err):
		e.logger.Debug("device not registered", map[string]interface{}{
			"device_id": in.DeviceID,
			"event_id":  in.EventID,
		})
	default:
		e.logger.Warn("device lookup failed", map[string]interface{}{
			"device_id": in.DeviceID,
			"event_id":  in.EventID,
			"error":     err.Error(),
		})
	}

	enriched := &event.EnrichedTelemetry{
		NormalizedTelemetry: *in,
	}
	enriched.Envelope = in.Envelope.Derive(event.TopicEnriched)
	enriched.PatientID = patientID

	if patientID == "" {
		enriched.Orphan = true
		if len(sources) == 0 {
			sources = []string{"none"}
		}
		enriched.EnrichmentMetadata = event.EnrichmentMetadata{
			EnrichedAt:        event.Now(),
			EnrichmentSources: sources,
		}
		return enriched
	}

	if patient, err := e.registry.GetPatient(ctx, patientID); err == nil && patient != nil {
		enriched.PatientProfile = &event.PatientProfile{Age: patient.Age, Sex: patient.Sex}
		sources = append(sources, "patient")
	} else if err != nil && !core.IsNotFound(err) {
		e.logger.Warn("patient lookup failed", map[string]interface{}{
			"patient_id": patientID,
			"event_id":   in.EventID,
			"error":      err.Error(),
		})
	}

	if profile, err := e.registry.GetThresholdProfile(ctx, patientID, in.DeviceID); err == nil && profile != nil {
		enriched.Thresholds = profile
		sources = append(sources, "thresholds")
	} else if err != nil && !core.IsNotFound(err) {
		e.logger.Warn("threshold lookup failed", map[string]interface{}{
			"patient_id": patientID,
			"event_id":   in.EventID,
			"error":      err.Error(),
		})
	}

	if len(sources) == 0 {
		sources = []string{"none"}
	}
	enriched.EnrichmentMetadata = event.EnrichmentMetadata{
		EnrichedAt:        event.Now(),
		EnrichmentSources: sources,
	}
	return enriched
}
