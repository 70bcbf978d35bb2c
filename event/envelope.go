// Package event defines the envelope and typed payloads that flow across
// the pipeline topics, plus the severity ordering and canonical metric
// vocabulary shared by every stage.
package event

import (
	"fmt"
	"time"

	"github.com/pulseward/pulseward/core"
)

// Topic names. The event_type of a payload equals the topic it is
// published to.
const (
	TopicRaw        = "telemetry.raw"
	TopicNormalized = "telemetry.normalized"
	TopicEnriched   = "telemetry.enriched"
	TopicScored     = "telemetry.scored"
	TopicAlerts     = "alerts.raised"
)

// SchemaVersion is stamped on every envelope.
const SchemaVersion = "1.0.0"

// Envelope is embedded in every pipeline event. trace_id is minted at the
// Gateway and copied unchanged by every downstream stage; source_event_id
// links an output to the input event it was derived from.
type Envelope struct {
	EventID       string `json:"event_id"`
	TraceID       string `json:"trace_id"`
	EventType     string `json:"event_type"`
	Version       string `json:"version"`
	Timestamp     string `json:"timestamp"`
	SourceEventID string `json:"source_event_id,omitempty"`
}

// NewEnvelope mints an envelope for a freshly ingested event: new event id,
// new trace id, empty source linkage.
func NewEnvelope(eventType string) Envelope {
	return Envelope{
		EventID:   core.NewEventID(),
		TraceID:   core.NewTraceID(),
		EventType: eventType,
		Version:   SchemaVersion,
		Timestamp: Now(),
	}
}

// Derive mints the envelope for an event produced from e: new event id,
// trace id copied byte-for-byte, source_event_id set to e's event id.
func (e Envelope) Derive(eventType string) Envelope {
	return Envelope{
		EventID:       core.NewEventID(),
		TraceID:       e.TraceID,
		EventType:     eventType,
		Version:       e.Version,
		Timestamp:     Now(),
		SourceEventID: e.EventID,
	}
}

// Validate checks the fields every stage relies on.
func (e Envelope) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("%w: missing event_id", core.ErrValidation)
	}
	if e.TraceID == "" {
		return fmt.Errorf("%w: missing trace_id", core.ErrValidation)
	}
	if e.EventType == "" {
		return fmt.Errorf("%w: missing event_type", core.ErrValidation)
	}
	return nil
}

// Now returns the current instant in the pipeline's wire format: ISO-8601
// UTC with millisecond precision.
func Now() string {
	return FormatTime(time.Now())
}

// FormatTime renders t in the pipeline's wire format.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
