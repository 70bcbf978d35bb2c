// Package gateway accepts device measurements over HTTP and RPC, validates
// them, optionally verifies the device against the registry, and publishes
// RawTelemetry to the raw topic keyed by device id.
package gateway

import (
	"context"
	"fmt"

	"github.com/pulseward/pulseward/broker"
	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
	"github.com/pulseward/pulseward/registry"
)

// Service implements the ingestion path shared by both surfaces.
type Service struct {
	producer    *broker.Producer
	registry    registry.Lookup
	verifyCache core.KeyValueStore
	cfg         core.GatewayConfig
	logger      core.Logger
}

// NewService creates the gateway. reg may be nil when device verification
// is disabled.
func NewService(producer *broker.Producer, reg registry.Lookup, cfg core.GatewayConfig, logger core.Logger) *Service {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Service{
		producer:    producer,
		registry:    reg,
		verifyCache: core.NewMemoryStore(),
		cfg:         cfg,
		logger:      logger,
	}
}

// Ingest validates and publishes one batch of measurements. Errors classify
// the outcome: core.ErrValidation for bad input, core.ErrNotFound for an
// unregistered device, anything else maps to internal_error.
func (s *Service) Ingest(ctx context.Context, deviceID, timestamp string, measurements []event.Measurement, metadata map[string]string) (*event.RawTelemetry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device_id is required", core.ErrValidation)
	}
	if len(measurements) == 0 {
		return nil, fmt.Errorf("%w: at least one measurement is required", core.ErrValidation)
	}
	if s.cfg.MaxMeasurements > 0 && len(measurements) > s.cfg.MaxMeasurements {
		return nil, fmt.Errorf("%w: too many measurements (%d > %d)", core.ErrValidation, len(measurements), s.cfg.MaxMeasurements)
	}
	if timestamp == "" {
		return nil, fmt.Errorf("%w: timestamp is required", core.ErrValidation)
	}
	if _, err := event.ParseTimestamp(timestamp); err != nil {
		return nil, fmt.Errorf("%w: malformed timestamp: %v", core.ErrValidation, err)
	}

	if err := s.verifyDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	raw := &event.RawTelemetry{
		Envelope:     event.NewEnvelope(event.TopicRaw),
		DeviceID:     deviceID,
		RecordedAt:   timestamp,
		Measurements: measurements,
		Metadata:     metadata,
	}

	if err := s.producer.Publish(ctx, event.TopicRaw, deviceID, raw.EventID, raw); err != nil {
		return nil, err
	}

	s.logger.Info("telemetry accepted", map[string]interface{}{
		"event_id":     raw.EventID,
		"trace_id":     raw.TraceID,
		"device_id":    deviceID,
		"measurements": len(measurements),
	})
	return raw, nil
}

// verifyDevice checks the device against the registry when verification is
// enabled. Registry unavailability fails open: availability of ingest
// outweighs verification strictness, and the Enricher marks orphans
// downstream.
func (s *Service) verifyDevice(ctx context.Context, deviceID string) error {
	if !s.cfg.VerifyDevices || s.registry == nil {
		return nil
	}

	cacheKey := "verified:" + deviceID
	if ok, err := s.verifyCache.Exists(ctx, cacheKey); err == nil && ok {
		return nil
	}

	_, err := s.registry.GetDevice(ctx, deviceID)
	switch {
	case err == nil:
		if err := s.verifyCache.Set(ctx, cacheKey, "1", s.cfg.VerifyCacheTTL); err != nil {
			s.logger.Debug("verify cache write failed", map[string]interface{}{
				"device_id": deviceID,
			})
		}
		return nil
	case core.IsNotFound(err):
		return fmt.Errorf("%w: device %s not registered", core.ErrNotFound, deviceID)
	default:
		s.logger.Warn("registry unreachable, failing open", map[string]interface{}{
			"device_id": deviceID,
			"error":     err.Error(),
		})
		return nil
	}
}
