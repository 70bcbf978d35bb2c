package enricher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
	"github.com/pulseward/pulseward/registry"
)

// fakeLookup serves canned registry answers; setting outage fails every
// lookup with a connection error.
type fakeLookup struct {
	devices  map[string]registry.Device
	patients map[string]registry.Patient
	profiles map[string]event.ThresholdProfile
	outage   bool
}

func (f *fakeLookup) GetDevice(ctx context.Context, deviceID string) (*registry.Device, error) {
	if f.outage {
		return nil, errors.New("registry unreachable")
	}
	d, ok := f.devices[deviceID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &d, nil
}

func (f *fakeLookup) GetPatient(ctx context.Context, patientID string) (*registry.Patient, error) {
	if f.outage {
		return nil, errors.New("registry unreachable")
	}
	p, ok := f.patients[patientID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (f *fakeLookup) GetThresholdProfile(ctx context.Context, patientID, deviceID string) (*event.ThresholdProfile, error) {
	if f.outage {
		return nil, errors.New("registry unreachable")
	}
	p, ok := f.profiles[patientID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func fullLookup() *fakeLookup {
	return &fakeLookup{
		devices:  map[string]registry.Device{"D1": {DeviceID: "D1", PatientID: "P1", Status: "active"}},
		patients: map[string]registry.Patient{"P1": {PatientID: "P1", Age: 67, Sex: "female"}},
		profiles: map[string]event.ThresholdProfile{"P1": {
			PatientID:        "P1",
			HeartRate:        event.VitalRange{Min: 60, Max: 100},
			OxygenSaturation: event.VitalRange{Min: 95, Max: 100},
			Temperature:      event.VitalRange{Min: 36, Max: 37.5},
		}},
	}
}

func normalizedFor(deviceID string) *event.NormalizedTelemetry {
	return &event.NormalizedTelemetry{
		Envelope:   event.NewEnvelope(event.TopicNormalized),
		DeviceID:   deviceID,
		ObservedAt: "2026-01-15T10:30:00.000Z",
		Vitals: event.Vitals{
			event.MetricHeartRate: {Value: 72, Unit: event.UnitBPM},
		},
		ValidationStatus: event.ValidationValid,
	}
}

func TestEnrichResolvesAllSources(t *testing.T) {
	e := New(fullLookup(), nil, nil)

	out := e.Enrich(context.Background(), normalizedFor("D1"))

	assert.False(t, out.Orphan)
	assert.Equal(t, "P1", out.PatientID)
	require.NotNil(t, out.PatientProfile)
	assert.Equal(t, 67, out.PatientProfile.Age)
	require.NotNil(t, out.Thresholds)
	assert.Equal(t, 100.0, out.Thresholds.HeartRate.Max)
	assert.Equal(t, []string{"device", "patient", "thresholds"}, out.EnrichmentMetadata.EnrichmentSources)
	assert.NotEmpty(t, out.EnrichmentMetadata.EnrichedAt)
}

func TestEnrichDerivesEnvelope(t *testing.T) {
	e := New(fullLookup(), nil, nil)
	in := normalizedFor("D1")

	out := e.Enrich(context.Background(), in)
	assert.NotEqual(t, in.EventID, out.EventID)
	assert.Equal(t, in.TraceID, out.TraceID)
	assert.Equal(t, in.EventID, out.SourceEventID)
	assert.Equal(t, event.TopicEnriched, out.EventType)
	// normalization context rides along unchanged
	assert.Equal(t, in.Vitals, out.Vitals)
	assert.Equal(t, in.ValidationStatus, out.ValidationStatus)
}

func TestEnrichUnknownDeviceIsOrphan(t *testing.T) {
	e := New(fullLookup(), nil, nil)

	out := e.Enrich(context.Background(), normalizedFor("D-unknown"))

	assert.True(t, out.Orphan)
	assert.Empty(t, out.PatientID)
	assert.Nil(t, out.PatientProfile)
	assert.Nil(t, out.Thresholds)
	assert.Equal(t, []string{"none"}, out.EnrichmentMetadata.EnrichmentSources)
}

func TestEnrichRegistryOutageIsOrphan(t *testing.T) {
	e := New(&fakeLookup{outage: true}, nil, nil)

	out := e.Enrich(context.Background(), normalizedFor("D1"))

	assert.True(t, out.Orphan)
	assert.Equal(t, []string{"none"}, out.EnrichmentMetadata.EnrichmentSources)
}

func TestEnrichPartialResolution(t *testing.T) {
	reg := fullLookup()
	delete(reg.patients, "P1")
	delete(reg.profiles, "P1")
	e := New(reg, nil, nil)

	out := e.Enrich(context.Background(), normalizedFor("D1"))

	// device resolved a patient id, so the event is not orphaned even
	// though profile and thresholds are missing
	assert.False(t, out.Orphan)
	assert.Equal(t, "P1", out.PatientID)
	assert.Nil(t, out.PatientProfile)
	assert.Nil(t, out.Thresholds)
	assert.Equal(t, []string{"device"}, out.EnrichmentMetadata.EnrichmentSources)
}

func TestEnrichDeviceWithoutPatientAssignment(t *testing.T) {
	reg := fullLookup()
	reg.devices["D2"] = registry.Device{DeviceID: "D2", Status: "active"}
	e := New(reg, nil, nil)

	out := e.Enrich(context.Background(), normalizedFor("D2"))

	assert.True(t, out.Orphan)
	assert.Equal(t, []string{"device"}, out.EnrichmentMetadata.EnrichmentSources)
}
