package registry

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
)

// Store is the in-memory read model. Entries come from a YAML seed file at
// startup; lookups are read-only from the pipeline's perspective.
type Store struct {
	mu              sync.RWMutex
	devices         map[string]Device
	patients        map[string]Patient
	patientProfiles map[string]event.ThresholdProfile // keyed by patient_id
	deviceProfiles  map[string]event.ThresholdProfile // keyed by device_id
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		devices:         make(map[string]Device),
		patients:        make(map[string]Patient),
		patientProfiles: make(map[string]event.ThresholdProfile),
		deviceProfiles:  make(map[string]event.ThresholdProfile),
	}
}

// GetDevice looks up a device by id.
func (s *Store) GetDevice(deviceID string) (Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return Device{}, fmt.Errorf("%w: device %s", core.ErrNotFound, deviceID)
	}
	return d, nil
}

// GetPatient looks up a patient by id.
func (s *Store) GetPatient(patientID string) (Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[patientID]
	if !ok {
		return Patient{}, fmt.Errorf("%w: patient %s", core.ErrNotFound, patientID)
	}
	return p, nil
}

// GetThresholdProfile returns the profile for a patient. When deviceID is
// given and a device-specific profile exists it wins; otherwise the patient
// default applies.
func (s *Store) GetThresholdProfile(patientID, deviceID string) (event.ThresholdProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if deviceID != "" {
		if p, ok := s.deviceProfiles[deviceID]; ok {
			return p, nil
		}
	}
	if p, ok := s.patientProfiles[patientID]; ok {
		return p, nil
	}
	return event.ThresholdProfile{}, fmt.Errorf("%w: threshold profile for patient %s", core.ErrNotFound, patientID)
}

// UpsertDevice adds or replaces a device.
func (s *Store) UpsertDevice(d Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.DeviceID] = d
}

// UpsertPatient adds or replaces a patient.
func (s *Store) UpsertPatient(p Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.PatientID] = p
}

// UpsertThresholdProfile adds or replaces a profile. Profiles with a
// device_id are device-specific; the rest are patient defaults.
func (s *Store) UpsertThresholdProfile(p event.ThresholdProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.DeviceID != "" {
		s.deviceProfiles[p.DeviceID] = p
		return
	}
	s.patientProfiles[p.PatientID] = p
}

// Seed file shapes.

type seedRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type seedProfile struct {
	PatientID        string    `yaml:"patient_id"`
	DeviceID         string    `yaml:"device_id"`
	HeartRate        seedRange `yaml:"heart_rate"`
	SystolicBP       seedRange `yaml:"systolic_bp"`
	DiastolicBP      seedRange `yaml:"diastolic_bp"`
	Temperature      seedRange `yaml:"temperature"`
	OxygenSaturation seedRange `yaml:"oxygen_saturation"`
	RespiratoryRate  seedRange `yaml:"respiratory_rate"`
}

type seedFile struct {
	Devices           []Device      `yaml:"devices"`
	Patients          []Patient     `yaml:"patients"`
	ThresholdProfiles []seedProfile `yaml:"threshold_profiles"`
}

// LoadSeed populates the store from a YAML seed file.
func (s *Store) LoadSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading seed file %s: %v", core.ErrInvalidConfiguration, path, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("%w: parsing seed file %s: %v", core.ErrInvalidConfiguration, path, err)
	}
	for _, d := range seed.Devices {
		s.UpsertDevice(d)
	}
	for _, p := range seed.Patients {
		s.UpsertPatient(p)
	}
	for _, sp := range seed.ThresholdProfiles {
		s.UpsertThresholdProfile(sp.toProfile())
	}
	return nil
}

func (sp seedProfile) toProfile() event.ThresholdProfile {
	return event.ThresholdProfile{
		PatientID: sp.PatientID,
		DeviceID:  sp.DeviceID,
		HeartRate: event.VitalRange{Min: sp.HeartRate.Min, Max: sp.HeartRate.Max},
		BloodPressure: event.BloodPressureRange{
			Systolic:  event.VitalRange{Min: sp.SystolicBP.Min, Max: sp.SystolicBP.Max},
			Diastolic: event.VitalRange{Min: sp.DiastolicBP.Min, Max: sp.DiastolicBP.Max},
		},
		Temperature:      event.VitalRange{Min: sp.Temperature.Min, Max: sp.Temperature.Max},
		OxygenSaturation: event.VitalRange{Min: sp.OxygenSaturation.Min, Max: sp.OxygenSaturation.Max},
		RespiratoryRate:  event.VitalRange{Min: sp.RespiratoryRate.Min, Max: sp.RespiratoryRate.Max},
	}
}
