// Package registry serves the read-side lookups the pipeline depends on:
// device to patient mapping, patient profiles, and threshold profiles with
// device-specific override.
package registry

import (
	"github.com/pulseward/pulseward/event"
	"github.com/pulseward/pulseward/rpc"
)

// Device is a registered telemetry source.
type Device struct {
	DeviceID   string            `json:"device_id" yaml:"device_id"`
	DeviceType string            `json:"device_type" yaml:"device_type"`
	PatientID  string            `json:"patient_id,omitempty" yaml:"patient_id"`
	Status     string            `json:"status" yaml:"status"`
	Metadata   map[string]string `json:"metadata,omitempty" yaml:"metadata"`
}

// Patient holds the monitored patient's record.
type Patient struct {
	PatientID         string   `json:"patient_id" yaml:"patient_id"`
	Age               int      `json:"age" yaml:"age"`
	Sex               string   `json:"sex" yaml:"sex"`
	MedicalConditions []string `json:"medical_conditions,omitempty" yaml:"medical_conditions"`
	Medications       []string `json:"medications,omitempty" yaml:"medications"`
	Allergies         []string `json:"allergies,omitempty" yaml:"allergies"`
}

// RPC message shapes. Responses always travel with HTTP 200; the numeric
// status field carries the outcome.

type GetDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

type GetDeviceResponse struct {
	Status  rpc.RegistryStatus `json:"status"`
	Message string             `json:"message,omitempty"`
	Device  *Device            `json:"device,omitempty"`
}

type GetPatientRequest struct {
	PatientID string `json:"patient_id"`
}

type GetPatientResponse struct {
	Status  rpc.RegistryStatus `json:"status"`
	Message string             `json:"message,omitempty"`
	Patient *Patient           `json:"patient,omitempty"`
}

type GetThresholdProfileRequest struct {
	PatientID string `json:"patient_id"`
	DeviceID  string `json:"device_id,omitempty"`
}

type GetThresholdProfileResponse struct {
	Status  rpc.RegistryStatus      `json:"status"`
	Message string                  `json:"message,omitempty"`
	Profile *event.ThresholdProfile `json:"profile,omitempty"`
}
