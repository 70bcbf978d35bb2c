package registry

import (
	"context"
	"fmt"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
	"github.com/pulseward/pulseward/rpc"
)

// Lookup is the read interface the pipeline consumes. Satisfied by Client
// and by test fakes.
type Lookup interface {
	GetDevice(ctx context.Context, deviceID string) (*Device, error)
	GetPatient(ctx context.Context, patientID string) (*Patient, error)
	GetThresholdProfile(ctx context.Context, patientID, deviceID string) (*event.ThresholdProfile, error)
}

// Client calls a remote registry service.
type Client struct {
	rpc *rpc.Client
}

// NewClient creates a registry client for the configured peer.
func NewClient(cfg core.RPCConfig, logger core.Logger) *Client {
	return &Client{rpc: rpc.NewClient(cfg.RegistryURL, cfg, logger)}
}

// GetDevice resolves a device. Unregistered devices return core.ErrNotFound.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	var resp GetDeviceResponse
	if err := c.rpc.Call(ctx, "/rpc/registry/getDevice", GetDeviceRequest{DeviceID: deviceID}, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case rpc.RegistryStatusSuccess:
		return resp.Device, nil
	case rpc.RegistryStatusNotFound:
		return nil, fmt.Errorf("%w: device %s", core.ErrNotFound, deviceID)
	default:
		return nil, fmt.Errorf("%w: getDevice status %d: %s", core.ErrValidation, resp.Status, resp.Message)
	}
}

// GetPatient resolves a patient. Missing patients return core.ErrNotFound.
func (c *Client) GetPatient(ctx context.Context, patientID string) (*Patient, error) {
	var resp GetPatientResponse
	if err := c.rpc.Call(ctx, "/rpc/registry/getPatient", GetPatientRequest{PatientID: patientID}, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case rpc.RegistryStatusSuccess:
		return resp.Patient, nil
	case rpc.RegistryStatusNotFound:
		return nil, fmt.Errorf("%w: patient %s", core.ErrNotFound, patientID)
	default:
		return nil, fmt.Errorf("%w: getPatient status %d: %s", core.ErrValidation, resp.Status, resp.Message)
	}
}

// GetThresholdProfile resolves thresholds, preferring a device-specific
// profile when deviceID is set.
func (c *Client) GetThresholdProfile(ctx context.Context, patientID, deviceID string) (*event.ThresholdProfile, error) {
	req := GetThresholdProfileRequest{PatientID: patientID, DeviceID: deviceID}
	var resp GetThresholdProfileResponse
	if err := c.rpc.Call(ctx, "/rpc/registry/getThresholdProfile", req, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case rpc.RegistryStatusSuccess:
		return resp.Profile, nil
	case rpc.RegistryStatusNotFound:
		return nil, fmt.Errorf("%w: threshold profile for %s", core.ErrNotFound, patientID)
	default:
		return nil, fmt.Errorf("%w: getThresholdProfile status %d: %s", core.ErrValidation, resp.Status, resp.Message)
	}
}
