// Package rpc carries the JSON-over-HTTP plumbing shared by the pipeline's
// synchronous surfaces: numeric status enums, a server shell with the
// standard middleware stack, and a retrying client.
package rpc

// Registry statuses.
type RegistryStatus int

const (
	RegistryStatusUnknown       RegistryStatus = 0
	RegistryStatusSuccess       RegistryStatus = 1
	RegistryStatusNotFound      RegistryStatus = 2
	RegistryStatusInvalidReq    RegistryStatus = 3
	RegistryStatusInternalError RegistryStatus = 4
)

// Gateway ingestion statuses.
type GatewayStatus int

const (
	GatewayStatusUnknown         GatewayStatus = 0
	GatewayStatusSuccess         GatewayStatus = 1
	GatewayStatusValidationError GatewayStatus = 2
	GatewayStatusDeviceNotFound  GatewayStatus = 3
	GatewayStatusInternalError   GatewayStatus = 4
)

// Anomaly scorer statuses.
type ScoreStatus int

const (
	ScoreStatusUnknown       ScoreStatus = 0
	ScoreStatusSuccess       ScoreStatus = 1
	ScoreStatusInvalidReq    ScoreStatus = 2
	ScoreStatusModelError    ScoreStatus = 3
	ScoreStatusInternalError ScoreStatus = 4
)
