package gateway

import (
	"net/http"
	"strings"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/event"
	"github.com/pulseward/pulseward/rpc"
)

// TelemetryRequest is the device-facing HTTP body. Temperature on this
// surface is Fahrenheit.
type TelemetryRequest struct {
	DeviceID  string           `json:"deviceId"`
	Timestamp string           `json:"timestamp"`
	Metrics   TelemetryMetrics `json:"metrics"`
	Meta      *TelemetryMeta   `json:"meta,omitempty"`
}

// TelemetryMetrics uses pointers so absent metrics are distinguishable
// from zero readings.
type TelemetryMetrics struct {
	HR   *float64 `json:"hr,omitempty"`
	SpO2 *float64 `json:"spo2,omitempty"`
	Temp *float64 `json:"temp,omitempty"`
}

// TelemetryMeta carries optional device housekeeping fields.
type TelemetryMeta struct {
	Battery  string `json:"battery,omitempty"`
	Firmware string `json:"firmware,omitempty"`
}

// TelemetryResponse is the HTTP reply.
type TelemetryResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId,omitempty"`
	Message string `json:"message"`
}

// SendMeasurementsRequest is the RPC form of ingestion.
type SendMeasurementsRequest struct {
	Version        string              `json:"version"`
	DeviceID       string              `json:"device_id"`
	DeviceType     string              `json:"device_type,omitempty"`
	Timestamp      string              `json:"timestamp"`
	Measurements   []event.Measurement `json:"measurements"`
	DeviceMetadata map[string]string   `json:"device_metadata,omitempty"`
}

// SendMeasurementsResponse is the RPC reply.
type SendMeasurementsResponse struct {
	Version   string            `json:"version"`
	Status    rpc.GatewayStatus `json:"status"`
	Message   string            `json:"message,omitempty"`
	EventID   string            `json:"event_id,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Register mounts both ingress surfaces on mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("/telemetry", s.handleTelemetry)
	mux.HandleFunc("/rpc/gateway/sendMeasurements", s.handleSendMeasurements)
}

func (s *Service) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req TelemetryRequest
	if err := rpc.ReadJSON(r, &req, s.cfg.MaxBodyBytes); err != nil {
		rpc.WriteJSON(w, http.StatusBadRequest, TelemetryResponse{
			Success: false, Message: "malformed request body",
		})
		return
	}

	var metadata map[string]string
	if req.Meta != nil {
		metadata = map[string]string{}
		if req.Meta.Battery != "" {
			metadata["battery"] = req.Meta.Battery
		}
		if req.Meta.Firmware != "" {
			metadata["firmware"] = req.Meta.Firmware
		}
	}

	raw, err := s.Ingest(r.Context(), req.DeviceID, req.Timestamp, req.Metrics.toMeasurements(), metadata)
	if err != nil {
		switch {
		case core.IsValidation(err):
			rpc.WriteJSON(w, http.StatusBadRequest, TelemetryResponse{
				Success: false, Message: err.Error(),
			})
		case core.IsNotFound(err):
			rpc.WriteJSON(w, http.StatusNotFound, TelemetryResponse{
				Success: false, Message: "device not registered",
			})
		default:
			rpc.WriteJSON(w, http.StatusInternalServerError, TelemetryResponse{
				Success: false, Message: "ingestion failed",
			})
		}
		return
	}

	rpc.WriteJSON(w, http.StatusOK, TelemetryResponse{
		Success: true, EventID: raw.EventID, Message: "telemetry accepted",
	})
}

func (s *Service) handleSendMeasurements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req SendMeasurementsRequest
	if err := rpc.ReadJSON(r, &req, s.cfg.MaxBodyBytes); err != nil {
		rpc.WriteJSON(w, http.StatusOK, SendMeasurementsResponse{
			Status: rpc.GatewayStatusValidationError, Message: "malformed request body",
			Timestamp: event.Now(),
		})
		return
	}

	if !s.versionAccepted(req.Version) {
		rpc.WriteJSON(w, http.StatusOK, SendMeasurementsResponse{
			Status: rpc.GatewayStatusValidationError, Message: "unsupported version " + req.Version,
			Timestamp: event.Now(),
		})
		return
	}

	metadata := req.DeviceMetadata
	if req.DeviceType != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["device_type"] = req.DeviceType
	}

	raw, err := s.Ingest(r.Context(), req.DeviceID, req.Timestamp, req.Measurements, metadata)
	if err != nil {
		resp := SendMeasurementsResponse{Timestamp: event.Now()}
		switch {
		case core.IsValidation(err):
			resp.Status = rpc.GatewayStatusValidationError
			resp.Message = err.Error()
		case core.IsNotFound(err):
			resp.Status = rpc.GatewayStatusDeviceNotFound
			resp.Message = "device not registered"
		default:
			resp.Status = rpc.GatewayStatusInternalError
			resp.Message = "ingestion failed"
		}
		rpc.WriteJSON(w, http.StatusOK, resp)
		return
	}

	rpc.WriteJSON(w, http.StatusOK, SendMeasurementsResponse{
		Version:   event.SchemaVersion,
		Status:    rpc.GatewayStatusSuccess,
		EventID:   raw.EventID,
		Timestamp: event.Now(),
	})
}

// versionAccepted checks the declared wire version against the accepted
// list by major.minor prefix. An empty declaration or an empty list passes.
func (s *Service) versionAccepted(version string) bool {
	if version == "" || len(s.cfg.AcceptedVersions) == 0 {
		return true
	}
	for _, accepted := range s.cfg.AcceptedVersions {
		if version == accepted || strings.HasPrefix(version, accepted+".") {
			return true
		}
	}
	return false
}

// toMeasurements converts the shorthand metric fields to the measurements
// array form. Temperature is declared Fahrenheit on the HTTP surface.
func (m TelemetryMetrics) toMeasurements() []event.Measurement {
	var out []event.Measurement
	if m.HR != nil {
		out = append(out, event.Measurement{Metric: "hr", Value: *m.HR, Unit: event.UnitBPM})
	}
	if m.SpO2 != nil {
		out = append(out, event.Measurement{Metric: "spo2", Value: *m.SpO2, Unit: event.UnitPercent})
	}
	if m.Temp != nil {
		out = append(out, event.Measurement{Metric: "temp", Value: *m.Temp, Unit: event.UnitFahrenheit})
	}
	return out
}
