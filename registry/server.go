package registry

import (
	"net/http"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/rpc"
)

// Service exposes the store over the registry RPC surface.
type Service struct {
	store  *Store
	logger core.Logger
}

// NewService creates the RPC service around store.
func NewService(store *Store, logger core.Logger) *Service {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Service{store: store, logger: logger}
}

// Register mounts the three read RPCs on mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("/rpc/registry/getDevice", s.handleGetDevice)
	mux.HandleFunc("/rpc/registry/getPatient", s.handleGetPatient)
	mux.HandleFunc("/rpc/registry/getThresholdProfile", s.handleGetThresholdProfile)
}

func (s *Service) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req GetDeviceRequest
	if err := rpc.ReadJSON(r, &req, 0); err != nil {
		rpc.WriteJSON(w, http.StatusOK, GetDeviceResponse{
			Status: rpc.RegistryStatusInvalidReq, Message: "malformed request body",
		})
		return
	}
	if req.DeviceID == "" {
		rpc.WriteJSON(w, http.StatusOK, GetDeviceResponse{
			Status: rpc.RegistryStatusInvalidReq, Message: "device_id is required",
		})
		return
	}

	device, err := s.store.GetDevice(req.DeviceID)
	if err != nil {
		s.logger.Debug("device lookup miss", map[string]interface{}{"device_id": req.DeviceID})
		rpc.WriteJSON(w, http.StatusOK, GetDeviceResponse{
			Status: rpc.RegistryStatusNotFound, Message: "device not registered",
		})
		return
	}
	rpc.WriteJSON(w, http.StatusOK, GetDeviceResponse{
		Status: rpc.RegistryStatusSuccess, Device: &device,
	})
}

func (s *Service) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req GetPatientRequest
	if err := rpc.ReadJSON(r, &req, 0); err != nil {
		rpc.WriteJSON(w, http.StatusOK, GetPatientResponse{
			Status: rpc.RegistryStatusInvalidReq, Message: "malformed request body",
		})
		return
	}
	if req.PatientID == "" {
		rpc.WriteJSON(w, http.StatusOK, GetPatientResponse{
			Status: rpc.RegistryStatusInvalidReq, Message: "patient_id is required",
		})
		return
	}

	patient, err := s.store.GetPatient(req.PatientID)
	if err != nil {
		rpc.WriteJSON(w, http.StatusOK, GetPatientResponse{
			Status: rpc.RegistryStatusNotFound, Message: "patient not found",
		})
		return
	}
	rpc.WriteJSON(w, http.StatusOK, GetPatientResponse{
		Status: rpc.RegistryStatusSuccess, Patient: &patient,
	})
}

func (s *Service) handleGetThresholdProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req GetThresholdProfileRequest
	if err := rpc.ReadJSON(r, &req, 0); err != nil {
		rpc.WriteJSON(w, http.StatusOK, GetThresholdProfileResponse{
			Status: rpc.RegistryStatusInvalidReq, Message: "malformed request body",
		})
		return
	}
	if req.PatientID == "" {
		rpc.WriteJSON(w, http.StatusOK, GetThresholdProfileResponse{
			Status: rpc.RegistryStatusInvalidReq, Message: "patient_id is required",
		})
		return
	}

	profile, err := s.store.GetThresholdProfile(req.PatientID, req.DeviceID)
	if err != nil {
		rpc.WriteJSON(w, http.StatusOK, GetThresholdProfileResponse{
			Status: rpc.RegistryStatusNotFound, Message: "no threshold profile",
		})
		return
	}
	rpc.WriteJSON(w, http.StatusOK, GetThresholdProfileResponse{
		Status: rpc.RegistryStatusSuccess, Profile: &profile,
	})
}
