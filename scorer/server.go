package scorer

import (
	"net/http"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/rpc"
)

// Service exposes the scoring engine over RPC.
type Service struct {
	engine *Engine
	logger core.Logger
}

// NewService creates the RPC service around engine.
func NewService(engine *Engine, logger core.Logger) *Service {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Service{engine: engine, logger: logger}
}

// Register mounts the scoring RPC on mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("/rpc/anomaly/scoreVitals", s.handleScoreVitals)
}

func (s *Service) handleScoreVitals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ScoreVitalsRequest
	if err := rpc.ReadJSON(r, &req, 0); err != nil {
		rpc.WriteJSON(w, http.StatusOK, ScoreVitalsResponse{
			Status: rpc.ScoreStatusInvalidReq, Message: "malformed request body",
		})
		return
	}

	resp, err := s.engine.Score(r.Context(), &req)
	if err != nil {
		if core.IsValidation(err) {
			rpc.WriteJSON(w, http.StatusOK, ScoreVitalsResponse{
				Status: rpc.ScoreStatusInvalidReq, Message: err.Error(), PatientID: req.PatientID,
			})
			return
		}
		s.logger.Error("scoring failed", map[string]interface{}{
			"patient_id": req.PatientID,
			"error":      err.Error(),
		})
		rpc.WriteJSON(w, http.StatusOK, ScoreVitalsResponse{
			Status: rpc.ScoreStatusModelError, Message: "scoring failed", PatientID: req.PatientID,
		})
		return
	}
	rpc.WriteJSON(w, http.StatusOK, resp)
}
