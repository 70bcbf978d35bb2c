package scorer

import (
	"context"
	"fmt"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/rpc"
)

// Scorer is the interface the Rules Engine consumes. Satisfied by Client
// and by test fakes.
type Scorer interface {
	ScoreVitals(ctx context.Context, req *ScoreVitalsRequest) (*ScoreVitalsResponse, error)
}

// Client calls a remote anomaly scorer.
type Client struct {
	rpc *rpc.Client
}

// NewClient creates a scorer client for the configured peer.
func NewClient(cfg core.RPCConfig, logger core.Logger) *Client {
	return &Client{rpc: rpc.NewClient(cfg.AnomalyURL, cfg, logger)}
}

// ScoreVitals scores the request's vitals against the patient's baselines.
func (c *Client) ScoreVitals(ctx context.Context, req *ScoreVitalsRequest) (*ScoreVitalsResponse, error) {
	var resp ScoreVitalsResponse
	if err := c.rpc.Call(ctx, "/rpc/anomaly/scoreVitals", req, &resp); err != nil {
		return nil, err
	}
	if resp.Status != rpc.ScoreStatusSuccess {
		return nil, fmt.Errorf("%w: scoreVitals status %d: %s", core.ErrValidation, resp.Status, resp.Message)
	}
	return &resp, nil
}
