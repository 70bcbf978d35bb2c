package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/resilience"
)

// Client issues JSON POST calls with a per-call deadline, linear-backoff
// retry, and a circuit breaker. One Client per peer service.
type Client struct {
	baseURL string
	http    *http.Client
	cfg     core.RPCConfig
	breaker *resilience.CircuitBreaker
	logger  core.Logger
}

// NewClient creates a client for the peer at baseURL.
func NewClient(baseURL string, cfg core.RPCConfig, logger core.Logger) *Client {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig(), logger),
		logger:  logger,
	}
}

// Call POSTs req to path and decodes the response into resp. Transport
// errors and 5xx responses are retried; 4xx responses are not.
func (c *Client) Call(ctx context.Context, path string, req, resp interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: marshaling rpc request: %v", core.ErrValidation, err)
	}

	retry := resilience.LinearRetryConfig(c.cfg.RetryAttempts, c.cfg.RetryDelay)
	return resilience.Retry(ctx, retry, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.doOnce(ctx, path, body, resp)
		})
	})
}

func (c *Client) doOnce(ctx context.Context, path string, body []byte, resp interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building request for %s: %v", core.ErrValidation, path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: calling %s: %v", core.ErrConnectionFailed, path, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		io.Copy(io.Discard, httpResp.Body)
		return fmt.Errorf("%w: %s returned %d", core.ErrConnectionFailed, path, httpResp.StatusCode)
	}
	if httpResp.StatusCode >= 400 {
		io.Copy(io.Discard, httpResp.Body)
		return fmt.Errorf("%w: %s returned %d", core.ErrValidation, path, httpResp.StatusCode)
	}

	if resp == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return fmt.Errorf("%w: decoding response from %s: %v", core.ErrConnectionFailed, path, err)
	}
	return nil
}
