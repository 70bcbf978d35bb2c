package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/rpc"
)

func newTestService(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	NewService(seededStore(), nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(core.RPCConfig{
		RegistryURL:   srv.URL,
		Timeout:       time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	}, nil)
	return srv, client
}

func TestGetDeviceRPC(t *testing.T) {
	_, client := newTestService(t)
	ctx := context.Background()

	d, err := client.GetDevice(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, "P1", d.PatientID)
	assert.Equal(t, "active", d.Status)

	_, err = client.GetDevice(ctx, "D404")
	assert.True(t, core.IsNotFound(err))
}

func TestGetPatientRPC(t *testing.T) {
	_, client := newTestService(t)
	ctx := context.Background()

	p, err := client.GetPatient(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 67, p.Age)
	assert.Equal(t, "female", p.Sex)

	_, err = client.GetPatient(ctx, "P404")
	assert.True(t, core.IsNotFound(err))
}

func TestGetThresholdProfileRPC(t *testing.T) {
	_, client := newTestService(t)
	ctx := context.Background()

	profile, err := client.GetThresholdProfile(ctx, "P1", "D1")
	require.NoError(t, err)
	assert.Equal(t, 95.0, profile.OxygenSaturation.Min)

	_, err = client.GetThresholdProfile(ctx, "P404", "")
	assert.True(t, core.IsNotFound(err))
}

func TestRegistryRPCAlwaysRespondsHTTP200(t *testing.T) {
	srv, _ := newTestService(t)

	for _, body := range []string{`{}`, `not json`, `{"device_id":"D404"}`} {
		resp, err := http.Post(srv.URL+"/rpc/registry/getDevice", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, "body %q", body)
	}
}

func TestRegistryRPCRejectsNonPost(t *testing.T) {
	srv, _ := newTestService(t)

	resp, err := http.Get(srv.URL + "/rpc/registry/getDevice")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRegistryInvalidRequestStatus(t *testing.T) {
	srv, _ := newTestService(t)

	resp, err := http.Post(srv.URL+"/rpc/registry/getPatient", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out GetPatientResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, rpc.RegistryStatusInvalidReq, out.Status)
	assert.NotEmpty(t, out.Message)
}
