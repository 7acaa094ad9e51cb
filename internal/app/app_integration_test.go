//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"authgate/internal/config"
	"authgate/internal/model"
)

// startProcesses runs the auth node and the gateway on real loopback
// listeners, wired the same way the binaries are.
func startProcesses(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	rpcListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	node, err := NewAuthNode(ctx, memoryConfig())
	require.NoError(t, err)
	nodeDone := make(chan error, 1)
	go func() { nodeDone <- node.Serve(ctx, rpcListener) }()

	gateway, err := NewGateway(ctx, &config.GatewayConfig{
		ServerPort:              "0",
		ServerReadHeaderTimeout: 5 * time.Second,
		ServerWriteTimeout:      10 * time.Second,
		ServerIdleTimeout:       30 * time.Second,
		RequestTimeout:          5 * time.Second,
		ShutdownTimeout:         5 * time.Second,
		MaxBodyBytes:            1 << 20,
		AuthRPCAddr:             rpcListener.Addr().String(),
		AuthRPCTimeout:          2 * time.Second,
		AuthRPCWaitTimeout:      5 * time.Second,
		RateLimitRPM:            100,
		AuthRateLimitRPM:        5,
		RefreshRateLimitRPM:     10,
		JWT:                     testJWT(),
	})
	require.NoError(t, err)

	httpListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gatewayDone := make(chan error, 1)
	go func() { gatewayDone <- gateway.Serve(ctx, httpListener) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-gatewayDone)
		require.NoError(t, <-nodeDone)
	})

	return "http://" + httpListener.Addr().String()
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestIntegration_AuthFlowOverTCP(t *testing.T) {
	baseURL := startProcesses(t)

	resp := postJSON(t, baseURL+"/auth/register", map[string]string{
		"name": "Ann", "email": "ann@x.com", "password": "Secret123!",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	var registered model.AuthResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&registered))

	req, err := http.NewRequest(http.MethodGet, baseURL+"/auth/users/"+registered.User.ID, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+registered.Tokens.AccessToken)
	req.Header.Set("X-Request-ID", "integration-1")

	userResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = userResp.Body.Close() })
	require.Equal(t, http.StatusOK, userResp.StatusCode)
	require.Equal(t, "integration-1", userResp.Header.Get("X-Request-ID"))

	healthResp, err := http.Get(baseURL + "/health")
	require.NoError(t, err)
	t.Cleanup(func() { _ = healthResp.Body.Close() })
	require.Equal(t, http.StatusOK, healthResp.StatusCode)
}

func TestIntegration_RegisterRateLimitReturns429(t *testing.T) {
	baseURL := startProcesses(t)

	body := map[string]string{"name": "Ann", "email": "bad", "password": "x"}
	for i := 0; i < 5; i++ {
		resp := postJSON(t, baseURL+"/auth/register", body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}

	resp := postJSON(t, baseURL+"/auth/register", body)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
}
