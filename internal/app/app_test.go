package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"authgate/internal/config"
	"authgate/internal/model"
	"authgate/internal/rpc"
)

const testSecret = "app-test-secret-0123456789abcdef"

func testJWT() config.JWTConfig {
	return config.JWTConfig{
		Secret:     testSecret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Issuer:     "authgate",
	}
}

type stack struct {
	handler http.Handler
	stop    func()
}

// startStack runs an auth node over an in-memory listener and builds the
// gateway handler on top of it.
func startStack(t *testing.T, authCfg *config.AuthServiceConfig) *stack {
	t.Helper()

	node, err := NewAuthNode(context.Background(), authCfg)
	require.NoError(t, err)

	listener := bufconn.Listen(1024 * 1024)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- node.Serve(ctx, listener) }()

	conn, err := grpc.NewClient("passthrough:///authsvc",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, rpc.WaitForHealth(waitCtx, conn, ""))

	gatewayHandler, err := NewGatewayHandler(&config.GatewayConfig{
		RequestTimeout:      5 * time.Second,
		MaxBodyBytes:        1 << 20,
		AuthRPCTimeout:      2 * time.Second,
		RateLimitRPM:        100,
		AuthRateLimitRPM:    5,
		RefreshRateLimitRPM: 10,
		JWT:                 testJWT(),
	}, conn)
	require.NoError(t, err)

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("auth node did not stop")
		}
	}
	t.Cleanup(func() {
		stop()
		_ = conn.Close()
	})

	return &stack{handler: gatewayHandler, stop: stop}
}

func memoryConfig() *config.AuthServiceConfig {
	return &config.AuthServiceConfig{
		AppEnv:          config.EnvDevelopment,
		StoreDriver:     config.StoreMemory,
		BcryptCost:      bcrypt.MinCost,
		ShutdownTimeout: 2 * time.Second,
		JWT:             testJWT(),
	}
}

func (s *stack) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func runAnnScenario(t *testing.T, s *stack) {
	ann := map[string]string{"name": "Ann", "email": "ann@x.com", "password": "Secret123!"}

	rec := s.do(t, http.MethodPost, "/auth/register", "", ann)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	registered := decode[model.AuthResult](t, rec)
	assert.Equal(t, "ann@x.com", registered.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Ann", "email": "ANN@x.com", "password": "Secret123!",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, "UserExists", conflict.Error)
	assert.Equal(t, "User with this email already exists", conflict.Message)
	assert.Equal(t, "/auth/register", conflict.Path)

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ann@x.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "InvalidCredentials", decode[model.ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ann@x.com", "password": "Secret123!"})
	require.Equal(t, http.StatusOK, rec.Code)
	loggedIn := decode[model.AuthResult](t, rec)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	rec = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": loggedIn.Tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	refreshed := decode[model.TokenPair](t, rec)
	assert.NotEqual(t, loggedIn.Tokens.AccessToken, refreshed.AccessToken)
	assert.NotEqual(t, loggedIn.Tokens.RefreshToken, refreshed.RefreshToken)

	rec = s.do(t, http.MethodGet, "/auth/users", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AuthenticationRequired", decode[model.ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/auth/users", refreshed.RefreshToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "InvalidTokenType", decode[model.ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/auth/users", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[model.UserList](t, rec)
	require.Len(t, list.Users, 1)
	assert.Equal(t, "Ann", list.Users[0].Name)

	rec = s.do(t, http.MethodGet, "/auth/users/"+registered.User.ID, refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, registered.User.ID, decode[model.PublicUser](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/auth/users/does-not-exist", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UserNotFound", decode[model.ErrorResponse](t, rec).Error)
}

func TestEndToEnd_MemoryStore(t *testing.T) {
	s := startStack(t, memoryConfig())
	runAnnScenario(t, s)
}

func TestEndToEnd_SQLiteStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreDriver = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "nested", "authgate.db")

	s := startStack(t, cfg)
	runAnnScenario(t, s)
}

func TestEndToEnd_ValidationNeverReachesService(t *testing.T) {
	s := startStack(t, memoryConfig())

	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{"name": "", "email": "x", "password": "weak"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, "ValidationFailed", body.Error)
	assert.Contains(t, body.Details, "name")
	assert.Contains(t, body.Details, "email")
	assert.Contains(t, body.Details, "password")
}

func TestEndToEnd_LoginThrottled(t *testing.T) {
	s := startStack(t, memoryConfig())

	for i := 0; i < 5; i++ {
		rec := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@x.com", "password": "x"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@x.com", "password": "x"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RateLimited", decode[model.ErrorResponse](t, rec).Error)
}

func TestEndToEnd_HealthAndMetrics(t *testing.T) {
	s := startStack(t, memoryConfig())

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "serving", decode[model.HealthResponse](t, rec).Upstream)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authgate_http_requests_total")

	s.stop()

	rec = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ann@x.com", "password": "Secret123!"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UpstreamUnavailable", decode[model.ErrorResponse](t, rec).Error)
}
