package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elys-network/flywheel/internal/eventlog"
	"github.com/elys-network/flywheel/internal/flywheel"
	"github.com/elys-network/flywheel/internal/state"
	"github.com/elys-network/flywheel/internal/types"
	"github.com/elys-network/flywheel/internal/vault"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	epochStart int64 = 1_767_225_600 // 2026-01-01T00:00:00Z
	epochEnd   int64 = 1_798_761_599 // 2026-12-31T23:59:59Z
)

func testPK(n int) solana.PublicKey {
	var b [32]byte
	b[0] = byte(n)
	b[1] = 0xA7
	return solana.PublicKeyFromBytes(b[:])
}

type testServer struct {
	server *WebServer
	engine *flywheel.Engine
	clock  *clockwork.FakeClock
	admin  solana.PublicKey
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Unix(epochStart+3600, 0))
	log := eventlog.New(50)
	engine, err := flywheel.NewEngine(flywheel.Config{
		Store:       state.NewMemoryStore(50),
		Distributor: vault.NewSimulated(vault.DefaultInitialSupply),
		Events:      log,
		Clock:       clock,
	})
	require.NoError(t, err)

	if cfg.Service == nil {
		cfg.Service = engine
	}
	cfg.Events = eventlog.NewCache(log, clock, time.Minute)
	cfg.MaxEventLimit = log.Retention()
	cfg.Defaults = InitDefaults{TokenMint: testPK(90), FeeVault: testPK(91), EpochStart: epochStart, EpochEnd: epochEnd}

	server, err := NewWebServer(cfg)
	require.NoError(t, err)
	return &testServer{server: server, engine: engine, clock: clock, admin: testPK(1)}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	out := map[string]interface{}{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (ts *testServer) initialize(t *testing.T) {
	t.Helper()
	rec, _ := ts.do(t, http.MethodPost, "/api/initialize", map[string]interface{}{
		"admin":              ts.admin.String(),
		"buybackBps":         4000,
		"burnBps":            3000,
		"minIntervalSeconds": 3600,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestNewWebServer_RequiresDependencies(t *testing.T) {
	_, err := NewWebServer(Config{})
	require.Error(t, err)
}

func TestInitializeAndGetConfig(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec, body := ts.do(t, http.MethodGet, "/api/config", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])

	ts.initialize(t)

	rec, body = ts.do(t, http.MethodPost, "/api/initialize", map[string]interface{}{
		"admin": testPK(2).String(), "buybackBps": 1000, "burnBps": 1000,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_initialized", body["code"])

	rec, body = ts.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := body["config"].(map[string]interface{})
	assert.Equal(t, ts.admin.String(), cfg["admin"])
	assert.Equal(t, testPK(90).String(), cfg["tokenMint"], "mint defaults from service configuration")
	assert.EqualValues(t, 3000, cfg["lpAddBps"], "lp share defaults to the remainder")
	assert.EqualValues(t, epochStart, cfg["epochStart"])
	assert.EqualValues(t, 0, body["vaultBalance"])
	assert.EqualValues(t, epochStart, body["nextExecutionAt"])
}

func TestInitialize_Rejections(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec, body := ts.do(t, http.MethodPost, "/api/initialize", map[string]interface{}{
		"admin": ts.admin.String(), "buybackBps": 6000, "burnBps": 6000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_bps_sum", body["code"])

	rec, body = ts.do(t, http.MethodPost, "/api/initialize", map[string]interface{}{
		"admin": ts.admin.String(), "epochStart": 10, "epochEnd": 5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_epoch", body["code"])

	rec, body = ts.do(t, http.MethodPost, "/api/initialize", `{"admin": "not-a-key"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", body["code"])
}

func TestDepositExecuteFlow(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.initialize(t)

	rec, body := ts.do(t, http.MethodPost, "/api/deposit", map[string]interface{}{
		"depositor": testPK(5).String(), "amount": 1000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1000, body["vaultBalance"])
	assert.NotEmpty(t, body["txHash"])

	rec, body = ts.do(t, http.MethodPost, "/api/execute", map[string]interface{}{"executor": testPK(6).String()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1000, body["feesProcessed"])
	assert.EqualValues(t, 400, body["buybackAmount"])
	assert.EqualValues(t, 300, body["burnAmount"])
	assert.EqualValues(t, 300, body["lpAddAmount"])
	assert.EqualValues(t, 700, body["burned"])

	rec, body = ts.do(t, http.MethodPost, "/api/execute", map[string]interface{}{"executor": testPK(6).String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "insufficient_interval", body["code"])

	rec, body = ts.do(t, http.MethodGet, "/api/events?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := body["events"].([]interface{})
	require.Len(t, events, 2)
	assert.Equal(t, string(types.EventExecute), events[0].(map[string]interface{})["type"])
	assert.Equal(t, string(types.EventBurn), events[1].(map[string]interface{})["type"])
	assert.Equal(t, false, body["cached"], "mutations invalidate the snapshot")

	_, body = ts.do(t, http.MethodGet, "/api/events", nil)
	assert.Equal(t, true, body["cached"])
	assert.EqualValues(t, 4, body["count"])
}

func TestExecute_EmptyVaultAndOutsideEpoch(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.initialize(t)

	rec, body := ts.do(t, http.MethodPost, "/api/execute", map[string]interface{}{"executor": testPK(6).String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "nothing_to_execute", body["code"])

	ts.clock.Advance(time.Duration(epochEnd-epochStart) * time.Second)
	rec, body = ts.do(t, http.MethodPost, "/api/execute", map[string]interface{}{"executor": testPK(6).String()})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "outside_epoch", body["code"])
}

func TestDeposit_InvalidAmounts(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.initialize(t)

	for _, amount := range []string{`0`, `-5`, `1.5`, `"abc"`, `18446744073709551616`} {
		t.Run(amount, func(t *testing.T) {
			body := fmt.Sprintf(`{"depositor": %q, "amount": %s}`, testPK(5).String(), amount)
			rec, out := ts.do(t, http.MethodPost, "/api/deposit", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, []interface{}{"invalid_amount", "invalid_request"}, out["code"])
		})
	}

	body := fmt.Sprintf(`{"depositor": %q}`, testPK(5).String())
	rec, out := ts.do(t, http.MethodPost, "/api/deposit", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", out["code"])

	body = fmt.Sprintf(`{"depositor": %q, "amount": 10}`, solana.PublicKey{}.String())
	rec, out = ts.do(t, http.MethodPost, "/api/deposit", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_identity", out["code"])
}

func TestUpdateConfig(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec, _ := ts.do(t, http.MethodPost, "/api/update-config", map[string]interface{}{
		"caller": ts.admin.String(), "burnBps": 100,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.initialize(t)

	rec, body := ts.do(t, http.MethodPost, "/api/update-config", map[string]interface{}{"burnBps": 100})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_caller", body["code"])

	rec, body = ts.do(t, http.MethodPost, "/api/update-config", map[string]interface{}{
		"caller": testPK(9).String(), "burnBps": 100,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "unauthorized", body["code"])

	rec, body = ts.do(t, http.MethodPost, "/api/update-config", map[string]interface{}{
		"caller": ts.admin.String(), "buybackBps": 8000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_bps_sum", body["code"])

	rec, body = ts.do(t, http.MethodPost, "/api/update-config", map[string]interface{}{
		"caller": ts.admin.String(), "burnBps": 1000, "minIntervalSeconds": 60,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cfg := body["config"].(map[string]interface{})
	assert.EqualValues(t, 1000, cfg["burnBps"])
	assert.EqualValues(t, 4000, cfg["buybackBps"])
	assert.EqualValues(t, 60, cfg["minIntervalSeconds"])
}

func TestWithdraw(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.initialize(t)

	_, _ = ts.do(t, http.MethodPost, "/api/deposit", map[string]interface{}{"depositor": testPK(5).String(), "amount": 250})

	rec, body := ts.do(t, http.MethodPost, "/api/withdraw", map[string]interface{}{
		"caller": testPK(9).String(), "recipient": testPK(9).String(),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "unauthorized", body["code"])

	rec, body = ts.do(t, http.MethodPost, "/api/withdraw", map[string]interface{}{
		"caller": ts.admin.String(), "recipient": testPK(8).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 250, body["amount"])
	assert.Equal(t, testPK(8).String(), body["recipient"])

	_, body = ts.do(t, http.MethodGet, "/api/config", nil)
	assert.EqualValues(t, 0, body["vaultBalance"])
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, Config{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/deposit"},
		{http.MethodDelete, "/api/config"},
		{http.MethodPut, "/api/execute"},
		{http.MethodPost, "/health"},
	} {
		rec, body := ts.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "method_not_allowed", body["code"])
	}

	rec, _ := ts.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, Config{RatePerMinute: 1, RateBurst: 1})

	rec, _ := ts.do(t, http.MethodOptions, "/api/deposit", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitedMutations(t *testing.T) {
	ts := newTestServer(t, Config{RatePerMinute: 1, RateBurst: 2})

	executor := map[string]interface{}{"executor": testPK(6).String()}
	for i := 0; i < 2; i++ {
		rec, _ := ts.do(t, http.MethodPost, "/api/execute", executor)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	rec, body := ts.do(t, http.MethodPost, "/api/execute", executor)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", body["code"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec, _ = ts.do(t, http.MethodGet, "/api/events", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not rate limited")
}

// brokenService fails reads and health checks with an internal error.
type brokenService struct {
	*flywheel.Engine
	err error
}

func (b *brokenService) Config(context.Context) (*types.FlywheelConfig, uint64, error) {
	return nil, 0, b.err
}

func (b *brokenService) Ping(context.Context) error { return b.err }

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	base := newTestServer(t, Config{})
	ts := newTestServer(t, Config{Service: &brokenService{Engine: base.engine, err: errors.New("pq: password authentication failed")}})

	rec, body := ts.do(t, http.MethodGet, "/api/config", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body["error"])
	assert.Equal(t, "internal", body["code"])
	assert.NotContains(t, rec.Body.String(), "password")

	rec, body = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DEGRADED", body["status"])
}

// failingService aborts every execution with a distributor error.
type failingService struct {
	*flywheel.Engine
}

func (f *failingService) Execute(context.Context, solana.PublicKey) (*types.ExecutionResult, error) {
	return nil, &flywheel.ExecutionAbortedError{Stage: "burn", Err: errors.New("rpc https://node.internal:8899: connection refused")}
}

func TestExecutionAbortedHidesCause(t *testing.T) {
	base := newTestServer(t, Config{})
	ts := newTestServer(t, Config{Service: &failingService{Engine: base.engine}})

	rec, body := ts.do(t, http.MethodPost, "/api/execute", map[string]interface{}{"executor": solana.TokenProgramID.String()})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "execution aborted during burn", body["error"])
	assert.Equal(t, "execution_aborted", body["code"])
	assert.NotContains(t, rec.Body.String(), "node.internal")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{})

	for _, path := range []string{"/health", "/api/health"} {
		rec, body := ts.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", body["status"])
		status := body["flywheel_status"].(map[string]interface{})
		assert.Equal(t, true, status["store_healthy"])
		assert.Equal(t, "idle", status["phase"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Config{})
	_, _ = ts.do(t, http.MethodGet, "/api/events", nil)

	rec, _ := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flywheel_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{flywheel.ErrInvalidBpsSum, http.StatusBadRequest},
		{flywheel.ErrNothingToExecute, http.StatusBadRequest},
		{flywheel.ErrMathOverflow, http.StatusBadRequest},
		{flywheel.ErrUnauthorized, http.StatusForbidden},
		{flywheel.ErrOutsideEpoch, http.StatusForbidden},
		{flywheel.ErrNotFound, http.StatusNotFound},
		{flywheel.ErrAlreadyInitialized, http.StatusConflict},
		{&flywheel.ExecutionAbortedError{Stage: "burn", Err: errors.New("rpc down")}, http.StatusBadGateway},
		{fmt.Errorf("failed to load: %w", errors.New("disk")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(5, 2)

	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.True(t, limiter.Allow("1.1.1.1"))
	allowed, retry := limiter.AllowWithRetry("1.1.1.1")
	assert.False(t, allowed)
	assert.Greater(t, retry, time.Duration(0))
	assert.True(t, limiter.Allow("2.2.2.2"), "limits are per client")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.7:4000"
	assert.Equal(t, "192.168.1.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
