package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ingest-svc/app/domains"
	"ingest-svc/app/ratelimit"
	"ingest-svc/app/services"
	"ingest-svc/storage/memory"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

type testEnv struct {
	router  *gin.Engine
	store   *memory.Store
	secret  string
	tokens  *services.TokenService
	limiter ratelimit.Limiter
}

func newTestEnv(t *testing.T, limiter ratelimit.Limiter) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	keys := services.NewAPIKeyService(store, logger)

	secret, _, err := keys.Mint(context.Background(), "test-key")
	require.NoError(t, err)

	if limiter == nil {
		limiter = ratelimit.NewInMemory(1000, time.Minute)
	}
	tokens := services.NewTokenService("test-signing-secret")

	router := NewRouter(RouterDeps{
		Logger:  logger,
		Storage: store,
		Limiter: limiter,
		APIKeys: keys,
		Tokens:  tokens,
		Events:  services.NewEventService(nil, logger),
		DB:      store,
		Cache:   nil,
	})

	return &testEnv{router: router, store: store, secret: secret, tokens: tokens, limiter: limiter}
}

func (e *testEnv) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) keyed(method, path string, body interface{}) *httptest.ResponseRecorder {
	return e.do(method, path, body, map[string]string{"X-API-Key": e.secret})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/v1/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decode(t, rec)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, Version, payload["version"])
	services := payload["services"].(map[string]interface{})
	assert.Equal(t, "ok", services["database"])
}

func TestStatusDegradedOnDatabaseFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SetPingError(errors.New("connection refused"))

	rec := env.do(http.MethodGet, "/api/v1/status", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	payload := decode(t, rec)
	assert.Equal(t, "degraded", payload["status"])
	services := payload["services"].(map[string]interface{})
	assert.Equal(t, "unavailable", services["database"])
}

func TestModulesEndpointIsPublic(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/v1/modules", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decode(t, rec)
	modules := payload["modules"].([]interface{})
	assert.NotEmpty(t, modules)
	assert.EqualValues(t, len(modules), payload["count"])
}

func TestUnknownPathEchoed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/v1/does-not-exist", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "/api/v1/does-not-exist")
}

func TestProtectedEndpointsRejectMissingCredentials(t *testing.T) {
	env := newTestEnv(t, nil)

	missing := env.do(http.MethodPost, "/api/v1/beacon", map[string]interface{}{"agent_id": "a1"}, nil)
	require.Equal(t, http.StatusUnauthorized, missing.Code)

	wrong := env.do(http.MethodPost, "/api/v1/beacon",
		map[string]interface{}{"agent_id": "a1"},
		map[string]string{"X-API-Key": "ik_wrong"})
	require.Equal(t, http.StatusUnauthorized, wrong.Code)

	// uniform message regardless of why auth failed
	assert.Equal(t, decode(t, missing)["error"], decode(t, wrong)["error"])
}

func TestBeaconUpsertSecondCallWins(t *testing.T) {
	env := newTestEnv(t, nil)

	first := env.keyed(http.MethodPost, "/api/v1/beacon", map[string]interface{}{
		"agent_id": "a1",
		"hostname": "host-old",
		"platform": "linux",
	})
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, true, decode(t, first)["success"])

	second := env.keyed(http.MethodPost, "/api/v1/beacon", map[string]interface{}{
		"agent_id": "a1",
		"hostname": "host-new",
		"platform": "linux",
		"metadata": map[string]interface{}{"build": "nightly"},
	})
	require.Equal(t, http.StatusOK, second.Code)

	rec := env.do(http.MethodGet, "/api/v1/agents", nil,
		map[string]string{"Authorization": "Bearer " + env.secret})
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decode(t, rec)
	require.EqualValues(t, 1, payload["count"], "beacon must upsert, never duplicate")
	agent := payload["agents"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "host-new", agent["hostname"])
	assert.Equal(t, true, agent["active"])

	// each check-in leaves one history row
	assert.Len(t, env.store.Beacons(), 2)
}

func TestBeaconWithoutAgentIDRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.keyed(http.MethodPost, "/api/v1/beacon", map[string]interface{}{"hostname": "h"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "agent_id")
}

func TestSubmitResultWithoutDataRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.keyed(http.MethodPost, "/api/v1/results", map[string]interface{}{
		"agent_id": "a1",
		"module":   "port-scan",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "data")
	assert.Zero(t, env.store.ResultCount(), "rejected submission must not persist a row")
}

func TestSubmitResultRejectsUnknownSeverity(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.keyed(http.MethodPost, "/api/v1/results", map[string]interface{}{
		"agent_id": "a1",
		"module":   "port-scan",
		"data":     map[string]interface{}{"ok": true},
		"severity": "urgent",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "severity")
}

func TestBeaconSubmitQueryRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)

	beacon := env.keyed(http.MethodPost, "/api/v1/beacon", map[string]interface{}{"agent_id": "a1"})
	require.Equal(t, http.StatusOK, beacon.Code)

	submit := env.keyed(http.MethodPost, "/api/v1/results", map[string]interface{}{
		"agent_id": "a1",
		"module":   "port-scan",
		"data":     map[string]interface{}{"ports": []interface{}{float64(80), float64(443)}},
	})
	require.Equal(t, http.StatusOK, submit.Code)
	submitted := decode(t, submit)
	assert.Equal(t, true, submitted["success"])
	assert.NotEmpty(t, submitted["id"])
	assert.NotEmpty(t, submitted["timestamp"])

	query := env.keyed(http.MethodGet, "/api/v1/results?agent_id=a1", nil)
	require.Equal(t, http.StatusOK, query.Code)

	payload := decode(t, query)
	require.EqualValues(t, 1, payload["count"])
	result := payload["results"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "a1", result["agent_id"])
	assert.Equal(t, "port-scan", result["module"])
	assert.Equal(t, submitted["id"], result["id"])
	data := result["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(80), float64(443)}, data["ports"])
}

func seedResult(t *testing.T, env *testEnv, agentID, module string, severity *string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, env.store.InsertResult(context.Background(), &domains.Result{
		ID:        uuid.New(),
		AgentID:   agentID,
		Module:    module,
		Data:      map[string]interface{}{"seeded": true},
		Severity:  severity,
		CreatedAt: createdAt,
	}))
}

func strPtr(s string) *string { return &s }

func TestQueryFiltersBySeverity(t *testing.T) {
	env := newTestEnv(t, nil)
	now := time.Now()
	seedResult(t, env, "a1", "port-scan", strPtr(domains.SeverityHigh), now)
	seedResult(t, env, "a1", "port-scan", strPtr(domains.SeverityLow), now.Add(time.Second))
	seedResult(t, env, "a1", "httpx", nil, now.Add(2*time.Second))

	rec := env.keyed(http.MethodGet, "/api/v1/results?severity=high", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decode(t, rec)
	require.EqualValues(t, 1, payload["count"])
	for _, raw := range payload["results"].([]interface{}) {
		result := raw.(map[string]interface{})
		assert.Equal(t, "high", result["severity"])
	}
}

func TestQueryOrderedNewestFirst(t *testing.T) {
	env := newTestEnv(t, nil)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedResult(t, env, "a1", "port-scan", nil, base.Add(time.Duration(i)*time.Minute))
	}

	rec := env.keyed(http.MethodGet, "/api/v1/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decode(t, rec)
	results := payload["results"].([]interface{})
	require.Len(t, results, 5)

	var prev time.Time
	for i, raw := range results {
		ts, err := time.Parse(time.RFC3339Nano, raw.(map[string]interface{})["created_at"].(string))
		require.NoError(t, err)
		if i > 0 {
			assert.False(t, ts.After(prev), "results must be timestamp descending")
		}
		prev = ts
	}
}

func TestQueryPaginationDefaultsApplied(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.keyed(http.MethodGet, "/api/v1/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decode(t, rec)
	assert.EqualValues(t, domains.DefaultQueryLimit, payload["limit"])
	assert.EqualValues(t, 0, payload["offset"])
}

func TestQueryLimitCapped(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.keyed(http.MethodGet, "/api/v1/results?limit=999999", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, domains.MaxQueryLimit, decode(t, rec)["limit"])
}

func TestOperatorTokenAccepted(t *testing.T) {
	env := newTestEnv(t, nil)

	token, err := env.tokens.Issue("alice", time.Hour)
	require.NoError(t, err)

	rec := env.do(http.MethodGet, "/api/v1/agents", nil,
		map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActiveOnlyExcludesSweptAgents(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.keyed(http.MethodPost, "/api/v1/beacon", map[string]interface{}{"agent_id": "stale-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	// external maintenance sweep: everything seen before now+1s is stale
	swept, err := env.store.MarkAgentsInactive(context.Background(), time.Now().Add(time.Second))
	require.NoError(t, err)
	require.EqualValues(t, 1, swept)

	activeOnly := env.keyed(http.MethodGet, "/api/v1/agents?active_only=true", nil)
	require.Equal(t, http.StatusOK, activeOnly.Code)
	assert.EqualValues(t, 0, decode(t, activeOnly)["count"])

	all := env.keyed(http.MethodGet, "/api/v1/agents", nil)
	require.Equal(t, http.StatusOK, all.Code)
	assert.EqualValues(t, 1, decode(t, all)["count"])
}

func TestRateLimitExceeded(t *testing.T) {
	env := newTestEnv(t, ratelimit.NewInMemory(2, time.Minute))

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodGet, "/api/v1/status", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(http.MethodGet, "/api/v1/status", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", decode(t, rec)["error"])
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("limiter backend unreachable")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	env := newTestEnv(t, failingLimiter{})

	rec := env.do(http.MethodGet, "/api/v1/status", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "limiter outage must not block requests")
}
