// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/registry"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/sdk"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

type testEnv struct {
	server  *Server
	reg     *registry.CombinedRegistry
	factory *sdk.MockFactory
	promReg *prometheus.Registry
}

func newTestEnv(t *testing.T, remote ...string) *testEnv {
	t.Helper()
	ctx := context.Background()

	prod := sdk.NewMockFactory("prod", remote...)
	promReg := prometheus.NewRegistry()
	reg := registry.NewCombinedRegistry(registry.CombinedOptions{
		CommunityConnect: func(ctx context.Context, name string, cfg config.CommunitySessionConfig) (base.Session, error) {
			return sdk.NewMockSession(name), nil
		},
		FactoryBuilder: func(ctx context.Context, source string, cfg config.EnterpriseSystemConfig) (base.Factory, error) {
			return prod, nil
		},
		Logger:  logger.NewNop(),
		Metrics: registry.NewMetrics(promReg),
	})

	cfg := &config.Config{
		Community: config.CommunityConfig{Sessions: map[string]config.CommunitySessionConfig{
			"local": {Host: "localhost"},
		}},
		Enterprise: config.EnterpriseConfig{Systems: map[string]config.EnterpriseSystemConfig{
			"prod": {Type: config.ControllerRedis, ConnectionURL: "redis://prod", MaxAddedSessions: 2},
		}},
	}
	require.NoError(t, reg.Initialize(ctx, config.NewStaticSource(cfg)))
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := reg.WaitForPhase(waitCtx, registry.PhaseCompleted)
	require.NoError(t, err)

	server := NewServer(reg, Options{Logger: logger.NewNop(), Registerer: promReg, Gatherer: promReg})
	return &testEnv{server: server, reg: reg, factory: prod, promReg: promReg}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "completed", body["phase"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestHealth_AfterClose(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.reg.Close(context.Background()))

	rec := env.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListSessions(t *testing.T) {
	env := newTestEnv(t, "q1", "q2")

	rec := env.do(t, "GET", "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[SessionListResponse](t, rec)
	require.Len(t, resp.Sessions, 3)
	assert.Equal(t, "community:community:local", resp.Sessions[0].FullName)
	assert.Equal(t, "enterprise:prod:q1", resp.Sessions[1].FullName)
	assert.Equal(t, base.SystemTypeEnterprise, resp.Sessions[1].SystemType)
	assert.False(t, resp.Sessions[1].Connected)
	assert.Empty(t, resp.Errors)
}

func TestListSessions_ReportsSourceErrors(t *testing.T) {
	env := newTestEnv(t, "q1")
	env.factory.SetListError(assert.AnError)

	rec := env.do(t, "POST", "/api/v1/sessions/refresh", RefreshRequest{Sources: []string{"prod"}})
	require.Equal(t, http.StatusOK, rec.Code)
	refresh := decode[RefreshResponse](t, rec)
	assert.True(t, refresh.Success)
	assert.Contains(t, refresh.Errors["prod"], assert.AnError.Error())

	rec = env.do(t, "GET", "/api/v1/sessions", nil)
	resp := decode[SessionListResponse](t, rec)
	assert.Len(t, resp.Sessions, 1)
	assert.Contains(t, resp.Errors, "prod")
}

func TestGetSession(t *testing.T) {
	env := newTestEnv(t, "q1")

	rec := env.do(t, "GET", "/api/v1/sessions/enterprise:prod:q1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[SessionInfo](t, rec)
	assert.Equal(t, "q1", info.Name)
	assert.Nil(t, info.Alive)

	rec = env.do(t, "GET", "/api/v1/sessions/enterprise:prod:missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Contains(t, body["error"], "phase: completed")

	rec = env.do(t, "GET", "/api/v1/sessions/not-a-name", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddSession_QuotaEnforced(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"a1", "a2"} {
		rec := env.do(t, "POST", "/api/v1/sessions", AddSessionRequest{Source: "prod", Name: name})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		info := decode[SessionInfo](t, rec)
		assert.True(t, info.Added)
	}

	rec := env.do(t, "POST", "/api/v1/sessions", AddSessionRequest{Source: "prod", Name: "a3"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = env.do(t, "DELETE", "/api/v1/sessions/enterprise:prod:a1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "POST", "/api/v1/sessions", AddSessionRequest{Source: "prod", Name: "a3"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	count, err := env.reg.CountAddedSessions(base.SystemTypeEnterprise, "prod")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAddSession_SurvivesRefreshUntilListed(t *testing.T) {
	env := newTestEnv(t, "q1")

	rec := env.do(t, "POST", "/api/v1/sessions", AddSessionRequest{Source: "prod", Name: "a1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// GET refreshes prod on demand; the controller does not list a1 yet.
	rec = env.do(t, "GET", "/api/v1/sessions/enterprise:prod:a1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[SessionInfo](t, rec).Added)

	rec = env.do(t, "GET", "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	for _, s := range decode[SessionListResponse](t, rec).Sessions {
		names = append(names, s.FullName)
	}
	assert.Contains(t, names, "enterprise:prod:a1")
	assert.Contains(t, names, "enterprise:prod:q1")

	// Once listed, a1 follows the controller like any discovered session.
	env.factory.SetRemoteSessions("q1", "a1")
	rec = env.do(t, "POST", "/api/v1/sessions/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, "GET", "/api/v1/sessions/enterprise:prod:a1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[SessionInfo](t, rec).Added)

	env.factory.SetRemoteSessions("q1")
	rec = env.do(t, "POST", "/api/v1/sessions/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, "GET", "/api/v1/sessions/enterprise:prod:a1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddSession_Validation(t *testing.T) {
	env := newTestEnv(t, "q1")

	rec := env.do(t, "POST", "/api/v1/sessions", AddSessionRequest{Source: "unknown", Name: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "POST", "/api/v1/sessions", AddSessionRequest{Source: "prod", Name: "bad:name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/v1/sessions", AddSessionRequest{Source: "prod", Name: "q1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	req := httptest.NewRequest("POST", "/api/v1/sessions", strings.NewReader("{not json"))
	raw := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestAddSession_ConnectFailure(t *testing.T) {
	env := newTestEnv(t)

	// The controller does not know the query, so an eager connect fails.
	rec := env.do(t, "POST", "/api/v1/sessions", AddSessionRequest{Source: "prod", Name: "ghost", Connect: true})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	added, err := env.reg.IsAddedSession("enterprise:prod:ghost")
	require.NoError(t, err)
	assert.False(t, added)
}

func TestRemoveSession_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "DELETE", "/api/v1/sessions/enterprise:prod:nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "DELETE", "/api/v1/sessions/nothing", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh_PicksUpNewSessions(t *testing.T) {
	env := newTestEnv(t, "q1")
	env.factory.SetRemoteSessions("q1", "q2")

	rec := env.do(t, "POST", "/api/v1/sessions/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := env.reg.Get(context.Background(), "enterprise:prod:q2")
	assert.NoError(t, err)
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/sessions/enterprise:prod:missing", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "req-123", body["request_id"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "GET", "/api/v1/sessions", nil)

	rec := env.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "sessionhub_reconcile_passes_total")
	assert.Contains(t, body, `sessionhub_api_requests_total{code="200",method="GET",route="/api/v1/sessions"} 1`)
}
