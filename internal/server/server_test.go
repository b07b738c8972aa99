package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
	"github.com/entropy-jam/kalitraf-current/internal/hub"
	"github.com/entropy-jam/kalitraf-current/internal/platform/config"
	"github.com/entropy-jam/kalitraf-current/internal/store"
)

var testSources = []domain.Source{
	{Code: "ALPHA", Name: "Alpha Center"},
	{Code: "BETA", Name: "Beta Center"},
}

func incident(id string) domain.Incident {
	return domain.Incident{ID: id, Time: "10:15 AM", Type: "Trfc Collision-No Inj", Location: "I-5 NB"}
}

func newTestServer(t *testing.T, mem *store.Memory, readiness ReadinessChecker) (*Server, *hub.Hub) {
	t.Helper()
	clock := clockwork.NewRealClock()
	h := hub.New(testSources, mem, clock, 16)
	t.Cleanup(h.Stop)

	cfg := &config.Config{Port: "0", HeartbeatInterval: 30 * time.Second}
	return NewServer(cfg, testSources, mem, h, clock, readiness), h
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, store.NewMemory(), nil)

	rec := doRequest(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["sources"])
	assert.Contains(t, body, "uptime_seconds")
	assert.Contains(t, body, "version")
}

type failingPing struct{}

func (failingPing) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth_DegradedWhenRedisUnreachable(t *testing.T) {
	s, _ := newTestServer(t, store.NewMemory(), failingPing{})

	rec := doRequest(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["redis_error"], "connection refused")
}

func TestLiveness(t *testing.T) {
	s, _ := newTestServer(t, store.NewMemory(), nil)

	rec := doRequest(s, http.MethodGet, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, store.NewMemory(), nil)

	rec := doRequest(s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSourcesEndpoint(t *testing.T) {
	s, _ := newTestServer(t, store.NewMemory(), nil)

	rec := doRequest(s, http.MethodGet, "/api/sources")
	require.Equal(t, http.StatusOK, rec.Code)

	var sources []domain.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sources))
	require.Len(t, sources, 2)
	assert.Equal(t, "ALPHA", sources[0].Code)
}

func TestIncidentsEndpoint(t *testing.T) {
	mem := store.NewMemory()
	mem.Put("ALPHA", []domain.Incident{incident("1"), incident("2")})
	s, _ := newTestServer(t, mem, nil)

	rec := doRequest(s, http.MethodGet, "/api/incidents")
	require.Equal(t, http.StatusOK, rec.Code)

	var states []domain.SourceState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))

	// BETA has never been polled and still appears, with an empty list.
	require.Len(t, states, 2)
	assert.Equal(t, "ALPHA", states[0].Center)
	assert.Equal(t, 2, states[0].IncidentCount)
	assert.Equal(t, "BETA", states[1].Center)
	assert.Equal(t, 0, states[1].IncidentCount)
	assert.Empty(t, states[1].Incidents)
}

func TestIncidentsByCode(t *testing.T) {
	mem := store.NewMemory()
	mem.Put("ALPHA", []domain.Incident{incident("1")})
	s, _ := newTestServer(t, mem, nil)

	rec := doRequest(s, http.MethodGet, "/api/incidents/ALPHA")
	require.Equal(t, http.StatusOK, rec.Code)

	var state domain.SourceState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "ALPHA", state.Center)
	assert.Equal(t, 1, state.IncidentCount)
}

func TestIncidentsByCode_KnownButUnpolled(t *testing.T) {
	s, _ := newTestServer(t, store.NewMemory(), nil)

	rec := doRequest(s, http.MethodGet, "/api/incidents/BETA")
	require.Equal(t, http.StatusOK, rec.Code)

	var state domain.SourceState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "BETA", state.Center)
	assert.Equal(t, 0, state.IncidentCount)
}

func TestIncidentsByCode_Unknown(t *testing.T) {
	s, _ := newTestServer(t, store.NewMemory(), nil)

	rec := doRequest(s, http.MethodGet, "/api/incidents/NOPE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
