package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
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

// sseClient reads decoded events off a live /events connection.
type sseClient struct {
	resp    *http.Response
	scanner *bufio.Scanner
}

func dialSSE(t *testing.T, baseURL string) *sseClient {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	return &sseClient{resp: resp, scanner: bufio.NewScanner(resp.Body)}
}

func (c *sseClient) next(t *testing.T) domain.Event {
	t.Helper()
	for c.scanner.Scan() {
		line := c.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		return ev
	}
	t.Fatal("stream ended before an event arrived")
	return domain.Event{}
}

func decodeData(t *testing.T, ev domain.Event, out any) {
	t.Helper()
	raw, err := json.Marshal(ev.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestSSE_WelcomeAndInitialData(t *testing.T) {
	mem := store.NewMemory()
	mem.Put("ALPHA", []domain.Incident{incident("1"), incident("2")})
	// BETA is deliberately never polled.

	s, _ := newTestServer(t, mem, nil)
	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	client := dialSSE(t, srv.URL)

	welcome := client.next(t)
	assert.Equal(t, domain.EventWelcome, welcome.Type)
	assert.NotEmpty(t, welcome.Message)

	initial := client.next(t)
	require.Equal(t, domain.EventInitialData, initial.Type)

	var states []domain.SourceState
	decodeData(t, initial, &states)
	require.Len(t, states, 2)
	assert.Equal(t, "ALPHA", states[0].Center)
	assert.Equal(t, 2, states[0].IncidentCount)
	assert.Equal(t, "BETA", states[1].Center)
	assert.Equal(t, 0, states[1].IncidentCount)
	assert.Empty(t, states[1].Incidents)
}

func TestSSE_ReceivesCycleEvents(t *testing.T) {
	s, h := newTestServer(t, store.NewMemory(), nil)
	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	client := dialSSE(t, srv.URL)
	client.next(t) // welcome
	client.next(t) // initial_data

	h.PublishReport(domain.CycleReport{
		Cycle: 7,
		Outcomes: []domain.SourceOutcome{
			{
				Source:    testSources[0],
				Incidents: []domain.Incident{incident("1")},
				Delta:     domain.Delta{New: []domain.Incident{incident("1")}},
				Changed:   true,
			},
		},
	})

	update := client.next(t)
	require.Equal(t, domain.EventIncidentUpdate, update.Type)

	var payload domain.IncidentUpdate
	decodeData(t, update, &payload)
	assert.Equal(t, "ALPHA", payload.Center)
	assert.Equal(t, 1, payload.NewCount)

	summary := client.next(t)
	require.Equal(t, domain.EventScrapeSummary, summary.Type)

	var sum domain.ScrapeSummary
	decodeData(t, summary, &sum)
	assert.Equal(t, uint64(7), sum.Cycle)
}

func TestSSE_RejectsWhenAtCapacity(t *testing.T) {
	s, h := newTestServer(t, store.NewMemory(), nil)
	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	// Occupy the whole registry.
	for i := 0; i < 16; i++ {
		_, err := h.Register()
		require.NoError(t, err)
	}

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSSE_HeartbeatOnIdleStream(t *testing.T) {
	fc := clockwork.NewFakeClock()
	mem := store.NewMemory()
	h := hub.New(testSources, mem, fc, 16)
	defer h.Stop()

	cfg := &config.Config{Port: "0", HeartbeatInterval: 30 * time.Second}
	s := NewServer(cfg, testSources, mem, h, fc, nil)
	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	client := dialSSE(t, srv.URL)
	client.next(t) // welcome
	client.next(t) // initial_data

	// The handler's heartbeat ticker is the only remaining clock waiter.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(30 * time.Second)

	ev := client.next(t)
	assert.Equal(t, domain.EventHeartbeat, ev.Type)
}

func TestSSE_ClientDisconnectReleasesSubscriber(t *testing.T) {
	s, h := newTestServer(t, store.NewMemory(), nil)
	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	client := dialSSE(t, srv.URL)
	client.next(t)

	require.Eventually(t, func() bool { return h.SubscriberCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	_ = client.resp.Body.Close()

	assert.Eventually(t, func() bool { return h.SubscriberCount() == 0 },
		5*time.Second, 20*time.Millisecond, "disconnect must unregister the subscriber")
}
