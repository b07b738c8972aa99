// Package hub fans poll cycle events out to streaming subscribers. It is
// transport agnostic: SSE and WebSocket handlers both consume the same
// pre-marshaled frames from a subscriber channel.
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
	"github.com/entropy-jam/kalitraf-current/internal/metrics"
)

const (
	commandTimeout       = 5 * time.Second
	stopTimeout          = 10 * time.Second
	subscriberBufferSize = 64
)

// ErrCapacity is returned by Register when the subscriber cap is reached.
var ErrCapacity = errors.New("subscriber capacity reached")

// Subscriber is one streaming consumer. Frames arrive on Events already
// marshaled; a closed channel means the hub evicted or stopped the
// subscriber and the transport must end the connection.
type Subscriber struct {
	ID   uuid.UUID
	send chan []byte
}

func (s *Subscriber) Events() <-chan []byte { return s.send }

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	reply chan registerReply
}

type registerReply struct {
	sub *Subscriber
	err error
}

type unregisterCmd struct {
	baseHubCmd
	id uuid.UUID
}

type publishCmd struct {
	baseHubCmd
	report domain.CycleReport
}

type countCmd struct {
	baseHubCmd
	reply chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub owns the subscriber registry. All state is confined to the run
// goroutine; the public methods are commands sent over a channel, so
// registration, eviction, and fan-out are serialized and every subscriber
// sees welcome, initial_data, then cycle events in that order.
type Hub struct {
	cmdCh          chan hubCmd
	clock          clockwork.Clock
	sources        []domain.Source
	store          domain.SnapshotStore
	subscribers    map[uuid.UUID]*Subscriber
	maxSubscribers int
	done           chan struct{}
}

func New(sources []domain.Source, store domain.SnapshotStore, clock clockwork.Clock, maxSubscribers int) *Hub {
	h := &Hub{
		cmdCh:          make(chan hubCmd, 256),
		clock:          clock,
		sources:        sources,
		store:          store,
		subscribers:    make(map[uuid.UUID]*Subscriber),
		maxSubscribers: maxSubscribers,
	}
	h.done = make(chan struct{})
	go h.run()
	return h
}

// Register adds a subscriber and queues its welcome and initial_data
// frames before returning, so a late joiner always sees current state
// before the next change event.
func (h *Hub) Register() (*Subscriber, error) {
	reply := make(chan registerReply, 1)
	h.cmdCh <- registerCmd{reply: reply}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case r := <-reply:
		return r.sub, r.err
	case <-timer.Chan():
		return nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a subscriber and closes its event channel. Safe to
// call for an already evicted subscriber.
func (h *Hub) Unregister(id uuid.UUID) {
	h.cmdCh <- unregisterCmd{id: id}
}

// PublishReport implements domain.ReportSink. It emits one incident_update
// per changed source followed by one scrape_summary for the cycle.
func (h *Hub) PublishReport(report domain.CycleReport) {
	h.cmdCh <- publishCmd{report: report}
}

// SubscriberCount returns the current registry size, or -1 on timeout.
func (h *Hub) SubscriberCount() int {
	reply := make(chan int, 1)
	h.cmdCh <- countCmd{reply: reply}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-reply:
		return n
	case <-timer.Chan():
		slog.Warn("SubscriberCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop closes all subscriber channels and shuts the hub down. Blocks until
// the run goroutine exits or the stop timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			c.reply <- h.handleRegister()
		case unregisterCmd:
			h.handleUnregister(c.id)
		case publishCmd:
			h.handlePublish(c.report)
		case countCmd:
			c.reply <- len(h.subscribers)
		case stopCmd:
			for id, sub := range h.subscribers {
				close(sub.send)
				delete(h.subscribers, id)
			}
			metrics.HubSubscribers.Set(0)
			return
		}
	}
}

func (h *Hub) handleRegister() registerReply {
	if len(h.subscribers) >= h.maxSubscribers {
		metrics.HubRegistrationsRejected.Inc()
		return registerReply{err: ErrCapacity}
	}

	sub := &Subscriber{
		ID:   uuid.New(),
		send: make(chan []byte, subscriberBufferSize),
	}
	h.subscribers[sub.ID] = sub
	metrics.HubSubscribers.Set(float64(len(h.subscribers)))

	now := h.clock.Now()
	h.sendTo(sub, domain.NewWelcomeEvent(now))
	h.sendTo(sub, domain.NewInitialDataEvent(now, h.currentStates(now)))

	slog.Debug("Subscriber registered", "subscriber", sub.ID, "total", len(h.subscribers))
	return registerReply{sub: sub}
}

func (h *Hub) handleUnregister(id uuid.UUID) {
	sub, ok := h.subscribers[id]
	if !ok {
		return
	}
	close(sub.send)
	delete(h.subscribers, id)
	metrics.HubSubscribers.Set(float64(len(h.subscribers)))
	slog.Debug("Subscriber unregistered", "subscriber", id, "total", len(h.subscribers))
}

func (h *Hub) handlePublish(report domain.CycleReport) {
	now := h.clock.Now()

	for _, o := range report.Outcomes {
		if o.Err != nil || !o.Changed {
			continue
		}
		h.broadcast(domain.NewIncidentUpdateEvent(now, o))
	}

	h.broadcast(domain.NewScrapeSummaryEvent(now, report))
}

// broadcast marshals once and fans the frame out to every subscriber. A
// subscriber whose buffer is full is evicted rather than allowed to stall
// the hub or grow unbounded backlog.
func (h *Hub) broadcast(event domain.Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		slog.Error("Event marshal failed", "type", event.Type, "error", err)
		return
	}
	metrics.HubEventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()

	for id, sub := range h.subscribers {
		select {
		case sub.send <- frame:
		default:
			close(sub.send)
			delete(h.subscribers, id)
			metrics.HubSlowSubscribersEvicted.Inc()
			slog.Warn("Slow subscriber evicted", "subscriber", id, "event", event.Type)
		}
	}
	metrics.HubSubscribers.Set(float64(len(h.subscribers)))
}

// sendTo queues a frame for a single fresh subscriber. The buffer is empty
// at registration time, so this cannot block.
func (h *Hub) sendTo(sub *Subscriber, event domain.Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		slog.Error("Event marshal failed", "type", event.Type, "error", err)
		return
	}
	sub.send <- frame
}

// currentStates assembles the initial_data payload in catalog order. Every
// configured source appears; one the store has never seen yields an empty
// incident list, so a late joiner can always render the full catalog.
func (h *Hub) currentStates(now time.Time) []domain.SourceState {
	states := make([]domain.SourceState, 0, len(h.sources))
	for _, src := range h.sources {
		incidents, _ := h.store.Get(src.Code)
		states = append(states, domain.NewSourceState(src, incidents, now))
	}
	return states
}
