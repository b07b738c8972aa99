package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poller metrics
var (
	// CyclesTotal tracks completed poll cycles by result
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poller_cycles_total",
			Help: "Completed poll cycles by result (ok/recovered)",
		},
		[]string{"result"},
	)

	// CycleDuration tracks full-cycle duration in seconds
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poller_cycle_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// SourceIncidents tracks the current incident count per source
	SourceIncidents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poller_source_incidents",
			Help: "Current incident count per source",
		},
		[]string{"source"},
	)

	// SourceChangesTotal tracks detected new/removed incidents per source
	SourceChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poller_source_changes_total",
			Help: "Detected incident changes per source and direction (new/removed)",
		},
		[]string{"source", "direction"},
	)
)

// Fetch metrics
var (
	// FetchErrorsTotal tracks failed fetches per source
	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_errors_total",
			Help: "Failed fetches per source",
		},
		[]string{"source"},
	)

	// FetchDuration tracks per-source fetch latency in seconds
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Fetch duration per source in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// FetchCircuitState tracks the per-source breaker state (0=closed, 1=half-open, 2=open)
	FetchCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fetch_circuit_state",
			Help: "Per-source fetch circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)
)

// Hub metrics
var (
	// HubSubscribers tracks currently connected streaming subscribers
	HubSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_subscribers",
			Help: "Currently connected streaming subscribers",
		},
	)

	// HubSlowSubscribersEvicted tracks subscribers evicted for a full send buffer
	HubSlowSubscribersEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_subscribers_evicted_total",
			Help: "Subscribers evicted because their send buffer was full",
		},
	)

	// HubEventsPublishedTotal tracks events published by type
	HubEventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_events_published_total",
			Help: "Events published to subscribers by event type",
		},
		[]string{"type"},
	)

	// HubRegistrationsRejected tracks register attempts beyond the subscriber cap
	HubRegistrationsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_registrations_rejected_total",
			Help: "Register attempts rejected because the subscriber cap was reached",
		},
	)
)

// Notifier metrics
var (
	// NotificationsTotal tracks delta notifications by status
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Delta notifications by status (ok/error)",
		},
		[]string{"status"},
	)
)

// Archive metrics
var (
	// SnapshotSavesTotal tracks snapshot persistence attempts by status
	SnapshotSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_saves_total",
			Help: "Snapshot persistence attempts by status (ok/error)",
		},
		[]string{"status"},
	)
)
