package domain

import "time"

// EventType discriminates the messages pushed over a streaming connection.
type EventType string

const (
	EventWelcome        EventType = "welcome"
	EventInitialData    EventType = "initial_data"
	EventIncidentUpdate EventType = "incident_update"
	EventScrapeSummary  EventType = "scrape_summary"
	EventHeartbeat      EventType = "heartbeat"
)

// Event is the envelope for every message pushed to a subscriber.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// IncidentUpdate is the payload of an incident_update event: the full
// current state of one changed source plus the delta that triggered it.
// Consumers render full state per source; the delta counts are advisory.
type IncidentUpdate struct {
	SourceState
	NewCount     int        `json:"new_count"`
	RemovedCount int        `json:"removed_count"`
	NewIncidents []Incident `json:"new_incidents,omitempty"`
	Removed      []Incident `json:"removed_incidents,omitempty"`
}

// OutcomeSummary is the per-source line item of a scrape_summary event.
type OutcomeSummary struct {
	Center        string `json:"center"`
	CenterName    string `json:"center_name"`
	Status        string `json:"status"`
	IncidentCount int    `json:"incident_count"`
	NewCount      int    `json:"new_count"`
	RemovedCount  int    `json:"removed_count"`
	Error         string `json:"error,omitempty"`
}

// ScrapeSummary is the payload of a scrape_summary event, published once
// per cycle regardless of whether any source changed.
type ScrapeSummary struct {
	Cycle          uint64           `json:"cycle"`
	Centers        int              `json:"centers"`
	ChangedCenters int              `json:"changed_centers"`
	ErrorCenters   int              `json:"error_centers"`
	TotalIncidents int              `json:"total_incidents"`
	DurationMs     int64            `json:"duration_ms"`
	Results        []OutcomeSummary `json:"results"`
}

// NewWelcomeEvent builds the greeting sent once per connection.
func NewWelcomeEvent(now time.Time) Event {
	return Event{
		Type:      EventWelcome,
		Timestamp: now,
		Message:   "Connected to CHP traffic incident stream",
	}
}

// NewInitialDataEvent carries the point-in-time state of every source so a
// late joiner is not starved of context until the next change.
func NewInitialDataEvent(now time.Time, states []SourceState) Event {
	if states == nil {
		states = []SourceState{}
	}
	return Event{Type: EventInitialData, Timestamp: now, Data: states}
}

// NewHeartbeatEvent keeps intermediaries from closing an idle connection.
func NewHeartbeatEvent(now time.Time) Event {
	return Event{Type: EventHeartbeat, Timestamp: now}
}

// NewIncidentUpdateEvent builds the per-source change event from a cycle
// outcome. Callers must only pass outcomes with a non-empty delta.
func NewIncidentUpdateEvent(now time.Time, o SourceOutcome) Event {
	return Event{
		Type:      EventIncidentUpdate,
		Timestamp: now,
		Data: IncidentUpdate{
			SourceState:  NewSourceState(o.Source, o.Incidents, now),
			NewCount:     len(o.Delta.New),
			RemovedCount: len(o.Delta.Removed),
			NewIncidents: o.Delta.New,
			Removed:      o.Delta.Removed,
		},
	}
}

// NewScrapeSummaryEvent aggregates one cycle report into its wire form.
func NewScrapeSummaryEvent(now time.Time, report CycleReport) Event {
	results := make([]OutcomeSummary, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		summary := OutcomeSummary{
			Center:        o.Source.Code,
			CenterName:    o.Source.Name,
			Status:        o.Status(),
			IncidentCount: len(o.Incidents),
			NewCount:      len(o.Delta.New),
			RemovedCount:  len(o.Delta.Removed),
		}
		if o.Err != nil {
			summary.Error = o.Err.Error()
		}
		results = append(results, summary)
	}

	return Event{
		Type:      EventScrapeSummary,
		Timestamp: now,
		Data: ScrapeSummary{
			Cycle:          report.Cycle,
			Centers:        len(report.Outcomes),
			ChangedCenters: report.Changed(),
			ErrorCenters:   report.Errors(),
			TotalIncidents: report.TotalIncidents(),
			DurationMs:     report.Duration.Milliseconds(),
			Results:        results,
		},
	}
}
