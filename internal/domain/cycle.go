package domain

import "time"

// SourceOutcome records what happened to a single source during one poll
// cycle. Exactly one outcome exists per configured source per cycle.
type SourceOutcome struct {
	Source    Source
	Incidents []Incident
	Delta     Delta
	Changed   bool
	Duration  time.Duration
	Err       error
}

// Status returns the wire status string for the outcome.
func (o SourceOutcome) Status() string {
	if o.Err != nil {
		return "error"
	}
	return "success"
}

// CycleReport aggregates all per-source outcomes for one scheduler tick.
// Built fresh each cycle, handed to the broadcast hub and then discarded.
type CycleReport struct {
	Cycle     uint64
	StartedAt time.Time
	Duration  time.Duration
	Outcomes  []SourceOutcome
}

// TotalIncidents sums the incident counts of all successful outcomes.
func (r CycleReport) TotalIncidents() int {
	total := 0
	for _, o := range r.Outcomes {
		total += len(o.Incidents)
	}
	return total
}

// Errors counts the outcomes that failed.
func (r CycleReport) Errors() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Changed counts the outcomes with a non-empty delta.
func (r CycleReport) Changed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Changed {
			n++
		}
	}
	return n
}
