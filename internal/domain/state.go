package domain

import "time"

// SourceState is the externally visible "current state" of one source: the
// last successfully fetched incident set plus identification and freshness
// metadata. It is the payload shape shared by the initial_data and
// incident_update events and by the persisted per-source snapshot document.
type SourceState struct {
	Center        string     `json:"center"`
	CenterName    string     `json:"center_name"`
	Incidents     []Incident `json:"incidents"`
	IncidentCount int        `json:"incident_count"`
	LastUpdated   time.Time  `json:"last_updated"`
}

// NewSourceState builds a SourceState, normalising a nil incident slice to
// an empty one so consumers always see a JSON array.
func NewSourceState(source Source, incidents []Incident, updated time.Time) SourceState {
	if incidents == nil {
		incidents = []Incident{}
	}
	return SourceState{
		Center:        source.Code,
		CenterName:    source.Name,
		Incidents:     incidents,
		IncidentCount: len(incidents),
		LastUpdated:   updated,
	}
}
