package domain

// Incident is one row of the CHP incident table for a communication center.
//
// Time is the source-native timestamp string (e.g. "10:42 AM"). It is never
// parsed, only compared verbatim as part of the identity key.
type Incident struct {
	ID           string       `json:"id"`
	Time         string       `json:"time"`
	Type         string       `json:"type"`
	Location     string       `json:"location"`
	Area         string       `json:"area"`
	Details      string       `json:"details,omitempty"`
	IsRelevant   bool         `json:"is_relevant"`
	LaneBlockage LaneBlockage `json:"lane_blockage"`
}

// LaneBlockage classifies the lane-impact information parsed from the
// free-text details column.
type LaneBlockage struct {
	Status  BlockageStatus `json:"status"`
	Details []string       `json:"details,omitempty"`
}

type BlockageStatus string

const (
	BlockageUnknown  BlockageStatus = "unknown"
	BlockageResolved BlockageStatus = "resolved"
	BlockageBlocking BlockageStatus = "blocking"
	BlockageNone     BlockageStatus = "no_blockage"
)

// IdentityKey builds the key under which two incident records from the same
// source are considered the same entity across polls. Non-key field drift on
// a stable (id, time) pair does not change the key, so it is invisible to
// change detection.
func (i Incident) IdentityKey(sourceCode string) string {
	return sourceCode + "\x00" + i.ID + "\x00" + i.Time
}
