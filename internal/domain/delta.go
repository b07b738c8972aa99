package domain

// Delta is the set of incidents that appeared and disappeared between two
// consecutive snapshots of the same source. It is transient: computed for
// one poll cycle, broadcast, and discarded.
type Delta struct {
	New     []Incident `json:"new"`
	Removed []Incident `json:"removed"`
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.New) == 0 && len(d.Removed) == 0
}
