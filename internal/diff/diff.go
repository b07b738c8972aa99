// Package diff computes the change set between two consecutive incident
// snapshots of the same source. The "what makes two incidents the same
// entity" policy lives entirely in Incident.IdentityKey, keeping this
// package a pure symmetric-difference computation decoupled from I/O.
package diff

import "github.com/entropy-jam/kalitraf-current/internal/domain"

// Compute returns the incidents that appeared in current and disappeared
// from previous, keyed by identity. O(n+m) using hash sets.
//
// An empty or nil previous set yields first-seen semantics: every current
// incident is reported as new and nothing as removed. Callers that treat
// "new" as an alert must suppress the very first cycle per source.
func Compute(sourceCode string, previous, current []domain.Incident) domain.Delta {
	prevKeys := make(map[string]struct{}, len(previous))
	for _, inc := range previous {
		prevKeys[inc.IdentityKey(sourceCode)] = struct{}{}
	}

	curKeys := make(map[string]struct{}, len(current))
	for _, inc := range current {
		curKeys[inc.IdentityKey(sourceCode)] = struct{}{}
	}

	var delta domain.Delta
	for _, inc := range current {
		if _, ok := prevKeys[inc.IdentityKey(sourceCode)]; !ok {
			delta.New = append(delta.New, inc)
		}
	}
	for _, inc := range previous {
		if _, ok := curKeys[inc.IdentityKey(sourceCode)]; !ok {
			delta.Removed = append(delta.Removed, inc)
		}
	}

	return delta
}
