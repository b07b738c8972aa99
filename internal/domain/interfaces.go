package domain

import "context"

// Fetcher retrieves the current incident set for one source. It is an
// opaque, possibly slow, possibly failing I/O operation; implementations
// must enforce their own bounded timeout per call.
type Fetcher interface {
	Fetch(ctx context.Context, source Source) ([]Incident, error)
}

// SnapshotStore holds the most recently accepted incident set per source.
// Put swaps the full set atomically; there are no partial updates. The
// orchestrator guarantees one writer per source, but the store itself must
// tolerate concurrent access from many sources' tasks and from readers.
type SnapshotStore interface {
	Get(code string) ([]Incident, bool)
	Put(code string, incidents []Incident)
	All() map[string][]Incident
}

// SnapshotArchive persists per-source snapshot documents outside the
// process, used only to seed the SnapshotStore on restart. Steady-state
// operation must be correct without one.
type SnapshotArchive interface {
	Save(ctx context.Context, state SourceState) error
	LoadAll(ctx context.Context) (map[string]SourceState, error)
}

// Notifier is told about non-empty deltas. Failures must never affect the
// poll/broadcast pipeline; callers log and move on.
type Notifier interface {
	Notify(ctx context.Context, source Source, delta Delta) error
}

// ReportSink consumes the aggregate outcome of one poll cycle.
type ReportSink interface {
	PublishReport(report CycleReport)
}
