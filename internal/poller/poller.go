// Package poller drives the fetch-diff-store cycle across all configured
// sources on a fixed cadence.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/entropy-jam/kalitraf-current/internal/diff"
	"github.com/entropy-jam/kalitraf-current/internal/domain"
	"github.com/entropy-jam/kalitraf-current/internal/metrics"
	"github.com/entropy-jam/kalitraf-current/internal/platform/correlation"
)

// Poller fans each tick out across all sources with bounded concurrency,
// aggregates per-source outcomes into a CycleReport, and hands the report
// to the configured sinks. One source's failure never blocks the others
// and never delays the next tick.
type Poller struct {
	sources      []domain.Source
	fetcher      domain.Fetcher
	store        domain.SnapshotStore
	sinks        []domain.ReportSink
	notifier     domain.Notifier
	archive      domain.SnapshotArchive
	clock        clockwork.Clock
	interval     time.Duration
	workers      int
	errorBackoff time.Duration

	cycle uint64
}

// Options configures a Poller. Notifier and Archive may be nil.
type Options struct {
	Sources        []domain.Source
	Fetcher        domain.Fetcher
	Store          domain.SnapshotStore
	Sinks          []domain.ReportSink
	Notifier       domain.Notifier
	Archive        domain.SnapshotArchive
	Clock          clockwork.Clock
	Interval       time.Duration
	MaxConcurrency int
	ErrorBackoff   time.Duration
}

func New(opts Options) *Poller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 30 * time.Second
	}
	return &Poller{
		sources:      opts.Sources,
		fetcher:      opts.Fetcher,
		store:        opts.Store,
		sinks:        opts.Sinks,
		notifier:     opts.Notifier,
		archive:      opts.Archive,
		clock:        opts.Clock,
		interval:     opts.Interval,
		workers:      opts.MaxConcurrency,
		errorBackoff: opts.ErrorBackoff,
	}
}

// Run polls immediately, then on every tick until ctx is cancelled.
// A panicking cycle is recovered, logged, and followed by a bounded backoff
// before ticking resumes; the process never exits on a bad cycle.
func (p *Poller) Run(ctx context.Context) {
	p.tick(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Poller stopped", "cycles", p.cycle)
			return
		case <-ticker.Chan():
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Poll cycle panic recovered", "panic", r)
			metrics.CyclesTotal.WithLabelValues("recovered").Inc()

			backoff := p.clock.NewTimer(p.errorBackoff)
			defer backoff.Stop()
			select {
			case <-backoff.Chan():
			case <-ctx.Done():
			}
		}
	}()

	cycleCtx := correlation.WithID(ctx, correlation.NewID())

	report := p.RunCycle(cycleCtx)
	p.dispatch(cycleCtx, report)

	for _, sink := range p.sinks {
		sink.PublishReport(report)
	}

	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(report.Duration.Seconds())

	slog.InfoContext(cycleCtx, "Poll cycle complete",
		"cycle", report.Cycle,
		"sources", len(report.Outcomes),
		"changed", report.Changed(),
		"errors", report.Errors(),
		"incidents", report.TotalIncidents(),
		"duration", report.Duration,
	)
}

// RunCycle fetches and diffs every source once. It always returns exactly
// one outcome per configured source. A failed fetch records an error
// outcome and leaves that source's snapshot untouched.
func (p *Poller) RunCycle(ctx context.Context) domain.CycleReport {
	p.cycle++
	started := p.clock.Now()

	outcomes := make([]domain.SourceOutcome, len(p.sources))
	jobs := make(chan int, len(p.sources))

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = p.pollSource(ctx, p.sources[i])
			}
		}()
	}

	for i := range p.sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return domain.CycleReport{
		Cycle:     p.cycle,
		StartedAt: started,
		Duration:  p.clock.Since(started),
		Outcomes:  outcomes,
	}
}

// pollSource runs one source's fetch-diff-store task. A panic inside the
// task is contained as an error outcome so sibling sources are unaffected.
func (p *Poller) pollSource(ctx context.Context, source domain.Source) (outcome domain.SourceOutcome) {
	started := p.clock.Now()
	outcome = domain.SourceOutcome{Source: source}

	defer func() {
		outcome.Duration = p.clock.Since(started)
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Source task panic recovered", "source", source.Code, "panic", r)
			outcome.Err = &taskPanicError{value: r}
		}
	}()

	incidents, err := p.fetcher.Fetch(ctx, source)
	if err != nil {
		slog.WarnContext(ctx, "Fetch failed", "source", source.Code, "error", err)
		outcome.Err = err
		return outcome
	}

	previous, _ := p.store.Get(source.Code)
	delta := diff.Compute(source.Code, previous, incidents)
	p.store.Put(source.Code, incidents)

	outcome.Incidents = incidents
	outcome.Delta = delta
	outcome.Changed = !delta.Empty()

	metrics.SourceIncidents.WithLabelValues(source.Code).Set(float64(len(incidents)))
	metrics.SourceChangesTotal.WithLabelValues(source.Code, "new").Add(float64(len(delta.New)))
	metrics.SourceChangesTotal.WithLabelValues(source.Code, "removed").Add(float64(len(delta.Removed)))

	return outcome
}

// dispatch runs the side effects of a finished cycle: snapshot persistence
// and delta notifications for changed sources. Failures here are logged
// and never affect the poll/broadcast pipeline.
func (p *Poller) dispatch(ctx context.Context, report domain.CycleReport) {
	now := p.clock.Now()

	for _, o := range report.Outcomes {
		if o.Err != nil || !o.Changed {
			continue
		}

		if p.archive != nil {
			state := domain.NewSourceState(o.Source, o.Incidents, now)
			if err := p.archive.Save(ctx, state); err != nil {
				slog.WarnContext(ctx, "Snapshot persistence failed", "source", o.Source.Code, "error", err)
				metrics.SnapshotSavesTotal.WithLabelValues("error").Inc()
			} else {
				metrics.SnapshotSavesTotal.WithLabelValues("ok").Inc()
			}
		}

		if p.notifier != nil {
			if err := p.notifier.Notify(ctx, o.Source, o.Delta); err != nil {
				slog.WarnContext(ctx, "Delta notification failed", "source", o.Source.Code, "error", err)
				metrics.NotificationsTotal.WithLabelValues("error").Inc()
			} else {
				metrics.NotificationsTotal.WithLabelValues("ok").Inc()
			}
		}
	}
}

type taskPanicError struct{ value any }

func (e *taskPanicError) Error() string { return fmt.Sprintf("source task panicked: %v", e.value) }
