// Package cycle drives one scrape cycle end to end: stale dedup state is
// swept, the extractor's records are loaded into a fresh Aggregator, and the
// Aggregator hands whatever it finds to the dispatcher.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CosmoTheDev/seatwatch/internal/availability"
	"github.com/CosmoTheDev/seatwatch/internal/dedup"
	"github.com/robfig/cron/v3"
)

// ErrBusy is returned by RunOnce when another cycle is still running.
var ErrBusy = errors.New("cycle already running")

// Source yields the records scraped during one cycle.
type Source interface {
	Records(ctx context.Context) ([]availability.Record, error)
}

// FileSource reads the records file an extractor leaves behind.
type FileSource struct {
	Path string
}

func (f FileSource) Records(_ context.Context) ([]availability.Record, error) {
	return availability.LoadRecords(f.Path)
}

// Report summarises a finished cycle.
type Report struct {
	Records  int
	Batch    availability.Batch
	Sent     bool
	Duration time.Duration
}

// Runner executes cycles. At most one cycle runs at a time.
type Runner struct {
	source     Source
	sender     availability.Sender
	recipients map[string]string
	marker     string
	gate       *dedup.Gate

	mu sync.Mutex
}

// NewRunner wires a Runner. gate may be nil when no channel throttles.
func NewRunner(source Source, sender availability.Sender, recipients map[string]string, marker string, gate *dedup.Gate) *Runner {
	return &Runner{
		source:     source,
		sender:     sender,
		recipients: recipients,
		marker:     marker,
		gate:       gate,
	}
}

// RunOnce runs a single cycle. It returns ErrBusy without doing anything if
// a cycle is already in progress.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	if !r.mu.TryLock() {
		return Report{}, ErrBusy
	}
	defer r.mu.Unlock()

	start := time.Now()
	if r.gate != nil {
		if err := r.gate.Sweep(ctx); err != nil {
			slog.Warn("dedup sweep failed, continuing", "error", err)
		}
	}

	records, err := r.source.Records(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("loading records: %w", err)
	}

	agg := availability.NewAggregator(r.sender, r.recipients, r.marker)
	for _, rec := range records {
		agg.Upload(rec)
	}
	batch, sent := agg.Analyze(ctx)
	agg.Reset()

	rep := Report{Records: len(records), Batch: batch, Sent: sent, Duration: time.Since(start)}
	slog.Info("cycle finished", "records", rep.Records, "facts", len(batch), "dispatched", sent,
		"duration", rep.Duration.Round(time.Millisecond))
	return rep, nil
}

// Watch runs a cycle immediately and then on every tick of the cron
// expression until ctx is cancelled. A tick that fires while a cycle is
// still running is skipped.
func (r *Runner) Watch(ctx context.Context, expr string) error {
	c := cron.New()
	if _, err := c.AddFunc(expr, func() { r.tick(ctx) }); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	r.tick(ctx)
	c.Start()
	slog.Info("watch started", "schedule", expr)

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("watch stopped")
	return nil
}

func (r *Runner) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrBusy) {
			slog.Warn("previous cycle still running, skipping tick")
			return
		}
		slog.Error("cycle failed", "error", err)
	}
}
