package dedup

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultMaxSame is how often the same fact may be delivered per window.
	DefaultMaxSame = 3
	// DefaultWindow is the inactivity period after which counters reset.
	DefaultWindow = time.Hour
)

// Gate decides, per item, whether a delivery may go out.
type Gate struct {
	store   Store
	maxSame int
	window  time.Duration
	now     func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// NewGate returns a Gate over store. Non-positive limits fall back to the
// defaults.
func NewGate(store Store, maxSame int, window time.Duration, opts ...GateOption) *Gate {
	if maxSame <= 0 {
		maxSame = DefaultMaxSame
	}
	if window <= 0 {
		window = DefaultWindow
	}
	g := &Gate{store: store, maxSame: maxSame, window: window, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// MaxSame returns the per-window delivery limit.
func (g *Gate) MaxSame() int { return g.maxSame }

// Result summarises one Run.
type Result struct {
	Delivered  int
	Suppressed int
	Failed     int
}

// Sweep wipes the stored state if it is stale. It is meant to run once at
// the start of a cycle.
func (g *Gate) Sweep(ctx context.Context) error {
	return g.store.Update(ctx, func(s *State) error {
		if s.Stale(g.now(), g.window) && (len(s.Sent) > 0 || !s.LastActivity.IsZero()) {
			slog.Info("dedup window elapsed, clearing counters", "entries", len(s.Sent))
			s.Reset()
		}
		return nil
	})
}

// Run delivers items through deliver, skipping those already delivered
// MaxSame times in the current window. The stale check happens before any
// item is evaluated. Only successful deliveries are counted. The whole run
// is one store transaction; a store failure is logged and the run proceeds
// without suppression history rather than dropping notifications.
func Run[T any](ctx context.Context, g *Gate, items []T, deliver func(ctx context.Context, item T) error) Result {
	var (
		res Result
		ran bool
	)
	process := func(s *State) error {
		ran = true
		res = Result{}
		now := g.now()
		if s.Stale(now, g.window) {
			s.Reset()
		}
		for _, item := range items {
			hash, err := Hash(item)
			if err != nil {
				slog.Error("dedup: cannot hash item", "error", err)
				res.Failed++
				continue
			}
			count := s.Sent[hash]
			if count+1 > g.maxSame {
				slog.Debug("dedup: suppressed", "hash", hash, "count", count)
				res.Suppressed++
				continue
			}
			if err := deliver(ctx, item); err != nil {
				slog.Error("dedup: delivery failed", "hash", hash, "error", err)
				res.Failed++
				continue
			}
			s.Sent[hash] = count + 1
			s.LastActivity = g.now()
			res.Delivered++
		}
		return nil
	}

	if err := g.store.Update(ctx, process); err != nil {
		slog.Error("dedup: state could not be persisted", "error", err)
		if !ran {
			// The transaction never started; deliver without history.
			fresh := NewState()
			_ = process(&fresh)
		}
	}
	return res
}
