package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CosmoTheDev/seatwatch/internal/availability"
	"github.com/CosmoTheDev/seatwatch/internal/dedup"
)

// ThrottledEmailChannel mails every fact separately to its own recipient and
// skips facts already mailed MaxSame times in the current dedup window.
type ThrottledEmailChannel struct {
	EmailChannel
	items []throttledItem
}

// throttledItem hashes like its Fact; body is unexported and not part of
// the dedup key.
type throttledItem struct {
	availability.Fact
	body string
}

// NewThrottledEmail is the ThrottledEmail constructor.
func NewThrottledEmail(batch availability.Batch, cfg ChannelConfig, env Env) Channel {
	return &ThrottledEmailChannel{
		EmailChannel: EmailChannel{base: newBase("ThrottledEmail", batch, cfg, env)},
	}
}

// Render renders one body per fact. The returned text is all bodies joined
// and only serves the empty check.
func (t *ThrottledEmailChannel) Render(_ context.Context) (string, error) {
	t.items = t.items[:0]
	bodies := make([]string, 0, len(t.batch))
	for _, f := range t.batch {
		body, err := t.renderBatch(availability.Batch{f})
		if err != nil {
			return "", err
		}
		if body == "" {
			continue
		}
		t.items = append(t.items, throttledItem{Fact: f, body: body})
		bodies = append(bodies, body)
	}
	t.rendered = strings.Join(bodies, "\n\n")
	return t.rendered, nil
}

func (t *ThrottledEmailChannel) Send(ctx context.Context) error {
	if err := t.ready(); err != nil {
		return err
	}
	gate := t.env.Gate
	if gate == nil {
		slog.Warn("notify: no dedup gate configured, throttling in memory only", "channel", t.name)
		gate = dedup.NewGate(dedup.NewMemoryStore(), 0, 0)
	}

	res := dedup.Run(ctx, gate, t.items, func(ctx context.Context, it throttledItem) error {
		to := it.Recipient
		if to == "" {
			to = t.cfg["mail_recipient"]
		}
		if to == "" {
			return fmt.Errorf("no recipient for %q", it.SubjectName)
		}
		return t.deliver(ctx, []string{to}, it.body)
	})

	slog.Info("notify: throttled delivery finished", "channel", t.name,
		"delivered", res.Delivered, "suppressed", res.Suppressed, "failed", res.Failed)
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d deliveries failed", res.Failed, len(t.items))
	}
	return nil
}
