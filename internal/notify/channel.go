package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/CosmoTheDev/seatwatch/internal/availability"
	"github.com/CosmoTheDev/seatwatch/internal/dedup"
)

var (
	// ErrEmptyRender is returned by Send when Render produced no body.
	ErrEmptyRender = errors.New("rendered template was found empty")
	// ErrNotImplemented is returned by channels without a transport.
	ErrNotImplemented = errors.New("channel transport not implemented")
	// ErrNoTransport is returned when a channel has no Mailer to send with.
	ErrNoTransport = errors.New("no mail transport configured")
)

// ChannelConfig is the opaque per-channel parameter bag from the channel
// config file, e.g. mail_sender and mail_subject for Email.
type ChannelConfig map[string]string

// Get returns the value for key, or def when it is unset or empty.
func (c ChannelConfig) Get(key, def string) string {
	if v := c[key]; v != "" {
		return v
	}
	return def
}

// Env carries the process-wide collaborators a channel may need.
type Env struct {
	Mailer Mailer
	// Gate throttles per-item deliveries; channels that do not throttle
	// ignore it.
	Gate *dedup.Gate
	// TemplateDir is where named email templates are resolved.
	TemplateDir string
	// DefaultTemplate is used when a channel config names no template.
	DefaultTemplate string
}

// Channel is implemented by each delivery mechanism. A Channel is built for
// one batch; Render must run before Send.
type Channel interface {
	Name() string
	// Render produces the message body. An empty body means there is
	// nothing to send.
	Render(ctx context.Context) (string, error)
	// Send delivers the rendered body. It returns ErrEmptyRender when the
	// body is empty.
	Send(ctx context.Context) error
}

// RenderAndSend renders ch and, when that produced a body, sends it.
// Every failure is logged here; callers only see the outcome.
func RenderAndSend(ctx context.Context, ch Channel) bool {
	slog.Debug("Rendering the notification's template", "channel", ch.Name())
	body, err := ch.Render(ctx)
	if err != nil {
		slog.Error("notify: render failed", "channel", ch.Name(), "error", err)
		return false
	}
	if body == "" {
		slog.Error("notify: "+ErrEmptyRender.Error(), "channel", ch.Name())
		return false
	}
	if err := ch.Send(ctx); err != nil {
		slog.Error("notify: channel send failed", "channel", ch.Name(), "error", err)
		return false
	}
	return true
}

// base holds what every channel shares.
type base struct {
	name     string
	batch    availability.Batch
	cfg      ChannelConfig
	env      Env
	rendered string
}

func newBase(name string, batch availability.Batch, cfg ChannelConfig, env Env) base {
	if cfg == nil {
		cfg = ChannelConfig{}
	}
	return base{name: name, batch: batch, cfg: cfg, env: env}
}

func (b *base) Name() string { return b.name }

func (b *base) ready() error {
	if b.rendered == "" {
		return ErrEmptyRender
	}
	return nil
}
