package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/CosmoTheDev/seatwatch/internal/availability"
)

// Options configures a Dispatcher.
type Options struct {
	// Enable is the kill-switch; a disabled dispatcher touches no channel.
	Enable bool
	// Channels lists channel names in dispatch order.
	Channels []string
	// Config holds per-channel parameters keyed by channel name.
	Config   map[string]map[string]string
	Registry *Registry
	Env      Env
}

// Outcome is the result of one channel in a sweep.
type Outcome struct {
	Channel string
	OK      bool
}

// Dispatcher fans a batch out to every configured channel.
type Dispatcher struct {
	enable   bool
	channels []string
	config   map[string]map[string]string
	registry *Registry
	env      Env

	outcomes []Outcome
}

// NewDispatcher validates opts. Unknown channel names are rejected here so a
// misconfiguration stops the run before anything is scraped.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Enable && len(opts.Channels) == 0 {
		return nil, errors.New("notifications enabled but no channels configured")
	}
	if err := opts.Registry.Validate(opts.Channels); err != nil {
		return nil, err
	}
	return &Dispatcher{
		enable:   opts.Enable,
		channels: opts.Channels,
		config:   opts.Config,
		registry: opts.Registry,
		env:      opts.Env,
	}, nil
}

// Enabled reports whether the dispatcher will deliver anything.
func (d *Dispatcher) Enabled() bool { return d.enable }

// Channels returns the configured channel names in dispatch order.
func (d *Dispatcher) Channels() []string { return d.channels }

// Send hands batch to every configured channel in order. It returns false
// only when the dispatcher is disabled; a failing channel is logged and
// does not stop the others. Per-channel results are in Outcomes.
func (d *Dispatcher) Send(ctx context.Context, batch availability.Batch) bool {
	d.outcomes = nil
	if !d.enable {
		slog.Info("notify: dispatcher disabled, nothing sent", "facts", len(batch))
		return false
	}

	slog.Info("Preparing dispatcher", "channels", d.channels, "facts", len(batch))
	for _, name := range d.channels {
		ok := d.sendSingle(ctx, name, batch)
		d.outcomes = append(d.outcomes, Outcome{Channel: name, OK: ok})
	}
	return true
}

func (d *Dispatcher) sendSingle(ctx context.Context, name string, batch availability.Batch) bool {
	cfg, ok := d.config[name]
	if !ok {
		slog.Error("notify: no configuration detected, using defaults", "channel", name)
		cfg = map[string]string{}
	}
	ctor, ok := d.registry.Lookup(name)
	if !ok {
		slog.Error("notify: "+ErrUnknownChannel.Error(), "channel", name)
		return false
	}

	ch := ctor(batch, ChannelConfig(cfg), d.env)
	slog.Info("Sending notifications", "channel", name)
	ok = RenderAndSend(ctx, ch)
	slog.Info("notify: channel finished", "channel", name, "ok", ok)
	return ok
}

// Outcomes returns the per-channel results of the last Send.
func (d *Dispatcher) Outcomes() []Outcome {
	out := make([]Outcome, len(d.outcomes))
	copy(out, d.outcomes)
	return out
}
