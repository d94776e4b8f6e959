package notify

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/CosmoTheDev/seatwatch/internal/availability"
)

// ErrUnknownChannel is returned for channel names with no registered
// constructor.
var ErrUnknownChannel = errors.New("unknown notification channel")

// Constructor builds a channel for one batch.
type Constructor func(batch availability.Batch, cfg ChannelConfig, env Env) Channel

// Registry maps channel names, as written in the streams setting, to their
// constructors.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: map[string]Constructor{}}
}

// DefaultRegistry returns a registry with every built-in channel.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("Email", NewEmail)
	r.Register("ThrottledEmail", NewThrottledEmail)
	r.Register("SMS", NewSMS)
	r.Register("WebPush", NewWebPush)
	r.Register("Webhook", NewWebhook)
	r.Register("Telegram", NewTelegram)
	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, c Constructor) {
	r.ctors[name] = c
}

// Lookup returns the constructor for name.
func (r *Registry) Lookup(name string) (Constructor, bool) {
	c, ok := r.ctors[name]
	return c, ok
}

// Names returns the registered channel names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Validate reports every name in names that is not registered.
func (r *Registry) Validate(names []string) error {
	var unknown []string
	for _, n := range names {
		if _, ok := r.ctors[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s (registered: %s)", ErrUnknownChannel,
			strings.Join(unknown, ", "), strings.Join(r.Names(), ", "))
	}
	return nil
}

// ParseChannels splits the space separated streams setting.
func ParseChannels(streams string) []string {
	return strings.Fields(streams)
}
