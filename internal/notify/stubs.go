package notify

import (
	"context"

	"github.com/CosmoTheDev/seatwatch/internal/availability"
)

// SMSChannel is a placeholder for text-message delivery. It renders nothing
// and never sends.
type SMSChannel struct{ base }

// NewSMS is the SMS constructor.
func NewSMS(batch availability.Batch, cfg ChannelConfig, env Env) Channel {
	return &SMSChannel{base: newBase("SMS", batch, cfg, env)}
}

func (s *SMSChannel) Render(context.Context) (string, error) { return "", nil }

func (s *SMSChannel) Send(context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return ErrNotImplemented
}

// WebPushChannel is a placeholder for browser push delivery.
type WebPushChannel struct{ base }

// NewWebPush is the WebPush constructor.
func NewWebPush(batch availability.Batch, cfg ChannelConfig, env Env) Channel {
	return &WebPushChannel{base: newBase("WebPush", batch, cfg, env)}
}

func (w *WebPushChannel) Render(context.Context) (string, error) { return "", nil }

func (w *WebPushChannel) Send(context.Context) error {
	if err := w.ready(); err != nil {
		return err
	}
	return ErrNotImplemented
}
