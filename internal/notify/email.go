package notify

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"path/filepath"
	"strings"
	texttemplate "text/template"

	"github.com/CosmoTheDev/seatwatch/internal/availability"
)

// EmailChannel renders the whole batch into one digest and mails it. The
// digest lists every fact, so it suits an operator address; per-student
// mail goes through ThrottledEmail. With more than one recipient the
// addresses go into Bcc.
//
// Config keys: mail_sender, mail_subject, mail_recipient (optional,
// comma separated; used when the batch carries no recipients) and template
// (optional; defaults to Env.DefaultTemplate).
type EmailChannel struct {
	base
	html bool
}

// NewEmail is the Email constructor.
func NewEmail(batch availability.Batch, cfg ChannelConfig, env Env) Channel {
	return &EmailChannel{base: newBase("Email", batch, cfg, env)}
}

func (e *EmailChannel) Render(_ context.Context) (string, error) {
	body, err := e.renderBatch(e.batch)
	if err != nil {
		return "", err
	}
	e.rendered = body
	return body, nil
}

func (e *EmailChannel) Send(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	to := e.recipients()
	if len(to) == 0 {
		return fmt.Errorf("email: no recipient for batch of %d", len(e.batch))
	}
	return e.deliver(ctx, to, e.rendered)
}

func (e *EmailChannel) recipients() []string {
	if out := e.batch.Recipients(); len(out) > 0 {
		return out
	}
	var out []string
	for _, r := range strings.Split(e.cfg["mail_recipient"], ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func (e *EmailChannel) deliver(ctx context.Context, to []string, body string) error {
	if e.env.Mailer == nil {
		return ErrNoTransport
	}
	msg := Message{
		From:    e.cfg["mail_sender"],
		Subject: e.cfg.Get("mail_subject", "Free seats available"),
		Body:    body,
		HTML:    e.html,
	}
	if len(to) == 1 {
		msg.To = to
	} else {
		msg.Bcc = to
	}
	if err := e.env.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("email to %s: %w", strings.Join(to, ", "), err)
	}
	slog.Info("Sending mail status", "channel", e.name, "to", to, "ok", true)
	return nil
}

// renderBatch executes the configured template with batch bound to "data".
// Files ending in .html/.htm are rendered with html/template.
func (e *EmailChannel) renderBatch(batch availability.Batch) (string, error) {
	name := e.cfg.Get("template", e.env.DefaultTemplate)
	if name == "" {
		return "", fmt.Errorf("email: no template configured")
	}
	path := filepath.Join(e.env.TemplateDir, name)
	data := map[string]any{"data": batch}

	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		e.html = true
		tmpl, err := htmltemplate.ParseFiles(path)
		if err != nil {
			return "", fmt.Errorf("email: loading template: %w", err)
		}
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("email: rendering %s: %w", name, err)
		}
	default:
		tmpl, err := texttemplate.ParseFiles(path)
		if err != nil {
			return "", fmt.Errorf("email: loading template: %w", err)
		}
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("email: rendering %s: %w", name, err)
		}
	}
	return strings.TrimSpace(buf.String()), nil
}
