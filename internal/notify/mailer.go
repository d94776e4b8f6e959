package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/CosmoTheDev/seatwatch/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Message is one outgoing mail. Bcc recipients get the mail but do not
// appear in its headers.
type Message struct {
	From    string
	To      []string
	Bcc     []string
	Subject string
	Body    string
	HTML    bool
}

// Recipients returns the envelope recipients: To followed by Bcc.
func (m Message) Recipients() []string {
	return append(append([]string(nil), m.To...), m.Bcc...)
}

// Mailer delivers mail.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// OAuth2Credentials is the out-of-band credential artifact for XOAUTH2,
// in the layout of the oauth2_creds.json files generated for Gmail.
type OAuth2Credentials struct {
	EmailAddress string `json:"email_address"`
	ClientID     string `json:"google_client_id"`
	ClientSecret string `json:"google_client_secret"`
	RefreshToken string `json:"google_refresh_token"`
}

// LoadOAuth2Credentials reads and checks a credentials file.
func LoadOAuth2Credentials(path string) (*OAuth2Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading oauth2 credentials: %w", err)
	}
	var c OAuth2Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing oauth2 credentials %s: %w", path, err)
	}
	if c.ClientID == "" || c.RefreshToken == "" {
		return nil, fmt.Errorf("oauth2 credentials %s: google_client_id and google_refresh_token are required", path)
	}
	return &c, nil
}

// SMTPMailer sends mail over SMTP with STARTTLS. It authenticates with
// XOAUTH2 when an OAuth2 credentials file is present, with PLAIN when a
// password is configured, and not at all otherwise.
type SMTPMailer struct {
	host    string
	port    int
	timeout time.Duration

	user     string
	password string
	tokens   oauth2.TokenSource
}

// NewSMTPMailer builds a mailer from cfg. A missing OAuth2 file is not an
// error; the mailer then falls back to password or no authentication.
func NewSMTPMailer(ctx context.Context, cfg config.SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host not configured")
	}
	m := &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		timeout:  cfg.Timeout,
		user:     cfg.Username,
		password: cfg.Password,
	}
	if m.port == 0 {
		m.port = 587
	}
	if m.timeout <= 0 {
		m.timeout = 30 * time.Second
	}

	if cfg.OAuth2File != "" {
		creds, err := LoadOAuth2Credentials(cfg.OAuth2File)
		switch {
		case err == nil:
			oc := &oauth2.Config{
				ClientID:     creds.ClientID,
				ClientSecret: creds.ClientSecret,
				Endpoint:     endpoints.Google,
				Scopes:       []string{"https://mail.google.com/"},
			}
			m.tokens = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
			if m.user == "" {
				m.user = creds.EmailAddress
			}
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("oauth2 credentials file not found, falling back", "file", cfg.OAuth2File)
		default:
			return nil, err
		}
	}
	return m, nil
}

// UsesOAuth2 reports whether XOAUTH2 is configured.
func (m *SMTPMailer) UsesOAuth2() bool { return m.tokens != nil }

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	rcpts := msg.Recipients()
	if len(rcpts) == 0 {
		return errors.New("smtp: no recipients")
	}
	from := msg.From
	if from == "" {
		from = m.user
	}
	if from == "" {
		return errors.New("smtp: sender not configured")
	}

	auth, err := m.auth()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	dialer := &net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp: dial %s: %w", addr, err)
	}
	deadline := time.Now().Add(m.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp: handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp: starttls: %w", err)
		}
	}
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp: auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp: MAIL FROM: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: RCPT TO %s: %w", rcpt, err)
		}
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: DATA: %w", err)
	}
	if _, err := wc.Write(buildMessage(from, msg)); err != nil {
		_ = wc.Close()
		return fmt.Errorf("smtp: writing body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp: closing body: %w", err)
	}
	return client.Quit()
}

func (m *SMTPMailer) auth() (smtp.Auth, error) {
	switch {
	case m.tokens != nil:
		tok, err := m.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("smtp: refreshing oauth2 token: %w", err)
		}
		return &xoauth2Auth{user: m.user, token: tok.AccessToken}, nil
	case m.password != "":
		return smtp.PlainAuth("", m.user, m.password, m.host), nil
	default:
		return nil, nil
	}
}

// buildMessage renders headers and body with CRLF line endings. Bcc never
// reaches the headers.
func buildMessage(from string, msg Message) []byte {
	contentType := "text/plain; charset=UTF-8"
	if msg.HTML {
		contentType = "text/html; charset=UTF-8"
	}
	to := "undisclosed-recipients:;"
	if len(msg.To) > 0 {
		to = strings.Join(msg.To, ", ")
	}
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("UTF-8", msg.Subject),
		"Date: " + time.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: " + contentType,
	}
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body)
}

// xoauth2Auth implements the XOAUTH2 SASL mechanism.
type xoauth2Auth struct {
	user  string
	token string
}

func (a *xoauth2Auth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS && !isLocalhost(server.Name) {
		return "", nil, errors.New("xoauth2: refusing to send token over an unencrypted connection")
	}
	resp := "user=" + a.user + "\x01auth=Bearer " + a.token + "\x01\x01"
	return "XOAUTH2", []byte(resp), nil
}

func (a *xoauth2Auth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		// The server sends a JSON error challenge before rejecting.
		return nil, fmt.Errorf("xoauth2: %s", fromServer)
	}
	return nil, nil
}

func isLocalhost(name string) bool {
	return name == "localhost" || name == "127.0.0.1" || name == "::1"
}
