package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/CosmoTheDev/seatwatch/internal/availability"
	"github.com/CosmoTheDev/seatwatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSignsPayload(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Seatwatch-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhook(algebraBatch(), ChannelConfig{"url": srv.URL, "secret": "s3cret"}, Env{})
	require.True(t, RenderAndSend(context.Background(), ch))

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "seats_available", payload.Type)
	require.Len(t, payload.Facts, 1)
	assert.Equal(t, "a@x.com", payload.Facts[0].Recipient)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSig)
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	assert.False(t, RenderAndSend(context.Background(), NewWebhook(algebraBatch(), ChannelConfig{"url": srv.URL}, Env{})))
	assert.False(t, RenderAndSend(context.Background(), NewWebhook(algebraBatch(), nil, Env{})))
}

func TestTelegramSendsSummary(t *testing.T) {
	var got map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":99,"type":"private"}}}`)
	}))
	defer srv.Close()
	prev := telegramAPI
	telegramAPI = srv.URL
	defer func() { telegramAPI = prev }()

	ch := NewTelegram(algebraBatch(), ChannelConfig{"bot_token": "T", "chat_id": "99"}, Env{})
	require.True(t, RenderAndSend(context.Background(), ch))
	assert.Equal(t, "/botT/sendMessage", path)
	assert.Equal(t, "99", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Contains(t, got["text"], "<b>Algebra</b>")
}

func TestTelegramAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()
	prev := telegramAPI
	telegramAPI = srv.URL
	defer func() { telegramAPI = prev }()

	ch := NewTelegram(algebraBatch(), ChannelConfig{"bot_token": "T", "chat_id": "@nowhere"}, Env{})
	assert.False(t, RenderAndSend(context.Background(), ch))
	assert.False(t, RenderAndSend(context.Background(), NewTelegram(algebraBatch(), nil, Env{})))
}

func TestTelegramRenderStaysWithinLimit(t *testing.T) {
	var batch availability.Batch
	for i := 0; i < 200; i++ {
		batch = append(batch, availability.Fact{
			Record: availability.Record{
				SubjectName: "Równania różniczkowe & <całki> " + strings.Repeat("ł", i%37),
				TimeSlot:    "Pn 10:15",
				SeatsFree:   i + 1,
				SourceURL:   fmt.Sprintf("https://usos.example/?course_id=%d&group=%d", i, i%5),
			},
			Recipient: "a@x.com",
		})
	}

	body, err := NewTelegram(batch, nil, Env{}).Render(context.Background())
	require.NoError(t, err)
	assertTelegramSafe(t, body)
	assert.Contains(t, body, "more")
	assert.True(t, strings.HasPrefix(body, "<b>Równania różniczkowe &amp; &lt;całki&gt; </b>"))

	huge := algebraBatch()
	huge[0].SubjectName = strings.Repeat("ż", 10000)
	body, err = NewTelegram(huge, nil, Env{}).Render(context.Background())
	require.NoError(t, err)
	assertTelegramSafe(t, body)
	assert.Contains(t, body, "…</b>")
	assert.Contains(t, body, "course_id=42")
}

func assertTelegramSafe(t *testing.T, body string) {
	t.Helper()
	assert.True(t, utf8.ValidString(body))
	assert.LessOrEqual(t, utf8.RuneCountInString(body), telegramMaxRunes)
	assert.Equal(t, strings.Count(body, "<b>"), strings.Count(body, "</b>"))
	for _, line := range strings.Split(body, "\n") {
		assert.Equal(t, strings.Count(line, "<b>"), strings.Count(line, "</b>"), line)
	}
}

func TestBuildMessageKeepsBccOutOfHeaders(t *testing.T) {
	msg := Message{Bcc: []string{"a@x.com", "b@x.com"}, Subject: "Seats", Body: "x"}
	raw := string(buildMessage("bot@x.com", msg))
	assert.Contains(t, raw, "To: undisclosed-recipients:;\r\n")
	assert.NotContains(t, raw, "a@x.com")
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, msg.Recipients())
}

func TestBuildMessage(t *testing.T) {
	raw := string(buildMessage("bot@x.com", Message{
		To:      []string{"a@x.com", "b@x.com"},
		Subject: "Wolne miejsca",
		Body:    "line1\nline2",
		HTML:    true,
	}))
	assert.Contains(t, raw, "From: bot@x.com\r\n")
	assert.Contains(t, raw, "To: a@x.com, b@x.com\r\n")
	assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nline1\r\nline2"))
}

func TestXOAuth2Auth(t *testing.T) {
	a := &xoauth2Auth{user: "bot@x.com", token: "tok"}

	mech, resp, err := a.Start(&smtp.ServerInfo{Name: "smtp.gmail.com", TLS: true})
	require.NoError(t, err)
	assert.Equal(t, "XOAUTH2", mech)
	assert.Equal(t, "user=bot@x.com\x01auth=Bearer tok\x01\x01", string(resp))

	_, _, err = a.Start(&smtp.ServerInfo{Name: "smtp.gmail.com"})
	assert.Error(t, err)

	_, err = a.Next([]byte(`{"status":"401"}`), true)
	assert.Error(t, err)
	_, err = a.Next(nil, false)
	assert.NoError(t, err)
}

func TestNewSMTPMailerCredentials(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m, err := NewSMTPMailer(ctx, config.SMTPConfig{Host: "smtp.example", OAuth2File: filepath.Join(dir, "missing.json")})
	require.NoError(t, err)
	assert.False(t, m.UsesOAuth2())

	creds := filepath.Join(dir, "oauth2_creds.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{
		"email_address": "bot@x.com",
		"google_client_id": "id",
		"google_client_secret": "secret",
		"google_refresh_token": "refresh"
	}`), 0o600))
	m, err = NewSMTPMailer(ctx, config.SMTPConfig{Host: "smtp.example", OAuth2File: creds})
	require.NoError(t, err)
	assert.True(t, m.UsesOAuth2())
	assert.Equal(t, "bot@x.com", m.user)
	assert.Equal(t, 587, m.port)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"email_address": "bot@x.com"}`), 0o600))
	_, err = NewSMTPMailer(ctx, config.SMTPConfig{Host: "smtp.example", OAuth2File: bad})
	assert.Error(t, err)

	_, err = NewSMTPMailer(ctx, config.SMTPConfig{})
	assert.Error(t, err)
}
