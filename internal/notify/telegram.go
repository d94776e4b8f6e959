package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/CosmoTheDev/seatwatch/internal/availability"
	tele "gopkg.in/telebot.v4"
)

// telegramAPI is overridable in tests.
var telegramAPI = "https://api.telegram.org"

// TelegramChannel sends one summary message through a Telegram bot.
//
// Config keys: bot_token, chat_id.
type TelegramChannel struct {
	base
	client *http.Client
}

// NewTelegram is the Telegram constructor.
func NewTelegram(batch availability.Batch, cfg ChannelConfig, env Env) Channel {
	return &TelegramChannel{
		base:   newBase("Telegram", batch, cfg, env),
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Telegram rejects messages over 4096 characters. Counting runes of the
// raw markup overestimates the parsed length, so staying under the limit
// here is enough. telegramReserve keeps room for the trailer line.
const (
	telegramMaxRunes = 4096
	telegramReserve  = 32
)

// Render lists one fact per entry. Entries that do not fit are dropped
// whole and summarised in a trailer, so no tag or rune is ever split.
func (t *TelegramChannel) Render(_ context.Context) (string, error) {
	budget := telegramMaxRunes - telegramReserve
	var (
		entries []string
		used    int
	)
	for i, f := range t.batch {
		entry := telegramEntry(f, budget)
		n := utf8.RuneCountInString(entry)
		if len(entries) > 0 {
			n++ // separator
		}
		if used+n > budget {
			entries = append(entries, fmt.Sprintf("… and %d more", len(t.batch)-i))
			break
		}
		entries = append(entries, entry)
		used += n
	}
	t.rendered = strings.Join(entries, "\n")
	return t.rendered, nil
}

// telegramEntry formats one fact, shortening the subject until the entry
// fits in limit runes.
func telegramEntry(f availability.Fact, limit int) string {
	subject := []rune(f.SubjectName)
	suffix := ""
	for {
		entry := fmt.Sprintf("<b>%s%s</b> (%s): %d free\n%s",
			html.EscapeString(string(subject)), suffix,
			html.EscapeString(f.TimeSlot), f.SeatsFree, html.EscapeString(f.SourceURL))
		excess := utf8.RuneCountInString(entry) - limit
		if excess <= 0 || len(subject) == 0 {
			return entry
		}
		// Escaping only lengthens text, so dropping excess raw runes is
		// always enough once the ellipsis is accounted for.
		cut := len(subject) - excess - 1
		if cut < 0 {
			cut = 0
		}
		subject = subject[:cut]
		suffix = "…"
	}
}

func (t *TelegramChannel) Send(_ context.Context) error {
	if err := t.ready(); err != nil {
		return err
	}
	token, chatID := t.cfg["bot_token"], t.cfg["chat_id"]
	if token == "" || chatID == "" {
		return fmt.Errorf("telegram: bot_token and chat_id are required")
	}
	bot, err := tele.NewBot(tele.Settings{
		URL:     telegramAPI,
		Token:   token,
		Client:  t.client,
		Offline: true,
	})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if _, err := bot.Send(chatRef(chatID), t.rendered, tele.ModeHTML); err != nil {
		return fmt.Errorf("telegram: sending to %s: %w", chatID, err)
	}
	return nil
}

// chatRef addresses a chat by numeric id or @channelname.
type chatRef string

func (c chatRef) Recipient() string { return string(c) }
