// Package telegram is the outbound-only Telegram client behind the log mirror.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "ngltool/internal/transport"
)

const textLimit = 4000

type Config struct {
	Token string
	// URL overrides the Bot API base URL (tests).
	URL string
}

// Sender sends plain text through the Bot API. It never polls for updates.
type Sender struct {
	bot *tele.Bot
}

var _ kit.Sender = (*Sender)(nil)

func New(cfg Config) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token: cfg.Token,
		URL:   cfg.URL,
		// Offline skips the getMe round trip; we only send.
		Offline: true,
		Client:  &http.Client{Timeout: 8 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &Sender{bot: b}, nil
}

func (s *Sender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(&tele.Chat{ID: to.ChatID}, clip(text, textLimit), &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	})
	return err
}

// clip cuts s to limit runes.
func clip(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
