// Package telegram delivers operator alerts to a Telegram chat (optionally a
// forum topic) through gopkg.in/telebot.v4.
package telegram

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	logx "desirebot/pkg/logx"
)

const textLimit = 4000

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// URL overrides the Bot API endpoint. Empty means api.telegram.org.
	URL string
}

// Sender posts plain text messages. It implements logx.Sender.
type Sender struct {
	bot  *tele.Bot
	chat *tele.Chat
	th   int
}

var _ logx.Sender = (*Sender)(nil)

// New builds a Sender without contacting Telegram; the token is checked on
// the first send.
func New(cfg Config) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.URL,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Sender{bot: b, chat: &tele.Chat{ID: cfg.ChatID}, th: cfg.ThreadID}, nil
}

// SendText sends text, split into chunks under the Telegram message limit.
func (s *Sender) SendText(ctx context.Context, text string) error {
	for _, chunk := range splitText(text, textLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.bot.Send(s.chat, chunk, &tele.SendOptions{
			ThreadID:              s.th,
			DisableWebPagePreview: true,
		}); err != nil {
			return err
		}
	}
	return nil
}

// splitText cuts s into chunks of at most limit runes, preferring newline
// boundaries that are not too close to the chunk start.
func splitText(s string, limit int) []string {
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	var out []string
	for start := 0; start < len(rs); {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			for i := end - 1; i-start >= limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
