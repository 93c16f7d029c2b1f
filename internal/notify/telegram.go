// Package notify raises human-facing alerts and periodic reports.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Telegram sends alerts and reports to a single chat. Sending is
// best-effort: failures are logged, never propagated to the pipeline.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegram authorizes the bot.
func NewTelegram(token string, chatID int64, log zerolog.Logger) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("chat ID is required")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("Telegram bot authorized")

	return &Telegram{api: api, chatID: chatID, log: log}, nil
}

// Alert sends an urgent message.
func (t *Telegram) Alert(msg string) {
	t.send(fmt.Sprintf("🚨 *Alert*\n\n%s", msg))
}

// Report sends a periodic performance summary.
func (t *Telegram) Report(msg string) {
	t.send(fmt.Sprintf("📊 *Performance Report*\n\n%s", msg))
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := t.api.Send(msg); err != nil {
		t.log.Warn().Err(err).Msg("failed to send Telegram message")
	}
}
