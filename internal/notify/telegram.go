// Package notify delivers alert messages to Telegram chats.
package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrNotConfigured is returned when no bot token or chat is configured.
var ErrNotConfigured = errors.New("telegram: not configured")

// Config holds Telegram bot settings.
type Config struct {
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	// APIEndpoint overrides the Bot API URL format, e.g. for a local bot server.
	APIEndpoint string `yaml:"api_endpoint"`
}

// Telegram sends messages through the Bot API. The bot is created on first use.
type Telegram struct {
	cfg    Config
	logger *slog.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegram creates a notifier. It does not contact Telegram.
func NewTelegram(cfg Config, logger *slog.Logger) *Telegram {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	return &Telegram{cfg: cfg, logger: logger.With("component", "telegram")}
}

// Configured reports whether a token and at least one chat are set.
func (t *Telegram) Configured() bool {
	return t.cfg.BotToken != "" && len(t.cfg.ChatIDs) > 0
}

func (t *Telegram) client() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.cfg.BotToken, t.cfg.APIEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize: %w", err)
	}
	t.logger.Info("telegram bot authorized", "account", bot.Self.UserName)
	t.bot = bot
	return bot, nil
}

// Send delivers text to every configured chat. A failed chat does not stop
// delivery to the others; all failures are returned joined.
func (t *Telegram) Send(text string) error {
	if !t.Configured() {
		return ErrNotConfigured
	}
	bot, err := t.client()
	if err != nil {
		return err
	}

	var errs []error
	for _, chatID := range t.cfg.ChatIDs {
		if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			t.logger.Warn("telegram send failed", "chat_id", chatID, "err", err)
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}
