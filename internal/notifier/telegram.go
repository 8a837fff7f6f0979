package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultAPIBase is the Telegram Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// Notifier delivers short operator messages.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	client *resty.Client
	chatID string
}

// NewTelegramNotifier creates a notifier for one chat. An empty apiBase
// uses DefaultAPIBase.
func NewTelegramNotifier(botToken, chatID, apiBase string) *TelegramNotifier {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	client := resty.New()
	client.SetBaseURL(apiBase + "/bot" + botToken)
	client.SetTimeout(30 * time.Second)
	return &TelegramNotifier{
		client: client,
		chatID: chatID,
	}
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	var out sendMessageResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		SetResult(&out).
		SetError(&out).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// Notify sends once; failures are returned to the caller, which logs them.
func (t *TelegramNotifier) Notify(ctx context.Context, text string) error {
	return t.Send(ctx, text)
}

// Noop drops every message.
type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }

// New returns a Telegram notifier when both credentials are set, and Noop otherwise.
func New(botToken, chatID string) Notifier {
	if botToken == "" || chatID == "" {
		return Noop{}
	}
	return NewTelegramNotifier(botToken, chatID, "")
}
