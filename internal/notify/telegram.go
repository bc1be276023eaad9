// Package notify delivers rendered alert messages to the external
// messaging channel. Delivery is fire-and-forget from the core's point of
// view: a failed send is logged by the caller and never fails a check-in.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ecomonitor-io/ecomonitorgo/internal/config"
)

// Sink is the outbound notification boundary.
type Sink interface {
	Send(ctx context.Context, botToken, chatID, message string) error
}

// TelegramSink sends messages through the Telegram Bot API.
type TelegramSink struct {
	apiBase string
	client  *http.Client
}

// NewTelegramSink creates a sink with a bounded-timeout client so a slow
// Bot API can never stall the caller past the configured limit.
func NewTelegramSink(cfg config.TelegramConfig) *TelegramSink {
	return &TelegramSink{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Send posts one Markdown message to the chat.
func (t *TelegramSink) Send(ctx context.Context, botToken, chatID, message string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, botToken)

	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", message)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram API returned %s", resp.Status)
	}
	return nil
}
