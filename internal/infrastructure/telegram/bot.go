// Package telegram implements the approval surface on the Telegram Bot
// API: approval requests with inline decision buttons, callback polling,
// and plain notifications.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"newsdesk/internal/faults"
)

const apiBase = "https://api.telegram.org"

// Bot is a minimal Telegram Bot API client covering the methods the
// approval flow needs.
type Bot struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewBot creates a client for the given bot token.
func NewBot(token string) *Bot {
	return &Bot{
		token:   token,
		baseURL: apiBase,
		http:    &http.Client{Timeout: 35 * time.Second},
	}
}

// NewBotWithBase points the client at an alternate API host, used by tests.
func NewBotWithBase(token, baseURL string) *Bot {
	b := NewBot(token)
	b.baseURL = baseURL
	return b
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type message struct {
	MessageID int64 `json:"message_id"`
}

type callbackQuery struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type update struct {
	UpdateID      int64          `json:"update_id"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (b *Bot) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return faults.Transientf("%s: %v", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return faults.Transientf("%s: read body: %v", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !parsed.OK {
		return faults.FromStatus(resp.StatusCode,
			fmt.Errorf("%s: api error: %s", method, parsed.Description))
	}
	if result != nil {
		if err := json.Unmarshal(parsed.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// SendMessage posts text to a chat, optionally with an inline keyboard,
// and returns the message id.
func (b *Bot) SendMessage(ctx context.Context, chatID, text string, keyboard *inlineKeyboard) (int64, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}

	var msg message
	if err := b.call(ctx, "sendMessage", payload, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// GetUpdates polls callback updates past the given offset.
func (b *Bot) GetUpdates(ctx context.Context, offset int64) ([]update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         0,
		"allowed_updates": []string{"callback_query"},
	}

	var updates []update
	if err := b.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// AnswerCallback dismisses the client-side spinner for a callback query.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
	}
	return b.call(ctx, "answerCallbackQuery", payload, nil)
}

// ClearKeyboard removes the inline keyboard from a sent message.
func (b *Bot) ClearKeyboard(ctx context.Context, chatID string, messageID int64) error {
	payload := map[string]any{
		"chat_id":      chatID,
		"message_id":   messageID,
		"reply_markup": inlineKeyboard{InlineKeyboard: [][]inlineButton{}},
	}
	return b.call(ctx, "editMessageReplyMarkup", payload, nil)
}
