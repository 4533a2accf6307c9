package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"newsdesk/internal/domain"
	"newsdesk/internal/faults"
	"newsdesk/internal/ports"
)

// Channel adapts the bot into the approval surface. An authorization
// failure on any call marks the channel unusable for the rest of the
// session.
type Channel struct {
	bot     *Bot
	chatID  string
	usable  bool
	offset  int64
	display string
	logger  *slog.Logger
}

var _ ports.NotificationChannel = (*Channel)(nil)

// NewChannel builds the approval channel for one chat. display is the
// instance tag appended to previews.
func NewChannel(bot *Bot, chatID, display string, logger *slog.Logger) *Channel {
	return &Channel{
		bot:     bot,
		chatID:  chatID,
		usable:  bot != nil && chatID != "",
		display: display,
		logger:  logger,
	}
}

// Usable reports whether the channel can still take approval traffic.
func (c *Channel) Usable() bool {
	return c.usable
}

func (c *Channel) checkAuth(err error) {
	if faults.IsAuth(err) {
		c.logger.Error("approval channel authorization failed, disabling", "error", err)
		c.usable = false
	}
}

func preview(display string, article domain.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", domain.CategoryEmoji(article.Category), article.Title)
	if article.Summary != "" {
		summary := article.Summary
		if len(summary) > 300 {
			summary = summary[:300] + "..."
		}
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	if article.Link != "" {
		b.WriteString(article.Link)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Category: %s | Score: %.2f\n📌 %s", article.Category, article.Score, display)
	return b.String()
}

// Send posts an approval request with decision buttons and returns the
// message id as the retract handle.
func (c *Channel) Send(ctx context.Context, article domain.Article) (string, error) {
	keyboard := &inlineKeyboard{InlineKeyboard: [][]inlineButton{
		{
			{Text: "✅ Approve", CallbackData: fmt.Sprintf("approve:%d", article.ID)},
			{Text: "❌ Skip", CallbackData: fmt.Sprintf("skip:%d", article.ID)},
		},
		{
			{Text: "✅✅ Approve All", CallbackData: fmt.Sprintf("approve_all:%d", article.ID)},
		},
	}}

	msgID, err := c.bot.SendMessage(ctx, c.chatID, preview(c.display, article), keyboard)
	if err != nil {
		c.checkAuth(err)
		return "", fmt.Errorf("send approval request: %w", err)
	}
	return strconv.FormatInt(msgID, 10), nil
}

// Notify posts a preview without decision buttons.
func (c *Channel) Notify(ctx context.Context, article domain.Article) error {
	if _, err := c.bot.SendMessage(ctx, c.chatID, preview(c.display, article), nil); err != nil {
		c.checkAuth(err)
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// Poll drains pending callback updates into decision events. Unparseable
// callbacks are acknowledged and dropped.
func (c *Channel) Poll(ctx context.Context) ([]ports.DecisionEvent, error) {
	updates, err := c.bot.GetUpdates(ctx, c.offset)
	if err != nil {
		c.checkAuth(err)
		return nil, fmt.Errorf("poll updates: %w", err)
	}

	var events []ports.DecisionEvent
	for _, u := range updates {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
		if u.CallbackQuery == nil {
			continue
		}
		ev, ok := parseCallback(*u.CallbackQuery)
		if !ok {
			c.logger.Warn("ignoring malformed callback", "data", u.CallbackQuery.Data)
			_ = c.bot.AnswerCallback(ctx, u.CallbackQuery.ID, "")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseCallback(q callbackQuery) (ports.DecisionEvent, bool) {
	action, idStr, ok := strings.Cut(q.Data, ":")
	if !ok {
		return ports.DecisionEvent{}, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return ports.DecisionEvent{}, false
	}

	switch domain.ApprovalAction(action) {
	case domain.ActionApprove, domain.ActionSkip, domain.ActionApproveAll:
		return ports.DecisionEvent{
			Action:     domain.ApprovalAction(action),
			ArticleID:  id,
			CallbackID: q.ID,
		}, true
	default:
		return ports.DecisionEvent{}, false
	}
}

// Acknowledge confirms a callback so the client stops its spinner.
func (c *Channel) Acknowledge(ctx context.Context, ev ports.DecisionEvent) error {
	text := "Approved ✅"
	if ev.Action == domain.ActionSkip {
		text = "Skipped ❌"
	}
	if err := c.bot.AnswerCallback(ctx, ev.CallbackID, text); err != nil {
		c.checkAuth(err)
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// RetractAffordance removes the decision buttons from a decided message.
func (c *Channel) RetractAffordance(ctx context.Context, handle string) error {
	msgID, err := strconv.ParseInt(handle, 10, 64)
	if err != nil {
		return fmt.Errorf("parse message handle %q: %w", handle, err)
	}
	if err := c.bot.ClearKeyboard(ctx, c.chatID, msgID); err != nil {
		c.checkAuth(err)
		return fmt.Errorf("clear keyboard: %w", err)
	}
	return nil
}
