// Package notify delivers out-of-band owner notifications over Telegram.
// The request path only enqueues; a background worker owns delivery, so a
// slow or failing Telegram API never delays a billing request.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
)

// Kind classifies a notification
type Kind string

const (
	// KindLowBalance tells an owner their balance fell below the request
	// floor
	KindLowBalance Kind = "low_balance"
	// KindCredit confirms a balance top-up
	KindCredit Kind = "credit"
)

// Notification is one queued message for an owner
type Notification struct {
	Kind      Kind      `json:"kind"`
	TlgID     int64     `json:"tlg_id"`
	Balance   float64   `json:"balance"`
	Floor     float64   `json:"floor,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Text renders the user-facing message body
func (n Notification) Text() string {
	switch n.Kind {
	case KindLowBalance:
		return fmt.Sprintf(
			"Your balance is %.2f RUB, below the %.0f RUB required per request. Top up to continue.",
			n.Balance, n.Floor)
	case KindCredit:
		return fmt.Sprintf("Your balance was credited %.2f RUB. Current balance: %.2f RUB.",
			n.Amount, n.Balance)
	default:
		return fmt.Sprintf("Balance update: %.2f RUB.", n.Balance)
	}
}

// Sender delivers one notification
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// TelegramSender delivers notifications through the Telegram Bot API. The
// owner's Telegram id doubles as the chat id.
type TelegramSender struct {
	bot *bot.Bot
}

// NewTelegramSender creates a sender for the given bot token
func NewTelegramSender(token string) (*TelegramSender, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramSender{bot: b}, nil
}

// Send delivers the notification to the owner's chat
func (s *TelegramSender) Send(ctx context.Context, n Notification) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.TlgID,
		Text:   n.Text(),
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
