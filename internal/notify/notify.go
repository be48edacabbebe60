// Package notify delivers user-facing events to the chat front door.
package notify

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Event string

const (
	EventClipApproved        Event = "clip_approved"
	EventClipRejected        Event = "clip_rejected"
	EventClipVerified        Event = "clip_verified"
	EventOfferExhausted      Event = "offer_exhausted"
	EventWithdrawalRequested Event = "withdrawal_requested"
)

// Admins addresses an event to every operator instead of a single user.
const Admins snowflake.ID = 0

// Notifier is fire-and-forget. Implementations never report delivery errors
// to the caller.
type Notifier interface {
	Notify(ctx context.Context, userID snowflake.ID, event Event, payload map[string]any)
}

// Sender performs one delivery.
type Sender interface {
	Name() string
	Send(ctx context.Context, userID snowflake.ID, event Event, payload map[string]any) error
}

type noop struct{}

// NoOp discards every event.
func NoOp() Notifier { return noop{} }

func (noop) Notify(context.Context, snowflake.ID, Event, map[string]any) {}
