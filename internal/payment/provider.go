// Package payment abstracts the external payment processor behind a
// narrow client interface so services never touch provider SDK types
// or ambient configuration.
package payment

import (
	"context"
	"errors"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type EventType string

const (
	EventCheckoutCompleted EventType = "checkout.completed"
	EventPaymentSucceeded  EventType = "payment.succeeded"
	EventPaymentFailed     EventType = "payment.failed"
	EventUnknown           EventType = "unknown"
)

// Event is a provider webhook delivery normalized to the fields the
// settlement path keys on. OrderID and UserID come from the metadata
// planted at session-creation time; they are the only correlation back
// to local state.
type Event struct {
	Type      EventType
	RawType   string
	SessionID string
	PaymentID string
	OrderID   string
	UserID    string
}

type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64 // minor currency units
	Quantity    int64
}

type CreateSessionParams struct {
	OrderID       string
	UserID        int64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	LineItems     []LineItem
}

type Session struct {
	ID          string
	RedirectURL string
}

// Provider is the capability set this backend needs from a payment
// processor: open a hosted checkout session, and authenticate + decode
// a webhook delivery from its raw bytes.
type Provider interface {
	CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error)
	VerifyWebhook(payload []byte, sigHeader string) (*Event, error)
}
