package payments

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/minivisionary/pkg/cryptox"
)

const (
	// SignatureHeader carries "t=<unix>,v1=<hmac>" on webhook deliveries.
	SignatureHeader = "X-Visionary-Signature"

	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.paid"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"

	// DefaultSignatureTolerance bounds replay of captured deliveries.
	DefaultSignatureTolerance = 5 * time.Minute
)

type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData identifies what an event is about. SessionID is the checkout
// session, for subscriptions the one that started them. Status is set on
// subscription updates.
type EventData struct {
	SessionID     string `json:"session_id"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Status        string `json:"status,omitempty"`
}

// SubscriptionLapsed reports whether a subscription in status no longer
// entitles the customer to the ad-free plan.
func SubscriptionLapsed(status string) bool {
	switch status {
	case "canceled", "unpaid", "incomplete_expired", "past_due":
		return true
	}
	return false
}

// SignEvent encodes e and signs the body. The simulator and tests use it to
// produce deliveries.
func SignEvent(secret string, e Event, at time.Time) ([]byte, string, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, "", fmt.Errorf("encode event: %w", err)
	}
	return payload, cryptox.SignPayload(secret, payload, at), nil
}

// ParseEvent verifies the signature header before decoding payload.
func ParseEvent(secret string, payload []byte, header string, tolerance time.Duration, now time.Time) (Event, error) {
	if err := cryptox.VerifyPayload(secret, payload, header, tolerance, now); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.ID == "" {
		return Event{}, fmt.Errorf("decode event: missing id")
	}
	return e, nil
}
