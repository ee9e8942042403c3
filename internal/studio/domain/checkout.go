package domain

import "time"

// Checkout session states.
const (
	CheckoutOpen    = "open"
	CheckoutPaid    = "paid"
	CheckoutExpired = "expired"
)

// Checkout modes.
const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

// CheckoutSession mirrors a provider checkout. ID is the provider's id.
type CheckoutSession struct {
	ID            string
	UserID        string
	SKU           string
	Mode          string
	Status        string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	CreatedAt     time.Time
	CompletedAt   *time.Time
	ExpiresAt     time.Time
}

// Product is a catalog entry. Subscriptions grant no credits.
type Product struct {
	SKU         string
	Name        string
	Description string
	Credits     int
	AmountCents int64
	Currency    string
	Mode        string
}
