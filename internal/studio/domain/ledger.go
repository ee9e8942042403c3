package domain

import "time"

// CreditEventKind classifies a ledger entry.
type CreditEventKind string

const (
	CreditGrant    CreditEventKind = "grant"
	CreditPurchase CreditEventKind = "purchase"
	CreditSpend    CreditEventKind = "spend"
	CreditRefund   CreditEventKind = "refund"
)

// CreditEvent is one append-only ledger row. Amount is signed: spends are
// negative. BalanceAfter is the user's balance once the event applied.
// Purchase events double as receipts.
type CreditEvent struct {
	ID           string
	UserID       string
	Kind         CreditEventKind
	Amount       int
	BalanceAfter int
	SKU          string
	AmountCents  int64
	Currency     string
	ProviderID   string
	Note         string
	CreatedAt    time.Time
}
