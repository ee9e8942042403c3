package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidSignature = errors.New("payments: invalid signature")

// SessionParams describes a hosted checkout to open.
type SessionParams struct {
	UserID        string
	SKU           string
	Mode          string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// Session is what the provider hands back: an id and where to send the user.
type Session struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Provider opens hosted checkout sessions.
type Provider interface {
	CreateSession(ctx context.Context, p SessionParams) (Session, error)
}

// LocalProvider simulates a hosted checkout. Its sessions point at the
// studio's own /payments/simulate/{id} page.
type LocalProvider struct {
	BaseURL string
	TTL     time.Duration
}

// DefaultSessionTTL matches hosted providers' 24h checkout window.
const DefaultSessionTTL = 24 * time.Hour

func NewLocalProvider(baseURL string, ttl time.Duration) *LocalProvider {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &LocalProvider{BaseURL: strings.TrimSuffix(baseURL, "/"), TTL: ttl}
}

func (p *LocalProvider) CreateSession(ctx context.Context, params SessionParams) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	id := "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return Session{
		ID:        id,
		URL:       p.BaseURL + "/payments/simulate/" + id,
		ExpiresAt: time.Now().Add(p.TTL).UTC(),
	}, nil
}
