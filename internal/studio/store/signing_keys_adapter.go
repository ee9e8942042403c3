package store

import (
	"context"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
	"github.com/aussiebroadwan/minivisionary/pkg/jwtx"
)

// KeyStoreAdapter lets a jwtx persistent KeyManager keep its keys in a Store.
type KeyStoreAdapter struct {
	store Store
}

func NewKeyStoreAdapter(s Store) *KeyStoreAdapter {
	return &KeyStoreAdapter{store: s}
}

func (a *KeyStoreAdapter) ListSigningKeys(ctx context.Context, now time.Time) ([]jwtx.SigningKeyRecord, error) {
	keys, err := a.store.SigningKeys().ListUsable(ctx, now)
	if err != nil {
		return nil, err
	}

	records := make([]jwtx.SigningKeyRecord, len(keys))
	for i, k := range keys {
		records[i] = jwtx.SigningKeyRecord{
			Kid:              k.Kid,
			Algorithm:        k.Algorithm,
			PrivateKeySealed: k.PrivateKeySealed,
			CreatedAt:        k.CreatedAt,
			RetiredAt:        k.RetiredAt,
			ExpiresAt:        k.ExpiresAt,
		}
	}
	return records, nil
}

func (a *KeyStoreAdapter) CreateSigningKey(ctx context.Context, r jwtx.SigningKeyRecord) error {
	return a.store.SigningKeys().CreateSigningKey(ctx, domain.SigningKey{
		Kid:              r.Kid,
		Algorithm:        r.Algorithm,
		PrivateKeySealed: r.PrivateKeySealed,
		CreatedAt:        r.CreatedAt,
		RetiredAt:        r.RetiredAt,
		ExpiresAt:        r.ExpiresAt,
	})
}

func (a *KeyStoreAdapter) RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error {
	return a.store.SigningKeys().Retire(ctx, kid, retiredAt, expiresAt)
}
