package jwtx

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SigningKeyRecord is a stored signing key with its private half sealed.
type SigningKeyRecord struct {
	Kid              string
	Algorithm        string
	PrivateKeySealed []byte
	CreatedAt        time.Time

	// RetiredAt is set once the key stops signing. A retired key still
	// verifies until ExpiresAt.
	RetiredAt *time.Time
	ExpiresAt *time.Time
}

// KeyStore is the storage a persistent KeyManager needs. It is kept here
// so jwtx does not depend on the studio store.
type KeyStore interface {
	// ListSigningKeys returns every key that has not expired at now.
	ListSigningKeys(ctx context.Context, now time.Time) ([]SigningKeyRecord, error)
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
	RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error
}

// KeySealer encrypts private keys at rest. *cryptox.KeyCipher is one.
type KeySealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// PersistentKeyManagerOptions configures NewPersistentKeyManager.
type PersistentKeyManagerOptions struct {
	Store  KeyStore
	Sealer KeySealer
	Issuer string

	// NumKeys is the target number of active keys, clamped like the
	// ephemeral manager.
	NumKeys int

	// RotateAfter retires active keys older than this at startup. Zero
	// never rotates.
	RotateAfter time.Duration

	// GracePeriod is how long a retired key keeps verifying. It should be
	// at least the token TTL. Defaults to 30 days.
	GracePeriod time.Duration

	Leeway time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// LoadStats counts what NewPersistentKeyManager did with the stored keys.
type LoadStats struct {
	Loaded    int
	Retired   int
	Generated int
}

// NewPersistentKeyManager loads stored keys, retires the ones past
// RotateAfter and tops the active set up to NumKeys. Every unexpired key,
// active or retired, goes into the KeySet so tokens signed before a restart
// or rotation still verify.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, LoadStats, error) {
	var stats LoadStats

	if opts.Store == nil || opts.Sealer == nil {
		return nil, stats, errors.New("jwtx: Store and Sealer are required")
	}
	if opts.Issuer == "" {
		return nil, stats, errors.New("jwtx: Issuer is required")
	}

	n := clampNumKeys(opts.NumKeys)
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = 30 * 24 * time.Hour
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	at := now().UTC()

	records, err := opts.Store.ListSigningKeys(ctx, at)
	if err != nil {
		return nil, stats, fmt.Errorf("jwtx: load keys: %w", err)
	}

	keyset := NewKeySet()
	signers := make([]Signer, 0, n)

	for _, rec := range records {
		if rec.Algorithm != AlgorithmEdDSA {
			return nil, stats, fmt.Errorf("jwtx: key %s: unsupported algorithm %q", rec.Kid, rec.Algorithm)
		}

		pemKey, err := opts.Sealer.Open(rec.PrivateKeySealed)
		if err != nil {
			return nil, stats, fmt.Errorf("jwtx: unseal key %s: %w", rec.Kid, err)
		}
		signer, err := NewSignerEdDSA(rec.Kid, pemKey)
		if err != nil {
			return nil, stats, fmt.Errorf("jwtx: key %s: %w", rec.Kid, err)
		}
		if err := keyset.AddSigner(signer); err != nil {
			return nil, stats, fmt.Errorf("jwtx: register key %s: %w", rec.Kid, err)
		}
		stats.Loaded++

		if rec.RetiredAt != nil {
			continue
		}
		if opts.RotateAfter > 0 && at.Sub(rec.CreatedAt) >= opts.RotateAfter {
			if err := opts.Store.RetireSigningKey(ctx, rec.Kid, at, at.Add(grace)); err != nil {
				return nil, stats, fmt.Errorf("jwtx: retire key %s: %w", rec.Kid, err)
			}
			stats.Retired++
			continue
		}
		signers = append(signers, signer)
	}

	for len(signers) < n {
		pemKey, signer, err := newSigningKey()
		if err != nil {
			return nil, stats, fmt.Errorf("jwtx: generate key: %w", err)
		}

		sealed, err := opts.Sealer.Seal(pemKey)
		if err != nil {
			return nil, stats, fmt.Errorf("jwtx: seal key %s: %w", signer.KID(), err)
		}

		err = opts.Store.CreateSigningKey(ctx, SigningKeyRecord{
			Kid:              signer.KID(),
			Algorithm:        AlgorithmEdDSA,
			PrivateKeySealed: sealed,
			CreatedAt:        at,
		})
		if err != nil {
			return nil, stats, fmt.Errorf("jwtx: store key %s: %w", signer.KID(), err)
		}

		if err := keyset.AddSigner(signer); err != nil {
			return nil, stats, fmt.Errorf("jwtx: register key %s: %w", signer.KID(), err)
		}
		signers = append(signers, signer)
		stats.Generated++
	}

	return &KeyManager{
		Verifier: NewVerifierEdDSA(keyset, opts.Issuer, opts.Leeway),
		KeySet:   keyset,
		signers:  signers,
	}, stats, nil
}
