package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aussiebroadwan/minivisionary/pkg/cryptox"
)

// KeyManager owns the signing keys of a studio instance and the matching
// verifier. Ephemeral keys die with the process, so a restart invalidates
// every session and clients see a plain 401. Persistent keys are loaded
// from a KeyStore instead.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	mu      sync.RWMutex
	signers []Signer
}

// KeyManagerOptions configures NewEphemeralKeyManager.
type KeyManagerOptions struct {
	// Issuer is stamped on and required of every token.
	Issuer string

	// NumKeys is clamped to 1..10 and defaults to 2.
	NumKeys int

	// Leeway for exp/nbf checks.
	Leeway time.Duration
}

// NewEphemeralKeyManager generates fresh Ed25519 keys.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	n := clampNumKeys(opts.NumKeys)

	keyset := NewKeySet()
	signers := make([]Signer, 0, n)

	for i := range n {
		_, signer, err := newSigningKey()
		if err != nil {
			return nil, fmt.Errorf("jwtx: key %d: %w", i+1, err)
		}
		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: register signer %d: %w", i+1, err)
		}
		signers = append(signers, signer)
	}

	return &KeyManager{
		Verifier: NewVerifierEdDSA(keyset, opts.Issuer, opts.Leeway),
		KeySet:   keyset,
		signers:  signers,
	}, nil
}

// newSigningKey generates an Ed25519 key with a random kid and returns its
// PEM form alongside the signer.
func newSigningKey() ([]byte, *EdDSASigner, error) {
	kid, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, nil, fmt.Errorf("key id: %w", err)
	}

	pemKey, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, nil, err
	}

	signer, err := NewSignerEdDSA("mv-"+kid, pemKey)
	if err != nil {
		return nil, nil, err
	}
	return pemKey, signer, nil
}

func clampNumKeys(n int) int {
	if n <= 0 {
		return 2
	}
	return min(n, 10)
}

// IsReady reports whether keys are loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}

// GetSigner picks one of the signing keys at random.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))]
	}
}

// NumSigners returns the number of signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}
