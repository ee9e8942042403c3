package jwtx_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/minivisionary/pkg/cryptox"
	"github.com/aussiebroadwan/minivisionary/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type memKeyStore struct {
	mu   sync.Mutex
	keys []jwtx.SigningKeyRecord
}

func (m *memKeyStore) ListSigningKeys(_ context.Context, now time.Time) ([]jwtx.SigningKeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []jwtx.SigningKeyRecord
	for _, k := range m.keys {
		if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (m *memKeyStore) CreateSigningKey(_ context.Context, key jwtx.SigningKeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func (m *memKeyStore) RetireSigningKey(_ context.Context, kid string, retiredAt, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.keys {
		if m.keys[i].Kid == kid {
			m.keys[i].RetiredAt = &retiredAt
			m.keys[i].ExpiresAt = &expiresAt
			return nil
		}
	}
	return errors.New("no such key")
}

func (m *memKeyStore) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, k := range m.keys {
		if k.RetiredAt == nil {
			n++
		}
	}
	return n
}

func newSealer(t *testing.T) *cryptox.KeyCipher {
	t.Helper()
	c, err := cryptox.NewKeyCipher([]byte("test master key"))
	require.NoError(t, err)
	return c
}

func signSession(t *testing.T, km *jwtx.KeyManager) string {
	t.Helper()
	tok, err := km.GetSigner().Sign(jwtx.NewSessionClaims("user-1", "", "", time.Hour, testIssuer, time.Now().UTC()))
	require.NoError(t, err)
	return tok
}

func TestPersistentKeyManagerSurvivesRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &memKeyStore{}
	opts := jwtx.PersistentKeyManagerOptions{
		Store:   store,
		Sealer:  newSealer(t),
		Issuer:  testIssuer,
		NumKeys: 2,
	}

	first, stats, err := jwtx.NewPersistentKeyManager(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, jwtx.LoadStats{Generated: 2}, stats)
	require.Equal(t, 2, first.NumSigners())

	for _, k := range store.keys {
		require.NotContains(t, string(k.PrivateKeySealed), "PRIVATE KEY")
	}

	tok := signSession(t, first)

	second, stats, err := jwtx.NewPersistentKeyManager(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, jwtx.LoadStats{Loaded: 2}, stats)

	_, err = second.Verifier.Verify(tok)
	require.NoError(t, err)
}

func TestPersistentKeyManagerRotates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &memKeyStore{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := jwtx.PersistentKeyManagerOptions{
		Store:       store,
		Sealer:      newSealer(t),
		Issuer:      testIssuer,
		NumKeys:     1,
		RotateAfter: 24 * time.Hour,
		GracePeriod: 48 * time.Hour,
		Now:         func() time.Time { return now },
	}

	old, _, err := jwtx.NewPersistentKeyManager(ctx, opts)
	require.NoError(t, err)
	tok := signSession(t, old)
	oldKid := old.GetSigner().KID()

	now = now.Add(25 * time.Hour)
	rotated, stats, err := jwtx.NewPersistentKeyManager(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, jwtx.LoadStats{Loaded: 1, Retired: 1, Generated: 1}, stats)
	require.NotEqual(t, oldKid, rotated.GetSigner().KID())
	require.Equal(t, 1, store.active())

	// The retired key still verifies during the grace period.
	_, err = rotated.Verifier.Verify(tok)
	require.NoError(t, err)

	// Past the grace period the old key is no longer loaded.
	now = now.Add(49 * time.Hour)
	later, stats, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
		Store:   store,
		Sealer:  opts.Sealer,
		Issuer:  testIssuer,
		NumKeys: 1,
		Now:     opts.Now,
	})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Loaded)
	_, err = later.KeySet.Get(oldKid)
	require.ErrorIs(t, err, jwtx.ErrNoKey)
}

func TestPersistentKeyManagerWrongMasterKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &memKeyStore{}

	_, _, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
		Store: store, Sealer: newSealer(t), Issuer: testIssuer, NumKeys: 1,
	})
	require.NoError(t, err)

	other, err := cryptox.NewKeyCipher([]byte("another master key"))
	require.NoError(t, err)
	_, _, err = jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
		Store: store, Sealer: other, Issuer: testIssuer, NumKeys: 1,
	})
	require.Error(t, err)
}

func TestPersistentKeyManagerRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, _, err := jwtx.NewPersistentKeyManager(context.Background(), jwtx.PersistentKeyManagerOptions{Issuer: testIssuer})
	require.Error(t, err)

	_, _, err = jwtx.NewPersistentKeyManager(context.Background(), jwtx.PersistentKeyManagerOptions{
		Store: &memKeyStore{}, Sealer: newSealer(t),
	})
	require.Error(t, err)
}
