package studio_test

import (
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
	"github.com/stretchr/testify/require"
)

// TestSignupLoginRefresh verifies the cached balance matches the server
// after login and refresh.
func TestSignupLoginRefresh(t *testing.T) {
	baseURL := setupStudioContainer(t)
	newSignedUpStore(t, baseURL, "ada@example.com")

	st := visionsdk.NewStore(visionsdk.NewClient(baseURL))
	sess, err := st.Login(t.Context(), "ada@example.com", userPassword)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", sess.Profile.Email)

	p, err := st.RefreshProfile(t.Context())
	require.NoError(t, err)
	require.Equal(t, 20, p.Credits)
	require.Equal(t, p.Credits, st.CachedCredits())

	_, err = st.Login(t.Context(), "ada@example.com", "wrong password")
	require.ErrorIs(t, err, visionsdk.ErrInvalidCredentials)
}

// TestPosterSpendAndRollback walks the balance down through generations and
// checks failed and refused spends leave it untouched.
func TestPosterSpendAndRollback(t *testing.T) {
	baseURL := setupStudioContainer(t)
	st := newSignedUpStore(t, baseURL, "grace@example.com")

	poster, err := st.GeneratePoster(t.Context(), visionsdk.PosterRequest{Prompt: "neon koi", Size: "512x512"})
	require.NoError(t, err)
	require.Equal(t, 512, poster.Width)
	require.Equal(t, 10, st.CachedCredits())

	resp, err := http.Get(reachable(t, baseURL, poster.URL))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = st.GeneratePoster(t.Context(), visionsdk.PosterRequest{Prompt: ""})
	require.Error(t, err)
	require.Equal(t, 10, st.CachedCredits())

	_, err = st.GeneratePoster(t.Context(), visionsdk.PosterRequest{Prompt: "second"})
	require.NoError(t, err)

	_, err = st.GeneratePoster(t.Context(), visionsdk.PosterRequest{Prompt: "third"})
	require.ErrorIs(t, err, visionsdk.ErrInsufficientCredits)
	require.Equal(t, 0, st.CachedCredits())

	w, err := st.Wallet(t.Context())
	require.NoError(t, err)
	require.Equal(t, 0, w.Credits)
}

// TestConcurrentGenerations checks that racing generations on one store
// either succeed or are refused locally, and the balance stays consistent.
func TestConcurrentGenerations(t *testing.T) {
	baseURL := setupStudioContainer(t)
	st := newSignedUpStore(t, baseURL, "hopper@example.com")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		refused int
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.GeneratePoster(t.Context(), visionsdk.PosterRequest{Prompt: "race"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, visionsdk.ErrActionPending),
				errors.Is(err, visionsdk.ErrInsufficientCredits):
				refused++
			}
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, ok, 1)
	require.LessOrEqual(t, ok, 2)
	require.Equal(t, 4, ok+refused)

	p, err := st.RefreshProfile(t.Context())
	require.NoError(t, err)
	require.Equal(t, 20-10*ok, p.Credits)
	require.Equal(t, p.Credits, st.CachedCredits())
}

// TestRevokedTokenTearsDownSession verifies a 401 from any endpoint ends the
// local session.
func TestRevokedTokenTearsDownSession(t *testing.T) {
	baseURL := setupStudioContainer(t)
	st := newSignedUpStore(t, baseURL, "linus@example.com")

	other := visionsdk.NewStore(visionsdk.NewClient(baseURL))
	other.Resume(st.Token())
	other.Logout(t.Context())
	require.False(t, other.Authenticated())

	_, err := st.Posters(t.Context(), 10)
	require.ErrorIs(t, err, visionsdk.ErrUnauthenticated)
	require.False(t, st.Authenticated())
	require.Equal(t, 0, st.CachedCredits())
}
