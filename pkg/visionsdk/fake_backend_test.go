package visionsdk_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "correct horse"
)

// fakeBackend is an in-memory stand-in for the studio API. Hooks replace
// the default behaviour of a route when set.
type fakeBackend struct {
	srv *httptest.Server

	mu       sync.Mutex
	token    string
	profile  visionsdk.Profile
	hits     map[string]int
	statuses []string
	payCreds int

	onMe       func(n int, w http.ResponseWriter, r *http.Request) bool
	onGenerate func(w http.ResponseWriter, r *http.Request)
	onCancel   func(w http.ResponseWriter, r *http.Request)
}

func newFakeBackend(t *testing.T, credits int) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		token: "tok-1",
		profile: visionsdk.Profile{
			ID:          "01J00000000000000000000000",
			Email:       testEmail,
			DisplayName: "Ada",
			Credits:     credits,
			Plan:        "free",
		},
		hits:     make(map[string]int),
		statuses: []string{visionsdk.CheckoutOpen},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.login)
	mux.HandleFunc("POST /auth/logout", b.authed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, visionsdk.OKResponse{OK: true})
	}))
	mux.HandleFunc("GET /me", b.authed(b.me))
	mux.HandleFunc("PATCH /me", b.authed(b.updateMe))
	mux.HandleFunc("POST /poster/generate", b.authed(b.generate))
	mux.HandleFunc("GET /payments/session/{id}", b.authed(b.session))
	mux.HandleFunc("GET /payments/wallet", b.authed(b.wallet))
	mux.HandleFunc("POST /payments/checkout", b.authed(b.checkout))
	mux.HandleFunc("POST /payments/subscription/cancel", b.authed(b.cancelSubscription))

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) store(opts ...visionsdk.Option) *visionsdk.Store {
	c := visionsdk.NewClient(b.srv.URL)
	c.HTTPClient = b.srv.Client()
	return visionsdk.NewStore(c, opts...)
}

func (b *fakeBackend) hitCount(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

func (b *fakeBackend) setCredits(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profile.Credits = n
}

func (b *fakeBackend) setToken(tok string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = tok
}

func (b *fakeBackend) snapshot() visionsdk.Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.profile
}

// with runs fn under the backend lock. Hooks are installed through it.
func (b *fakeBackend) with(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}

func (b *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		want := "Bearer " + b.token
		b.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			visionsdk.NewAPIError(http.StatusUnauthorized, visionsdk.CodeUnauthenticated, "session expired").WriteError(w)
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var req visionsdk.LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if strings.ToLower(req.Email) != testEmail || req.Password != testPassword {
		visionsdk.NewAPIError(http.StatusUnauthorized, visionsdk.CodeInvalidCredentials, "invalid email or password").WriteError(w)
		return
	}
	p := b.snapshot()
	b.mu.Lock()
	tok := b.token
	b.mu.Unlock()
	httpx.WriteJSON(w, http.StatusOK, visionsdk.AuthResponse{OK: true, Token: tok, User: &p})
}

func (b *fakeBackend) me(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	n := b.hits["GET /me"]
	hook := b.onMe
	b.mu.Unlock()
	if hook != nil && hook(n, w, r) {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, visionsdk.ProfileResponse{OK: true, User: b.snapshot()})
}

func (b *fakeBackend) updateMe(w http.ResponseWriter, r *http.Request) {
	var req visionsdk.UpdateProfileRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	b.profile.DisplayName = req.DisplayName
	p := b.profile
	b.mu.Unlock()
	httpx.WriteJSON(w, http.StatusOK, visionsdk.ProfileResponse{OK: true, User: p})
}

func (b *fakeBackend) generate(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	hook := b.onGenerate
	b.mu.Unlock()
	if hook != nil {
		hook(w, r)
		return
	}

	b.mu.Lock()
	if b.profile.Credits < visionsdk.CostPerPoster {
		b.mu.Unlock()
		visionsdk.NewAPIError(http.StatusPaymentRequired, visionsdk.CodeInsufficientCredits, "not enough credits").WriteError(w)
		return
	}
	b.profile.Credits -= visionsdk.CostPerPoster
	credits := b.profile.Credits
	b.mu.Unlock()
	httpx.WriteJSON(w, http.StatusOK, visionsdk.PosterResponse{OK: true, URL: "/uploads/p.png", Credits: &credits})
}

func (b *fakeBackend) session(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	status := b.statuses[0]
	if len(b.statuses) > 1 {
		b.statuses = b.statuses[1:]
	}
	if status == visionsdk.CheckoutPaid && b.payCreds > 0 {
		b.profile.Credits += b.payCreds
		b.payCreds = 0
	}
	b.mu.Unlock()
	httpx.WriteJSON(w, http.StatusOK, visionsdk.CheckoutStatus{OK: true, Status: status, CustomerEmail: testEmail})
}

func (b *fakeBackend) wallet(w http.ResponseWriter, r *http.Request) {
	p := b.snapshot()
	httpx.WriteJSON(w, http.StatusOK, visionsdk.Wallet{OK: true, Credits: p.Credits, Receipts: []visionsdk.Receipt{{ID: "r1", SKU: "starter", Credits: 60}}})
}

func (b *fakeBackend) checkout(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, visionsdk.CheckoutResponse{OK: true, URL: "https://pay.example/cs_1", SessionID: "cs_1"})
}

func (b *fakeBackend) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	hook := b.onCancel
	b.mu.Unlock()
	if hook != nil {
		hook(w, r)
		return
	}

	b.mu.Lock()
	b.profile.AdFree = false
	b.profile.Plan = "free"
	p := b.profile
	b.mu.Unlock()
	httpx.WriteJSON(w, http.StatusOK, visionsdk.ProfileResponse{OK: true, User: p})
}

func loggedIn(t *testing.T, b *fakeBackend, opts ...visionsdk.Option) *visionsdk.Store {
	t.Helper()
	s := b.store(opts...)
	_, err := s.Login(t.Context(), testEmail, testPassword)
	require.NoError(t, err)
	return s
}
