package visionsdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Store owns the session token and the cached profile, and reconciles
// optimistic credit changes against what the server confirms. It is the
// single read/write surface for the rest of the client and is safe for
// concurrent use.
//
// Responses are adopted in dispatch order: every request takes a sequence
// number and a result older than the last adopted one is dropped. Results
// for a token that is no longer current are dropped too, and their 401s do
// not end the newer session. Adopting a result hides the deltas of actions
// dispatched before it, since the server state it carries already has them.
type Store struct {
	client   *Client
	log      *slog.Logger
	fallback int

	mu         sync.Mutex
	token      string
	epoch      uint64 // bumped whenever token changes
	profile    *Profile
	seq        uint64 // last dispatched
	applied    uint64 // last adopted
	pending    map[ActionKind]*pendingAction
	unsettled  []*pendingAction // succeeded, awaiting a newer server state
	nextID     uint64
	onTeardown []func()
}

// Option configures a Store.
type Option func(*Store)

// WithFallbackCredits sets the balance reported when nothing is known.
func WithFallbackCredits(n int) Option {
	return func(s *Store) { s.fallback = max(n, 0) }
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore returns an empty, unauthenticated store.
func NewStore(client *Client, opts ...Option) *Store {
	s := &Store{
		client:  client,
		log:     slog.Default(),
		pending: make(map[ActionKind]*pendingAction),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying API binding.
func (s *Store) Client() *Client { return s.client }

// OnTeardown registers fn to run after every teardown, outside the lock.
func (s *Store) OnTeardown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTeardown = append(s.onTeardown, fn)
}

// Token returns the current bearer token, or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Authenticated reports whether a token is held. It is the only input to
// access gating.
func (s *Store) Authenticated() bool {
	return s.Token() != ""
}

// Profile returns the cached profile with pending optimistic changes
// applied. ok is false when no profile is cached.
func (s *Store) Profile() (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return Profile{}, false
	}
	return s.displayedLocked(), true
}

// CachedCredits returns the displayed balance without a network call. It
// is never negative and falls back to the configured default when no
// profile is cached.
func (s *Store) CachedCredits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return s.fallback
	}
	return s.displayedLocked().Credits
}

// Resume adopts a previously persisted token. The profile is unknown until
// the next RefreshProfile.
func (s *Store) Resume(token string) {
	s.mu.Lock()
	s.resetLocked(token, nil)
	s.mu.Unlock()
}

// Login authenticates and replaces any current session. On failure the
// store is left exactly as it was.
func (s *Store) Login(ctx context.Context, email, password string) (Session, error) {
	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.startSession(ctx, resp)
}

// Signup creates an account and starts its session.
func (s *Store) Signup(ctx context.Context, req SignupRequest) (Session, error) {
	resp, err := s.client.Signup(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.startSession(ctx, resp)
}

func (s *Store) startSession(ctx context.Context, resp *AuthResponse) (Session, error) {
	if resp.Token == "" {
		return Session{}, fmt.Errorf("%w: auth response carried no token", ErrServer)
	}

	profile := resp.User
	if profile == nil {
		p, err := s.client.Me(ctx, resp.Token)
		if err != nil {
			return Session{}, err
		}
		profile = p
	}

	s.mu.Lock()
	s.resetLocked(resp.Token, profile)
	out := Session{Token: s.token, Profile: s.displayedLocked()}
	s.mu.Unlock()
	return out, nil
}

// Logout ends the session locally at once, then revokes the token on the
// server on a best-effort basis.
func (s *Store) Logout(ctx context.Context) {
	token := s.Token()
	s.Teardown()
	if token == "" {
		return
	}
	if err := s.client.Logout(ctx, token); err != nil {
		s.log.Warn("server logout failed", "err", err)
	}
}

// Teardown clears the token, the profile and every pending action in one
// step. Logout and every 401 end up here.
func (s *Store) Teardown() {
	s.mu.Lock()
	hadSession := s.token != "" || s.profile != nil
	s.resetLocked("", nil)
	callbacks := append([]func(){}, s.onTeardown...)
	s.mu.Unlock()

	if !hadSession {
		return
	}
	for _, fn := range callbacks {
		fn()
	}
}

// teardownIf tears down only if the session that saw the 401 is still the
// current one.
func (s *Store) teardownIf(epoch uint64) {
	s.mu.Lock()
	current := s.epoch == epoch && s.token != ""
	s.mu.Unlock()
	if current {
		s.log.Info("session rejected by server, logging out")
		s.Teardown()
	}
}

// resetLocked switches to a new token (possibly none). Pending actions of
// the old session are canceled and forgotten without rollback, since the
// profile they modified is gone.
func (s *Store) resetLocked(token string, profile *Profile) {
	for kind, p := range s.pending {
		p.cancel()
		delete(s.pending, kind)
	}
	s.unsettled = nil
	s.token = token
	s.epoch++
	s.seq++
	s.applied = s.seq
	s.profile = nil
	if profile != nil {
		cp := *profile
		s.profile = &cp
	}
}

// dispatch reserves a sequence number for a request made with the current
// token.
func (s *Store) dispatch() (token string, epoch, seq uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", 0, 0, ErrUnauthenticated
	}
	s.seq++
	return s.token, s.epoch, s.seq, nil
}

// adoptLocked installs p if it belongs to the current session and is newer
// than the last adopted result.
func (s *Store) adoptLocked(p *Profile, epoch, seq uint64) bool {
	if epoch != s.epoch || seq <= s.applied {
		return false
	}
	cp := *p
	s.profile = &cp
	s.applied = seq
	s.supersedeLocked(seq)
	return true
}

// adoptCreditsLocked updates only the balance.
func (s *Store) adoptCreditsLocked(credits int, epoch, seq uint64) bool {
	if s.profile == nil || epoch != s.epoch || seq <= s.applied {
		return false
	}
	s.profile.Credits = credits
	s.applied = seq
	s.supersedeLocked(seq)
	return true
}

// supersedeLocked stops displaying the deltas of actions dispatched before
// seq. Pending ones keep their slot until they finish.
func (s *Store) supersedeLocked(seq uint64) {
	for _, a := range s.pending {
		if a.seq < seq {
			a.superseded = true
		}
	}
	s.unsettled = slices.DeleteFunc(s.unsettled, func(a *pendingAction) bool {
		return a.seq < seq
	})
}

// RefreshProfile fetches the authoritative profile. A 401 ends the session.
// A network failure keeps the cached profile. When a newer result has
// already been adopted, the cached snapshot is returned unchanged.
func (s *Store) RefreshProfile(ctx context.Context) (Profile, error) {
	token, epoch, seq, err := s.dispatch()
	if err != nil {
		return Profile{}, err
	}

	p, err := s.client.Me(ctx, token)
	if err != nil {
		if IsUnauthenticated(err) {
			s.teardownIf(epoch)
		}
		return Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return Profile{}, fmt.Errorf("%w: session changed during refresh", ErrCanceled)
	}
	if !s.adoptLocked(p, epoch, seq) && s.profile == nil {
		return Profile{}, fmt.Errorf("%w: no profile cached", ErrCanceled)
	}
	return s.displayedLocked(), nil
}

// UpdateDisplayName changes the display name and adopts the returned profile.
func (s *Store) UpdateDisplayName(ctx context.Context, name string) (Profile, error) {
	token, epoch, seq, err := s.dispatch()
	if err != nil {
		return Profile{}, err
	}

	p, err := s.client.UpdateProfile(ctx, token, UpdateProfileRequest{DisplayName: name})
	if err != nil {
		if IsUnauthenticated(err) {
			s.teardownIf(epoch)
		}
		return Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptLocked(p, epoch, seq)
	return *p, nil
}

// authed runs fn with the current token and applies the 401 rule. Use it
// for calls that do not touch the cached profile.
func (s *Store) authed(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	token, epoch, _, err := s.dispatch()
	if err != nil {
		return err
	}
	if err := fn(ctx, token); err != nil {
		if IsUnauthenticated(err) {
			s.teardownIf(epoch)
		}
		return err
	}
	return nil
}

// Posters lists the library.
func (s *Store) Posters(ctx context.Context, limit int) ([]Poster, error) {
	var out []Poster
	err := s.authed(ctx, func(ctx context.Context, token string) error {
		var err error
		out, err = s.client.Posters(ctx, token, limit)
		return err
	})
	return out, err
}

// DeletePoster removes a poster from the library.
func (s *Store) DeletePoster(ctx context.Context, id string) error {
	return s.authed(ctx, func(ctx context.Context, token string) error {
		return s.client.DeletePoster(ctx, token, id)
	})
}

// Receipt fetches one receipt.
func (s *Store) Receipt(ctx context.Context, id string) (Receipt, error) {
	var out *Receipt
	err := s.authed(ctx, func(ctx context.Context, token string) error {
		var err error
		out, err = s.client.Receipt(ctx, token, id)
		return err
	})
	if err != nil {
		return Receipt{}, err
	}
	return *out, nil
}

// ShowAds reports whether ads should be displayed. Ads are shown while the
// entitlement is unknown.
func (s *Store) ShowAds() bool {
	p, ok := s.Profile()
	return !ok || !p.AdFree
}

// AdAfterReply reports whether an ad follows the n-th assistant reply.
func (s *Store) AdAfterReply(n int) bool {
	return n > 0 && n%2 == 0 && s.ShowAds()
}

func isCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}
