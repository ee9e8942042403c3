package visionsdk

import (
	"context"
	"errors"
	"fmt"
)

// ActionKind identifies a class of mutating action. At most one action of
// each kind is in flight per Store.
type ActionKind string

const (
	ActionGeneratePoster ActionKind = "generate_poster"
	ActionPurchase       ActionKind = "purchase"
	ActionAdFree         ActionKind = "ad_free"
)

type pendingAction struct {
	id     uint64
	seq    uint64
	delta  int
	adFree *bool
	cancel context.CancelFunc

	// superseded is set once a server state newer than the dispatch has
	// been adopted; the delta is then part of the base.
	superseded bool
}

// Result is what the server reported after a mutation. When both fields are
// nil the store fetches the profile itself.
type Result struct {
	Credits *int
	Profile *Profile
}

// Mutation is an action applied optimistically. Delta is the expected
// credit change (negative for spends) and AdFree, when set, the expected
// entitlement. Send performs the request with the session token.
type Mutation struct {
	Kind   ActionKind
	Delta  int
	AdFree *bool
	Send   func(ctx context.Context, token string) (Result, error)
}

// displayedLocked is the cached profile with every change the server has
// not yet confirmed applied. Credits are clamped at zero.
func (s *Store) displayedLocked() Profile {
	p := *s.profile
	apply := func(a *pendingAction) {
		p.Credits += a.delta
		if a.adFree != nil {
			p.AdFree = *a.adFree
		}
	}
	for _, a := range s.pending {
		if !a.superseded {
			apply(a)
		}
	}
	for _, a := range s.unsettled {
		apply(a)
	}
	p.Credits = max(p.Credits, 0)
	return p
}

// Pending reports whether an action of kind is in flight.
func (s *Store) Pending(kind ActionKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[kind]
	return ok
}

// Mutate applies m optimistically, sends it, and reconciles the result:
//   - a spend that would go below zero fails with ErrInsufficientCredits
//     before anything is sent
//   - on success the server's balance or profile becomes the new base and
//     the optimistic delta is dropped in the same step
//   - on failure the delta is rolled back exactly once
//   - when the server confirms without a balance and the profile cannot be
//     fetched, the delta stays displayed until the next adopted result
//
// A second mutation of the same kind while one is pending fails with
// ErrActionPending.
func (s *Store) Mutate(ctx context.Context, m Mutation) error {
	if m.Kind == "" || m.Send == nil {
		return errors.New("visionsdk: mutation needs a kind and a send func")
	}

	s.mu.Lock()
	needProfile := s.token != "" && s.profile == nil
	s.mu.Unlock()
	if needProfile {
		if _, err := s.RefreshProfile(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.token == "" || s.profile == nil {
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	if _, busy := s.pending[m.Kind]; busy {
		s.mu.Unlock()
		return ErrActionPending
	}
	if m.Delta < 0 {
		optimistic := s.profile.Credits + m.Delta
		for _, a := range s.pending {
			if !a.superseded {
				optimistic += a.delta
			}
		}
		for _, a := range s.unsettled {
			optimistic += a.delta
		}
		if optimistic < 0 {
			s.mu.Unlock()
			return ErrInsufficientCredits
		}
	}

	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.nextID++
	s.seq++
	seq := s.seq
	action := &pendingAction{id: s.nextID, seq: seq, delta: m.Delta, adFree: m.AdFree, cancel: cancel}
	s.pending[m.Kind] = action
	token, epoch := s.token, s.epoch
	s.mu.Unlock()

	res, err := m.Send(actx, token)

	var ferr error
	if err == nil && res.Credits == nil && res.Profile == nil {
		// Keep the delta displayed until the fetched profile replaces it.
		var p *Profile
		p, ferr = s.client.Me(actx, token)
		switch {
		case ferr == nil:
			res.Profile = p
		case IsUnauthenticated(ferr):
			s.teardownIf(epoch)
		default:
			s.log.Warn("profile fetch after action failed", "action", string(m.Kind), "err", ferr)
		}
	}

	s.mu.Lock()
	if s.pending[m.Kind] != action {
		// Canceled or torn down; rollback already happened.
		s.mu.Unlock()
		if IsUnauthenticated(ferr) {
			return ferr
		}
		return fmt.Errorf("%w: %s", ErrCanceled, m.Kind)
	}
	delete(s.pending, m.Kind)

	if err != nil {
		s.mu.Unlock()
		if IsUnauthenticated(err) {
			s.teardownIf(epoch)
		}
		if isCanceled(err) && !errors.Is(err, ErrCanceled) {
			return fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		return err
	}

	switch {
	case action.superseded:
		// A refresh dispatched later was adopted first, so this result is
		// dropped as stale. Fetch once more so the base reflects the action.
	case res.Profile != nil:
		s.adoptLocked(res.Profile, epoch, seq)
	case res.Credits != nil:
		if s.adoptCreditsLocked(*res.Credits, epoch, seq) && m.AdFree != nil {
			s.profile.AdFree = *m.AdFree
		}
	default:
		s.unsettled = append(s.unsettled, action)
	}
	resync := action.superseded
	s.mu.Unlock()

	if resync {
		if _, err := s.RefreshProfile(ctx); err != nil && !isCanceled(err) {
			s.log.Warn("profile refresh after action failed", "action", string(m.Kind), "err", err)
		}
	}
	return nil
}

// Cancel aborts the pending action of kind and rolls its delta back at
// once. A response that arrives later is ignored. It reports whether an
// action was pending.
func (s *Store) Cancel(kind ActionKind) bool {
	s.mu.Lock()
	a, ok := s.pending[kind]
	if ok {
		delete(s.pending, kind)
	}
	s.mu.Unlock()

	if ok {
		a.cancel()
	}
	return ok
}

// GeneratePoster spends CostPerPoster credits optimistically and renders a
// poster.
func (s *Store) GeneratePoster(ctx context.Context, req PosterRequest) (*PosterResponse, error) {
	var out *PosterResponse
	err := s.Mutate(ctx, Mutation{
		Kind:  ActionGeneratePoster,
		Delta: -CostPerPoster,
		Send: func(ctx context.Context, token string) (Result, error) {
			resp, err := s.client.GeneratePoster(ctx, token, req)
			if err != nil {
				return Result{}, err
			}
			out = resp
			return Result{Credits: resp.Credits}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelAdFree ends the ad-free subscription, showing ads again immediately.
func (s *Store) CancelAdFree(ctx context.Context) (Profile, error) {
	adFree := false
	err := s.Mutate(ctx, Mutation{
		Kind:   ActionAdFree,
		AdFree: &adFree,
		Send: func(ctx context.Context, token string) (Result, error) {
			p, err := s.client.CancelSubscription(ctx, token)
			if err != nil {
				return Result{}, err
			}
			return Result{Profile: p}, nil
		},
	})
	if err != nil {
		return Profile{}, err
	}
	p, _ := s.Profile()
	return p, nil
}
