package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
)

type ProfileService struct {
	Store store.Store
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

// UpdateDisplayName sets a trimmed, non-empty name and returns the profile.
func (s *ProfileService) UpdateDisplayName(ctx context.Context, userID, name string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxDisplayName {
		return domain.User{}, fmt.Errorf("%w: display_name must be 1-%d characters", ErrInvalidInput, MaxDisplayName)
	}

	if err := s.Store.Users().UpdateDisplayName(ctx, userID, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return s.GetProfile(ctx, userID)
}
