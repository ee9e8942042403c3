package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
	"github.com/aussiebroadwan/minivisionary/pkg/cryptox"
	"github.com/aussiebroadwan/minivisionary/pkg/idx"
	"github.com/aussiebroadwan/minivisionary/pkg/jwtx"
	"github.com/aussiebroadwan/minivisionary/pkg/slogx"
)

const (
	// SignupBonus is granted to every new account.
	SignupBonus = 20

	MinPasswordLength = 8
	MaxDisplayName    = 64
)

// Session is a freshly issued login.
type Session struct {
	Token  string
	User   domain.User
	Claims jwtx.Claims
}

type AuthService struct {
	Store      store.Store
	KeyManager *jwtx.KeyManager
	Issuer     string
	TokenTTL   time.Duration
	Wallet     *WalletService
}

// Signup creates an account with the signup bonus and logs it in.
func (s *AuthService) Signup(ctx context.Context, email, password, displayName string) (Session, error) {
	l := slogx.FromContext(ctx)

	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < MinPasswordLength {
		return Session{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > MaxDisplayName {
		return Session{}, fmt.Errorf("%w: display name too long", ErrInvalidInput)
	}
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Plan:         domain.PlanFree,
	}

	var grant domain.CreditEvent
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailExists
			}
			return err
		}

		ev, err := applyCredits(ctx, tx, domain.CreditEvent{
			UserID: user.ID,
			Kind:   domain.CreditGrant,
			Amount: SignupBonus,
			Note:   "signup bonus",
		})
		grant = ev
		return err
	})
	if err != nil {
		return Session{}, err
	}
	s.Wallet.record(grant)

	user.Credits = grant.BalanceAfter
	l.Info("user signed up", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Login checks credentials. Unknown emails and wrong passwords look the same.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		slogx.FromContext(ctx).Info("login failed", slog.String("user_id", user.ID))
		return Session{}, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Logout revokes the token's jti until the token would have expired.
func (s *AuthService) Logout(ctx context.Context, claims jwtx.Claims) error {
	if claims.ID == "" {
		return ErrInvalidInput
	}
	return s.Store.Revocations().Revoke(ctx, domain.RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAtTime(),
	})
}

func (s *AuthService) issue(user domain.User) (Session, error) {
	signer := s.KeyManager.GetSigner()
	if signer == nil {
		return Session{}, errors.New("no signing key available")
	}

	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}

	claims := jwtx.NewSessionClaims(user.ID, user.Email, user.DisplayName, ttl, s.Issuer, time.Now())
	token, err := signer.Sign(claims)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, User: user, Claims: claims}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return email, nil
}
