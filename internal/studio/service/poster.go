package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
	"github.com/aussiebroadwan/minivisionary/internal/studio/metrics"
	"github.com/aussiebroadwan/minivisionary/internal/studio/poster"
	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
	"github.com/aussiebroadwan/minivisionary/pkg/idx"
	"github.com/aussiebroadwan/minivisionary/pkg/slogx"
)

const (
	// CostPerPoster is debited before generation and refunded on failure.
	CostPerPoster = 10

	MaxPromptLength = 2000
)

type PosterService struct {
	Store     store.Store
	Wallet    *WalletService
	Generator poster.Generator
	Storage   poster.Storage
	Metrics   *metrics.Metrics

	// Timeout bounds a single generation. Zero means no bound.
	Timeout time.Duration
}

// Generated is a stored poster plus the balance after paying for it.
type Generated struct {
	Poster  domain.Poster
	Credits int
}

// Generate pays for, renders, stores and records a poster. Any failure after
// the debit refunds it once.
func (s *PosterService) Generate(ctx context.Context, userID string, req poster.Request) (Generated, error) {
	l := slogx.FromContext(ctx)

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return Generated{}, ErrMissingPrompt
	}
	if len(req.Prompt) > MaxPromptLength {
		return Generated{}, fmt.Errorf("%w: prompt too long", ErrInvalidInput)
	}
	req.Size, _, _ = poster.ParseSize(req.Size)

	spend, err := s.Wallet.Spend(ctx, userID, CostPerPoster, "poster")
	if err != nil {
		return Generated{}, err
	}

	fail := func(stage string, cause error) (Generated, error) {
		s.Metrics.PosterGenerated(false)
		// The refund must land even if the caller has gone away.
		if _, err := s.Wallet.Refund(context.WithoutCancel(ctx), userID, CostPerPoster, "poster "+stage+" failed"); err != nil {
			l.Error("poster refund failed", slog.String("user_id", userID), slog.Any("error", err))
		}
		return Generated{}, fmt.Errorf("%s poster: %w", stage, cause)
	}

	genCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	img, err := s.Generator.Generate(genCtx, req)
	if err != nil {
		return fail("generate", err)
	}

	key := idx.Key("posters", ".png")
	url, err := s.Storage.Put(ctx, key, img.Data, img.ContentType)
	if err != nil {
		return fail("store", err)
	}

	p := domain.Poster{
		ID:         idx.New().String(),
		UserID:     userID,
		Prompt:     req.Prompt,
		Style:      req.Style,
		Size:       req.Size,
		StorageKey: key,
		URL:        url,
		Width:      img.Width,
		Height:     img.Height,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Store.Posters().Create(ctx, p); err != nil {
		_ = s.Storage.Delete(context.WithoutCancel(ctx), key)
		return fail("save", err)
	}

	s.Metrics.PosterGenerated(true)
	l.Info("poster generated", slog.String("poster_id", p.ID), slog.Int("credits", spend.BalanceAfter))
	return Generated{Poster: p, Credits: spend.BalanceAfter}, nil
}

// Library lists the user's posters, newest first.
func (s *PosterService) Library(ctx context.Context, userID string, limit int) ([]domain.Poster, error) {
	return s.Store.Posters().ListByUser(ctx, userID, limit)
}

// Delete removes a poster row and then its file. A missing file is logged.
func (s *PosterService) Delete(ctx context.Context, userID, id string) error {
	p, err := s.Store.Posters().Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.Store.Posters().Delete(ctx, userID, id); err != nil {
		return err
	}
	if err := s.Storage.Delete(ctx, p.StorageKey); err != nil {
		slogx.FromContext(ctx).Warn("poster file not removed", slog.String("key", p.StorageKey), slog.Any("error", err))
	}
	return nil
}
