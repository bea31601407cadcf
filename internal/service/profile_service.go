package service

import (
	"context"
	"errors"
	"fmt"

	"duel_webapp/internal/domain"
	"duel_webapp/internal/repository"
)

var (
	ErrProfileDisabled = errors.New("profile store not configured")
	ErrUserNotFound    = repository.ErrUserNotFound
)

// ProfileStore is the persistence the profile service needs.
// *repository.ProfileRepository satisfies it.
type ProfileStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ApplyResult(ctx context.Context, userID int64, won bool, reward, penalty int64) (domain.ProfileTotals, error)
}

// ProfileService is the profile collaborator: it turns finished matches
// into credit, win and loss totals.
type ProfileService struct {
	store   ProfileStore
	reward  int64
	penalty int64
}

// NewProfileService accepts a nil store; every call then fails with
// ErrProfileDisabled.
func NewProfileService(store ProfileStore, reward, penalty int64) *ProfileService {
	if reward < 0 {
		reward = 0
	}
	if penalty < 0 {
		penalty = 0
	}
	return &ProfileService{store: store, reward: reward, penalty: penalty}
}

func (s *ProfileService) Enabled() bool {
	return s != nil && s.store != nil
}

// Profile returns the current totals of userID.
func (s *ProfileService) Profile(ctx context.Context, userID int64) (domain.ProfileTotals, error) {
	if !s.Enabled() {
		return domain.ProfileTotals{UserID: userID}, ErrProfileDisabled
	}
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return domain.ProfileTotals{UserID: userID}, err
	}
	return domain.ProfileTotals{
		UserID:  u.ID,
		Credits: u.Credits,
		Wins:    u.Wins,
		Losses:  u.Losses,
	}, nil
}

// ReportResult records one finished match and returns the updated totals.
func (s *ProfileService) ReportResult(ctx context.Context, userID int64, isWinner bool) (domain.ProfileTotals, error) {
	if !s.Enabled() {
		return domain.ProfileTotals{UserID: userID}, ErrProfileDisabled
	}
	totals, err := s.store.ApplyResult(ctx, userID, isWinner, s.reward, s.penalty)
	if err != nil {
		return totals, fmt.Errorf("report result for user %d: %w", userID, err)
	}
	return totals, nil
}
