package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/repository"
)

// ProfileService manages per-user profile metadata and accounts.
type ProfileService struct {
	accounts AccountStore
}

// NewProfileService creates a new ProfileService.
func NewProfileService(accounts AccountStore) *ProfileService {
	return &ProfileService{accounts: accounts}
}

// GetProfile returns the profile for userID. Unknown users get an empty
// profile.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	account, err := s.accounts.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return &model.Profile{}, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &model.Profile{GithubLink: account.GithubLink}, nil
}

// UpdateProfileInput defines a profile change. A nil GithubLink keeps the
// stored value. Caller is the verified identity making the change.
type UpdateProfileInput struct {
	Caller     *model.Identity
	UserID     string
	GithubLink *string
}

// UpdateProfile stores profile changes and returns the resulting profile.
// Users may only change their own profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, input UpdateProfileInput) (*model.Profile, error) {
	if input.Caller == nil || input.Caller.UID == "" {
		return nil, ErrUnauthenticated
	}
	if input.UserID == "" {
		return nil, ErrMissingUserID
	}
	if input.UserID != input.Caller.UID {
		return nil, ErrForbidden
	}

	current, err := s.GetProfile(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if input.GithubLink == nil {
		return current, nil
	}

	account, err := s.accounts.UpdateProfile(ctx, input.UserID, model.Profile{
		GithubLink: strings.TrimSpace(*input.GithubLink),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &model.Profile{GithubLink: account.GithubLink}, nil
}

// Me returns the caller's account, creating it on first use.
func (s *ProfileService) Me(ctx context.Context, viewer *model.Identity) (*model.Account, error) {
	if viewer == nil || viewer.UID == "" {
		return nil, ErrUnauthenticated
	}
	account, err := s.accounts.EnsureAccount(ctx, viewer.UID, viewer.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.PurchasedAPIs == nil {
		account.PurchasedAPIs = []string{}
	}
	return account, nil
}
