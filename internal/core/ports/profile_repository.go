package ports

import (
	"context"

	"github.com/sociallab/sociallab/internal/core/domain"
)

// ProfileRepository persists profile rows keyed by user id.
type ProfileRepository interface {
	// GetProfileRow returns domain.ErrProfileNotFound when the row does not exist.
	GetProfileRow(ctx context.Context, userID string) (*domain.Profile, error)
	UpdateProfileRow(ctx context.Context, userID string, fields domain.ProfileUpdate) (*domain.Profile, error)
	CreateProfileRow(ctx context.Context, profile *domain.Profile) error
}
