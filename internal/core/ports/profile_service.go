package ports

import (
	"context"
	"io"

	"github.com/sociallab/sociallab/internal/core/domain"
)

// ProfileService edits the signed-in user's profile.
type ProfileService interface {
	UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.Profile, error)
	UploadAvatar(ctx context.Context, userID, filename string, blob io.Reader, contentType string) (*domain.Profile, error)
}
