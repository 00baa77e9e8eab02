package service

import (
	"context"
	"fmt"
	"html"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
)

// AvatarBucket is the storage bucket avatars are uploaded to.
const AvatarBucket = "avatars"

const maxSanitizePasses = 8

// ProfileRefresher reloads the facade's cached profile after a write.
type ProfileRefresher interface {
	RefreshProfile(ctx context.Context) (*domain.Profile, error)
}

// ProfileService edits the signed-in user's profile row and avatar.
type ProfileService struct {
	repo      ports.ProfileRepository
	storage   ports.FileStorage
	refresher ProfileRefresher
	policy    *bluemonday.Policy
	log       zerolog.Logger
}

var _ ports.ProfileService = (*ProfileService)(nil)

func NewProfileService(repo ports.ProfileRepository, storage ports.FileStorage, refresher ProfileRefresher, log zerolog.Logger) *ProfileService {
	return &ProfileService{
		repo:      repo,
		storage:   storage,
		refresher: refresher,
		policy:    bluemonday.StrictPolicy(),
		log:       log,
	}
}

// UpdateProfile writes the given fields with any markup stripped, then reloads
// the cached profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrNoSession
	}

	clean := domain.ProfileUpdate{
		FullName:     s.sanitize(upd.FullName),
		Username:     s.sanitize(upd.Username),
		AvatarURL:    upd.AvatarURL,
		Phone:        s.sanitize(upd.Phone),
		LinkedinURL:  s.sanitize(upd.LinkedinURL),
		TwitterURL:   s.sanitize(upd.TwitterURL),
		FacebookURL:  s.sanitize(upd.FacebookURL),
		InstagramURL: s.sanitize(upd.InstagramURL),
	}

	profile, err := s.repo.UpdateProfileRow(ctx, userID, clean)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.refresh(ctx)
	s.log.Info().Str("user_id", userID).Msg("profile updated")
	return profile, nil
}

// UploadAvatar stores the image under avatars/<user>-<random>.<ext> and points
// the profile's avatar_url at its public URL.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID, filename string, blob io.Reader, contentType string) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrNoSession
	}

	objectPath := avatarPath(userID, filename)
	publicURL, err := s.storage.UploadFile(ctx, AvatarBucket, objectPath, blob, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	profile, err := s.repo.UpdateProfileRow(ctx, userID, domain.ProfileUpdate{AvatarURL: &publicURL})
	if err != nil {
		return nil, fmt.Errorf("update avatar url: %w", err)
	}

	s.refresh(ctx)
	s.log.Info().Str("user_id", userID).Str("path", objectPath).Msg("avatar uploaded")
	return profile, nil
}

func (s *ProfileService) refresh(ctx context.Context) {
	if s.refresher == nil {
		return
	}
	if _, err := s.refresher.RefreshProfile(ctx); err != nil {
		s.log.Warn().Err(err).Msg("profile refresh after write failed")
	}
}

// sanitize strips markup and stores plain text. Unescaping can expose
// entity-encoded tags, so the pass repeats until the text is stable; input
// that never settles is kept in its escaped form.
func (s *ProfileService) sanitize(v *string) *string {
	if v == nil {
		return nil
	}
	out, stable := *v, false
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(out))
		if next == out {
			stable = true
			break
		}
		out = next
	}
	if !stable {
		out = s.policy.Sanitize(out)
	}
	out = strings.TrimSpace(out)
	return &out
}

func avatarPath(userID, filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	name := userID + "-" + uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return AvatarBucket + "/" + name
}
