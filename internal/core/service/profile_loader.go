package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/sociallab/sociallab/internal/api/metrics"
	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
)

// ProfileLoader fetches profile rows for the session tracker.
type ProfileLoader struct {
	repo ports.ProfileRepository
	log  zerolog.Logger
}

func NewProfileLoader(repo ports.ProfileRepository, log zerolog.Logger) *ProfileLoader {
	return &ProfileLoader{repo: repo, log: log}
}

// FetchUserProfile returns the profile of userID, or nil when it does not exist
// yet or cannot be read. It never returns an error: a missing profile is a
// normal state right after sign-up.
func (l *ProfileLoader) FetchUserProfile(ctx context.Context, userID string) *domain.Profile {
	profile, err := l.repo.GetProfileRow(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		metrics.ProfileLoadsTotal.WithLabelValues("missing").Inc()
		l.log.Debug().Str("user_id", userID).Msg("no profile yet")
		return nil
	case err != nil:
		metrics.ProfileLoadsTotal.WithLabelValues("error").Inc()
		l.log.Error().Err(err).Str("user_id", userID).Msg("failed to fetch profile")
		return nil
	case profile == nil:
		metrics.ProfileLoadsTotal.WithLabelValues("missing").Inc()
		return nil
	}
	metrics.ProfileLoadsTotal.WithLabelValues("found").Inc()
	return profile
}
