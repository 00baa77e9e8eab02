package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sociallab/sociallab/internal/api/metrics"
	"github.com/sociallab/sociallab/internal/core/ports"
)

// Auth-token naming convention of the identity client's local storage.
const (
	AuthTokenKey       = "supabase.auth.token"
	authKeyPrefix      = "supabase.auth."
	authProviderMarker = "sb-"
)

// IsAuthStorageKey reports whether key holds identity-client auth state.
func IsAuthStorageKey(key string) bool {
	return key == AuthTokenKey ||
		strings.HasPrefix(key, authKeyPrefix) ||
		strings.Contains(key, authProviderMarker)
}

// CleanupAuthState removes every auth-token key from each store so a stale
// token cannot leave the app looking signed in while the backend rejects it.
// It never fails: store errors are logged and the scrub moves on. Returns the
// number of keys removed.
func CleanupAuthState(ctx context.Context, log zerolog.Logger, stores ...ports.KeyValueStore) int {
	removed := 0
	for _, store := range stores {
		if store == nil {
			continue
		}
		removed += cleanupStore(ctx, log, store)
	}
	return removed
}

func cleanupStore(ctx context.Context, log zerolog.Logger, store ports.KeyValueStore) int {
	if err := store.Remove(ctx, AuthTokenKey); err != nil {
		log.Warn().Err(err).Str("store", store.Name()).Msg("auth cleanup: remove fixed key failed")
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		log.Warn().Err(err).Str("store", store.Name()).Msg("auth cleanup: list keys failed")
		return 0
	}

	removed := 0
	for _, key := range keys {
		if !IsAuthStorageKey(key) {
			continue
		}
		if err := store.Remove(ctx, key); err != nil {
			log.Warn().Err(err).Str("store", store.Name()).Str("key", key).Msg("auth cleanup: remove key failed")
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.StorageKeysRemovedTotal.WithLabelValues(store.Name()).Add(float64(removed))
		log.Debug().Str("store", store.Name()).Int("removed", removed).Msg("auth cleanup: keys removed")
	}
	return removed
}
