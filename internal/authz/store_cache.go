package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	profileCachePrefix = "vet360:profile:"
	// profileLoadTimeout bounds a shared load once it no longer follows any
	// caller's context.
	profileLoadTimeout = 10 * time.Second
)

// CachedProfileStore is a Redis read-through cache in front of another store.
type CachedProfileStore struct {
	next   ProfileStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedProfileStore wraps next with a Redis cache. A nil client disables caching.
func NewCachedProfileStore(next ProfileStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedProfileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProfileStore{next: next, client: client, ttl: ttl, logger: logger}
}

func profileCacheKey(uid string) string {
	return profileCachePrefix + uid
}

// Fetch serves from cache, otherwise loads once per uid across concurrent
// callers. The shared load outlives any single caller; each caller stops
// waiting when its own ctx ends.
func (s *CachedProfileStore) Fetch(ctx context.Context, uid string) (Profile, error) {
	if s.client == nil {
		return s.next.Fetch(ctx, uid)
	}
	key := profileCacheKey(uid)
	payload, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var profile Profile
		if err := json.Unmarshal(payload, &profile); err == nil {
			return profile, nil
		}
		s.logger.Warn("drop corrupt profile cache entry", slog.String("uid", uid))
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("profile cache read", slog.String("uid", uid), slog.Any("error", err))
	}

	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), profileLoadTimeout)
		defer cancel()
		profile, err := s.next.Fetch(loadCtx, uid)
		if err != nil {
			return Profile{}, err
		}
		raw, err := json.Marshal(profile)
		if err != nil {
			return Profile{}, fmt.Errorf("authz: encode profile: %w", err)
		}
		if err := s.client.Set(loadCtx, key, raw, s.ttl).Err(); err != nil {
			s.logger.Warn("profile cache write", slog.String("uid", uid), slog.Any("error", err))
		}
		return profile, nil
	})
	select {
	case <-ctx.Done():
		return Profile{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Profile{}, res.Err
		}
		return res.Val.(Profile), nil
	}
}

// Update writes through and drops the cached entry.
func (s *CachedProfileStore) Update(ctx context.Context, uid string, update ProfileUpdate) error {
	if err := s.next.Update(ctx, uid, update); err != nil {
		return err
	}
	s.Invalidate(ctx, uid)
	return nil
}

// Invalidate removes the cached profile for uid.
func (s *CachedProfileStore) Invalidate(ctx context.Context, uid string) {
	if s.client == nil {
		return
	}
	if err := s.client.Del(ctx, profileCacheKey(uid)).Err(); err != nil {
		s.logger.Warn("profile cache invalidate", slog.String("uid", uid), slog.Any("error", err))
	}
}

var _ ProfileStore = (*CachedProfileStore)(nil)
