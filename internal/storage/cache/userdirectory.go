// Package cache adds a Redis read-aside layer in front of the user directory.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-recipe-notifier/pkg/dispatch"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns ErrMiss if the key does not exist.
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedUserDirectory decorates a dispatch.UserDirectory.
//
// Only single-user reads are cached (commenter nickname lookups). ListUsers
// always goes to the real store so a cleared token is never sent to again.
type CachedUserDirectory struct {
	realStore dispatch.UserDirectory
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

func NewCachedUserDirectory(realStore dispatch.UserDirectory, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedUserDirectory {
	return &CachedUserDirectory{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedUserDirectory"),
	}
}

func (s *CachedUserDirectory) ListUsers(ctx context.Context) ([]dispatch.User, error) {
	return s.realStore.ListUsers(ctx)
}

func (s *CachedUserDirectory) GetUser(ctx context.Context, id string) (*dispatch.User, error) {
	key := s.cacheKey(id)

	var cached dispatch.User
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrMiss) {
		s.logger.Warn("Cache read failed; falling back to store", "user_id", id, "err", err)
	}

	fresh, err := s.realStore.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	// Caching is an optimisation; a failed write only costs the next read.
	if err := s.cache.Set(ctx, key, fresh, s.ttl); err != nil {
		s.logger.Warn("Cache write failed", "user_id", id, "err", err)
	}
	return fresh, nil
}

func (s *CachedUserDirectory) ClearFCMToken(ctx context.Context, id string) error {
	if err := s.realStore.ClearFCMToken(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

func (s *CachedUserDirectory) SetFCMToken(ctx context.Context, id string, token string) error {
	if err := s.realStore.SetFCMToken(ctx, id, token); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

func (s *CachedUserDirectory) invalidate(ctx context.Context, id string) error {
	if err := s.cache.Del(ctx, s.cacheKey(id)); err != nil {
		return fmt.Errorf("failed to invalidate cached user %s: %w", id, err)
	}
	return nil
}

func (s *CachedUserDirectory) cacheKey(id string) string {
	return fmt.Sprintf("recipes:users:%s", id)
}
