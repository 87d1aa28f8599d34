// Package cache provides a Redis read-through layer over storage.UserStore.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/action_layer/internal/app/domain/user"
	"github.com/R3E-Network/action_layer/internal/app/storage"
	"github.com/R3E-Network/action_layer/pkg/logger"
)

// DefaultTTL bounds how long a cached user may be served.
const DefaultTTL = 5 * time.Minute

// Client is the subset of the go-redis API the cache relies on.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// UserStore caches GetUser lookups in Redis. Writes go straight to the
// wrapped store and evict the cached entry.
type UserStore struct {
	storage.UserStore
	client Client
	ttl    time.Duration
	log    *logger.Logger
}

var _ storage.UserStore = (*UserStore)(nil)

// NewUserStore wraps next. A non-positive ttl selects DefaultTTL.
func NewUserStore(next storage.UserStore, client Client, ttl time.Duration, log *logger.Logger) *UserStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NewDefault("user-cache")
	}
	return &UserStore{UserStore: next, client: client, ttl: ttl, log: log}
}

func userKey(id string) string { return "users:" + id }

func (s *UserStore) GetUser(ctx context.Context, id string) (user.User, error) {
	raw, err := s.client.Get(ctx, userKey(id)).Bytes()
	switch {
	case err == nil:
		var u user.User
		if jsonErr := json.Unmarshal(raw, &u); jsonErr == nil {
			return u, nil
		}
		s.log.WithField("user_id", id).Warn("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		s.log.WithError(err).Warn("user cache read failed")
	}

	u, err := s.UserStore.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	s.store(ctx, u)
	return u, nil
}

func (s *UserStore) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	updated, err := s.UserStore.UpdateUser(ctx, u)
	s.evict(ctx, u.ID)
	return updated, err
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	err := s.UserStore.DeleteUser(ctx, id)
	s.evict(ctx, id)
	return err
}

func (s *UserStore) store(ctx context.Context, u user.User) {
	payload, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, userKey(u.ID), payload, s.ttl).Err(); err != nil {
		s.log.WithError(err).Warn("user cache write failed")
	}
}

func (s *UserStore) evict(ctx context.Context, id string) {
	if err := s.client.Del(ctx, userKey(id)).Err(); err != nil {
		s.log.WithError(err).Warn("user cache eviction failed")
	}
}
