// Package memory keeps serialised sessions in process memory.
package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/studyguide/web/pkg/backend"
)

const cleanupInterval = 10 * time.Minute

type Storage struct {
	cache *cache.Cache
	ttl   time.Duration
}

var _ backend.ExpiringStorage = (*Storage)(nil)

// NewStorage returns a storage whose items expire after ttl; a ttl of zero
// keeps items until they are removed.
func NewStorage(ttl time.Duration) *Storage {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}

	return &Storage{
		cache: cache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

func (s *Storage) GetItem(_ context.Context, key string) (string, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return "", false, nil
	}

	str, ok := v.(string)
	return str, ok, nil
}

func (s *Storage) SetItem(_ context.Context, key, value string) error {
	s.cache.Set(key, value, cache.DefaultExpiration)
	return nil
}

func (s *Storage) SetItemWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *Storage) RemoveItem(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
