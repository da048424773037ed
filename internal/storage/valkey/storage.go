// Package valkey keeps serialised sessions in ValKey so that they survive
// process restarts.
package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/studyguide/web/pkg/backend"
)

const objectTypeAuth = "auth"

type Storage struct {
	valkey valkey.Client
	prefix string
}

var _ backend.ExpiringStorage = (*Storage)(nil)

func NewStorage(valkeyClient valkey.Client, prefix string) *Storage {
	return &Storage{
		valkey: valkeyClient,
		prefix: strings.TrimSuffix(prefix, ":"),
	}
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	value, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(s.key(key)).Build()).ToString()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return "", false, nil
		}

		return "", false, fmt.Errorf("executing get command: %w", err)
	}

	return value, true, nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	if err := s.valkey.Do(ctx, s.valkey.B().Set().Key(s.key(key)).Value(value).Build()).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

// SetItemWithTTL stores the item with a whole second expiry of at least one
// second.
func (s *Storage) SetItemWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	seconds := max(int64(ttl/time.Second), 1)
	if err := s.valkey.Do(ctx, s.valkey.B().Setex().Key(s.key(key)).Seconds(seconds).Value(value).Build()).Error(); err != nil {
		return fmt.Errorf("executing setex command: %w", err)
	}

	return nil
}

func (s *Storage) RemoveItem(ctx context.Context, key string) error {
	if err := s.valkey.Do(ctx, s.valkey.B().Del().Key(s.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}

	return nil
}

func (s *Storage) key(id string) string {
	if s.prefix == "" {
		return objectTypeAuth + ":" + id
	}
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectTypeAuth, id)
}
