package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyguide/web/internal/storage/memory"
)

func TestStorage(t *testing.T) {
	ctx := t.Context()
	s := memory.NewStorage(0)

	t.Run("missing item is absent", func(t *testing.T) {
		v, ok, err := s.GetItem(ctx, "studyguide-auth")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("set get remove", func(t *testing.T) {
		require.NoError(t, s.SetItem(ctx, "studyguide-auth", `{"access_token":"a"}`))

		v, ok, err := s.GetItem(ctx, "studyguide-auth")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `{"access_token":"a"}`, v)

		require.NoError(t, s.RemoveItem(ctx, "studyguide-auth"))
		_, ok, err = s.GetItem(ctx, "studyguide-auth")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("removing a missing item is fine", func(t *testing.T) {
		assert.NoError(t, s.RemoveItem(ctx, "never-set"))
	})
}

func TestStorage_TTL(t *testing.T) {
	ctx := t.Context()
	s := memory.NewStorage(20 * time.Millisecond)

	require.NoError(t, s.SetItem(ctx, "k", "v"))
	assert.Eventually(t, func() bool {
		_, ok, _ := s.GetItem(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestStorage_SetItemWithTTL(t *testing.T) {
	ctx := t.Context()
	s := memory.NewStorage(0)

	require.NoError(t, s.SetItemWithTTL(ctx, "user:short", "{}", 20*time.Millisecond))
	require.NoError(t, s.SetItem(ctx, "studyguide-auth", "{}"))

	assert.Eventually(t, func() bool {
		_, ok, _ := s.GetItem(ctx, "user:short")
		return !ok
	}, time.Second, 5*time.Millisecond)

	_, ok, err := s.GetItem(ctx, "studyguide-auth")
	require.NoError(t, err)
	assert.True(t, ok, "items without a ttl use the storage default")
}
