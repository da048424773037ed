package requestclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyguide/web/pkg/cookies"
)

type cookieCall struct {
	Op    string
	Name  string
	Value string
	Opts  cookies.Options
}

// recordingStore is a cookies.Store that records every call. Delete is
// translated the same way the HTTP edge adapter does it.
type recordingStore struct {
	values map[string]string
	calls  []cookieCall
}

func newRecordingStore(values map[string]string) *recordingStore {
	if values == nil {
		values = map[string]string{}
	}
	return &recordingStore{values: values}
}

func (s *recordingStore) Get(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

func (s *recordingStore) Set(name, value string, opts cookies.Options) {
	s.calls = append(s.calls, cookieCall{Op: "set", Name: name, Value: value, Opts: opts})
	if opts.MaxAge < 0 {
		delete(s.values, name)
		return
	}
	s.values[name] = value
}

func (s *recordingStore) Delete(name string, opts cookies.Options) {
	opts.MaxAge = -1
	opts.Expires = time.Unix(0, 0)
	s.Set(name, "", opts)
}

var sessionCookieOpts = cookies.Options{
	Path:     "/",
	Domain:   "studyguide.test",
	MaxAge:   400 * 24 * 60 * 60,
	Secure:   true,
	HTTPOnly: true,
	SameSite: http.SameSiteLaxMode,
}

func TestCookieMethods_Get(t *testing.T) {
	store := newRecordingStore(map[string]string{"studyguide-auth": "base64-eyJhIjoxfQ"})
	m := NewCookieMethods(store, sessionCookieOpts)

	t.Run("present value is returned unchanged", func(t *testing.T) {
		v, ok := m.Get("studyguide-auth")
		assert.True(t, ok)
		assert.Equal(t, "base64-eyJhIjoxfQ", v)
	})

	t.Run("missing cookie is absent", func(t *testing.T) {
		v, ok := m.Get("missing")
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	assert.Empty(t, store.calls)
}

func TestCookieMethods_Remove(t *testing.T) {
	for _, name := range []string{"studyguide-auth", "sb-project-auth-token", "x"} {
		t.Run(name, func(t *testing.T) {
			store := newRecordingStore(map[string]string{name: "value"})
			m := NewCookieMethods(store, sessionCookieOpts)

			m.Remove(name)

			want := sessionCookieOpts
			want.MaxAge = -1
			want.Expires = time.Unix(0, 0)

			require.Len(t, store.calls, 1)
			if diff := cmp.Diff(cookieCall{Op: "set", Name: name, Value: "", Opts: want}, store.calls[0]); diff != "" {
				t.Errorf("unexpected cookie write (-want +got):\n%s", diff)
			}
			_, ok := m.Get(name)
			assert.False(t, ok)
		})
	}
}

func TestCookieStorage(t *testing.T) {
	ctx := t.Context()
	store := newRecordingStore(nil)
	s := NewCookieStorage(store, sessionCookieOpts)

	_, ok, err := s.GetItem(ctx, "studyguide-auth")
	require.NoError(t, err)
	assert.False(t, ok)

	session := `{"access_token":"a;b","user":{"email":"ada@studyguide.test"}}`
	require.NoError(t, s.SetItem(ctx, "studyguide-auth", session))

	require.Len(t, store.calls, 1)
	assert.Equal(t, sessionCookieOpts, store.calls[0].Opts)
	assert.Equal(t, "base64-eyJhY2Nlc3NfdG9rZW4iOiJhO2IiLCJ1c2VyIjp7ImVtYWlsIjoiYWRhQHN0dWR5Z3VpZGUudGVzdCJ9fQ", store.calls[0].Value)

	got, ok, err := s.GetItem(ctx, "studyguide-auth")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, session, got)

	require.NoError(t, s.RemoveItem(ctx, "studyguide-auth"))
	_, ok, err = s.GetItem(ctx, "studyguide-auth")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCookieStorage_GetItem(t *testing.T) {
	ctx := t.Context()

	t.Run("unencoded value is passed through", func(t *testing.T) {
		s := NewCookieStorage(newRecordingStore(map[string]string{"k": `{"access_token":"a"}`}), sessionCookieOpts)
		v, ok, err := s.GetItem(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `{"access_token":"a"}`, v)
	})

	t.Run("padded value is accepted", func(t *testing.T) {
		s := NewCookieStorage(newRecordingStore(map[string]string{"k": "base64-YQ=="}), sessionCookieOpts)
		v, ok, err := s.GetItem(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "a", v)
	})

	t.Run("broken value is an error", func(t *testing.T) {
		s := NewCookieStorage(newRecordingStore(map[string]string{"k": "base64-!!"}), sessionCookieOpts)
		_, _, err := s.GetItem(ctx, "k")
		require.Error(t, err)
	})
}
