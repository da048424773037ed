package cookies

import (
	"net/http"
	"strings"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

// HeaderWriter is implemented by response writers that know whether the
// response header has been sent.
type HeaderWriter interface {
	HeaderWritten() bool
}

// HTTPStore adapts a request/response pair to Store.
//
// Writes only reach the client while the response header is still pending.
// A write after that point is logged and dropped: net/http cannot add a
// Set-Cookie header to a response that is already on the wire.
type HTTPStore struct {
	w http.ResponseWriter
	r *http.Request

	mu      sync.Mutex
	pending map[string]*string
}

var _ Store = (*HTTPStore)(nil)

func NewHTTPStore(w http.ResponseWriter, r *http.Request) *HTTPStore {
	return &HTTPStore{
		w:       w,
		r:       r,
		pending: make(map[string]*string),
	}
}

// Get returns the value written earlier in this request, if any, and the
// request cookie otherwise.
func (s *HTTPStore) Get(name string) (string, bool) {
	s.mu.Lock()
	v, written := s.pending[name]
	s.mu.Unlock()

	if written {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	c, err := s.r.Cookie(name)
	if err != nil {
		return "", false
	}

	return c.Value, true
}

func (s *HTTPStore) Set(name, value string, opts Options) {
	if hw, ok := s.w.(HeaderWriter); ok && hw.HeaderWritten() {
		slogctx.Warn(s.r.Context(), "Dropping cookie write after the response header was sent", "cookie", name)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The last write of a cookie in a request wins.
	dropSetCookie(s.w.Header(), name)
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   opts.MaxAge,
		Expires:  opts.Expires,
		Secure:   opts.Secure,
		HttpOnly: opts.HTTPOnly,
		SameSite: opts.SameSite,
	})

	if opts.MaxAge < 0 {
		s.pending[name] = nil
		return
	}
	s.pending[name] = &value
}

// Delete expires the cookie. net/http has no delete, so this is a single Set
// with an empty value and an immediate expiry; every other option is kept so
// the browser matches the original cookie's path and domain.
func (s *HTTPStore) Delete(name string, opts Options) {
	opts.MaxAge = -1
	opts.Expires = time.Unix(0, 0)
	s.Set(name, "", opts)
}

func dropSetCookie(h http.Header, name string) {
	lines := h.Values("Set-Cookie")
	if len(lines) == 0 {
		return
	}

	kept := lines[:0:0]
	for _, line := range lines {
		if cookieName, _, _ := strings.Cut(line, "="); cookieName != name {
			kept = append(kept, line)
		}
	}

	h.Del("Set-Cookie")
	for _, line := range kept {
		h.Add("Set-Cookie", line)
	}
}
