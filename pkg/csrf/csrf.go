// Package csrf protects HTML forms with double submit tokens. A nonce lives in
// a cookie; the form carries an HMAC over that nonce and the browser
// fingerprint, so a token only validates together with its own cookie.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/studyguide/web/pkg/cookies"
)

const (
	// MinKeyLength is the minimum length of the signing key in bytes.
	MinKeyLength = 32

	// FormField is the name of the hidden form field carrying the token.
	FormField = "csrf_token"

	DefaultCookieName = "studyguide-csrf"

	randLength = 32
)

var (
	ErrShortKey     = fmt.Errorf("csrf key must be at least %d bytes", MinKeyLength)
	ErrMissingNonce = errors.New("csrf nonce cookie is missing")
	ErrInvalidToken = errors.New("csrf token is invalid")
)

type Protector struct {
	key        []byte
	cookieName string
	cookieOpts cookies.Options
}

func New(key []byte, cookieName string, opts cookies.Options) (*Protector, error) {
	if len(key) < MinKeyLength {
		return nil, ErrShortKey
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	return &Protector{key: key, cookieName: cookieName, cookieOpts: opts}, nil
}

// NewKey returns a random signing key. Tokens signed with it do not survive a
// restart.
func NewKey() []byte {
	key := make([]byte, MinKeyLength)
	_, _ = rand.Read(key)
	return key
}

// Issue returns a token for a form rendered in this request. The nonce cookie
// is created when the browser does not have one yet, so Issue must run before
// the response header is written.
func (p *Protector) Issue(store cookies.Store, fingerprint string) string {
	nonce, ok := store.Get(p.cookieName)
	if !ok || nonce == "" {
		nonce = uuid.NewString()
		store.Set(p.cookieName, nonce, p.cookieOpts)
	}

	return newToken(nonce, fingerprint, p.key)
}

// Verify checks a submitted token against the nonce cookie of the request.
func (p *Protector) Verify(store cookies.Store, fingerprint, token string) error {
	nonce, ok := store.Get(p.cookieName)
	if !ok || nonce == "" {
		return ErrMissingNonce
	}

	if !validate(token, nonce, fingerprint, p.key) {
		return ErrInvalidToken
	}

	return nil
}

func formMessage(nonce, fingerprint, randValue string) []byte {
	return fmt.Appendf(nil, "%d!%s!%d!%s!%d!%s", len(nonce), nonce, len(fingerprint), fingerprint, len(randValue), randValue)
}

func sign(nonce, fingerprint, randValue string, key []byte) []byte {
	hash := hmac.New(sha256.New, key)
	hash.Write(formMessage(nonce, fingerprint, randValue))
	return hash.Sum(nil)
}

func newToken(nonce, fingerprint string, key []byte) string {
	buf := make([]byte, randLength)
	_, _ = rand.Read(buf)
	randValue := hex.EncodeToString(buf)

	return hex.EncodeToString(sign(nonce, fingerprint, randValue, key)) + "." + randValue
}

func validate(token, nonce, fingerprint string, key []byte) bool {
	mac, randValue, ok := strings.Cut(token, ".")
	if !ok || randValue == "" {
		return false
	}

	receivedMAC, err := hex.DecodeString(mac)
	if err != nil {
		return false
	}

	return hmac.Equal(receivedMAC, sign(nonce, fingerprint, randValue, key))
}
