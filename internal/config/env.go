package config

import (
	"fmt"
	"strings"

	"github.com/studyguide/web/internal/serviceerr"
)

const (
	DefaultBackendURLEnv       = "STUDYGUIDE_BACKEND_URL"
	DefaultBackendPublicKeyEnv = "STUDYGUIDE_BACKEND_ANON_KEY"
)

// BackendEnv names the environment variables holding the backend credentials.
type BackendEnv struct {
	URL       string `yaml:"url" default:"STUDYGUIDE_BACKEND_URL"`
	PublicKey string `yaml:"publicKey" default:"STUDYGUIDE_BACKEND_ANON_KEY"`
}

// BackendCredentials are the two values every session client needs.
type BackendCredentials struct {
	URL       string
	PublicKey string
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadBackendCredentials reads the backend URL and public key through lookup.
// An unset or empty variable is a configuration error naming every missing
// variable; there is no fallback value.
func LoadBackendCredentials(lookup LookupFunc, env BackendEnv) (BackendCredentials, error) {
	urlEnv := env.URL
	if urlEnv == "" {
		urlEnv = DefaultBackendURLEnv
	}
	keyEnv := env.PublicKey
	if keyEnv == "" {
		keyEnv = DefaultBackendPublicKeyEnv
	}

	var missing []string
	url, ok := lookup(urlEnv)
	if !ok || strings.TrimSpace(url) == "" {
		missing = append(missing, urlEnv)
	}
	key, ok := lookup(keyEnv)
	if !ok || strings.TrimSpace(key) == "" {
		missing = append(missing, keyEnv)
	}

	if len(missing) > 0 {
		return BackendCredentials{}, fmt.Errorf("%w: %s", serviceerr.ErrMissingConfiguration, strings.Join(missing, ", "))
	}

	return BackendCredentials{URL: url, PublicKey: key}, nil
}
