// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP    HTTPServer `yaml:"http"`
	Backend Backend    `yaml:"backend"`
	CSRF    CSRF       `yaml:"csrf"`
	ValKey  ValKey     `yaml:"valkey"`
	Build   Build      `yaml:"build"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

// Backend configures the session clients talking to the external backend.
// The service URL and the public key are never part of the file: they are
// read from the environment variables named in Env.
type Backend struct {
	Env             BackendEnv     `yaml:"env"`
	StorageKey      string         `yaml:"storageKey" default:"studyguide-auth"`
	RefreshTick     time.Duration  `yaml:"refreshTick" default:"30s"`
	RequestTimeout  time.Duration  `yaml:"requestTimeout" default:"10s"`
	UserCacheTTL    time.Duration  `yaml:"userCacheTTL" default:"1m"`
	SessionCookie   CookieTemplate `yaml:"sessionCookie"`
	LoadDotEnvFiles []string       `yaml:"loadDotEnvFiles"`
}

// CSRF configures the form protection. Without a secret a random key is used,
// which invalidates open forms on restart.
type CSRF struct {
	Secret commoncfg.SourceRef `yaml:"secret"`
	Cookie CookieTemplate      `yaml:"cookie"`
}

type ValKey struct {
	Enabled  bool                `yaml:"enabled"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix" default:"studyguide"`

	SecretRef commoncfg.SecretRef `yaml:"secretRef"`
}
