package config

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/studyguide/web/internal/serviceerr"
)

const OutputStandalone = "standalone"

// Build holds the packaging and rendering switches of the web process.
type Build struct {
	// StrictTemplates makes template execution fail on missing keys.
	StrictTemplates bool   `yaml:"strictTemplates"`
	Output          string `yaml:"output" default:"standalone"`
	Images          Images `yaml:"images"`
}

type Images struct {
	Optimize       bool            `yaml:"optimize"`
	RemotePatterns []RemotePattern `yaml:"remotePatterns"`
}

// RemotePattern selects remote image sources. In Hostname "*" matches a single
// label and "**" any number of labels; in Pathname a trailing "/**" matches
// every path below the prefix. Empty fields match anything.
type RemotePattern struct {
	Protocol string `yaml:"protocol"`
	Hostname string `yaml:"hostname"`
	Port     string `yaml:"port"`
	Pathname string `yaml:"pathname"`
}

// AnyHTTPSHost is applied when no remote pattern is configured.
var AnyHTTPSHost = RemotePattern{Protocol: "https", Hostname: "**"}

func (b *Build) Validate() error {
	if b.Output != "" && b.Output != OutputStandalone {
		return fmt.Errorf("unsupported build output %q", b.Output)
	}
	if b.Images.Optimize {
		return errors.New("image optimisation is not supported")
	}

	for i, p := range b.Images.RemotePatterns {
		if p.Hostname == "" {
			return fmt.Errorf("remote pattern %d: hostname is required", i)
		}
	}

	return nil
}

// ImagePatterns returns the effective allow list of remote image sources.
func (b *Build) ImagePatterns() []RemotePattern {
	if len(b.Images.RemotePatterns) == 0 {
		return []RemotePattern{AnyHTTPSHost}
	}

	return b.Images.RemotePatterns
}

// ImageSource parses raw and checks it against the allow list.
func (b *Build) ImageSource(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute url", serviceerr.ErrImageSourceForbidden, raw)
	}

	for _, p := range b.ImagePatterns() {
		if p.Matches(u) {
			return u, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", serviceerr.ErrImageSourceForbidden, u.Redacted())
}

func (p RemotePattern) Matches(u *url.URL) bool {
	if p.Protocol != "" && !strings.EqualFold(strings.TrimSuffix(p.Protocol, ":"), u.Scheme) {
		return false
	}
	if p.Port != "" && p.Port != u.Port() {
		return false
	}
	if !matchHostname(p.Hostname, u.Hostname()) {
		return false
	}

	return matchPathname(p.Pathname, u.EscapedPath())
}

func matchHostname(pattern, host string) bool {
	if host == "" {
		return false
	}
	if pattern == "" || pattern == "**" {
		return true
	}

	return matchLabels(strings.Split(strings.ToLower(pattern), "."), strings.Split(strings.ToLower(host), "."))
}

func matchLabels(pattern, labels []string) bool {
	if len(pattern) == 0 {
		return len(labels) == 0
	}

	switch pattern[0] {
	case "**":
		for i := 1; i <= len(labels); i++ {
			if matchLabels(pattern[1:], labels[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(labels) > 0 && matchLabels(pattern[1:], labels[1:])
	default:
		return len(labels) > 0 && pattern[0] == labels[0] && matchLabels(pattern[1:], labels[1:])
	}
}

func matchPathname(pattern, p string) bool {
	if pattern == "" || pattern == "/**" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}

	ok, err := path.Match(pattern, p)
	return err == nil && ok
}
