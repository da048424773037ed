package config

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyguide/web/internal/serviceerr"
)

func TestBuildValidate(t *testing.T) {
	tests := []struct {
		name    string
		build   Build
		wantErr string
	}{
		{name: "zero value", build: Build{}},
		{name: "standalone", build: Build{Output: OutputStandalone}},
		{name: "other output", build: Build{Output: "export"}, wantErr: "unsupported build output"},
		{name: "optimisation", build: Build{Images: Images{Optimize: true}}, wantErr: "not supported"},
		{
			name:    "pattern without hostname",
			build:   Build{Images: Images{RemotePatterns: []RemotePattern{{Protocol: "https"}}}},
			wantErr: "hostname is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildImageSource_DefaultAllowsAnyHTTPSHost(t *testing.T) {
	b := Build{}

	for _, raw := range []string{
		"https://images.example.com/a.png",
		"https://cdn.test/deep/path/b.webp?w=10",
		"https://localhost:8443/c.jpg",
	} {
		u, err := b.ImageSource(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, raw, u.String())
	}

	for _, raw := range []string{
		"http://images.example.com/a.png",
		"/relative.png",
		"ftp://files.test/a.png",
		"https:///no-host.png",
	} {
		_, err := b.ImageSource(raw)
		assert.ErrorIs(t, err, serviceerr.ErrImageSourceForbidden, raw)
	}
}

func TestRemotePatternMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern RemotePattern
		raw     string
		want    bool
	}{
		{name: "exact host", pattern: RemotePattern{Hostname: "cdn.test"}, raw: "https://cdn.test/x", want: true},
		{name: "host case", pattern: RemotePattern{Hostname: "CDN.test"}, raw: "https://cdn.TEST/x", want: true},
		{name: "other host", pattern: RemotePattern{Hostname: "cdn.test"}, raw: "https://img.test/x", want: false},
		{name: "single label", pattern: RemotePattern{Hostname: "*.cdn.test"}, raw: "https://a.cdn.test/x", want: true},
		{name: "single label too deep", pattern: RemotePattern{Hostname: "*.cdn.test"}, raw: "https://a.b.cdn.test/x", want: false},
		{name: "single label root", pattern: RemotePattern{Hostname: "*.cdn.test"}, raw: "https://cdn.test/x", want: false},
		{name: "many labels", pattern: RemotePattern{Hostname: "**.cdn.test"}, raw: "https://a.b.cdn.test/x", want: true},
		{name: "protocol", pattern: RemotePattern{Protocol: "https", Hostname: "**"}, raw: "http://cdn.test/x", want: false},
		{name: "port", pattern: RemotePattern{Hostname: "**", Port: "8443"}, raw: "https://cdn.test:8443/x", want: true},
		{name: "wrong port", pattern: RemotePattern{Hostname: "**", Port: "8443"}, raw: "https://cdn.test/x", want: false},
		{name: "path prefix", pattern: RemotePattern{Hostname: "**", Pathname: "/avatars/**"}, raw: "https://cdn.test/avatars/1/a.png", want: true},
		{name: "path prefix miss", pattern: RemotePattern{Hostname: "**", Pathname: "/avatars/**"}, raw: "https://cdn.test/avatarsx/a.png", want: false},
		{name: "path glob", pattern: RemotePattern{Hostname: "**", Pathname: "/img/*.png"}, raw: "https://cdn.test/img/a.png", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.pattern.Matches(u))
		})
	}
}
