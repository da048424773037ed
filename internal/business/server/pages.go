package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/studyguide/web/internal/config"
	"github.com/studyguide/web/internal/serviceerr"
	"github.com/studyguide/web/internal/web"
	"github.com/studyguide/web/pkg/backend"
	"github.com/studyguide/web/pkg/cookies"
	"github.com/studyguide/web/pkg/csrf"
	"github.com/studyguide/web/pkg/fingerprint"
)

const (
	dashboardPath = "/dashboard"
	loginPath     = "/login"
)

// pages serves the StudyGuide pages. Session changes go through a fresh
// request client and happen before anything is rendered, since cookies can
// no longer be set once the response header is sent.
type pages struct {
	build    config.Build
	renderer *web.Renderer
	sessions SessionFactory
	users    UserVerifier
	forms    *csrf.Protector
}

func newPages(cfg *config.Config, renderer *web.Renderer, sessions SessionFactory, users UserVerifier, forms *csrf.Protector) *pages {
	return &pages{
		build:    cfg.Build,
		renderer: renderer,
		sessions: sessions,
		users:    users,
		forms:    forms,
	}
}

func (p *pages) root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, dashboardPath, http.StatusFound)
}

func (p *pages) page(title string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		client, err := p.sessions.New(ctx)
		if err != nil {
			p.fail(w, r, err)
			return
		}

		data := web.Page{Title: title}

		session, err := client.GetSession(ctx)
		switch {
		case err != nil:
			slogctx.Warn(ctx, "Could not load the session", "error", err)
		case session != nil:
			// The cookie is client controlled; only the backend's answer
			// for its access token names the user.
			user, err := p.users.VerifyUser(ctx, session.AccessToken, session.ExpiresAtTime())
			if err != nil {
				slogctx.Info(ctx, "Session was not accepted by the backend", "error", err)
				break
			}
			data.Email = user.Email
		}

		p.render(w, r, http.StatusOK, web.TemplatePage, data)
	})
}

func (p *pages) loginForm(w http.ResponseWriter, r *http.Request) {
	p.renderLogin(w, r, http.StatusOK, web.Login{})
}

func (p *pages) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		slogctx.Info(ctx, "Could not parse the login form", "error", err)
		p.renderLogin(w, r, serviceerr.ErrInvalidRequest.HTTPStatus(), web.Login{Error: "Invalid form"})
		return
	}

	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	store, err := cookies.FromContext(ctx)
	if err != nil {
		p.fail(w, r, serviceerr.ErrNoCookieStore)
		return
	}

	fp, _ := fingerprint.FromContext(ctx)
	if err := p.forms.Verify(store, fp, r.PostForm.Get(csrf.FormField)); err != nil {
		slogctx.Info(ctx, "Rejected login form", "error", err)
		p.renderLogin(w, r, serviceerr.ErrInvalidFormToken.HTTPStatus(), web.Login{Email: email, Error: "The form has expired, please try again"})
		return
	}

	if email == "" || password == "" {
		p.renderLogin(w, r, http.StatusBadRequest, web.Login{Email: email, Error: "Email and password are required"})
		return
	}

	client, err := p.sessions.New(ctx)
	if err != nil {
		p.fail(w, r, err)
		return
	}

	if _, err := client.SignInWithPassword(ctx, email, password); err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Unauthorized() {
			slogctx.Info(ctx, "Sign in rejected", "status", apiErr.Status)
			p.renderLogin(w, r, serviceerr.ErrUnauthorized.HTTPStatus(), web.Login{Email: email, Error: "Invalid login credentials"})
			return
		}

		p.fail(w, r, err)
		return
	}

	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// renderLogin renders the login form with a fresh form token.
func (p *pages) renderLogin(w http.ResponseWriter, r *http.Request, status int, data web.Login) {
	store, err := cookies.FromContext(r.Context())
	if err != nil {
		p.fail(w, r, serviceerr.ErrNoCookieStore)
		return
	}

	fp, _ := fingerprint.FromContext(r.Context())

	data.Title = "Sign in"
	data.CSRFToken = p.forms.Issue(store, fp)
	p.render(w, r, status, web.TemplateLogin, data)
}

func (p *pages) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	client, err := p.sessions.New(ctx)
	if err != nil {
		p.fail(w, r, err)
		return
	}

	if err := client.SignOut(ctx); err != nil {
		slogctx.Warn(ctx, "Signing out at the backend failed", "error", err)
	}

	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// image serves remote images without optimisation: an allowed source is
// answered with a redirect to the source itself.
func (p *pages) image(w http.ResponseWriter, r *http.Request) {
	u, err := p.build.ImageSource(r.URL.Query().Get("url"))
	if err != nil {
		p.fail(w, r, err)
		return
	}

	http.Redirect(w, r, u.String(), http.StatusFound)
}

func (p *pages) notFound(w http.ResponseWriter, r *http.Request) {
	p.write(w, r, serviceerr.ErrNotFound.HTTPStatus(), p.renderer.NotFound)
}

func (p *pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	p.write(w, r, status, func(buf io.Writer) error {
		return p.renderer.Render(buf, name, data)
	})
}

// write renders the whole page before the header is sent.
func (p *pages) write(w http.ResponseWriter, r *http.Request, status int, renderFn func(io.Writer) error) {
	var buf bytes.Buffer
	if err := renderFn(&buf); err != nil {
		slogctx.Error(r.Context(), "Template execution failed", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slogctx.Warn(r.Context(), "Failed to write the response", "error", err)
	}
}

func (p *pages) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var svcErr *serviceerr.Error
	if errors.As(err, &svcErr) {
		status = svcErr.HTTPStatus()
	}

	if status >= http.StatusInternalServerError {
		slogctx.Error(r.Context(), "Request failed", "error", err)
	} else {
		slogctx.Info(r.Context(), "Request rejected", "error", err)
	}

	http.Error(w, http.StatusText(status), status)
}
