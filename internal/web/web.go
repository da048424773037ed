// Package web renders the StudyGuide pages. Templates are embedded in the
// binary.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/studyguide/web/internal/config"
)

//go:embed templates/*.html
var templateFiles embed.FS

const (
	TemplatePage     = "page"
	TemplateLogin    = "login"
	TemplateNotFound = "notfound"
	TemplateSidebar  = "sidebar"
)

// SidebarRow is one row of the sidebar: a link or, when Spacer is set, the
// gap that pushes the following rows to the bottom.
type SidebarRow struct {
	Label  string
	Href   string
	Active bool
	Spacer bool
}

// sidebarRows is fixed. Home carries the active marker regardless of the
// current page.
var sidebarRows = []SidebarRow{
	{Label: "Home", Href: "/dashboard", Active: true},
	{Label: "My Outlines", Href: "/outlines"},
	{Label: "Settings", Href: "/settings"},
	{Spacer: true},
	{Label: "Logout", Href: "/logout"},
}

func SidebarRows() []SidebarRow {
	rows := make([]SidebarRow, len(sidebarRows))
	copy(rows, sidebarRows)
	return rows
}

type Page struct {
	Title string
	Email string
}

type Login struct {
	Title     string
	Email     string
	Error     string
	CSRFToken string
}

type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates. With StrictTemplates set, a
// missing key fails the execution instead of rendering "<no value>".
func NewRenderer(build config.Build) (*Renderer, error) {
	t := template.New("studyguide").Funcs(template.FuncMap{
		"sidebarRows": SidebarRows,
	})
	if build.StrictTemplates {
		t = t.Option("missingkey=error")
	}

	t, err := t.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Renderer{templates: t}, nil
}

// Render executes the named template into a buffer first so that a failing
// template never leaves a half written page behind.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("executing template %s: %w", name, err)
	}

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("writing template %s: %w", name, err)
	}

	return nil
}

// NotFound renders the fixed 404 page.
func (r *Renderer) NotFound(w io.Writer) error {
	return r.Render(w, TemplateNotFound, Page{Title: "Not found"})
}
