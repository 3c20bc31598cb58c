// Package app renders the public pages and the pages of the guarded
// regions.
package app

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

const serverErrorHTML = `<!DOCTYPE html><html><body><h1>Something went wrong</h1></body></html>`

// Paths are the routes pages link to.
type Paths struct {
	Home         string
	LoginStart   string
	Logout       string
	AccessDenied string
}

// Link is an entry of the dashboard navigation.
type Link struct {
	Path    string
	Display string
}

type App struct {
	templates *template.Template
	paths     Paths
	links     func() []Link
	logger    *slog.Logger
}

// New parses the embedded templates. links lists the regions shown on the
// dashboard and is called on every render, so it may change over time.
func New(
	paths Paths,
	links func() []Link,
	logger *slog.Logger,
) (
	*App,
	error,
) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("couldn't parse templates: %w", err)
	}
	if links == nil {
		links = func() []Link { return nil }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		templates: templates,
		paths:     paths,
		links:     links,
		logger:    logger,
	}, nil
}

func (a *App) render(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	name string,
	model any,
) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, name, model); err != nil {
		a.logger.ErrorContext(r.Context(), "couldn't render template", "template", name, "error", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(serverErrorHTML))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
