// Package handlers contains the full set of handler functions and routes
// supported by the web api.
package handlers

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"

	"github.com/ardanlabs/blockvault/business/web/v1/mid"
	"github.com/ardanlabs/blockvault/foundation/web"
	"go.uber.org/zap"
)

//go:embed assets/index.html
var assets embed.FS

// UIMux constructs an http.Handler with all application routes defined.
func UIMux(build string, shutdown chan os.Signal, log *zap.SugaredLogger, eventsURL string) (*web.App, error) {
	app := web.NewApp(
		shutdown,
		mid.Logger(log),
		mid.Errors(log),
		mid.Panics(nil),
		mid.Cors("*"),
	)

	// Register the index page for the website.
	ig, err := newIndex(build, eventsURL)
	if err != nil {
		return nil, fmt.Errorf("loading index template: %w", err)
	}
	app.Handle(http.MethodGet, "", "/", ig.handler)

	return app, nil
}

// =============================================================================

type index struct {
	tmpl *template.Template
	data any
}

func newIndex(build string, eventsURL string) (index, error) {
	tmpl, err := template.ParseFS(assets, "assets/index.html")
	if err != nil {
		return index{}, err
	}

	ig := index{
		tmpl: tmpl,
		data: struct {
			Build     string
			EventsURL string
		}{
			Build:     build,
			EventsURL: eventsURL,
		},
	}

	return ig, nil
}

func (ig index) handler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := web.SetStatusCode(ctx, http.StatusOK); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ig.tmpl.Execute(w, ig.data); err != nil {
		return fmt.Errorf("render index page: %w", err)
	}

	return nil
}
