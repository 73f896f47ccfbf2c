// Package server exposes the HTTP surface: feed retrieval, download
// redirects and a small usage page.
package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/podgate/podgate/pkg/backend"
	"github.com/podgate/podgate/pkg/model"
)

// Backends is the registry surface the server dispatches on.
type Backends interface {
	Get(backendID string) (backend.Backend, error)
}

// FeedBuilder renders a canonical channel into a feed document.
type FeedBuilder interface {
	Build(backendID string, ch *model.Channel) ([]byte, error)
}

// Server serves feeds and download redirects over HTTP.
type Server struct {
	backends  Backends
	feeds     FeedBuilder
	publicURL string
	version   string
	addr      string

	httpServer *http.Server
	router     *routegroup.Bundle
}

// Opts configures a server.
type Opts struct {
	Backends  Backends
	Feeds     FeedBuilder
	PublicURL string
	Version   string
	Addr      string
}

// New creates a server and sets up its routes.
func New(opts Opts) *Server {
	s := &Server{
		backends:  opts.Backends,
		feeds:     opts.Feeds,
		publicURL: opts.PublicURL,
		version:   opts.Version,
		addr:      opts.Addr,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.router.Use(rest.AppInfo("podgate", "podgate", s.version))
	s.router.Use(rest.Ping)
	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(64 * 1024))
	s.router.Use(rest.Trace)

	s.router.HandleFunc("GET /feed/{backend}/{channel}", s.feedHandler)
	s.router.HandleFunc("GET /download/{backend}/{file...}", s.downloadHandler)
	s.router.HandleFunc("GET /{$}", s.indexHandler)

	return s
}

// Run starts the server and blocks until ctx is canceled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.router,
		// Feed fetches paginate upstream APIs; allow them time.
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("server shutdown failed")
		}
	}()

	log.Infof("listening on %s", s.addr)

	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server failed")
	}

	return nil
}

// feedHandler handles GET /feed/{backend}/{channel}?limit=n.
func (s *Server) feedHandler(w http.ResponseWriter, r *http.Request) {
	var (
		backendID = r.PathValue("backend")
		channelID = r.PathValue("channel")
	)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	b, err := s.backends.Get(backendID)
	if err != nil {
		s.renderError(w, backendID, channelID, err)
		return
	}

	channel, err := b.Channel(r.Context(), channelID, limit)
	if err != nil {
		s.renderError(w, backendID, channelID, err)
		return
	}

	body, err := s.feeds.Build(backendID, channel)
	if err != nil {
		s.renderError(w, backendID, channelID, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	if _, err := w.Write(body); err != nil {
		log.WithError(err).Error("failed to write feed response")
	}
}

// downloadHandler handles GET /download/{backend}/{file...} by
// redirecting to the resolved direct media URL.
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	var (
		backendID = r.PathValue("backend")
		file      = r.PathValue("file")
	)

	b, err := s.backends.Get(backendID)
	if err != nil {
		s.renderError(w, backendID, file, err)
		return
	}

	redirectURL, err := b.RedirectURL(r.Context(), file)
	if err != nil {
		s.renderError(w, backendID, file, err)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (s *Server) renderError(w http.ResponseWriter, backendID, id string, err error) {
	log.WithError(err).WithFields(log.Fields{
		"backend": backendID,
		"id":      id,
	}).Error("request failed")

	if errors.Is(err, model.ErrNoRedirectFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	http.Error(w, "internal server error", http.StatusInternalServerError)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>podgate</title></head>
<body>
<h1>podgate</h1>
<p>Podcast feeds for Mixcloud and YouTube channels.</p>
<ul>
<li><code>{{.URL}}/feed/mixcloud/{username}?limit=n</code></li>
<li><code>{{.URL}}/feed/youtube/{channel or playlist ID}?limit=n</code></li>
</ul>
</body>
</html>
`))

func (s *Server) indexHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, struct{ URL string }{URL: s.publicURL}); err != nil {
		log.WithError(err).Error("failed to render index page")
	}
}

// Addr builds the listen address from the configured bind address and
// port, mapping "*" to all interfaces.
func Addr(bindAddress string, port int) string {
	if bindAddress == "*" {
		bindAddress = ""
	}

	return fmt.Sprintf("%s:%d", bindAddress, port)
}
