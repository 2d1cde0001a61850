// Package webui serves the report over HTTP: a JSON API keyed by session and
// a small HTML dashboard for browsers.
//
// Routes:
//
//	GET    /                          → index page with a "new report" form
//	POST   /sessions                  → new session, redirect to its page
//	GET    /sessions/{id}             → render and show the report
//	GET    /healthz                   → liveness and session count
//	POST   /api/sessions              → new session id
//	GET    /api/sessions/{id}/report  → render, report JSON
//	GET    /api/sessions/{id}/tables/{name} → one table of the last render as CSV
//	DELETE /api/sessions/{id}         → drop the session and its cache
package webui

import (
	"context"
	_ "embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"lodging/internal/config"
	"lodging/internal/report"
)

// Config controls server startup.
type Config struct {
	Addr string
	// SessionTTL expires sessions idle for longer than this; zero keeps them
	// forever.
	SessionTTL time.Duration
	// RenderTimeout bounds one render request; zero means no bound.
	RenderTimeout time.Duration
}

// Server holds the router and the session registry.
type Server struct {
	cfg      Config
	router   chi.Router
	sessions *report.Sessions
	tmpl     *template.Template
}

//go:embed index.tmpl.html
var indexHTML string

// NewServer builds a Server whose sessions render rc.
func NewServer(cfg Config, rc config.Report) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: report.NewSessions(rc),
		tmpl:     template.Must(template.New("index").Funcs(funcs).Parse(indexHTML)),
	}
	s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Sessions exposes the registry.
func (s *Server) Sessions() *report.Sessions { return s.sessions }

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Post("/sessions", s.handleNewSessionPage)
	r.Get("/sessions/{id}", s.handleSessionPage)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Get("/report", s.handleReport)
			r.Get("/tables/{name}", s.handleTable)
		})
	})
	s.router = r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully. It
// also expires idle sessions when SessionTTL is set.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.SessionTTL > 0 {
		go s.expireLoop(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("webui: listening on %s", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) expireLoop(ctx context.Context) {
	tick := time.NewTicker(s.cfg.SessionTTL / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			if gone := s.sessions.Expire(now.Add(-s.cfg.SessionTTL)); len(gone) > 0 {
				log.Printf("webui: expired %d sessions", len(gone))
			}
		}
	}
}

// render runs one pass for sess under the configured timeout.
func (s *Server) render(r *http.Request, sess *report.Session) (*report.Result, error) {
	ctx := r.Context()
	if s.cfg.RenderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RenderTimeout)
		defer cancel()
	}
	return sess.Render(ctx)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*report.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, r, errUnknownSession)
		return nil, false
	}
	return sess, true
}
