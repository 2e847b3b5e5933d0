package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"monthgrid/internal/auth"
	"monthgrid/internal/controller"
	"monthgrid/internal/events"
	appLog "monthgrid/internal/log"
	"monthgrid/internal/loop"
	"monthgrid/internal/style"
)

// Options wires a Server to the running grid.
type Options struct {
	Listen     string
	Controller *controller.Controller
	// Loop owns Controller; every handler goes through it.
	Loop    *loop.Loop
	Source  events.Source
	Palette style.Palette
	Auth    auth.Credentials
	// PreviewPath is the PNG served at /preview.png.
	PreviewPath string
}

// Server exposes the grid over HTTP: a JSON API for tapping and paging and
// an HTML rendering of one month used by the snapshot capture.
type Server struct {
	opts Options
	mux  *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	s := &Server{
		opts: opts,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	h = logRequests(h)
	if s.opts.Auth.Enabled() {
		appLog.Info("HTTP basic auth enabled", "user", s.opts.Auth.Username)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	creds := s.opts.Auth
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !creds.Check(u, p) {
			w.Header().Set("WWW-Authenticate", `Basic realm="monthgrid", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.opts.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/grid", s.handleGrid)
	s.mux.HandleFunc("GET /api/sections", s.handleSections)
	s.mux.HandleFunc("GET /api/selection", s.handleSelection)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/tap", s.handleTap)
	s.mux.HandleFunc("POST /api/navigate", s.handleNavigate)
	s.mux.HandleFunc("POST /api/settle", s.handleSettle)
	s.mux.HandleFunc("POST /api/reload-events", s.handleReloadEvents)
	s.mux.HandleFunc("GET /grid", s.handleGridPage)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// do runs fn on the grid's loop, answering 503 when the loop is gone.
func (s *Server) do(w http.ResponseWriter, r *http.Request, fn func(c *controller.Controller)) bool {
	err := s.opts.Loop.Do(r.Context(), func() { fn(s.opts.Controller) })
	if err != nil {
		appLog.Error("grid loop unavailable", err, "path", r.URL.Path)
		writeError(w, http.StatusServiceUnavailable, "grid unavailable")
		return false
	}
	return true
}

// handlePreview serves the last captured PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.opts.PreviewPath == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.opts.PreviewPath)
}

func (s *Server) handleReloadEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Source == nil {
		writeError(w, http.StatusNotImplemented, "no event source configured")
		return
	}
	ok := s.do(w, r, func(c *controller.Controller) {
		// The fetch outlives the request.
		c.LoadEvents(context.Background(), s.opts.Source, s.opts.Loop.PostFunc)
	})
	if ok {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "reloading"})
	}
}

func queryInt(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func queryFloat(r *http.Request, key string) (float64, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
