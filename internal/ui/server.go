// Package ui provides the web SQL console.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/workbench/internal/console"
	"github.com/leapstack-labs/workbench/internal/ui/router"
)

const (
	defaultReloadDebounce = 100 * time.Millisecond
	shutdownTimeout       = 5 * time.Second
	sessionMaxAge         = 30 * 24 * 60 * 60
)

// Config holds configuration for the UI server.
type Config struct {
	Workbench     *console.Workbench
	Port          int
	SessionSecret string
	Gatherer      prometheus.Gatherer
	Logger        *slog.Logger
	Dev           bool

	// ConfigPath is watched when set; OnConfigChange runs after it changes.
	ConfigPath     string
	OnConfigChange func()
	// ReloadDebounce coalesces bursts of file events. Zero means 100ms.
	ReloadDebounce time.Duration
}

// Server serves the console pages, the per-tab SSE streams and /metrics.
type Server struct {
	cfg          Config
	sessionStore *sessions.CookieStore
	logger       *slog.Logger
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.MaxAge(sessionMaxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ReloadDebounce <= 0 {
		cfg.ReloadDebounce = defaultReloadDebounce
	}
	return &Server{cfg: cfg, sessionStore: store, logger: logger}
}

// Handler builds the server's route table.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		requestLogger(s.logger),
		middleware.Recoverer,
		middleware.Compress(5),
	)

	err := router.SetupRoutes(r, router.Options{
		Workbench:    s.cfg.Workbench,
		SessionStore: s.sessionStore,
		Gatherer:     s.cfg.Gatherer,
		Logger:       s.logger,
		IsDev:        s.cfg.Dev,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Listen binds the configured port. Port 0 picks a free one.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return ln, nil
}

// Serve listens on the configured port and blocks until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done, then shuts down gracefully.
// The config watcher runs alongside when configured.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	handler, err := s.Handler()
	if err != nil {
		_ = ln.Close()
		return err
	}

	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler:           handler,
		BaseContext:       func(net.Listener) context.Context { return egctx },
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("UI server listening", slog.String("addr", ln.Addr().String()))

	if s.cfg.ConfigPath != "" && s.cfg.OnConfigChange != nil {
		eg.Go(func() error { return s.watchConfig(egctx) })
	}
	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		s.logger.Debug("shutting down UI server")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

// watchConfig calls OnConfigChange once a burst of writes to the config
// file settles. The parent directory is watched because editors often
// replace the file instead of writing it in place.
func (s *Server) watchConfig(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(s.cfg.ConfigPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		s.logger.Warn("config watch disabled", slog.String("path", target), slog.String("error", err.Error()))
		<-ctx.Done()
		return nil
	}

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			debounce.Reset(s.cfg.ReloadDebounce)

		case <-debounce.C:
			s.logger.Debug("config changed, reloading", slog.String("file", target))
			s.cfg.OnConfigChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

// requestLogger logs each request at debug level once it completes. SSE
// requests log when the stream closes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					slog.String("id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("elapsed", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
