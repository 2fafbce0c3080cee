package sqlconsole

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/workbench/internal/console"
)

// SetupRoutes registers the console feature routes.
func SetupRoutes(router chi.Router, wb *console.Workbench, sessionStore sessions.Store, logger *slog.Logger) error {
	handlers := NewHandlers(wb, sessionStore, logger)

	// Page routes
	router.Get("/", handlers.Index)
	router.Get("/tabs/new", handlers.NewTab)
	router.Get("/tabs/{tab}", handlers.TabPage)

	// API routes
	router.Post("/api/debug", handlers.Debug)
	router.Route("/api/tabs/{tab}", func(r chi.Router) {
		r.Get("/stream", handlers.Stream)
		r.Post("/run", handlers.Run)
		r.Post("/rerun", handlers.Rerun)
		r.Post("/cancel", handlers.Cancel)
		r.Post("/overview", handlers.Overview)
		r.Post("/select/{index}", handlers.Select)
		r.Post("/budget", handlers.Budget)
	})

	return nil
}
