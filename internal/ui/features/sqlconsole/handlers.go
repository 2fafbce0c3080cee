// Package sqlconsole serves the SQL console: one page per tab, an SSE
// stream of the tab's view and the actions that drive its controller.
package sqlconsole

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/workbench/internal/console"
	"github.com/leapstack-labs/workbench/internal/ui/features/sqlconsole/components"
	"github.com/leapstack-labs/workbench/internal/ui/features/sqlconsole/pages"
)

const (
	sessionName = "workbench"
	sessionTab  = "tab"
	defaultTab  = "tab-1"
)

var tabIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Handlers provides HTTP handlers for the console feature.
type Handlers struct {
	wb           *console.Workbench
	sessionStore sessions.Store
	logger       *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(wb *console.Workbench, sessionStore sessions.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{wb: wb, sessionStore: sessionStore, logger: logger}
}

// Index redirects to the tab remembered in the session.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/tabs/"+h.currentTab(r), http.StatusSeeOther)
}

// NewTab creates the next free tab and redirects to it.
func (h *Handlers) NewTab(w http.ResponseWriter, r *http.Request) {
	existing := make(map[string]bool)
	for _, id := range h.wb.Tabs() {
		existing[id] = true
	}
	n := len(existing) + 1
	for existing["tab-"+strconv.Itoa(n)] {
		n++
	}
	http.Redirect(w, r, "/tabs/tab-"+strconv.Itoa(n), http.StatusSeeOther)
}

// TabPage focuses a tab and renders its page shell.
func (h *Handlers) TabPage(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabParam(w, r)
	if !ok {
		return
	}
	h.rememberTab(w, r, tabID)

	c := h.wb.Focus(r.Context(), tabID)
	page := pages.ConsolePage("Workbench · "+tabID, tabID, h.wb.Tabs(), c.RowBudget(), h.wb.Debug())
	if err := page.Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Stream is the long-lived SSE endpoint of a tab. It sends the current
// view, then a fresh view whenever the tab changes.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabParam(w, r)
	if !ok {
		return
	}
	sse := datastar.NewSSE(w, r)
	ctx := r.Context()
	c := h.wb.Tab(tabID)

	go c.Watch(ctx)
	changes := c.Changes(ctx)

	if err := sse.PatchElementTempl(components.ConsoleView(c.View())); err != nil {
		_ = sse.ConsoleError(err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := sse.PatchElementTempl(components.ConsoleView(c.View())); err != nil {
				h.logger.Debug("stream closed", slog.String("tab", tabID), slog.String("error", err.Error()))
				return
			}
		}
	}
}

// Run submits the editor's SQL.
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabParam(w, r)
	if !ok {
		return
	}
	// Read signals BEFORE creating SSE (SSE consumes the request body)
	var signals RunSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.fail(datastar.NewSSE(w, r), fmt.Errorf("failed to read signals: %w", err))
		return
	}
	sse := datastar.NewSSE(w, r)

	script := strings.TrimSpace(signals.SQL)
	if script == "" {
		h.fail(sse, errors.New("query cannot be empty"))
		return
	}
	if _, err := h.wb.Tab(tabID).Run(r.Context(), script); err != nil {
		h.fail(sse, err)
	}
}

// Rerun resubmits the tab's last script.
func (h *Handlers) Rerun(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabParam(w, r)
	if !ok {
		return
	}
	sse := datastar.NewSSE(w, r)
	if _, err := h.wb.Tab(tabID).Rerun(r.Context()); err != nil {
		h.fail(sse, err)
	}
}

// Cancel stops the tab's running execution.
func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabParam(w, r)
	if !ok {
		return
	}
	h.wb.Tab(tabID).Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// Select shows one result set.
func (h *Handlers) Select(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabParam(w, r)
	if !ok {
		return
	}
	sse := datastar.NewSSE(w, r)
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.fail(sse, fmt.Errorf("invalid result set index %q", chi.URLParam(r, "index")))
		return
	}
	if err := h.wb.Tab(tabID).SelectResultSet(r.Context(), index); err != nil {
		h.fail(sse, err)
	}
}

// Overview shows the multi-statement overview.
func (h *Handlers) Overview(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabParam(w, r)
	if !ok {
		return
	}
	sse := datastar.NewSSE(w, r)
	if err := h.wb.Tab(tabID).SelectOverview(r.Context()); err != nil {
		h.fail(sse, err)
	}
}

// Budget changes the tab's row budget and echoes the clamped value.
func (h *Handlers) Budget(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabParam(w, r)
	if !ok {
		return
	}
	var signals BudgetSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.fail(datastar.NewSSE(w, r), fmt.Errorf("failed to read signals: %w", err))
		return
	}
	sse := datastar.NewSSE(w, r)

	budget := h.wb.Tab(tabID).SetRowBudget(r.Context(), signals.Budget)
	if err := sse.MarshalAndPatchSignals(BudgetPatch{Budget: budget}); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// Debug toggles the debug bundle for every tab.
func (h *Handlers) Debug(w http.ResponseWriter, r *http.Request) {
	var signals DebugSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.fail(datastar.NewSSE(w, r), fmt.Errorf("failed to read signals: %w", err))
		return
	}
	h.wb.SetDebug(signals.Debug)
	if tab := h.wb.Focused(); tab != "" {
		h.wb.Tab(tab).Refresh(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) fail(sse *datastar.ServerSentEventGenerator, err error) {
	h.logger.Debug("console action failed", slog.String("error", err.Error()))
	if perr := sse.PatchElementTempl(components.ErrorBanner(err.Error())); perr != nil {
		_ = sse.ConsoleError(err)
	}
}

func (h *Handlers) tabParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	tabID := chi.URLParam(r, "tab")
	if !tabIDPattern.MatchString(tabID) {
		http.Error(w, "invalid tab id", http.StatusBadRequest)
		return "", false
	}
	return tabID, true
}

func (h *Handlers) currentTab(r *http.Request) string {
	if h.sessionStore == nil {
		return defaultTab
	}
	sess, err := h.sessionStore.Get(r, sessionName)
	if err != nil {
		return defaultTab
	}
	if tab, ok := sess.Values[sessionTab].(string); ok && tabIDPattern.MatchString(tab) {
		return tab
	}
	return defaultTab
}

func (h *Handlers) rememberTab(w http.ResponseWriter, r *http.Request, tabID string) {
	if h.sessionStore == nil {
		return
	}
	sess, err := h.sessionStore.Get(r, sessionName)
	if err != nil {
		// A stale or foreign cookie; start a fresh session.
		sess, _ = h.sessionStore.New(r, sessionName)
	}
	if sess == nil {
		return
	}
	sess.Values[sessionTab] = tabID
	if err := sess.Save(r, w); err != nil {
		h.logger.Warn("failed to save session", slog.String("error", err.Error()))
	}
}
