package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/internal/ui/features"
)

func TestSetupRoutes(t *testing.T) {
	fixture := features.SetupTestFixture(t)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_total", Help: "probe"}))

	r := chi.NewMux()
	require.NoError(t, SetupRoutes(r, Options{
		Workbench:    fixture.Workbench,
		SessionStore: fixture.SessionStore,
		Gatherer:     reg,
	}))

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"index redirects", http.MethodGet, "/", http.StatusSeeOther, ""},
		{"tab page", http.MethodGet, "/tabs/tab-1", http.StatusOK, "console-view"},
		{"static css", http.MethodGet, "/static/console.css", http.StatusOK, ".console"},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "probe_total"},
		{"cancel", http.MethodPost, "/api/tabs/tab-1/cancel", http.StatusNoContent, ""},
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound, ""},
		{"reload disabled", http.MethodGet, "/hotreload", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}
