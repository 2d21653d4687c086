package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"photoreviver/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func TestAPIKey(t *testing.T) {
	t.Parallel()
	h := APIKey("secret")(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		method string
		target string
		header string
		want   int
	}{
		{"public root", http.MethodGet, "/", "", http.StatusOK},
		{"public health", http.MethodGet, "/api/health", "", http.StatusOK},
		{"public metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"missing key", http.MethodPost, "/api/restore", "", http.StatusUnauthorized},
		{"wrong key", http.MethodPost, "/api/restore", "nope", http.StatusUnauthorized},
		{"header key", http.MethodPost, "/api/restore", "secret", http.StatusOK},
		{"query key", http.MethodGet, "/api/progress?api_key=secret", "", http.StatusOK},
		{"preflight", http.MethodOptions, "/api/restore", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"detail":"Invalid or missing API key"}`, rec.Body.String())
			}
		})
	}
}

func TestAPIKeyDisabled(t *testing.T) {
	t.Parallel()
	h := APIKey("")(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/restore", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPrometheusMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/api/restorations/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/restorations/{id}", "404")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/restorations/42", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := RequestLogger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/restore", nil))

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"status":400`)
	assert.Contains(t, out, `"path":"/api/restore"`)
}
