package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/documents/{name}/metadata", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/documents/doc1/metadata", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/documents/{name}/metadata", "404"))
	if got < 1 {
		t.Errorf("expected http_requests_total >= 1 for route pattern, got %f", got)
	}
}

func TestRegisterEngineMetricsIsIdempotent(t *testing.T) {
	RegisterEngineMetrics()
	RegisterEngineMetrics()

	SearchCacheTotal.WithLabelValues("hit").Inc()
	if got := testutil.ToFloat64(SearchCacheTotal.WithLabelValues("hit")); got < 1 {
		t.Errorf("expected search cache hit counter >= 1, got %f", got)
	}
}
