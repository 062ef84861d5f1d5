package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/data/ingest/{domain}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "domain") == "unknown" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Route("/data/checkpoints", func(r chi.Router) {
		r.Get("/{domain}", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("[]"))
		})
	})
	return r
}

func serve(r http.Handler, method, path string) int {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, http.NoBody))
	return rr.Code
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := newRouter()
	tests := []struct {
		name   string
		method string
		paths  []string
		labels [3]string
	}{
		{
			name:   "path parameter collapsed",
			method: http.MethodPost,
			paths:  []string{"/data/ingest/recruit", "/data/ingest/candidate", "/data/ingest/skill_dic"},
			labels: [3]string{"POST", "/data/ingest/{domain}", "200"},
		},
		{
			name:   "handler status kept",
			method: http.MethodPost,
			paths:  []string{"/data/ingest/unknown"},
			labels: [3]string{"POST", "/data/ingest/{domain}", "404"},
		},
		{
			name:   "nested router",
			method: http.MethodGet,
			paths:  []string{"/data/checkpoints/recruit", "/data/checkpoints/candidate"},
			labels: [3]string{"GET", "/data/checkpoints/{domain}", "200"},
		},
		{
			name:   "static route",
			method: http.MethodGet,
			paths:  []string{"/healthz"},
			labels: [3]string{"GET", "/healthz", "503"},
		},
		{
			name:   "unknown paths share one series",
			method: http.MethodGet,
			paths:  []string{"/wp-admin", "/data/ingest/recruit/extra", "/a/b/c/d"},
			labels: [3]string{"GET", unmatchedRoute, "404"},
		},
		{
			name:   "non-standard method",
			method: "PURGE",
			paths:  []string{"/healthz"},
			labels: [3]string{"OTHER", unmatchedRoute, "405"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := HTTPRequestsTotal.WithLabelValues(tt.labels[:]...)
			before := testutil.ToFloat64(counter)
			for _, p := range tt.paths {
				serve(r, tt.method, p)
			}
			if got := testutil.ToFloat64(counter) - before; got != float64(len(tt.paths)) {
				t.Errorf("expected %d requests under %v, got %v", len(tt.paths), tt.labels, got)
			}
		})
	}
}

func TestMiddleware_UnknownPathsDoNotGrowSeries(t *testing.T) {
	r := newRouter()
	serve(r, http.MethodGet, "/first-unknown")
	base := testutil.CollectAndCount(HTTPRequestsTotal)
	for _, p := range []string{"/x1", "/x2", "/x3/y", "/data", "/data/ingest"} {
		serve(r, http.MethodGet, p)
	}
	if got := testutil.CollectAndCount(HTTPRequestsTotal); got != base {
		t.Errorf("expected %d series, got %d", base, got)
	}
	if testutil.CollectAndCount(HTTPRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestMiddleware_InFlightReturnsToZero(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	var during float64
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(HTTPRequestsInFlight)
	})
	before := testutil.ToFloat64(HTTPRequestsInFlight)
	serve(r, http.MethodGet, "/slow")
	if during != before+1 {
		t.Errorf("expected %v in flight while serving, got %v", before+1, during)
	}
	if got := testutil.ToFloat64(HTTPRequestsInFlight); got != before {
		t.Errorf("expected %v in flight after, got %v", before, got)
	}
}

func TestRouteLabel(t *testing.T) {
	ctx := func(patterns ...string) *chi.Context {
		rctx := chi.NewRouteContext()
		rctx.RoutePatterns = patterns
		return rctx
	}
	tests := []struct {
		name string
		rctx *chi.Context
		want string
	}{
		{"no router", nil, unmatchedRoute},
		{"no match", ctx(), unmatchedRoute},
		{"catch-all", ctx("/*"), unmatchedRoute},
		{"root", ctx("/"), "/"},
		{"static", ctx("/healthz"), "/healthz"},
		{"mounted", ctx("/data/*", "/ingest/{domain}"), "/data/ingest/{domain}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := routeLabel(tt.rctx); got != tt.want {
				t.Errorf("routeLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMethodLabel(t *testing.T) {
	for in, want := range map[string]string{
		"GET": "GET", "POST": "POST", "DELETE": "DELETE", "PURGE": "OTHER", "get": "OTHER",
	} {
		if got := methodLabel(in); got != want {
			t.Errorf("methodLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegisterMetrics_Idempotent(t *testing.T) {
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()
	RegisterIngestMetrics()
	RegisterIngestMetrics()

	before := testutil.ToFloat64(IngestRunsTotal.WithLabelValues("recruit", "completed"))
	IngestRunsTotal.WithLabelValues("recruit", "completed").Inc()
	if got := testutil.ToFloat64(IngestRunsTotal.WithLabelValues("recruit", "completed")); got != before+1 {
		t.Errorf("expected %f, got %f", before+1, got)
	}
}
