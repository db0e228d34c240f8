package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveIssue(t *testing.T) {
	m, err := New(false)
	require.NoError(t, err)

	m.ObserveIssue("password", "granted", 10*time.Millisecond)
	m.ObserveIssue("password", "invalid_grant", time.Millisecond)
	m.ObserveIssue("urn:custom", "unsupported_grant_type", time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.tokensIssuedTotal.WithLabelValues("password", "granted")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.tokensIssuedTotal.WithLabelValues("other", "unsupported_grant_type")))
	require.Equal(t, 2, testutil.CollectAndCount(m.grantDuration))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m, err := New(false)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/clients/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients/web-app", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/clients/{id}", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "authcore_http_requests_total"))
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                                        "/",
		"/":                                       "/",
		"/oauth/token?x=1":                        "/oauth/token",
		"/users/42":                               "/users/:param",
		"/x/3fa85f64-5717-4562-b3fc-2c963f66afa6": "/x/:param",
		"/t/abcdefABCDEF0123456789_-xyz":          "/t/:param",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizePath(in), in)
	}
}

func TestPoolCollector_NilPool(t *testing.T) {
	c := NewPoolCollector(nil)
	require.Equal(t, 0, testutil.CollectAndCount(c))
}
