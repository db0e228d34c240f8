// Package metrics expone las métricas Prometheus del servidor: requests HTTP,
// emisión de tokens por grant y estado del pool de Postgres.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authcore"

// Metrics agrupa los collectors. Cada instancia registra en su propio registry,
// así los tests no chocan con el DefaultRegisterer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	tokensIssuedTotal *prometheus.CounterVec
	grantDuration     *prometheus.HistogramVec
}

// New crea y registra las métricas. Si withRuntime es true agrega los collectors
// de proceso y de Go.
func New(withRuntime bool) (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latencia de los requests HTTP",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Requests en vuelo por método y ruta",
		}, []string{"method", "path"}),
		tokensIssuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_requests_total",
			Help:      "Requests al token endpoint por grant_type y resultado (granted o código OAuth)",
		}, []string{"grant_type", "outcome"}),
		grantDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grant_duration_seconds",
			Help:      "Duración de IssueToken por grant_type",
			// el hash de secretos domina: arrancamos en 5ms
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"grant_type"}),
	}

	cs := []prometheus.Collector{
		m.httpRequestsTotal, m.httpRequestDuration, m.httpInflight,
		m.tokensIssuedTotal, m.grantDuration,
	}
	if withRuntime {
		cs = append(cs,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, c := range cs {
		if err := m.register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register agrega un collector externo (p.ej. el del pool de Postgres).
func (m *Metrics) Register(c prometheus.Collector) error { return m.register(c) }

// register ignora duplicados.
func (m *Metrics) register(c prometheus.Collector) error {
	if err := m.registry.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Registry expone el registry para tests y exporters adicionales.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler sirve /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveIssue implementa grant.Observer.
func (m *Metrics) ObserveIssue(grantType, outcome string, d time.Duration) {
	gt := grantLabel(grantType)
	m.tokensIssuedTotal.WithLabelValues(gt, outcome).Inc()
	m.grantDuration.WithLabelValues(gt).Observe(d.Seconds())
}

// grantLabel acota la cardinalidad: grant_type viene del cliente.
func grantLabel(gt string) string {
	switch gt {
	case "password", "authorization_code", "refresh_token", "implicit", "client_credentials":
		return gt
	case "":
		return "none"
	default:
		return "other"
	}
}

// Middleware instrumenta requests HTTP (contadores, latencia, inflight).
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		inflightPath := normalizePath(r.URL.Path)
		m.httpInflight.WithLabelValues(method, inflightPath).Inc()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			m.httpInflight.WithLabelValues(method, inflightPath).Dec()

			// chi completa el patrón recién después del routing
			pathLabel := inflightPath
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					pathLabel = p
				}
			}
			m.httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			m.httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
