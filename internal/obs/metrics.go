package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ChecksTotal     *prometheus.CounterVec
	AllowedTotal    *prometheus.CounterVec
	BlockedTotal    *prometheus.CounterVec
	QuotaExceeded   *prometheus.CounterVec
	ViolationsTotal prometheus.Counter
	PenaltiesTotal  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_requests_total",
				Help: "Total HTTP requests processed",
			},
			[]string{"path", "method", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatekeep_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_checks_total",
				Help: "Total admission checks, per policy",
			},
			[]string{"policy"},
		),
		AllowedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_allowed_total",
				Help: "Total admitted requests, per policy",
			},
			[]string{"policy"},
		),
		BlockedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_blocked_total",
				Help: "Total rejected requests, per policy",
			},
			[]string{"policy"},
		),
		QuotaExceeded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_quota_exceeded_total",
				Help: "Total quota rejections, per quota",
			},
			[]string{"quota"},
		),
		ViolationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatekeep_violations_total",
				Help: "Total recorded abuse violations",
			},
		),
		PenaltiesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatekeep_penalties_total",
				Help: "Total penalty windows opened",
			},
		),
	}

	reg.MustRegister(
		m.RequestsTotal, m.RequestDuration,
		m.ChecksTotal, m.AllowedTotal, m.BlockedTotal,
		m.QuotaExceeded, m.ViolationsTotal, m.PenaltiesTotal,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Middleware records per-request metrics, labeled by the served path.
func (m *Metrics) Middleware(skip map[string]struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			code := rec.status
			if code == 0 {
				code = http.StatusOK
			}

			m.RequestDuration.WithLabelValues(r.URL.Path, r.Method).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(code)).Inc()
		})
	}
}
