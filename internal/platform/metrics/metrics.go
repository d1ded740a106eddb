package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orgauthz/internal/engine/errs"
	"orgauthz/internal/engine/events"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgauthz_events_total",
			Help: "Domain events emitted by the authorization engine.",
		},
		[]string{"type"},
	)

	engineErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgauthz_engine_errors_total",
			Help: "Errors returned by the authorization engine, by kind.",
		},
		[]string{"kind"},
	)

	invitationsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orgauthz_invitations_expired_total",
		Help: "Pending invitations marked expired by the sweeper.",
	})

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	registerOnce sync.Once
)

// Init registers the collectors in the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(eventsTotal, engineErrorsTotal, invitationsExpiredTotal, httpInFlight, httpRequestDuration)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Handle counts evts by type.
func Handle(evts []events.Event) {
	for _, e := range evts {
		eventsTotal.WithLabelValues(string(e.Type)).Inc()
	}
}

func ObserveError(err error) {
	if err == nil {
		return
	}
	engineErrorsTotal.WithLabelValues(string(errs.KindOf(err))).Inc()
}

func ObserveExpired(n int64) {
	if n > 0 {
		invitationsExpiredTotal.Add(float64(n))
	}
}

// Instrument measures latency per route pattern rather than raw path, so ids
// do not blow up label cardinality.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		httpRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
