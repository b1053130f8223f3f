package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "phenohub", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phenohub", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	StoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "phenohub", Name: "store_ops_total", Help: "Storage operations."},
		[]string{"op", "result"}, // result: ok|error
	)
	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phenohub", Name: "store_op_duration_seconds",
			Help:    "Storage operation duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "phenohub", Name: "cache_events_total", Help: "Cache hits, misses, sets, skips and deletes."},
		[]string{"cache", "event"}, // event: hit|miss|set|skip|del|error
	)
	RecalcRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "phenohub", Name: "recalc_runs_total", Help: "Metrics recalculation passes."},
		[]string{"pass", "result"},
	)
	RecalcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phenohub", Name: "recalc_duration_seconds",
			Help:    "Metrics recalculation pass duration seconds.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		},
		[]string{"pass"},
	)
	RecalcEntities = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "phenohub", Name: "recalc_entities_total", Help: "Entities whose metrics were rewritten."},
		[]string{"pass"},
	)
)

// Serve starts a standalone metrics listener on addr. An empty addr disables
// it. Used by binaries without their own HTTP router.
func Serve(addr string) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(InitRegistry()))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, StoreOps, StoreLatency, CacheEvents,
		RecalcRuns, RecalcDuration, RecalcEntities)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveStore(op string, err error, dur time.Duration) {
	StoreOps.WithLabelValues(op, result(err)).Inc()
	StoreLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|skip|del|error
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveRecalc(pass string, entities int, err error, dur time.Duration) {
	RecalcRuns.WithLabelValues(pass, result(err)).Inc()
	RecalcDuration.WithLabelValues(pass).Observe(dur.Seconds())
	if entities > 0 {
		RecalcEntities.WithLabelValues(pass).Add(float64(entities))
	}
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
