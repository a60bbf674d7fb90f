// Package metrics holds the client's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pedex"

var (
	// Registry holds the client's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	liveState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "state",
			Help:      "Live channel state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=failed).",
		},
	)

	liveDials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "dials_total",
			Help:      "Live channel dial attempts by result.",
		},
		[]string{"result"},
	)

	liveReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts after a drop or failed dial.",
		},
	)

	liveEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "events_total",
			Help:      "Inbound live envelopes by type.",
		},
		[]string{"type"},
	)

	sessionRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Token refresh outcomes.",
		},
		[]string{"result"},
	)

	sessionLogouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Sessions ended, by reason.",
		},
		[]string{"reason"},
	)

	sessionAuthenticated = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "1 while a session with a loaded identity is active.",
		},
	)

	snapshotFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "failures_total",
			Help:      "Snapshot fetches that fell back to an empty result.",
		},
		[]string{"kind", "reason"},
	)

	snapshotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of snapshot fetches.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"kind"},
	)

	statusRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "requests_total",
			Help:      "Requests served by the local status endpoint.",
		},
		[]string{"path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		liveState,
		liveDials,
		liveReconnects,
		liveEvents,
		sessionRefreshes,
		sessionLogouts,
		sessionAuthenticated,
		snapshotFailures,
		snapshotDuration,
		statusRequests,
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetLiveState records the numeric live channel state.
func SetLiveState(v int) { liveState.Set(float64(v)) }

// RecordDial counts one dial attempt.
func RecordDial(ok bool) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	liveDials.WithLabelValues(result).Inc()
}

// RecordReconnect counts one reconnect attempt.
func RecordReconnect() { liveReconnects.Inc() }

// RecordLiveEvent counts one inbound envelope.
func RecordLiveEvent(typ string) { liveEvents.WithLabelValues(typ).Inc() }

// RecordRefresh counts a refresh outcome ("ok", "rejected", "network", "no_refresh_token").
func RecordRefresh(result string) { sessionRefreshes.WithLabelValues(result).Inc() }

// RecordLogout counts an ended session.
func RecordLogout(reason string) { sessionLogouts.WithLabelValues(reason).Inc() }

// SetAuthenticated records whether a session is active.
func SetAuthenticated(on bool) {
	if on {
		sessionAuthenticated.Set(1)
		return
	}
	sessionAuthenticated.Set(0)
}

// RecordSnapshot records one snapshot fetch. reason is empty on success.
func RecordSnapshot(kind, reason string, d time.Duration) {
	snapshotDuration.WithLabelValues(kind).Observe(d.Seconds())
	if reason != "" {
		snapshotFailures.WithLabelValues(kind, reason).Inc()
	}
}

// InstrumentHandler counts requests served by next.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		statusRequests.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
