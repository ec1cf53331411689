package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pairpad",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pairpad",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pairpad",
		Name:      "rooms_active",
		Help:      "Rooms currently resident in memory",
	})

	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pairpad",
		Name:      "connections_active",
		Help:      "WebSocket connections currently joined to a room",
	})

	editsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pairpad",
		Name:      "edits_applied_total",
		Help:      "Edits committed to the store and broadcast",
	})

	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pairpad",
		Name:      "persist_failures_total",
		Help:      "Edits or room creations that failed to reach the store",
	})

	framesBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pairpad",
		Name:      "frames_broadcast_total",
		Help:      "Update frames delivered to peers",
	})
)

func RoomOpened()  { roomsActive.Inc() }
func RoomEvicted() { roomsActive.Dec() }

func PeerJoined() { connectionsActive.Inc() }
func PeerLeft()   { connectionsActive.Dec() }

func EditApplied()   { editsApplied.Inc() }
func PersistFailed() { persistFailures.Inc() }

func FramesBroadcast(n int) { framesBroadcast.Add(float64(n)) }

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and latency with Prometheus labels.
// WebSocket upgrades bypass the recorder so Hijack stays available.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
