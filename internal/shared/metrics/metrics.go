package metrics

import (
	"database/sql"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exported by this process.
var Registry = prometheus.NewRegistry()

var (
	factory = promauto.With(Registry)

	ingestReceived = factory.NewCounter(prometheus.CounterOpts{
		Name: "ingest_messages_received_total",
		Help: "Ingest messages received from the queue",
	})
	ingestCompleted = factory.NewCounter(prometheus.CounterOpts{
		Name: "ingest_messages_completed_total",
		Help: "Ingest messages applied and deleted",
	})
	ingestFailed = factory.NewCounter(prometheus.CounterOpts{
		Name: "ingest_messages_failed_total",
		Help: "Ingest messages left for redelivery",
	})
	ingestDeletedUnrecoverable = factory.NewCounter(prometheus.CounterOpts{
		Name: "ingest_messages_deleted_unrecoverable_total",
		Help: "Ingest messages deleted without being applied",
	})
	ingestEnqueued = factory.NewCounter(prometheus.CounterOpts{
		Name: "ingest_messages_enqueued_total",
		Help: "Ingest requests relayed onto the queue",
	})

	callsCreated = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "calls_created_total",
		Help: "Call records persisted",
	}, []string{"source"})

	requestLookups = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "call_request_lookups_total",
		Help: "Lookups of call records by analysis request id",
	}, []string{"result"})
	recordingsUploaded = factory.NewCounter(prometheus.CounterOpts{
		Name: "recordings_uploaded_total",
		Help: "Audio recordings accepted into the object store",
	})
	recordingBytes = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "recording_upload_bytes",
		Help:    "Size of accepted audio recordings",
		Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
	})

	httpDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	httpPanics = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "http_panics_recovered_total",
		Help: "Handler panics turned into 500 responses",
	}, []string{"route"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var registerDBOnce sync.Once

// RegisterDB exports pool stats for db under db_name="callcenter". Only the
// first pool handed in is registered.
func RegisterDB(db *sql.DB) {
	if db == nil {
		return
	}
	registerDBOnce.Do(func() {
		Registry.MustRegister(collectors.NewDBStatsCollector(db, "callcenter"))
	})
}

// IncPanic counts a recovered handler panic.
func IncPanic(route string) {
	if route == "" {
		route = "unmatched"
	}
	httpPanics.WithLabelValues(route).Inc()
}

// IncIngestReceived increments the received counter.
func IncIngestReceived() { ingestReceived.Inc() }

// IncIngestCompleted increments the completed counter.
func IncIngestCompleted() { ingestCompleted.Inc() }

// IncIngestFailed increments the failed counter.
func IncIngestFailed() { ingestFailed.Inc() }

// IncIngestDeletedUnrecoverable increments the unrecoverable delete counter.
func IncIngestDeletedUnrecoverable() { ingestDeletedUnrecoverable.Inc() }

// IncIngestEnqueued counts a request relayed onto the queue.
func IncIngestEnqueued() { ingestEnqueued.Inc() }

// IncCallsCreated counts a persisted call record.
func IncCallsCreated(source string) {
	if source == "" {
		source = "unknown"
	}
	callsCreated.WithLabelValues(source).Inc()
}

// ObserveRequestLookup counts a by-request-id lookup as a hit or miss.
func ObserveRequestLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	requestLookups.WithLabelValues(result).Inc()
}

// ObserveRecordingUploaded records an accepted upload of size bytes.
func ObserveRecordingUploaded(size int64) {
	recordingsUploaded.Inc()
	recordingBytes.Observe(float64(size))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
	return gin.WrapH(h)
}

// HTTP observes request latency by matched route.
func HTTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
