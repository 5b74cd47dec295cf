package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersCreated counts orders admitted through the API.
var OrdersCreated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderengine_orders_created_total",
		Help: "Total number of orders created",
	},
)

// OrdersProcessed counts terminal processing outcomes by status.
var OrdersProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderengine_orders_processed_total",
		Help: "Total number of orders that reached a terminal state",
	},
	[]string{"status"},
)

// JobRetries counts dispatcher retry re-admissions.
var JobRetries = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderengine_job_retries_total",
		Help: "Total number of job retries scheduled by the dispatcher",
	},
)

// ProcessingLatency records end-to-end per-order processing latency.
var ProcessingLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "orderengine_order_processing_latency_seconds",
		Help:    "Latency in seconds from job claim to terminal state",
		Buckets: prometheus.DefBuckets,
	},
)

// Queue and streaming gauges.
var (
	QueueActiveJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orderengine_queue_active_jobs",
			Help: "Number of jobs currently held by workers",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orderengine_ws_connections",
			Help: "Number of live WebSocket subscriber connections",
		},
	)
)

func init() {
	prometheus.MustRegister(OrdersCreated, OrdersProcessed, JobRetries, ProcessingLatency)
	prometheus.MustRegister(QueueActiveJobs, WSConnections)
}
