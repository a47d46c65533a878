package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	messagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages persisted by the dispatch service, by kind.",
	}, []string{"kind"})

	messagesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_rejected_total",
		Help: "Send operations rejected before persistence, by HTTP status.",
	}, []string{"status"})

	broadcastDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_broadcast_deliveries_total",
		Help: "Events accepted by realtime clients, by event name.",
	}, []string{"event"})

	realtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_realtime_connections",
		Help: "Currently open realtime connections.",
	})

	indexedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_indexed_messages_total",
		Help: "Messages handed to the full text index, by outcome.",
	}, []string{"outcome"})

	workerRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_worker_restarts_total",
		Help: "Supervised worker restarts after a crash.",
	}, []string{"worker"})

	relayMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_relay_messages_total",
		Help: "Cross node relay traffic, by direction and outcome.",
	}, []string{"direction", "outcome"})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_http_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	processCPU = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_process_cpu_percent",
		Help: "CPU usage of the server process.",
	})

	processMemory = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_process_memory_percent",
		Help: "Share of the host memory used by the server process.",
	})

	processGoroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_process_goroutines",
		Help: "Live goroutines.",
	})
)

// MustRegister registers the package metrics once in the given registry.
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			messagesSent,
			messagesRejected,
			broadcastDeliveries,
			realtimeConnections,
			indexedMessages,
			workerRestarts,
			relayMessages,
			httpRequests,
			httpRequestDuration,
			processCPU,
			processMemory,
			processGoroutines,
		)
	})
}

func IncMessageSent(kind string) {
	messagesSent.WithLabelValues(kind).Inc()
}

func IncMessageRejected(status int) {
	messagesRejected.WithLabelValues(strconv.Itoa(status)).Inc()
}

func AddBroadcastDeliveries(event string, delivered int) {
	broadcastDeliveries.WithLabelValues(event).Add(float64(delivered))
}

func ConnectionOpened() { realtimeConnections.Inc() }

func ConnectionClosed() { realtimeConnections.Dec() }

func IncIndexed(err error) {
	indexedMessages.WithLabelValues(outcome(err)).Inc()
}

func IncWorkerRestart(worker string) {
	workerRestarts.WithLabelValues(worker).Inc()
}

func IncRelay(direction string, err error) {
	relayMessages.WithLabelValues(direction, outcome(err)).Inc()
}

func ObserveHTTPRequest(method, route string, status int, start time.Time) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

func SetProcessUsage(cpu float64, memory float32, goroutines int) {
	processCPU.Set(cpu)
	processMemory.Set(float64(memory))
	processGoroutines.Set(float64(goroutines))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
