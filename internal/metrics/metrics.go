// Package metrics exposes broker instrumentation through Prometheus. One
// Metrics value implements the queue observer, the storage hook and the
// session counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shyifrah/kas/internal/queue"
)

const namespace = "kas"

// Metrics holds every collector. Build it with New.
type Metrics struct {
	registry *prometheus.Registry

	queuesDefined  prometheus.Counter
	queuesDeleted  prometheus.Counter
	droppedOnDel   prometheus.Counter
	messagesPut    *prometheus.CounterVec
	messagesGot    *prometheus.CounterVec
	getWait        prometheus.Histogram
	stateChanges   *prometheus.CounterVec
	suspended      *prometheus.GaugeVec
	sessions       prometheus.Gauge
	sessionsTotal  prometheus.Counter
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	accessDenied   *prometheus.CounterVec
	protocolErrors prometheus.Counter
	storeReads     prometheus.Histogram
	storeCommits   prometheus.Histogram
	storeBytes     prometheus.Counter
}

// New registers collectors on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		queuesDefined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "queues_defined_total", Help: "Queues defined.",
		}),
		queuesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "queues_deleted_total", Help: "Queues deleted.",
		}),
		droppedOnDel: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_dropped_total", Help: "Messages discarded by forced deletes.",
		}),
		messagesPut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_put_total", Help: "Messages accepted per queue.",
		}, []string{"queue"}),
		messagesGot: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_got_total", Help: "Messages delivered per queue.",
		}, []string{"queue"}),
		getWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "get_wait_seconds", Help: "Time a successful get waited.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "queue_state_changes_total", Help: "Suspend and resume edges.",
		}, []string{"queue", "change"}),
		suspended: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_suspended", Help: "1 while a queue is suspended.",
		}, []string{"queue"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active", Help: "Open client sessions.",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_total", Help: "Client sessions accepted.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_total", Help: "Requests by operation and status.",
		}, []string{"op", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "request_duration_seconds", Help: "Request handling time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "access_denied_total", Help: "Denied access checks by class.",
		}, []string{"class"}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "protocol_errors_total", Help: "Sessions ended by framing errors.",
		}),
		storeReads: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "store", Name: "read_seconds", Help: "Storage read latency.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
		}),
		storeCommits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "store", Name: "commit_seconds", Help: "Storage batch commit latency.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
		}),
		storeBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "written_bytes_total", Help: "Bytes committed to storage.",
		}),
	}
	reg.MustRegister(
		m.queuesDefined, m.queuesDeleted, m.droppedOnDel, m.messagesPut, m.messagesGot, m.getWait,
		m.stateChanges, m.suspended, m.sessions, m.sessionsTotal, m.requests, m.requestLatency,
		m.accessDenied, m.protocolErrors, m.storeReads, m.storeCommits, m.storeBytes,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// QueueDefined implements queue.Observer.
func (m *Metrics) QueueDefined(queue.Definition) { m.queuesDefined.Inc() }

// QueueDeleted implements queue.Observer.
func (m *Metrics) QueueDeleted(name string, dropped int) {
	m.queuesDeleted.Inc()
	m.droppedOnDel.Add(float64(dropped))
	m.messagesPut.DeleteLabelValues(name)
	m.messagesGot.DeleteLabelValues(name)
	m.suspended.DeleteLabelValues(name)
	m.stateChanges.DeletePartialMatch(prometheus.Labels{"queue": name})
}

// MessagePut implements queue.Observer.
func (m *Metrics) MessagePut(name string) { m.messagesPut.WithLabelValues(name).Inc() }

// MessageGot implements queue.Observer.
func (m *Metrics) MessageGot(name string, wait time.Duration) {
	m.messagesGot.WithLabelValues(name).Inc()
	m.getWait.Observe(wait.Seconds())
}

// StateChanged implements queue.Observer.
func (m *Metrics) StateChanged(name string, change queue.StateChange) {
	m.stateChanges.WithLabelValues(name, change.String()).Inc()
	switch change {
	case queue.BecameSuspended:
		m.suspended.WithLabelValues(name).Set(1)
	case queue.BecameResumed:
		m.suspended.WithLabelValues(name).Set(0)
	}
}

// SessionOpened counts a new session.
func (m *Metrics) SessionOpened() {
	m.sessions.Inc()
	m.sessionsTotal.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() { m.sessions.Dec() }

// RequestHandled records one request outcome.
func (m *Metrics) RequestHandled(op, status string, elapsed time.Duration) {
	m.requests.WithLabelValues(op, status).Inc()
	m.requestLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// AccessDenied counts a denied check.
func (m *Metrics) AccessDenied(class string) { m.accessDenied.WithLabelValues(class).Inc() }

// ProtocolError counts a session ended by a framing error.
func (m *Metrics) ProtocolError() { m.protocolErrors.Inc() }

// ObserveRead implements pebblestore.MetricsHook.
func (m *Metrics) ObserveRead(elapsed time.Duration, _ int) { m.storeReads.Observe(elapsed.Seconds()) }

// ObserveBatchCommit implements pebblestore.MetricsHook.
func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, _ int, bytes int) {
	m.storeCommits.Observe(elapsed.Seconds())
	m.storeBytes.Add(float64(bytes))
}
