package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Push results used as the "result" label.
const (
	ResultSynced  = "synced"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

type Manager struct {
	// counters
	CounterRequests      *prometheus.CounterVec
	CounterActions       *prometheus.CounterVec
	CounterPushes        *prometheus.CounterVec
	CounterRetries       *prometheus.CounterVec
	CounterLocalFailures prometheus.Counter

	// gauges
	GaugeSessions prometheus.Gauge

	// histograms
	HistRequestDuration prometheus.Histogram
	HistPushDuration    *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("fitness", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("fitness", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterActions := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "actions_recorded",
		Help:      "The total number of user actions recorded locally",
	}, []string{"domain"})
	counterPushes := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "pushes",
		Help:      "The total number of push attempts to the remote store",
	}, []string{"domain", "result"})
	counterRetries := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "push_retries_scheduled",
		Help:      "The total number of retry timers scheduled after a failed push",
	}, []string{"domain"})
	counterLocalFailures := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "local_store_failures",
		Help:      "Number of failed local store writes",
	})

	gaugeSessions := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_sessions",
		Help:      "Current number of open sync sessions",
	})

	histReqDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.0001, 0.0005, 0.001, 0.005, 0.01,
				0.05, 0.1, 0.5, 1, 5, 10,
			},
			Name: "request_duration_seconds",
			Help: "Total duration of requests in seconds",
		},
	)
	histPushDuration := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.001, 0.005, 0.01, 0.05, 0.1,
				0.25, 0.5, 1, 2.5, 5, 15,
			},
			Name: "push_duration_seconds",
			Help: "Duration of a single push to the remote store in seconds",
		},
		[]string{"domain"},
	)

	return &Manager{
		CounterRequests:      counterRequests,
		CounterActions:       counterActions,
		CounterPushes:        counterPushes,
		CounterRetries:       counterRetries,
		CounterLocalFailures: counterLocalFailures,
		GaugeSessions:        gaugeSessions,
		HistRequestDuration:  histReqDuration,
		HistPushDuration:     histPushDuration,
	}
}

// The helpers below are safe on a nil Manager so metrics stay optional.

func (m *Manager) ActionRecorded(domain string) {
	if m == nil {
		return
	}
	m.CounterActions.WithLabelValues(domain).Inc()
}

func (m *Manager) PushFinished(domain, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.CounterPushes.WithLabelValues(domain, result).Inc()
	if result != ResultSkipped {
		m.HistPushDuration.WithLabelValues(domain).Observe(took.Seconds())
	}
}

func (m *Manager) RetryScheduled(domain string) {
	if m == nil {
		return
	}
	m.CounterRetries.WithLabelValues(domain).Inc()
}

func (m *Manager) LocalStoreFailure() {
	if m == nil {
		return
	}
	m.CounterLocalFailures.Inc()
}

func (m *Manager) SessionOpened() {
	if m == nil {
		return
	}
	m.GaugeSessions.Inc()
}

func (m *Manager) SessionClosed() {
	if m == nil {
		return
	}
	m.GaugeSessions.Dec()
}
