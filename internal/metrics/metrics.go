package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "alarm_correlator_"

var (
	registerOnce sync.Once

	notificationsProcessed *prometheus.CounterVec
	notificationsDropped   *prometheus.CounterVec
	lifecycleOutcomes      *prometheus.CounterVec
	storeFailures          prometheus.Counter
)

// Init registers the correlator metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		notificationsProcessed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_processed_total",
				Help: "Total processed notifications by event type",
			},
			[]string{"event_type"},
		)
		notificationsDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_dropped_total",
				Help: "Total dropped notifications by reason",
			},
			[]string{"reason"},
		)
		lifecycleOutcomes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "lifecycle_outcomes_total",
				Help: "Total lifecycle synchronizer outcomes",
			},
			[]string{"outcome"},
		)
		storeFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_failures_total",
				Help: "Total durable store write failures",
			},
		)

		prometheus.MustRegister(
			notificationsProcessed,
			notificationsDropped,
			lifecycleOutcomes,
			storeFailures,
		)
	})
}

// NotificationProcessed counts one fully-applied notification.
func NotificationProcessed(eventType string) {
	if notificationsProcessed != nil {
		notificationsProcessed.WithLabelValues(eventType).Inc()
	}
}

// NotificationDropped counts one dropped notification.
func NotificationDropped(reason string) {
	if notificationsDropped != nil {
		notificationsDropped.WithLabelValues(reason).Inc()
	}
}

// LifecycleOutcome counts one synchronizer outcome.
func LifecycleOutcome(outcome string) {
	if lifecycleOutcomes != nil {
		lifecycleOutcomes.WithLabelValues(outcome).Inc()
	}
}

// StoreFailure counts one durable store failure.
func StoreFailure() {
	if storeFailures != nil {
		storeFailures.Inc()
	}
}
