// Package monitoring exposes Prometheus metrics for the economy service.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alem-hub/lingua-hub/internal/domain/shared"
)

const namespace = "lingua"

// Metrics holds every collector the service reports on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	// Business metrics
	powerUpPurchases *prometheus.CounterVec
	gemsSpent        *prometheus.CounterVec
	gemsRewarded     *prometheus.CounterVec
	heartsSpent      prometheus.Counter
	heartRefills     prometheus.Counter
	questsCompleted  *prometheus.CounterVec
	lessonsRecorded  prometheus.Counter
	streakUpdates    *prometheus.CounterVec
	streaksBroken    prometheus.Counter
	wagersSettled    *prometheus.CounterVec
	provisioned      prometheus.Counter

	// Workflow metrics
	operationDuration *prometheus.HistogramVec
	operationTotal    *prometheus.CounterVec
	versionConflicts  *prometheus.CounterVec

	// Event bus metrics
	eventsPublished *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	handlerFailures *prometheus.CounterVec

	// HTTP metrics
	requestDuration *prometheus.HistogramVec
	requestCount    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime and process collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initialize()
	m.register()
	return m
}

func (m *Metrics) initialize() {
	m.powerUpPurchases = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "powerup_purchases_total",
		Help:      "Power-up purchases by type",
	}, []string{"power_up"})

	m.gemsSpent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gems_spent_total",
		Help:      "Gems spent by sink",
	}, []string{"sink"})

	m.gemsRewarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gems_rewarded_total",
		Help:      "Gems granted by source",
	}, []string{"source"})

	m.heartsSpent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hearts_spent_total",
		Help:      "Hearts deducted for mistakes",
	})

	m.heartRefills = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "heart_refills_total",
		Help:      "Paid heart refills",
	})

	m.questsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quests_completed_total",
		Help:      "Daily quests completed by quest id",
	}, []string{"quest_id"})

	m.lessonsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lessons_recorded_total",
		Help:      "Completed lessons recorded",
	})

	m.streakUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "streak_updates_total",
		Help:      "Streak updates by protection used",
	}, []string{"protected_by"})

	m.streaksBroken = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "streaks_broken_total",
		Help:      "Streaks reset after a missed day",
	})

	m.wagersSettled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wagers_settled_total",
		Help:      "Double-or-nothing wagers settled by result",
	}, []string{"result"})

	m.provisioned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "economies_provisioned_total",
		Help:      "Economy records created for new users",
	})

	m.operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Economy operation latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	m.operationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Economy operations by outcome",
	}, []string{"operation", "outcome"})

	m.versionConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "version_conflicts_total",
		Help:      "Optimistic concurrency conflicts that triggered a retry",
	}, []string{"operation"})

	m.eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Domain events published",
	}, []string{"event_type"})

	m.handlerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "event_handler_duration_seconds",
		Help:      "Event handler latency",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
	}, []string{"event_type"})

	m.handlerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_handler_failures_total",
		Help:      "Event handler errors and panics",
	}, []string{"event_type"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	m.requestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests",
	}, []string{"method", "route", "status"})
}

func (m *Metrics) register() {
	m.registry.MustRegister(
		m.powerUpPurchases,
		m.gemsSpent,
		m.gemsRewarded,
		m.heartsSpent,
		m.heartRefills,
		m.questsCompleted,
		m.lessonsRecorded,
		m.streakUpdates,
		m.streaksBroken,
		m.wagersSettled,
		m.provisioned,
		m.operationDuration,
		m.operationTotal,
		m.versionConflicts,
		m.eventsPublished,
		m.handlerDuration,
		m.handlerFailures,
		m.requestDuration,
		m.requestCount,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ─────────────────────────────────────────────────────────────────────────────
// Business
// ─────────────────────────────────────────────────────────────────────────────

// RecordPurchase counts a power-up purchase and the gems it cost.
func (m *Metrics) RecordPurchase(powerUp string, cost int) {
	m.powerUpPurchases.WithLabelValues(powerUp).Inc()
	if cost > 0 {
		m.gemsSpent.WithLabelValues(powerUp).Add(float64(cost))
	}
}

// RecordHeartsSpent counts hearts deducted.
func (m *Metrics) RecordHeartsSpent(amount int) {
	if amount > 0 {
		m.heartsSpent.Add(float64(amount))
	}
}

// RecordHeartRefill counts a paid refill.
func (m *Metrics) RecordHeartRefill() {
	m.heartRefills.Inc()
}

// RecordQuestCompleted counts a quest completion and its reward.
func (m *Metrics) RecordQuestCompleted(questID string, rewardGems int) {
	m.questsCompleted.WithLabelValues(questID).Inc()
	m.gemsRewarded.WithLabelValues("quest").Add(float64(rewardGems))
}

// RecordLesson counts a recorded lesson.
func (m *Metrics) RecordLesson() {
	m.lessonsRecorded.Inc()
}

// RecordStreakUpdate counts a streak extension. protectedBy is empty for a
// plain continuation.
func (m *Metrics) RecordStreakUpdate(protectedBy string) {
	if protectedBy == "" {
		protectedBy = "none"
	}
	m.streakUpdates.WithLabelValues(protectedBy).Inc()
}

// RecordStreakBroken counts a streak reset.
func (m *Metrics) RecordStreakBroken() {
	m.streaksBroken.Inc()
}

// RecordWagerSettled counts a wager settlement and its payout.
func (m *Metrics) RecordWagerSettled(result string, payout int) {
	m.wagersSettled.WithLabelValues(result).Inc()
	if payout > 0 {
		m.gemsRewarded.WithLabelValues("wager").Add(float64(payout))
	}
}

// RecordProvisioned counts a newly created economy record.
func (m *Metrics) RecordProvisioned() {
	m.provisioned.Inc()
}

// ─────────────────────────────────────────────────────────────────────────────
// Workflow (workflow.Observer)
// ─────────────────────────────────────────────────────────────────────────────

// ObserveConflict counts a version conflict retry.
func (m *Metrics) ObserveConflict(operation string) {
	m.versionConflicts.WithLabelValues(operation).Inc()
}

// ObserveOperation records an operation's latency and outcome.
func (m *Metrics) ObserveOperation(operation string, err error, latency time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(latency.Seconds())
	m.operationTotal.WithLabelValues(operation, shared.ErrorKind(err)).Inc()
}

// ─────────────────────────────────────────────────────────────────────────────
// Event bus (messaging.Instrumentation)
// ─────────────────────────────────────────────────────────────────────────────

// RecordPublish counts a published event.
func (m *Metrics) RecordPublish(eventType shared.EventType) {
	m.eventsPublished.WithLabelValues(string(eventType)).Inc()
}

// RecordHandlerExecution records handler latency and failures.
func (m *Metrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.handlerDuration.WithLabelValues(string(eventType)).Observe(duration.Seconds())
	if !success {
		m.handlerFailures.WithLabelValues(string(eventType)).Inc()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTP
// ─────────────────────────────────────────────────────────────────────────────

// RecordRequest records an HTTP request. route is the matched pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.requestCount.WithLabelValues(method, route, code).Inc()
}
