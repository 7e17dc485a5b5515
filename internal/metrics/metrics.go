package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reseich/reseich-api/internal/workflow"
)

const namespace = "reseich"

var (
	// Registry holds the application collectors exposed on /metrics.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "route"},
	)

	researchSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "research",
			Name:      "submitted_total",
			Help:      "Research requests accepted, by depth and caller mode.",
		},
		[]string{"depth", "mode"},
	)

	researchRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "research",
			Name:      "rejected_total",
			Help:      "Research requests rejected before creation, by reason.",
		},
		[]string{"reason"},
	)

	researchTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "research",
			Name:      "status_transitions_total",
			Help:      "Research status updates applied, by resulting status.",
		},
		[]string{"status"},
	)

	researchExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "research",
			Name:      "expired_total",
			Help:      "Research items failed by the stale expiry job.",
		},
	)

	creditsGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credits",
			Name:      "granted_total",
			Help:      "Credits added to balances, by payment channel.",
		},
		[]string{"channel"},
	)

	marketplaceSales = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketplace",
			Name:      "sales_total",
			Help:      "Marketplace purchases recorded, by buyer mode.",
		},
		[]string{"mode"},
	)

	workflowDispatch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "dispatch_total",
			Help:      "Workflow webhook deliveries, by form and outcome.",
		},
		[]string{"form", "outcome"},
	)

	sideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Best-effort side effects that failed, by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		researchSubmitted,
		researchRejected,
		researchTransitions,
		researchExpired,
		creditsGranted,
		marketplaceSales,
		workflowDispatch,
		sideEffectFailures,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies by matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func mode(demo bool) string {
	if demo {
		return "demo"
	}
	return "wallet"
}

// Recorder is the domain-facing side of the metrics. The zero value is usable.
type Recorder struct{}

func (Recorder) ResearchSubmitted(depth string, demo bool) {
	researchSubmitted.WithLabelValues(depth, mode(demo)).Inc()
}

func (Recorder) ResearchRejected(reason string) {
	researchRejected.WithLabelValues(reason).Inc()
}

func (Recorder) ResearchTransition(status string) {
	researchTransitions.WithLabelValues(status).Inc()
}

func (Recorder) ResearchExpired(n int) {
	researchExpired.Add(float64(n))
}

func (Recorder) CreditsGranted(channel string, credits int64) {
	creditsGranted.WithLabelValues(channel).Add(float64(credits))
}

func (Recorder) MarketplaceSale(demo bool) {
	marketplaceSales.WithLabelValues(mode(demo)).Inc()
}

func (Recorder) SideEffectFailed(kind string) {
	sideEffectFailures.WithLabelValues(kind).Inc()
}

func (Recorder) ObserveDispatch(form workflow.FormID, outcome string) {
	workflowDispatch.WithLabelValues(string(form), outcome).Inc()
}

var _ workflow.Recorder = Recorder{}
