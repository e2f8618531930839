package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aldebaran"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// GeneratorAttempts counts backend calls by outcome: success, empty, transient, permanent, canceled.
	GeneratorAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "generator_attempts_total", Help: "AI backend attempts by outcome."},
		[]string{"outcome"},
	)
	GeneratorAttemptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: namespace, Name: "generator_attempt_duration_seconds", Help: "Latency of single AI backend attempts.", Buckets: prometheus.ExponentialBuckets(0.05, 2, 10)},
	)

	// FallbackMessages counts AI messages replaced by the fixed fallback text.
	FallbackMessages = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "pipeline_fallback_messages_total", Help: "Messages persisted with fallback content after generation failed."},
	)
	MessagesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "pipeline_messages_total", Help: "Messages persisted by sender type."},
		[]string{"sender"},
	)

	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "auth_failures_total", Help: "Rejected authentication attempts by reason."},
		[]string{"reason"},
	)

	StressAssessments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "stress_assessments_total", Help: "PSS-10 analyses by score band."},
		[]string{"level"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(GeneratorAttempts)
	reg.MustRegister(GeneratorAttemptDuration)
	reg.MustRegister(FallbackMessages)
	reg.MustRegister(MessagesCreated)
	reg.MustRegister(AuthFailures)
	reg.MustRegister(StressAssessments)
}
