// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector the service updates.
type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	AuthEvents     *prometheus.CounterVec
	Redemptions    *prometheus.CounterVec
	CardsClosed    prometheus.Counter
	PointsCredited prometheus.Counter
	PointsSpent    prometheus.Counter
	MailMessages   *prometheus.CounterVec
	RateLimited    *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec
	JobRuns        *prometheus.CounterVec
}

// New registers the collectors on reg.  Tests pass a fresh
// prometheus.NewRegistry() so registrations never collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gc_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gc_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AuthEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gc_auth_events_total",
			Help: "Authentication events by kind and outcome.",
		}, []string{"event", "outcome"}),
		Redemptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gc_reward_redemptions_total",
			Help: "Reward redemption attempts by outcome.",
		}, []string{"outcome"}),
		CardsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "gc_cards_closed_total",
			Help: "Cards transitioned from open to closed.",
		}),
		PointsCredited: f.NewCounter(prometheus.CounterOpts{
			Name: "gc_points_credited_total",
			Help: "Points credited to users.",
		}),
		PointsSpent: f.NewCounter(prometheus.CounterOpts{
			Name: "gc_points_spent_total",
			Help: "Points debited by reward redemptions.",
		}),
		MailMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gc_mail_messages_total",
			Help: "Outbound emails by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gc_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by route.",
		}, []string{"route"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gc_cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss, bypass).",
		}, []string{"result"}),
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gc_job_runs_total",
			Help: "Scheduled job executions by job and outcome.",
		}, []string{"job", "outcome"}),
	}
}

// Outcome turns an error into a label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
