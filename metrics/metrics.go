// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	appointmentsCreated prometheus.Counter
	votesDelegated      prometheus.Counter
	guardRejections     *prometheus.CounterVec
	votesCast           prometheus.Counter
	voteRejections      *prometheus.CounterVec
	groupActivations    *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		appointmentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "agm_proxy_appointments_created_total",
			Help: "Total number of committed proxy appointments",
		}),
		votesDelegated: factory.NewCounter(prometheus.CounterOpts{
			Name: "agm_proxy_votes_delegated_total",
			Help: "Total votes allocated to proxy members at appointment time",
		}),
		guardRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agm_proxy_guard_rejections_total",
			Help: "Mutations rejected because a proxy member already voted",
		}, []string{"operation"}),
		votesCast: factory.NewCounter(prometheus.CounterOpts{
			Name: "agm_proxy_votes_cast_total",
			Help: "Total votes cast by proxy members on a principal's behalf",
		}),
		voteRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agm_proxy_vote_rejections_total",
			Help: "Proxy votes rejected by eligibility checks",
		}, []string{"reason"}),
		groupActivations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agm_proxy_group_activation_changes_total",
			Help: "Group activation toggles",
		}, []string{"state"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agm_proxy_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) AppointmentCreated(votes int) {
	if m == nil {
		return
	}
	m.appointmentsCreated.Inc()
	m.votesDelegated.Add(float64(votes))
}

func (m *Metrics) GuardRejected(operation string) {
	if m == nil {
		return
	}
	m.guardRejections.WithLabelValues(operation).Inc()
}

func (m *Metrics) VoteCast() {
	if m == nil {
		return
	}
	m.votesCast.Inc()
}

func (m *Metrics) VoteRejected(reason string) {
	if m == nil {
		return
	}
	m.voteRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) GroupActivation(active bool) {
	if m == nil {
		return
	}
	state := "inactive"
	if active {
		state = "active"
	}
	m.groupActivations.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
