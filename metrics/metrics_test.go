// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.AppointmentCreated(5)
	m.AppointmentCreated(2)
	m.GuardRejected("delete_group")
	m.VoteCast()
	m.VoteRejected("inactive")
	m.GroupActivation(true)
	m.ObserveRequest("GET", "/health", 200, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.appointmentsCreated))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.votesDelegated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardRejections.WithLabelValues("delete_group")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votesCast))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.voteRejections.WithLabelValues("inactive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.groupActivations.WithLabelValues("active")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AppointmentCreated(1)
		m.GuardRejected("x")
		m.VoteCast()
		m.VoteRejected("x")
		m.GroupActivation(false)
		m.ObserveRequest("GET", "/", 200, time.Second)
	})
}
