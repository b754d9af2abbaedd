// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opengroup-foundation/sogs/lib/ref"
)

// Metrics collects poll-cycle instrumentation. Create with NewMetrics
// and share one instance across all pollers of a Manager.
type Metrics struct {
	cycles             *prometheus.CounterVec
	cycleDuration      *prometheus.HistogramVec
	messagesMerged     *prometheus.CounterVec
	subRequestFailures *prometheus.CounterVec
	pendingChanges     prometheus.Gauge
}

// NewMetrics creates and registers the poller metrics.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sogs_poll_cycles_total",
			Help: "Completed poll cycles by server and outcome.",
		}, []string{"server", "outcome"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sogs_poll_cycle_duration_seconds",
			Help:    "Poll cycle duration by server.",
			Buckets: prometheus.DefBuckets,
		}, []string{"server"}),
		messagesMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sogs_messages_merged_total",
			Help: "Room message updates merged by server.",
		}, []string{"server"}),
		subRequestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sogs_poll_sub_request_failures_total",
			Help: "Failed batch sub-requests by server.",
		}, []string{"server"}),
		pendingChanges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sogs_pending_changes",
			Help: "Outstanding optimistic local changes.",
		}),
	}
	registerer.MustRegister(m.cycles, m.cycleDuration, m.messagesMerged, m.subRequestFailures, m.pendingChanges)
	return m
}

func (m *Metrics) observeCycle(server ref.ServerURL, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.cycles.WithLabelValues(server.String(), outcome).Inc()
	m.cycleDuration.WithLabelValues(server.String()).Observe(duration.Seconds())
}
