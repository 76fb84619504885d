// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status labels for bridge call metrics.
const (
	StatusOK    = "ok"
	StatusFault = "fault"
)

// CallsTotal counts marshaled calls into script objects.
// Use RegisterMetrics to register this with a Prometheus registry.
var CallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scriptdev_bridge_calls_total",
		Help: "Total number of bridge calls into script objects",
	},
	[]string{"operation", "status"},
)

// CallDuration observes how long a scripted call blocked the caller.
var CallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "scriptdev_bridge_call_duration_seconds",
		Help:    "Bridge call duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// FaultsTotal counts translated faults by oops code.
var FaultsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scriptdev_bridge_faults_total",
		Help: "Total number of interpreter faults translated at the bridge boundary",
	},
	[]string{"code"},
)

// LiveObjects tracks interpreter values currently anchored by Go handles.
var LiveObjects = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "scriptdev_bridge_live_objects",
		Help: "Number of interpreter values anchored by managed objects",
	},
)

// LiveDevices tracks device bindings sharing the interpreter session.
var LiveDevices = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "scriptdev_bridge_live_devices",
		Help: "Number of device bindings holding the interpreter session",
	},
)

// RegisterMetrics registers bridge metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CallsTotal)
	reg.MustRegister(CallDuration)
	reg.MustRegister(FaultsTotal)
	reg.MustRegister(LiveObjects)
	reg.MustRegister(LiveDevices)
}

func recordCall(op string, start time.Time, err error) {
	status := StatusOK
	if err != nil {
		status = StatusFault
	}
	CallsTotal.WithLabelValues(op, status).Inc()
	CallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func recordFault(kind Kind) {
	FaultsTotal.WithLabelValues(kind.String()).Inc()
}
