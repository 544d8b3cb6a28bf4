/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package httpapi mounts Cognigate's admin HTTP surface: rate-limit headers,
// the escalation acknowledge/resolve endpoints, and a Prometheus metrics
// endpoint.
package httpapi

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every gauge/counter the process exposes on /metrics.
type Metrics struct {
	AdmissionDecisions    *prometheus.CounterVec
	ConcurrentExecutions  *prometheus.GaugeVec
	ExecutionsTrackedTotal prometheus.Counter
	EscalationsActive     *prometheus.GaugeVec
	EscalationTimeouts    prometheus.Counter
}

// NewMetrics constructs and registers every Cognigate metric against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AdmissionDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cognigate_admission_decisions_total",
			Help: "Admission check outcomes by tenant, horizon, and outcome.",
		}, []string{"tenant", "horizon", "outcome"}),
		ConcurrentExecutions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cognigate_concurrent_executions",
			Help: "Currently tracked in-flight executions per tenant.",
		}, []string{"tenant"}),
		ExecutionsTrackedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cognigate_executions_tracked_total",
			Help: "Total executions ever registered with the tracker.",
		}),
		EscalationsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cognigate_escalations_active",
			Help: "Currently active (pending or acknowledged) escalations by priority.",
		}, []string{"priority"}),
		EscalationTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cognigate_escalation_timeouts_total",
			Help: "Total escalations auto-terminated after their timeout elapsed.",
		}),
	}

	reg.MustRegister(
		m.AdmissionDecisions,
		m.ConcurrentExecutions,
		m.ExecutionsTrackedTotal,
		m.EscalationsActive,
		m.EscalationTimeouts,
	)
	return m
}

// ObserveAdmissionDecision implements middleware.AdmissionMetrics.
func (m *Metrics) ObserveAdmissionDecision(tenantID, horizon, outcome string) {
	m.AdmissionDecisions.WithLabelValues(tenantID, horizon, outcome).Inc()
}

// IncExecutionsTracked implements tracker.Metrics.
func (m *Metrics) IncExecutionsTracked() {
	m.ExecutionsTrackedTotal.Inc()
}

// SetConcurrentExecutions implements tracker.Metrics.
func (m *Metrics) SetConcurrentExecutions(tenantID string, count float64) {
	m.ConcurrentExecutions.WithLabelValues(tenantID).Set(count)
}
