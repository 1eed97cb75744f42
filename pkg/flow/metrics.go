/*
 * Copyright 2018 The Service Manager Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package flow

import (
	"time"

	"github.com/Peripli/service-broker/pkg/osb"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "osb_broker"

// Outcomes of a lifecycle operation as recorded in the metrics
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeAsync     = "async"
)

// Metrics records the outcome of lifecycle operations. A nil *Metrics records nothing.
type Metrics struct {
	operations     *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	hookFaults     *prometheus.CounterVec
	terminalStates *prometheus.CounterVec
}

// NewMetrics creates the broker metrics and registers them with the registerer
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Total number of lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of the provisioning contract calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		hookFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "hook_faults_total",
			Help:      "Total number of failed completion and error hooks",
		}, []string{"operation", "stage"}),
		terminalStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "terminal_states_total",
			Help:      "Total number of reported terminal states of asynchronous operations",
		}, []string{"operation", "state"}),
	}

	for _, collector := range []prometheus.Collector{m.operations, m.actionDuration, m.hookFaults, m.terminalStates} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeOperation(op osb.Operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(op), outcome).Inc()
}

func (m *Metrics) observeAction(op osb.Operation, started time.Time) {
	if m == nil {
		return
	}
	m.actionDuration.WithLabelValues(string(op)).Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeHookFault(op osb.Operation, stage Stage) {
	if m == nil {
		return
	}
	m.hookFaults.WithLabelValues(string(op), string(stage)).Inc()
}

func (m *Metrics) observeTerminalState(op osb.Operation, state osb.OperationState) {
	if m == nil {
		return
	}
	m.terminalStates.WithLabelValues(string(op), string(state)).Inc()
}
