// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes the orchestration core's observability counters
// (stream, checkpoints, supervisor passes, registered tasks) as Prometheus
// collectors. The back-pressure drop counter in particular exists because
// the design notes require the event-fan-out drop policy to be
// observable, not just implementation-defined.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector the core registers.
type Registry struct {
	EventsAppended      *prometheus.CounterVec
	StreamRotations     prometheus.Counter
	SubscriberDrops     *prometheus.CounterVec
	CheckpointsRequested prometheus.Counter
	CheckpointsResolved *prometheus.CounterVec
	SupervisorPassSeconds prometheus.Histogram
	RegisteredTasks     prometheus.Gauge
}

// NewRegistry creates and registers every collector against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		EventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_stream_events_appended_total",
			Help: "Events appended to the durable event stream, by type.",
		}, []string{"type"}),
		StreamRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_stream_rotations_total",
			Help: "Number of times the event stream log file was rotated.",
		}),
		SubscriberDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_stream_subscriber_drops_total",
			Help: "Events dropped under subscriber back-pressure, by subscriber and event type.",
		}, []string{"subscriber", "type"}),
		CheckpointsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_checkpoints_requested_total",
			Help: "Checkpoints requested.",
		}),
		CheckpointsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_checkpoints_resolved_total",
			Help: "Checkpoints resolved, by resulting status.",
		}, []string{"status"}),
		SupervisorPassSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentcore_supervisor_pass_seconds",
			Help:    "Wall-clock duration of a single supervisor pass.",
			Buckets: prometheus.DefBuckets,
		}),
		RegisteredTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agentcore_registry_tasks",
			Help: "Tasks currently held in the task registry.",
		}),
	}

	reg.MustRegister(
		m.EventsAppended, m.StreamRotations, m.SubscriberDrops,
		m.CheckpointsRequested, m.CheckpointsResolved,
		m.SupervisorPassSeconds, m.RegisteredTasks,
	)
	return m
}

// EventAppended implements stream.Metrics.
func (m *Registry) EventAppended(eventType string) {
	m.EventsAppended.WithLabelValues(eventType).Inc()
}

// StreamRotated implements stream.Metrics.
func (m *Registry) StreamRotated() { m.StreamRotations.Inc() }

// SubscriberDropped implements stream.Metrics.
func (m *Registry) SubscriberDropped(subscriberID, eventType string) {
	m.SubscriberDrops.WithLabelValues(subscriberID, eventType).Inc()
}

// CheckpointRequested implements stream.Metrics.
func (m *Registry) CheckpointRequested() { m.CheckpointsRequested.Inc() }

// CheckpointResolved implements stream.Metrics.
func (m *Registry) CheckpointResolved(status string) {
	m.CheckpointsResolved.WithLabelValues(status).Inc()
}

// PassRecorded implements supervisor.Metrics.
func (m *Registry) PassRecorded(seconds float64) { m.SupervisorPassSeconds.Observe(seconds) }

// TasksGauge implements supervisor.Metrics.
func (m *Registry) TasksGauge(n int) { m.RegisteredTasks.Set(float64(n)) }
