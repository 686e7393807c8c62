/*
Copyright 2025 The Wire Server Authors.

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

// Package metrics declares and registers the Prometheus metrics of the push
// service: the thread-budget gauges and counters and the per-transport
// native-push delivery counters.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	compbasemetrics "k8s.io/component-base/metrics"
	"k8s.io/component-base/metrics/legacyregistry"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	metricsutil "github.com/q3k/wire-server/pkg/util/metrics"
)

const (
	// --- Subsystems ---
	ThreadBudgetComponent = "thread_budget"
	NativePushComponent   = "native_push"

	// --- Fully qualified metric names, for test gathering ---
	LiveTasksMetric     = ThreadBudgetComponent + "_live_tasks"
	RejectedTotalMetric = ThreadBudgetComponent + "_rejected_total"

	DeliveredTotalMetric = NativePushComponent + "_delivered_total"
	DroppedTotalMetric   = NativePushComponent + "_dropped_total"
	FailedTotalMetric    = NativePushComponent + "_failed_total"
	PushLatenciesMetric  = NativePushComponent + "_push_duration_seconds"
)

var (
	liveTasksGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: ThreadBudgetComponent,
			Name:      "live_tasks",
			Help:      metricsutil.HelpMsgWithStability("Number of currently live worker tasks admitted by the thread budget.", compbasemetrics.ALPHA),
		},
	)
	rejectedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: ThreadBudgetComponent,
			Name:      "rejected_total",
			Help:      metricsutil.HelpMsgWithStability("Count of tasks rejected by the thread budget because the live count was at the limit.", compbasemetrics.ALPHA),
		},
	)

	deliveredCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: NativePushComponent,
			Name:      "delivered_total",
			Help:      metricsutil.HelpMsgWithStability("Count of native push notifications delivered to the push gateway.", compbasemetrics.ALPHA),
		},
		[]string{"transport"},
	)
	droppedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: NativePushComponent,
			Name:      "dropped_total",
			Help:      metricsutil.HelpMsgWithStability("Count of native push notifications dropped because no thread budget was available.", compbasemetrics.ALPHA),
		},
		[]string{"transport"},
	)
	failedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: NativePushComponent,
			Name:      "failed_total",
			Help:      metricsutil.HelpMsgWithStability("Count of native push notifications the push gateway failed to accept.", compbasemetrics.ALPHA),
		},
		[]string{"transport"},
	)
	pushLatencies = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: NativePushComponent,
			Name:      "push_duration_seconds",
			Help:      metricsutil.HelpMsgWithStability("Latency distribution of push gateway deliveries.", compbasemetrics.ALPHA),
			Buckets: []float64{
				0.005, 0.025, 0.05, 0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8,
			},
		},
		[]string{"transport"},
	)
)

var registerMetrics sync.Once

// Register all metrics.
func Register() {
	registerMetrics.Do(func() {
		// Register thread budget metrics
		metrics.Registry.MustRegister(liveTasksGauge)
		metrics.Registry.MustRegister(rejectedCounter)

		// Register native push metrics
		metrics.Registry.MustRegister(deliveredCounter)
		metrics.Registry.MustRegister(droppedCounter)
		metrics.Registry.MustRegister(failedCounter)
		metrics.Registry.MustRegister(pushLatencies)

		legacyregistry.RawMustRegister(liveTasksGauge)
		legacyregistry.RawMustRegister(rejectedCounter)
		legacyregistry.RawMustRegister(deliveredCounter)
		legacyregistry.RawMustRegister(droppedCounter)
		legacyregistry.RawMustRegister(failedCounter)
		legacyregistry.RawMustRegister(pushLatencies)
	})
}

// Just for integration test
func Reset() {
	liveTasksGauge.Set(0)
	deliveredCounter.Reset()
	droppedCounter.Reset()
	failedCounter.Reset()
	pushLatencies.Reset()
}

// SetLiveTasks records the current number of live worker tasks.
func SetLiveTasks(n int) {
	liveTasksGauge.Set(float64(n))
}

// RecordRejected counts one over-budget rejection.
func RecordRejected() {
	rejectedCounter.Inc()
}

// RecordDelivered counts one successful delivery for the given transport.
func RecordDelivered(transport string) {
	deliveredCounter.WithLabelValues(transport).Inc()
}

// RecordDropped counts one notification dropped for lack of budget.
func RecordDropped(transport string) {
	droppedCounter.WithLabelValues(transport).Inc()
}

// RecordFailed counts one delivery the gateway refused.
func RecordFailed(transport string) {
	failedCounter.WithLabelValues(transport).Inc()
}

// RecordPushLatency records the duration of one gateway delivery.
func RecordPushLatency(transport string, seconds float64) {
	pushLatencies.WithLabelValues(transport).Observe(seconds)
}

// Recorder adapts the package-level metrics to the recorder ports of the
// thread budget and the native push dispatcher.
type Recorder struct{}

func (Recorder) SetLiveTasks(n int) { SetLiveTasks(n) }
func (Recorder) IncRejected()       { RecordRejected() }

func (Recorder) IncDelivered(transport string) { RecordDelivered(transport) }
func (Recorder) IncDropped(transport string)   { RecordDropped(transport) }
func (Recorder) IncFailed(transport string)    { RecordFailed(transport) }

func (Recorder) ObservePushLatency(transport string, s float64) { RecordPushLatency(transport, s) }
