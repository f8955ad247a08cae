/*
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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder holds the collectors that describe the publisher loops. Values mirror what was sent to
// CloudWatch so a scrape shows the same numbers that drive autoscaling.
type Recorder struct {
	CyclesTotal         *prometheus.CounterVec
	CycleDuration       *prometheus.HistogramVec
	LastValue           *prometheus.GaugeVec
	ConsecutiveFailures *prometheus.GaugeVec
}

func NewRecorder(registerer prometheus.Registerer) *Recorder {
	r := &Recorder{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: PublisherSubsystem,
				Name:      "cycles_total",
				Help:      "Number of publish cycles, labeled by publisher and result.",
			},
			[]string{PublisherLabel, ResultLabel},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: PublisherSubsystem,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of a publish cycle in seconds.",
				Buckets:   DurationBuckets(),
			},
			[]string{PublisherLabel},
		),
		LastValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: PublisherSubsystem,
				Name:      "last_value",
				Help:      "Last value published to CloudWatch, labeled by publisher and metric name.",
			},
			[]string{PublisherLabel, MetricLabel},
		),
		ConsecutiveFailures: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: PublisherSubsystem,
				Name:      "consecutive_failures",
				Help:      "Number of publish cycles that failed in a row.",
			},
			[]string{PublisherLabel},
		),
	}
	registerer.MustRegister(r.CyclesTotal, r.CycleDuration, r.LastValue, r.ConsecutiveFailures)
	return r
}

// NewRegistry returns a registry with the recorder and the process and go runtime collectors
func NewRegistry() (*prometheus.Registry, *Recorder) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return registry, NewRecorder(registry)
}

func (r *Recorder) ObserveCycle(publisher string, duration time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	r.CyclesTotal.WithLabelValues(publisher, result).Inc()
	r.CycleDuration.WithLabelValues(publisher).Observe(duration.Seconds())
}

func (r *Recorder) SetLastValue(publisher, metric string, value float64) {
	r.LastValue.WithLabelValues(publisher, metric).Set(value)
}

func (r *Recorder) SetConsecutiveFailures(publisher string, failures int) {
	r.ConsecutiveFailures.WithLabelValues(publisher).Set(float64(failures))
}
