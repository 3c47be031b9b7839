//
// Copyright 2025 PAYU Network
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
//

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func Make(log *logrus.Logger) *Observability {
	return &Observability{
		log:      log,
		metrics:  prometheus.NewRegistry(),
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
	}
}

type Observability struct {
	log      *logrus.Logger
	metrics  *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

func (o *Observability) Log() *logrus.Logger {
	return o.log
}

func (o *Observability) Metrics() *prometheus.Registry {
	return o.metrics
}

func (o *Observability) Counter(opts prometheus.CounterOpts) prometheus.Counter {
	c, ok := o.counters[opts.Name]
	if ok {
		return c
	}
	c = prometheus.NewCounter(opts)
	err := o.metrics.Register(c)
	if err != nil {
		o.log.WithField("metric_collector", opts.Name).
			Errorf("failed to register metric")
		return c
	}
	o.counters[opts.Name] = c
	return c
}

func (o *Observability) Gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g, ok := o.gauges[opts.Name]
	if ok {
		return g
	}
	g = prometheus.NewGauge(opts)
	err := o.metrics.Register(g)
	if err != nil {
		o.log.WithField("metric_collector", opts.Name).
			Errorf("failed to register metric")
		return g
	}
	o.gauges[opts.Name] = g
	return g
}

// FlowMetrics counts registration flow outcomes.
type FlowMetrics struct {
	Submitted prometheus.Counter
	Confirmed prometheus.Counter
	Persisted prometheus.Counter
	Failed    prometheus.Counter
}

func MakeFlowMetrics(obs *Observability) *FlowMetrics {
	return &FlowMetrics{
		Submitted: obs.Counter(prometheus.CounterOpts{
			Name: "draw_registrations_submitted_total",
			Help: "Number of registration transactions submitted to the ledger.",
		}),
		Confirmed: obs.Counter(prometheus.CounterOpts{
			Name: "draw_registrations_confirmed_total",
			Help: "Number of registrations confirmed on the ledger.",
		}),
		Persisted: obs.Counter(prometheus.CounterOpts{
			Name: "draw_registrations_persisted_total",
			Help: "Number of registrations persisted in the backend.",
		}),
		Failed: obs.Counter(prometheus.CounterOpts{
			Name: "draw_registrations_failed_total",
			Help: "Number of registration attempts that ended in failure.",
		}),
	}
}
