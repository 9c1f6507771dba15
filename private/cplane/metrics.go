// Copyright 2025 The emunet authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cplane

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/emunet-project/emunet/private/topology"
)

// Metrics exposes the control plane's operational counters. A nil *Metrics
// is valid and records nothing, so tests don't need a registry.
type Metrics struct {
	networkState prometheus.Gauge
	nodesCurrent prometheus.Gauge
	linksCurrent prometheus.Gauge
	startsTotal  prometheus.Counter
	stopsTotal   prometheus.Counter
	execsTotal   *prometheus.CounterVec
	pingsTotal   *prometheus.CounterVec
}

// NewMetrics creates the control-plane metrics and registers them with the
// given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		networkState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emunet_network_running",
			Help: "Whether an emulated network is currently running.",
		}),
		nodesCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emunet_nodes",
			Help: "Number of hosts in the running topology.",
		}),
		linksCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emunet_links",
			Help: "Number of links in the running topology.",
		}),
		startsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emunet_network_starts_total",
			Help: "Total number of successful network starts.",
		}),
		stopsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emunet_network_stops_total",
			Help: "Total number of network stops.",
		}),
		execsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emunet_exec_commands_total",
			Help: "Total number of dispatched node commands.",
		}, []string{"mode"}),
		pingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emunet_ping_probes_total",
			Help: "Total number of ping probes by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.networkState, m.nodesCurrent, m.linksCurrent,
		m.startsTotal, m.stopsTotal, m.execsTotal, m.pingsTotal)
	return m
}

func (m *Metrics) networkUp(d *topology.Descriptor) {
	if m == nil {
		return
	}
	m.networkState.Set(1)
	m.nodesCurrent.Set(float64(d.HostCount()))
	m.linksCurrent.Set(float64(d.LinkCount()))
	m.startsTotal.Inc()
}

func (m *Metrics) networkDown() {
	if m == nil {
		return
	}
	m.networkState.Set(0)
	m.nodesCurrent.Set(0)
	m.linksCurrent.Set(0)
	m.stopsTotal.Inc()
}

func (m *Metrics) execDispatched(mode string) {
	if m == nil {
		return
	}
	m.execsTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) pingProbed(result string) {
	if m == nil {
		return
	}
	m.pingsTotal.WithLabelValues(strings.ToLower(result)).Inc()
}
