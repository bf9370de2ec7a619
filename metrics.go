/*
 * Copyright 2026 The httpcomponents-core Authors
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
 *
 */

package connpool

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector exposes a Pool's introspection counters (spec.md §4.9) as
// Prometheus gauges, the same namespace/subsystem/labeled-vector pattern
// ergonproxy-nginxconfig's metrics.go uses for its own connection
// bookkeeping. It is a pull-based prometheus.Collector rather than a set of
// package-level vectors because Pool is generic: package-level metric
// variables can't be parameterized per instantiation, and a live collector
// avoids the double-registration panic a second Pool[R,S,C] of the same
// shape would otherwise cause.
type PoolCollector[R comparable, S comparable, C io.Closer] struct {
	pool *Pool[R, S, C]

	leased    *prometheus.Desc
	pending   *prometheus.Desc
	available *prometheus.Desc
	maxTotal  *prometheus.Desc

	routeLeased    *prometheus.Desc
	routePending   *prometheus.Desc
	routeAvailable *prometheus.Desc
	routeMax       *prometheus.Desc
}

// NewPoolCollector builds a collector for pool under the given namespace
// and subsystem. Register it with a prometheus.Registerer to expose it.
func NewPoolCollector[R comparable, S comparable, C io.Closer](pool *Pool[R, S, C], namespace, subsystem string) *PoolCollector[R, S, C] {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil,
		)
	}
	return &PoolCollector[R, S, C]{
		pool:      pool,
		leased:    desc("leased", "connections currently leased out"),
		pending:   desc("pending", "connect attempts in flight"),
		available: desc("available", "idle connections held for reuse"),
		maxTotal:  desc("max_total", "configured global capacity"),

		routeLeased:    desc("route_leased", "connections leased for a route", "route"),
		routePending:   desc("route_pending", "connect attempts in flight for a route", "route"),
		routeAvailable: desc("route_available", "idle connections held for a route", "route"),
		routeMax:       desc("route_max", "configured per-route capacity", "route"),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector[R, S, C]) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.leased
	ch <- c.pending
	ch <- c.available
	ch <- c.maxTotal
	ch <- c.routeLeased
	ch <- c.routePending
	ch <- c.routeAvailable
	ch <- c.routeMax
}

// Collect implements prometheus.Collector.
func (c *PoolCollector[R, S, C]) Collect(ch chan<- prometheus.Metric) {
	total := c.pool.GetTotalStats()
	ch <- prometheus.MustNewConstMetric(c.leased, prometheus.GaugeValue, float64(total.Leased))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(total.Pending))
	ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, float64(total.Available))
	ch <- prometheus.MustNewConstMetric(c.maxTotal, prometheus.GaugeValue, float64(total.MaxTotal))

	for _, route := range c.pool.GetRoutes() {
		label := fmt.Sprintf("%v", route)
		rs := c.pool.GetStats(route)
		ch <- prometheus.MustNewConstMetric(c.routeLeased, prometheus.GaugeValue, float64(rs.Leased), label)
		ch <- prometheus.MustNewConstMetric(c.routePending, prometheus.GaugeValue, float64(rs.Pending), label)
		ch <- prometheus.MustNewConstMetric(c.routeAvailable, prometheus.GaugeValue, float64(rs.Available), label)
		ch <- prometheus.MustNewConstMetric(c.routeMax, prometheus.GaugeValue, float64(rs.MaxPerRoute), label)
	}
}
