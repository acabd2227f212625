// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package database

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "substatedb"

// metrics collects the statistics of a database. Metrics are always
// maintained; they are exported only if a registerer is provided.
type metrics struct {
	commits         prometheus.Counter
	substateChanges prometheus.Counter
	newNodes        prometheus.Counter
	staleParts      prometheus.Counter
	prunedNodes     prometheus.Counter
	commitDuration  prometheus.Histogram
	version         prometheus.Gauge
	cacheHits       prometheus.CounterFunc
	cacheMisses     prometheus.CounterFunc

	registerer prometheus.Registerer
	registered []prometheus.Collector
}

func newMetrics(registerer prometheus.Registerer, cacheStats func() (hits, misses uint64)) (*metrics, error) {
	res := &metrics{
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commits_total",
			Help:      "Number of committed versions.",
		}),
		substateChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "substate_changes_total",
			Help:      "Number of committed substate changes and partition resets.",
		}),
		newNodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tree_nodes_created_total",
			Help:      "Number of state tree nodes created by commits.",
		}),
		staleParts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tree_stale_parts_total",
			Help:      "Number of state tree parts superseded by commits.",
		}),
		prunedNodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tree_nodes_pruned_total",
			Help:      "Number of stale state tree nodes deleted.",
		}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "commit_duration_seconds",
			Help:      "Time spent committing a version.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		version: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "version",
			Help:      "The current state version.",
		}),
		cacheHits: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tree_node_cache_hits_total",
			Help:      "Number of state tree node lookups served by the cache.",
		}, func() float64 {
			hits, _ := cacheStats()
			return float64(hits)
		}),
		cacheMisses: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tree_node_cache_misses_total",
			Help:      "Number of state tree node lookups missing the cache.",
		}, func() float64 {
			_, misses := cacheStats()
			return float64(misses)
		}),
		registerer: registerer,
	}
	if registerer == nil {
		return res, nil
	}
	collectors := []prometheus.Collector{
		res.commits, res.substateChanges, res.newNodes, res.staleParts,
		res.prunedNodes, res.commitDuration, res.version, res.cacheHits, res.cacheMisses,
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			res.unregister()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		res.registered = append(res.registered, collector)
	}
	return res, nil
}

// unregister removes all registered metrics from the registerer.
func (m *metrics) unregister() error {
	errs := []error{}
	for _, collector := range m.registered {
		if !m.registerer.Unregister(collector) {
			errs = append(errs, fmt.Errorf("failed to unregister metric"))
		}
	}
	m.registered = nil
	return errors.Join(errs...)
}
