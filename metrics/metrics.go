/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package metrics exposes prometheus counters for the persistence layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "persistkit"

// Save passes reported by the cascade engine.
const (
	PassInitial = "initial"
	PassFinal   = "final"
)

// Query modes reported by the executor.
const (
	ModeList  = "list"
	ModeKeys  = "keys"
	ModeCount = "count"
)

// Recorder groups the layer's counters. A nil *Recorder records nothing.
type Recorder struct {
	saves             *prometheus.CounterVec
	queries           *prometheus.CounterVec
	timestampObsolete *prometheus.CounterVec
	hashChanges       *prometheus.CounterVec
}

// New creates the counters and registers them with reg. A nil reg leaves them
// unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Entity puts issued by cascading saves.",
		}, []string{"kind", "pass"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Criteria queries executed.",
		}, []string{"kind", "mode"}),
		timestampObsolete: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timestamp_obsolete_total",
			Help:      "Incoming updates found obsolete.",
		}, []string{"type"}),
		hashChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hash_changes_total",
			Help:      "Property hash snapshots that changed.",
		}, []string{"slot"}),
	}
	if reg != nil {
		reg.MustRegister(r.saves, r.queries, r.timestampObsolete, r.hashChanges)
	}
	return r
}

func (r *Recorder) Save(kind, pass string) {
	if r == nil {
		return
	}
	r.saves.WithLabelValues(kind, pass).Inc()
}

func (r *Recorder) Query(kind, mode string) {
	if r == nil {
		return
	}
	r.queries.WithLabelValues(kind, mode).Inc()
}

func (r *Recorder) TimestampObsolete(typ string) {
	if r == nil {
		return
	}
	r.timestampObsolete.WithLabelValues(typ).Inc()
}

func (r *Recorder) HashChanged(slot string) {
	if r == nil {
		return
	}
	r.hashChanges.WithLabelValues(slot).Inc()
}
