// Package metrics counts what the dispatcher does with incoming traffic.
//
// Every Metrics value owns a private registry so several engines (and
// tests) never collide on the global default registry.
package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mekiku"

// Packet outcomes.
const (
	PacketApplied   = "applied"
	PacketMalformed = "malformed"
	PacketFailed    = "failed"
)

// Entry outcomes.
const (
	EntryAppended = "appended"
	EntryInserted = "inserted"
	EntryUpdated  = "updated"
	EntryIgnored  = "ignored"
	EntryLate     = "late"
)

// Metrics holds the dispatcher counters.
type Metrics struct {
	registry *prometheus.Registry

	packets      *prometheus.CounterVec
	entries      *prometheus.CounterVec
	undos        *prometheus.CounterVec
	pendingDrops prometheus.Counter
}

// New creates the counters and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Packets handled by the dispatcher, by outcome.",
		}, []string{"outcome"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Entries offered to the transcript, by placement outcome.",
		}, []string{"outcome"}),
		undos: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undo_total",
			Help:      "Undo requests, by outcome.",
		}, []string{"outcome"}),
		pendingDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_undo_dropped_total",
			Help:      "Undo notices dropped after their target never arrived.",
		}),
	}
	m.registry.MustRegister(m.packets, m.entries, m.undos, m.pendingDrops)
	return m
}

// Registry exposes the private registry, e.g. for promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Packet counts one packet with the given outcome.
func (m *Metrics) Packet(outcome string) {
	m.packets.WithLabelValues(outcome).Inc()
}

// Entry counts one entry with the given outcome.
func (m *Metrics) Entry(outcome string) {
	m.entries.WithLabelValues(outcome).Inc()
}

// Undo counts one undo request. outcome is typically an UndoOutcome's
// String form, or "local" for an undo of this peer's own typing.
func (m *Metrics) Undo(outcome string) {
	m.undos.WithLabelValues(outcome).Inc()
}

// PendingDropped counts one expired pending undo.
func (m *Metrics) PendingDropped() {
	m.pendingDrops.Inc()
}

// Sample is one counter value.
type Sample struct {
	Name   string  `json:"name"`
	Labels string  `json:"labels,omitempty"`
	Value  float64 `json:"value"`
}

// Snapshot returns every non-zero counter, sorted by name and labels.
func (m *Metrics) Snapshot() ([]Sample, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	var out []Sample
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			value := metric.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			var labels []string
			for _, l := range metric.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			out = append(out, Sample{
				Name:   f.GetName(),
				Labels: strings.Join(labels, ","),
				Value:  value,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Labels < out[j].Labels
	})
	return out, nil
}
