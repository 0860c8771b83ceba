// Package metrics exports per-path and per-bond bonding state as Prometheus
// gauges/counters for external scraping, mirroring the teacher's
// pkg/traffic/monitor.go structure.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Exporter holds the Prometheus collectors for the bonding engine. It is
// updated explicitly by the caller (typically right after a curate/estimate
// tick) rather than scraping bond internals itself, keeping this package
// free of a dependency on the bond package's unexported state.
type Exporter struct {
	pathAllocation  *prometheus.GaugeVec
	pathLatencyMs   *prometheus.GaugeVec
	pathLossRatio   *prometheus.GaugeVec
	pathEligible    *prometheus.GaugeVec
	pathBonded      *prometheus.GaugeVec
	bondHealthy     *prometheus.GaugeVec
	bondActivePath  *prometheus.GaugeVec
	bondFailoverLen *prometheus.GaugeVec
	bondOverheadBytes *prometheus.CounterVec
}

// NewExporter constructs an Exporter. Call MustRegister on a
// prometheus.Registerer to expose it.
func NewExporter() *Exporter {
	return &Exporter{
		pathAllocation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bond_path_allocation",
			Help: "Normalized 0-255 flow-weighting allocation for a bonded path.",
		}, []string{"peer", "link", "remote"}),
		pathLatencyMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bond_path_latency_ms",
			Help: "Mean measured latency for a path, in milliseconds.",
		}, []string{"peer", "link", "remote"}),
		pathLossRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bond_path_packet_loss_ratio",
			Help: "Fraction of outgoing QoS records reclassified as lost.",
		}, []string{"peer", "link", "remote"}),
		pathEligible: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bond_path_eligible",
			Help: "1 if the path currently satisfies the eligibility state machine.",
		}, []string{"peer", "link", "remote"}),
		pathBonded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bond_path_bonded",
			Help: "1 if the path is in the bonded set under a balance-* policy.",
		}, []string{"peer", "link", "remote"}),
		bondHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bond_healthy",
			Help: "1 if the bond's health derivation reports HEALTHY.",
		}, []string{"peer", "policy"}),
		bondActivePath: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bond_active_backup_path_slot",
			Help: "Current active-backup path slot index, or -1 if unset.",
		}, []string{"peer"}),
		bondFailoverLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bond_failover_queue_depth",
			Help: "Number of candidate paths currently queued for active-backup failover.",
		}, []string{"peer"}),
		bondOverheadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bond_control_overhead_bytes_total",
			Help: "Cumulative bytes spent on bond-originated control traffic (ECHO, QoS, negotiation).",
		}, []string{"peer"}),
	}
}

// MustRegister registers every collector against r.
func (e *Exporter) MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		e.pathAllocation, e.pathLatencyMs, e.pathLossRatio, e.pathEligible, e.pathBonded,
		e.bondHealthy, e.bondActivePath, e.bondFailoverLen, e.bondOverheadBytes,
	)
}

// PathSnapshot is the subset of per-path state the exporter needs; the bond
// package constructs these rather than exposing its internal pathSlot type.
type PathSnapshot struct {
	Peer, Link, Remote string
	Allocation         uint8
	LatencyMs          float32
	LossRatio          float32
	Eligible           bool
	Bonded             bool
}

// BondSnapshot is the subset of per-bond state the exporter needs.
type BondSnapshot struct {
	Peer, Policy      string
	Healthy           bool
	ActivePathSlot    int
	FailoverQueueLen  int
	OverheadBytesDelta float64
}

// ObservePath updates every path-scoped gauge for one snapshot.
func (e *Exporter) ObservePath(s PathSnapshot) {
	labels := prometheus.Labels{"peer": s.Peer, "link": s.Link, "remote": s.Remote}
	e.pathAllocation.With(labels).Set(float64(s.Allocation))
	e.pathLatencyMs.With(labels).Set(float64(s.LatencyMs))
	e.pathLossRatio.With(labels).Set(float64(s.LossRatio))
	e.pathEligible.With(labels).Set(boolToFloat(s.Eligible))
	e.pathBonded.With(labels).Set(boolToFloat(s.Bonded))
}

// ObserveBond updates every bond-scoped gauge/counter for one snapshot.
func (e *Exporter) ObserveBond(s BondSnapshot) {
	e.bondHealthy.With(prometheus.Labels{"peer": s.Peer, "policy": s.Policy}).Set(boolToFloat(s.Healthy))
	e.bondActivePath.With(prometheus.Labels{"peer": s.Peer}).Set(float64(s.ActivePathSlot))
	e.bondFailoverLen.With(prometheus.Labels{"peer": s.Peer}).Set(float64(s.FailoverQueueLen))
	if s.OverheadBytesDelta > 0 {
		e.bondOverheadBytes.With(prometheus.Labels{"peer": s.Peer}).Add(s.OverheadBytesDelta)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
