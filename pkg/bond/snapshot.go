package bond

import (
	"fmt"

	"github.com/bondmesh/bond/pkg/bond/metrics"
)

// ObserveInto reports the bond's current state into a metrics.Exporter. It
// is cheap enough to call from a status-log tick; it does not itself lock
// out packet-plane operations for longer than a single snapshot pass.
func (b *Bond) ObserveInto(e *metrics.Exporter) {
	b.pathsMu.Lock()
	peer := fmt.Sprintf("%x", b.peer.PeerID())
	overheadDelta := b.overheadBytes
	b.overheadBytes = 0

	for _, s := range b.paths {
		if s == nil {
			continue
		}
		e.ObservePath(metrics.PathSnapshot{
			Peer:      peer,
			Link:      linkName(s.link),
			Remote:    s.p.String(),
			Allocation: s.allocation,
			LatencyMs: s.latencyMean,
			LossRatio: s.packetLossRatio,
			Eligible:  s.eligible,
			Bonded:    s.bonded,
		})
	}

	snap := metrics.BondSnapshot{
		Peer:               peer,
		Policy:             policyName(b.policy),
		Healthy:            b.healthy,
		ActivePathSlot:     b.abPathIdx,
		FailoverQueueLen:   len(b.abFailoverQueue),
		OverheadBytesDelta: float64(overheadDelta),
	}
	if snap.ActivePathSlot == NoPathSlot {
		snap.ActivePathSlot = -1
	}
	b.pathsMu.Unlock()

	e.ObserveBond(snap)
}
