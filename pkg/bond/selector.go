package bond

import "math/rand"

// GetPath dispatches to the active policy's path-selection algorithm, per
// spec.md §4.4. It never blocks and tolerates concurrent curation; the only
// synchronization is the bond's own paths mutex.
func (b *Bond) GetPath(now int64, flowID int32) (*Path, bool) {
	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()

	switch b.policy {
	case PolicyActiveBackup:
		return b.getPathActiveBackup()
	case PolicyBroadcast:
		return nil, false // transport iterates eligible paths itself
	case PolicyBalanceRR:
		return b.getPathRR()
	case PolicyBalanceXOR:
		return b.getPathXOR(flowID)
	case PolicyBalanceAware:
		return b.getPathAware(flowID)
	default:
		return nil, false
	}
}

func (b *Bond) getPathActiveBackup() (*Path, bool) {
	if b.abPathIdx == NoPathSlot {
		return nil, false
	}
	s := b.paths[b.abPathIdx]
	if s == nil {
		return nil, false
	}
	return s.p, true
}

func (b *Bond) getPathRR() (*Path, bool) {
	n := b.numBonded()
	if n == 0 {
		return nil, false
	}
	if b.packetsPerLink == 0 {
		idx := b.bondedMap[int(fastEntropyByte())%n]
		return b.paths[idx].p, true
	}

	if b.rrPacketsSent >= b.packetsPerLink {
		b.advanceRRCursor(n)
		b.rrPacketsSent = 0
	}
	slotIdx, ok := b.bondedMap[b.rrIdx]
	if !ok {
		b.advanceRRCursor(n)
		slotIdx, ok = b.bondedMap[b.rrIdx]
		if !ok {
			return nil, false
		}
	}
	b.rrPacketsSent++
	return b.paths[slotIdx].p, true
}

// advanceRRCursor moves to the next eligible bonded path cyclically.
func (b *Bond) advanceRRCursor(n int) {
	for i := 0; i < n; i++ {
		b.rrIdx = (b.rrIdx + 1) % n
		if slotIdx, ok := b.bondedMap[b.rrIdx]; ok && b.paths[slotIdx].eligible {
			return
		}
	}
}

func (b *Bond) getPathXOR(flowID int32) (*Path, bool) {
	n := b.numBonded()
	if n == 0 {
		return nil, false
	}
	if flowID == NoFlow {
		idx := b.bondedMap[int(fastEntropyByte())%n]
		return b.paths[idx].p, true
	}
	bondedIdx := int(absInt32(flowID)) % n
	slotIdx, ok := b.bondedMap[bondedIdx]
	if !ok {
		return nil, false
	}
	return b.paths[slotIdx].p, true
}

func (b *Bond) getPathAware(flowID int32) (*Path, bool) {
	n := b.numBonded()
	if n == 0 {
		return nil, false
	}
	if flowID == NoFlow {
		idx := b.bondedMap[int(fastEntropyByte())%n]
		return b.paths[idx].p, true
	}
	slotIdx, ok := b.weightedBondedSlot(fastEntropyByte())
	if !ok {
		return nil, false
	}
	return b.paths[slotIdx].p, true
}

// weightedBondedSlot implements the weighted-random walk over bonded paths'
// allocation, shared by balance-aware's selector fallback and flow
// assignment, per spec.md §4.6.
func (b *Bond) weightedBondedSlot(e byte) (int, bool) {
	n := b.numBonded()
	if n == 0 {
		return 0, false
	}
	var total int
	for i := 0; i < n; i++ {
		total += int(b.paths[b.bondedMap[i]].allocation)
	}
	if total == 0 {
		return b.bondedMap[int(e)%n], true
	}
	target := int(e) % total
	for i := 0; i < n; i++ {
		slotIdx := b.bondedMap[i]
		alloc := int(b.paths[slotIdx].allocation)
		if target <= alloc {
			return slotIdx, true
		}
		target -= alloc
	}
	return b.bondedMap[n-1], true
}

func fastEntropyByte() byte { return byte(rand.Intn(256)) }

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// RecordIncomingPacket accounts an inbound packet on a path: counters,
// frame bookkeeping, and (for tracked packet ids) QoS inbound sampling.
func (b *Bond) RecordIncomingPacket(path *Path, packetID uint64, length int, verb Verb, flowID int32, now int64) {
	path.touchIn(now)

	b.pathsMu.Lock()
	s := b.findSlot(path)
	if s == nil {
		b.pathsMu.Unlock()
		return
	}
	if verb.isFrame() {
		s.packetsIn++
	}
	if isQoSTracked(packetID, verb) {
		s.qosStatsIn[packetID] = now
		s.packetsReceivedSinceLastQoS++
		s.packetValiditySamples.push(true)
	}
	b.pathsMu.Unlock()

	if flowID != NoFlow {
		b.touchFlow(flowID, now, uint64(length), false)
	}
}

// RecordOutgoingPacket accounts an outbound packet: counters and (for
// tracked packet ids) the outstanding QoS send record.
func (b *Bond) RecordOutgoingPacket(path *Path, packetID uint64, length int, verb Verb, flowID int32, now int64) {
	path.touchOut(now)

	b.pathsMu.Lock()
	s := b.findSlot(path)
	if s == nil {
		b.pathsMu.Unlock()
		return
	}
	if verb.isFrame() {
		s.packetsOut++
	}
	if isQoSTracked(packetID, verb) {
		if len(s.qosStatsOut) < QoSMaxOutstanding {
			s.qosStatsOut[packetID] = now
		}
	}
	b.pathsMu.Unlock()

	if flowID != NoFlow {
		b.touchFlow(flowID, now, uint64(length), true)
	}
}

// RecordIncomingInvalidPacket marks a crypto/framing failure against a
// path's validity sample stream, per spec.md §4.7.
func (b *Bond) RecordIncomingInvalidPacket(path *Path) {
	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()
	s := b.findSlot(path)
	if s == nil {
		return
	}
	s.packetValiditySamples.push(false)
}

func (b *Bond) findSlot(path *Path) *pathSlot {
	for _, s := range b.paths {
		if s != nil && s.p == path {
			return s
		}
	}
	return nil
}

// isQoSTracked reports whether an outgoing packet id is worth QoS tracking,
// per spec.md §4.7: every packet except a fixed fraction, and never ACK or
// QOS_MEASUREMENT itself.
func isQoSTracked(packetID uint64, verb Verb) bool {
	if verb == VerbAck || verb == VerbQoSMeasurement {
		return false
	}
	return packetID&(QoSAckDivisor-1) != 0
}
