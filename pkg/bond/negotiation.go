package bond

import "encoding/binary"

// pathNegotiationCheckLocked runs at most once per OPTIMIZE_INTERVAL, only
// under the optimize re-selection policy, per spec.md §4.9. Caller holds
// pathsMu.
func (b *Bond) pathNegotiationCheckLocked(now int64) {
	if b.reselectPolicy != ReselectOptimize {
		return
	}
	if now-b.lastPathNegotiationCheck < OptimizeInterval.Milliseconds() {
		return
	}
	b.lastPathNegotiationCheck = now

	maxInIdx, maxOutIdx := NoPathSlot, NoPathSlot
	var maxIn, maxOut uint64
	for i, s := range b.paths {
		if s == nil || !s.allowed() {
			continue
		}
		if s.packetsIn > maxIn {
			maxIn = s.packetsIn
			maxInIdx = i
		}
		if s.packetsOut > maxOut {
			maxOut = s.packetsOut
			maxOutIdx = i
		}
	}
	for _, s := range b.paths {
		if s != nil {
			s.resetPacketCounts()
		}
	}

	if maxInIdx == NoPathSlot || maxOutIdx == NoPathSlot || maxInIdx == maxOutIdx {
		return
	}

	maxInSlot := b.paths[maxInIdx]
	maxOutSlot := b.paths[maxOutIdx]
	localUtility := maxOutSlot.failoverScore - maxInSlot.failoverScore
	if maxOutSlot.negotiated {
		localUtility -= HandicapNegotiated
	}
	b.lastLocalUtility = int16(localUtility)

	if localUtility == 0 {
		if b.negotiationZeroUtilitySince == 0 {
			b.negotiationZeroUtilitySince = now
		}
		if now-b.negotiationZeroUtilitySince >= 2*OptimizeInterval.Milliseconds() {
			b.abPathIdx = maxInIdx
			b.lastActiveBackupPathChange = now
			b.negotiationZeroUtilitySince = 0
			b.log.logf("path negotiation stalled, switching unilaterally to slot=%d", maxInIdx)
		}
		return
	}
	b.negotiationZeroUtilitySince = 0

	cutoff := now - PathNegotiationCutoffTime.Milliseconds()
	kept := b.negotiationAttemptTimes[:0:0]
	for _, t := range b.negotiationAttemptTimes {
		if t >= cutoff {
			kept = append(kept, t)
		}
	}
	b.negotiationAttemptTimes = kept

	if localUtility >= 0 && len(b.negotiationAttemptTimes) < PathNegotiationTryCount {
		b.sendPathNegotiationRequestLocked(maxOutSlot, int16(localUtility), now)
		b.negotiationAttemptTimes = append(b.negotiationAttemptTimes, now)
	}
}

func (b *Bond) sendPathNegotiationRequestLocked(s *pathSlot, localUtility int16, now int64) {
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(localUtility))
	b.sendControlPacketLocked(s, VerbPathNegotiationRequest, payload, now)
}

// ProcessIncomingPathNegotiationRequest handles a peer's suggestion of its
// preferred path, per spec.md §4.9's tie-break rule.
func (b *Bond) ProcessIncomingPathNegotiationRequest(now int64, path *Path, remoteUtility int16) {
	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()

	if b.reselectPolicy != ReselectOptimize {
		return
	}
	if b.lastPathNegotiationCheck == 0 {
		return
	}

	slotIdx := -1
	for i, s := range b.paths {
		if s != nil && s.p == path {
			slotIdx = i
			break
		}
	}
	if slotIdx == NoPathSlot || slotIdx == -1 {
		return
	}

	switch {
	case remoteUtility > b.lastLocalUtility:
		b.negotiatedPathIdx = slotIdx
		b.paths[slotIdx].negotiated = true
		b.log.logf("adopting peer-suggested path slot=%d (remote utility %d > local %d)", slotIdx, remoteUtility, b.lastLocalUtility)
	case remoteUtility < b.lastLocalUtility:
		b.log.logf("ignore petition for slot=%d (remote utility %d < local %d)", slotIdx, remoteUtility, b.lastLocalUtility)
	default:
		if b.controller.localPeerID > b.peer.PeerID() {
			b.negotiatedPathIdx = slotIdx
			b.paths[slotIdx].negotiated = true
			b.log.logf("adopting peer-suggested path slot=%d on tie-break (local id larger)", slotIdx)
		} else {
			b.log.logf("ignore petition for slot=%d (tie, remote id larger)", slotIdx)
		}
	}
}
