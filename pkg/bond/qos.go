package bond

import "encoding/binary"

// generateQoSPacketLocked drains up to QOS_TABLE_SIZE inbound QoS records
// into the wire payload described in spec.md §6, consuming them from the
// path's inbound table. Caller holds pathsMu.
func (b *Bond) generateQoSPacketLocked(s *pathSlot, now int64) []byte {
	count := s.packetsReceivedSinceLastQoS
	if count > QoSTableSize {
		count = QoSTableSize
	}
	if count <= 0 {
		return nil
	}

	buf := make([]byte, 0, count*qosRecordEntrySize)
	sent := 0
	for id, recvAt := range s.qosStatsIn {
		if sent >= count {
			break
		}
		holding := uint16(now - recvAt)
		var entry [qosRecordEntrySize]byte
		binary.LittleEndian.PutUint64(entry[0:8], id)
		binary.LittleEndian.PutUint16(entry[8:10], holding)
		buf = append(buf, entry[:]...)
		delete(s.qosStatsIn, id)
		sent++
	}
	s.packetsReceivedSinceLastQoS -= sent
	s.lastQoSMeasurement = now
	return buf
}

// ReceivedQoS consumes a peer's QoS-measurement packet: for every
// (packet_id, holding_time) pair with a matching outstanding send record,
// push a latency sample of ((now-sent)-holding)/2 and clear the record, per
// spec.md §4.7.
func (b *Bond) ReceivedQoS(path *Path, now int64, ids []uint64, holdingTimes []uint16) {
	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()
	s := b.findSlot(path)
	if s == nil {
		return
	}
	s.qosRecordSizeSamples.push(len(ids))
	for i, id := range ids {
		sentAt, ok := s.qosStatsOut[id]
		if !ok {
			continue
		}
		rtt := now - sentAt
		latency := (rtt - int64(holdingTimes[i])) / 2
		if latency < 0 {
			latency = 0 // spec.md §8 invariant 7: never a negative sample
		}
		s.latencySamples.push(float32(latency))
		s.ackedRecords++
		delete(s.qosStatsOut, id)
	}
}

// emitQoSAndHeartbeatsLocked sends due QoS-measurement and ECHO heartbeat
// packets for every allowed path, per spec.md §4.7/§4.10 step 3. Caller
// holds pathsMu.
func (b *Bond) emitQoSAndHeartbeatsLocked(now int64) {
	for _, s := range b.paths {
		if s == nil || !s.allowed() {
			continue
		}

		if now-s.p.lastOut.Load() >= b.monitorInterval.Milliseconds() {
			b.sendHeartbeatLocked(s, now)
		}

		if now-s.lastQoSMeasurement >= b.qosSendInterval.Milliseconds() {
			if payload := b.generateQoSPacketLocked(s, now); payload != nil {
				b.sendControlPacketLocked(s, VerbQoSMeasurement, payload, now)
			}
		}
	}
}

func (b *Bond) sendHeartbeatLocked(s *pathSlot, now int64) {
	if b.peer.RemoteProtocolVersion() < 1 {
		return
	}
	b.sendControlPacketLocked(s, VerbEcho, nil, now)
}

// sendControlPacketLocked frames and transmits a bond-originated control
// packet, tracking it against the ambient overhead counter restored from
// the original's per-bond accounting (spec.md SPEC_FULL §4).
func (b *Bond) sendControlPacketLocked(s *pathSlot, verb Verb, payload []byte, now int64) {
	armored, err := b.peer.Armor(verb, payload)
	if err != nil {
		b.log.warnf("failed to armor %v packet: %v", verb, err)
		return
	}
	if err := b.transport.PutPacket(s.p.LocalSocket(), s.p.RemoteAddr(), armored); err != nil {
		b.log.warnf("failed to send %v packet: %v", verb, err)
		return
	}
	s.p.touchOut(now)
	if verb.isFrame() {
		s.packetsOut++
	}
	b.overheadBytes += uint64(len(armored))
}
