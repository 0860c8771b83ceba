package bond

import (
	"encoding/binary"
	"testing"
)

func TestQoSRoundTrip(t *testing.T) {
	receiver, _ := newTestBond(t, PolicyBroadcast, nil)
	now := int64(1_000_000)
	p := NewPath(1, udpAddr(1), now)
	if !receiver.NominatePath(p, now) {
		t.Fatalf("nominate failed")
	}

	for i := uint64(1); i <= 50; i++ {
		id := i*4 + 1 // id & 3 != 0: a tracked packet id
		receiver.RecordIncomingPacket(p, id, 100, VerbFrame, NoFlow, now+int64(i))
	}

	receiver.pathsMu.Lock()
	rs := receiver.findSlot(p)
	if rs.packetsReceivedSinceLastQoS != 50 {
		t.Fatalf("expected 50 pending QoS records, got %d", rs.packetsReceivedSinceLastQoS)
	}
	payload := receiver.generateQoSPacketLocked(rs, now+200)
	pendingAfter := rs.packetsReceivedSinceLastQoS
	receiver.pathsMu.Unlock()

	if pendingAfter != 0 {
		t.Fatalf("expected packets_received_since_last_qos == 0 after draining, got %d", pendingAfter)
	}
	if len(payload) != 50*qosRecordEntrySize {
		t.Fatalf("expected %d bytes of QoS payload, got %d", 50*qosRecordEntrySize, len(payload))
	}

	id0 := binary.LittleEndian.Uint64(payload[0:8])
	holding0 := binary.LittleEndian.Uint16(payload[8:10])

	sender, _ := newTestBond(t, PolicyBroadcast, nil)
	sp := NewPath(1, udpAddr(2), now)
	if !sender.NominatePath(sp, now) {
		t.Fatalf("sender nominate failed")
	}

	sentAt := now - 10
	sender.pathsMu.Lock()
	ss := sender.findSlot(sp)
	ss.qosStatsOut[id0] = sentAt
	sender.pathsMu.Unlock()

	recvNow := now + 300
	sender.ReceivedQoS(sp, recvNow, []uint64{id0}, []uint16{holding0})

	wantLatency := float32((recvNow - sentAt - int64(holding0)) / 2)

	sender.pathsMu.Lock()
	gotLatency := ss.latencySamples.mean() // only sample pushed so far
	ackedAfter := ss.ackedRecords
	_, stillOutstanding := ss.qosStatsOut[id0]
	sender.pathsMu.Unlock()

	if gotLatency != wantLatency {
		t.Fatalf("latency sample mismatch: got %v want %v", gotLatency, wantLatency)
	}
	if ackedAfter != 1 {
		t.Fatalf("expected ackedRecords incremented to 1, got %d", ackedAfter)
	}
	if stillOutstanding {
		t.Fatalf("expected outstanding QoS record to be cleared after ack")
	}
}

func TestReceivedQoSClampsNegativeLatencyToZero(t *testing.T) {
	b, _ := newTestBond(t, PolicyBroadcast, nil)
	now := int64(1_000_000)
	p := NewPath(1, udpAddr(1), now)
	b.NominatePath(p, now)

	b.pathsMu.Lock()
	s := b.findSlot(p)
	s.qosStatsOut[42] = now
	b.pathsMu.Unlock()

	// holding time reported larger than the elapsed RTT: would be negative.
	b.ReceivedQoS(p, now+5, []uint64{42}, []uint16{100})

	b.pathsMu.Lock()
	got := s.latencySamples.mean()
	b.pathsMu.Unlock()
	if got != 0 {
		t.Fatalf("expected latency sample clamped to 0, got %v", got)
	}
}
