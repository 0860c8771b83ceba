package bond

import (
	"testing"
	"time"
)

func newTestBond(t *testing.T, policy int, configure func(*BondTemplate)) (*Bond, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport(map[int64]string{1: "eth0", 2: "eth1"})
	ctrl := NewController(transport)
	peer := &fakePeer{id: 0xAA, multipath: true, protoVersion: 1}

	ctrl.AddCustomLink("t", NewLink("eth0", 0, true, "", IPVPrefAny, SlaveModePrimary))
	ctrl.AddCustomLink("t", NewLink("eth1", 0, false, "", IPVPrefAny, SlaveModeSpare))

	tmpl := DefaultBondTemplate(policy)
	tmpl.FailoverInterval = 2000 * time.Millisecond
	if configure != nil {
		configure(tmpl)
	}
	ctrl.AddCustomPolicy("t", tmpl)
	ctrl.AssignPolicyToPeer(peer.id, "t")

	b := ctrl.CreateTransportTriggeredBond(peer, transport)
	return b, transport
}

func nominateTwo(t *testing.T, b *Bond, now int64) (*Path, *Path) {
	t.Helper()
	pa := NewPath(1, udpAddr(1), now)
	pb := NewPath(2, udpAddr(2), now)
	if !b.NominatePath(pa, now) {
		t.Fatalf("nominate A failed")
	}
	if !b.NominatePath(pb, now) {
		t.Fatalf("nominate B failed")
	}
	return pa, pb
}

func TestActiveBackupFailover(t *testing.T) {
	b, _ := newTestBond(t, PolicyActiveBackup, nil)
	now := int64(1_000_000)
	pa, pb := nominateTwo(t, b, now)

	// let both paths clear the in-trial window and settle as eligible.
	now += OptimizeInterval.Milliseconds() + 1
	pa.touchIn(now)
	pb.touchIn(now)

	b.pathsMu.Lock()
	b.curateLocked(now, false)
	b.processActiveBackupTasksLocked(now)
	b.pathsMu.Unlock()

	p, ok := b.GetPath(now, NoFlow)
	if !ok || p != pa {
		t.Fatalf("expected active path A, got %v ok=%v", p, ok)
	}

	// stop refreshing A; let it go stale past the failover interval.
	now += b.failoverInterval.Milliseconds() + 1
	pb.touchIn(now)

	b.pathsMu.Lock()
	b.curateLocked(now, false)
	b.processActiveBackupTasksLocked(now)
	abIdx := b.abPathIdx
	changedAt := b.lastActiveBackupPathChange
	b.pathsMu.Unlock()

	if abIdx != 1 {
		t.Fatalf("expected failover to slot 1 (path B), got slot %d", abIdx)
	}
	if changedAt != now {
		t.Fatalf("expected lastActiveBackupPathChange stamped to %d, got %d", now, changedAt)
	}
}

func TestRoundRobinStriping(t *testing.T) {
	b, _ := newTestBond(t, PolicyBalanceRR, func(tmpl *BondTemplate) {
		tmpl.PacketsPerLink = 3
	})
	now := int64(1_000_000)
	nominateTwo(t, b, now)

	b.pathsMu.Lock()
	b.curateLocked(now, true)
	b.pathsMu.Unlock()

	if n := b.numBonded(); n != 2 {
		t.Fatalf("expected 2 bonded paths, got %d", n)
	}

	var seq []int
	for i := 0; i < 6; i++ {
		p, ok := b.GetPath(now, NoFlow)
		if !ok {
			t.Fatalf("GetPath failed at iteration %d", i)
		}
		if p.LocalSocket() == 1 {
			seq = append(seq, 0)
		} else {
			seq = append(seq, 1)
		}
	}
	want := []int{0, 0, 0, 1, 1, 1}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("RR sequence mismatch at %d: got %v want %v", i, seq, want)
		}
	}
}

func TestXORDeterminism(t *testing.T) {
	b, _ := newTestBond(t, PolicyBalanceXOR, nil)
	now := int64(1_000_000)
	nominateTwo(t, b, now)

	b.pathsMu.Lock()
	b.curateLocked(now, true)
	b.pathsMu.Unlock()

	p1, ok1 := b.GetPath(now, 7)
	p2, ok2 := b.GetPath(now, 7)
	if !ok1 || !ok2 || p1 != p2 {
		t.Fatalf("expected flow 7 to stick to the same path across calls")
	}

	p3, ok3 := b.GetPath(now, 8)
	if !ok3 {
		t.Fatalf("expected a path for flow 8")
	}
	if p3 == p1 {
		t.Fatalf("expected flow 8 to land on the other bonded path (7%%2 != 8%%2)")
	}
}

func TestBalanceAwareWeighting(t *testing.T) {
	b, _ := newTestBond(t, PolicyBalanceAware, nil)
	now := int64(1_000_000)
	nominateTwo(t, b, now)

	b.pathsMu.Lock()
	b.curateLocked(now, true)
	// hand-set allocations as if a quality round already ran: A=200, B=55.
	for _, s := range b.paths {
		if s == nil {
			continue
		}
		if s.link.IfName() == "eth0" {
			s.allocation = 200
		} else {
			s.allocation = 55
		}
	}
	b.pathsMu.Unlock()

	// CreateFlow exercises assignFlowToBondedPathLocked's weighted walk;
	// GetPath with no flow id instead does a uniform random bonded pick.
	const trials = 10000
	countA, countB := 0, 0
	for i := int32(0); i < trials; i++ {
		f, ok := b.CreateFlow(NoPathSlot, i, byte(i%256), now)
		if !ok {
			t.Fatalf("CreateFlow failed at %d", i)
		}
		if f.AssignedPathSlot == 0 {
			countA++
		} else {
			countB++
		}
		b.ForgetFlows(0, true, now)
	}
	gotRatio := float64(countA) / float64(trials)
	wantRatio := 200.0 / 255.0
	if diff := gotRatio - wantRatio; diff < -0.05 || diff > 0.05 {
		t.Fatalf("balance-aware ratio off: got %.3f want ~%.3f", gotRatio, wantRatio)
	}
}

func TestNominatePathOverflowIsSilentlyDropped(t *testing.T) {
	b, _ := newTestBond(t, PolicyBroadcast, nil)
	now := int64(1_000_000)

	accepted := 0
	for i := 0; i < MaxPaths+4; i++ {
		sock := int64(i%2) + 1 // alternate between the two registered links
		p := NewPath(sock, udpAddr(1000+i), now)
		if b.NominatePath(p, now) {
			accepted++
		}
	}
	if accepted != MaxPaths {
		t.Fatalf("expected exactly %d accepted nominations, got %d", MaxPaths, accepted)
	}
}

func TestCurateWithZeroFailoverIntervalMarksNothingAlive(t *testing.T) {
	b, _ := newTestBond(t, PolicyActiveBackup, func(tmpl *BondTemplate) {
		tmpl.FailoverInterval = 0
	})
	now := int64(1_000_000)
	nominateTwo(t, b, now)

	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()
	for _, s := range b.paths {
		if s != nil && s.alive {
			t.Fatalf("expected no path to be alive with failover_interval=0")
		}
	}
}

func TestBalancePolicyWithNoPathsIsHealthy(t *testing.T) {
	b, _ := newTestBond(t, PolicyBalanceXOR, nil)
	now := int64(1_000_000)

	b.pathsMu.Lock()
	b.curateLocked(now, true)
	b.pathsMu.Unlock()

	if !b.Healthy() {
		t.Fatalf("expected a balance-* bond with zero total links to be vacuously healthy")
	}
}

func TestFlowTableEvictsOldestOnOverflow(t *testing.T) {
	ft := newFlowTable()
	now := int64(1000)
	for i := int32(0); i < 5; i++ {
		f := newFlow(i, now)
		f.lastActivity = now + int64(i) // later id = more recently active
		ft.flows[i] = f
	}
	oldest, ok := ft.forgetOldest(now + 100)
	if !ok || oldest.ID != 0 {
		t.Fatalf("expected flow 0 (smallest lastActivity) to be evicted, got %+v ok=%v", oldest, ok)
	}
	if ft.size() != 4 {
		t.Fatalf("expected 4 remaining flows, got %d", ft.size())
	}
}
