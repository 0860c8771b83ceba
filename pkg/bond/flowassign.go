package bond

// CreateFlow inserts a new flow record, or returns the existing one if the
// flow id is already known, per spec.md §4.6. When pathSlotIdx is
// NoPathSlot the flow is assigned by policy; otherwise (an inbound flow
// sighting) it is pinned directly to that slot. Lock order is paths then
// flows, per spec.md §5.
func (b *Bond) CreateFlow(pathSlotIdx int, flowID int32, entropy byte, now int64) (*Flow, bool) {
	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()
	b.flowsMu.Lock()
	defer b.flowsMu.Unlock()

	if f, ok := b.flows.flows[flowID]; ok {
		return f, true
	}

	if pathSlotIdx == NoPathSlot && b.policy != PolicyBroadcast && b.numBonded() == 0 && b.abPathIdx == NoPathSlot {
		return nil, false
	}

	if b.flows.size() >= FlowMax {
		if oldest, ok := b.flows.forgetOldest(now); ok {
			b.decrementPathFlowCountLocked(oldest)
		}
	}

	f := newFlow(flowID, now)
	var slotIdx int
	var ok bool
	if pathSlotIdx != NoPathSlot && b.paths[pathSlotIdx] != nil {
		slotIdx, ok = pathSlotIdx, true
	} else {
		slotIdx, ok = b.assignFlowToBondedPathLocked(f, entropy, now)
	}
	if !ok {
		return nil, false
	}
	f.assignPath(slotIdx, now)
	b.paths[slotIdx].assignedFlowCount++
	b.flows.flows[flowID] = f
	return f, true
}

// assignFlowToBondedPathLocked implements the per-policy flow-to-path
// assignment of spec.md §4.6. Caller holds pathsMu and flowsMu.
func (b *Bond) assignFlowToBondedPathLocked(f *Flow, entropy byte, now int64) (int, bool) {
	switch b.policy {
	case PolicyBalanceXOR:
		n := b.numBonded()
		if n == 0 {
			return 0, false
		}
		bondedIdx := int(absInt32(f.ID)) % n
		slotIdx, ok := b.bondedMap[bondedIdx]
		return slotIdx, ok
	case PolicyBalanceAware:
		// affinity is treated as equivalent to allocation here; no separate
		// affinity signal is computed upstream of this package.
		return b.weightedBondedSlot(entropy)
	case PolicyActiveBackup:
		if b.abPathIdx == NoPathSlot {
			return 0, false
		}
		return b.abPathIdx, true
	case PolicyBalanceRR:
		n := b.numBonded()
		if n == 0 {
			return 0, false
		}
		slotIdx, ok := b.bondedMap[int(entropy)%n]
		return slotIdx, ok
	default:
		return 0, false
	}
}

// ForgetFlows deletes flows by idle age, or the single oldest flow when
// oldestOnly is set. Implements argmax(age) straightforwardly, per the
// resolution of the original's drifting age computation (spec.md §9).
func (b *Bond) ForgetFlows(maxAgeMs int64, oldestOnly bool, now int64) {
	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()
	b.flowsMu.Lock()
	defer b.flowsMu.Unlock()

	if oldestOnly {
		if f, ok := b.flows.forgetOldest(now); ok {
			b.decrementPathFlowCountLocked(f)
		}
		return
	}
	b.flows.forgetOlderThan(maxAgeMs, now, func(f *Flow) {
		b.decrementPathFlowCountLocked(f)
	})
}

func (b *Bond) decrementPathFlowCountLocked(f *Flow) {
	if f.AssignedPathSlot != NoPathSlot && b.paths[f.AssignedPathSlot] != nil {
		b.paths[f.AssignedPathSlot].assignedFlowCount--
	}
}

// touchFlow records traffic against a flow, auto-creating it on first sight
// per spec.md §3 ("Flows are created on first seen or first send").
func (b *Bond) touchFlow(flowID int32, now int64, length uint64, outgoing bool) {
	b.flowsMu.Lock()
	f, ok := b.flows.flows[flowID]
	b.flowsMu.Unlock()
	if !ok {
		var created bool
		f, created = b.CreateFlow(NoPathSlot, flowID, fastEntropyByte(), now)
		if !created {
			return
		}
	}

	b.flowsMu.Lock()
	f.lastActivity = now
	if outgoing {
		f.BytesOut += length
	} else {
		f.BytesIn += length
	}
	b.flowsMu.Unlock()
}

// reconcileFlows reassigns any flow whose pinned path slot has fallen out of
// the bonded set, maintaining the invariant that an assigned flow's path is
// always bonded (spec.md §8 invariant 3). Run as part of the balance-policy
// background task.
func (b *Bond) reconcileFlows(now int64) {
	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()
	b.flowsMu.Lock()
	defer b.flowsMu.Unlock()

	for _, f := range b.flows.flows {
		slotIdx := f.AssignedPathSlot
		if slotIdx != NoPathSlot && b.paths[slotIdx] != nil && b.paths[slotIdx].bonded {
			continue
		}
		if slotIdx != NoPathSlot && b.paths[slotIdx] != nil {
			b.paths[slotIdx].assignedFlowCount--
		}
		newSlot, ok := b.assignFlowToBondedPathLocked(f, fastEntropyByte(), now)
		if !ok {
			f.AssignedPathSlot = NoPathSlot
			continue
		}
		f.assignPath(newSlot, now)
		b.paths[newSlot].assignedFlowCount++
	}
}
