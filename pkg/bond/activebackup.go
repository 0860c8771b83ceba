package bond

// processActiveBackupTasksLocked runs the active-backup controller's
// periodic work: initial selection, failover-queue maintenance, score
// recomputation, and re-selection, per spec.md §4.8. Caller holds pathsMu.
func (b *Bond) processActiveBackupTasksLocked(now int64) {
	if b.abPathIdx == NoPathSlot {
		b.abInitialSelectionLocked()
	}
	b.abQueueMaintenanceLocked()
	b.abComputeFailoverScoresLocked()
	b.abPushMissingToFrontLocked()

	if b.abPathIdx == NoPathSlot {
		b.abDequeueNextLocked(now)
		return
	}

	active := b.paths[b.abPathIdx]
	if active == nil || !active.eligible {
		b.abDequeueNextLocked(now)
		return
	}
	b.abReselectLocked(now)
}

func (b *Bond) abInitialSelectionLocked() {
	if !b.userHasSpecifiedLinks {
		b.abPathIdx = b.firstEligibleSlot()
		return
	}
	if b.userHasSpecifiedPrimaryLink {
		nonPreferredPathIdx := NoPathSlot
		for i, s := range b.paths {
			if s == nil || !s.eligible || s.link == nil || !s.link.Primary() {
				continue
			}
			if s.preferred() {
				b.abPathIdx = i
				return
			}
			if nonPreferredPathIdx == NoPathSlot {
				nonPreferredPathIdx = i
			}
		}
		if nonPreferredPathIdx != NoPathSlot {
			b.abPathIdx = nonPreferredPathIdx
		}
		return
	}
	b.abPathIdx = b.firstEligibleSlot()
}

func (b *Bond) firstEligibleSlot() int {
	for i, s := range b.paths {
		if s != nil && s.eligible {
			return i
		}
	}
	return NoPathSlot
}

// abQueueMaintenanceLocked removes any queue entry whose path became
// ineligible since the last tick.
func (b *Bond) abQueueMaintenanceLocked() {
	kept := b.abFailoverQueue[:0:0]
	for _, idx := range b.abFailoverQueue {
		if s := b.paths[idx]; s != nil && s.eligible {
			kept = append(kept, idx)
		}
	}
	b.abFailoverQueue = kept
}

// abComputeFailoverScoresLocked rebuilds per-path failover scores, per
// spec.md §4.8's two branches (user failover-to chains vs. plain handicap).
func (b *Bond) abComputeFailoverScoresLocked() {
	if b.userHasSpecifiedFailoverInstructions {
		for _, s := range b.paths {
			if s == nil || !s.allowed() || !s.eligible {
				continue
			}
			handicap := 0
			if s.preferred() {
				handicap += HandicapPreferred
			}
			if s.link != nil && s.link.Primary() {
				handicap += HandicapPrimary
			}
			if s.failoverScore == 0 {
				if handicap != 0 {
					s.failoverScore = handicap
				} else {
					s.failoverScore = int(s.allocation)
				}
			}
			if s.link == nil || s.link.FailoverToLink() == "" {
				continue
			}
			for _, t := range b.paths {
				if t == nil || t.link == nil || t.link.IfName() != s.link.FailoverToLink() {
					continue
				}
				penalty := handicap - 10
				if !t.preferred() {
					penalty--
				}
				if penalty > t.failoverScore {
					t.failoverScore = penalty
				}
			}
		}
		return
	}

	for i, s := range b.paths {
		if s == nil || !s.allowed() || !s.eligible {
			continue
		}
		handicap := 0
		if s.preferred() {
			handicap += HandicapPreferred
		}
		if s.link != nil && s.link.Primary() && b.reselectPolicy != ReselectOptimize {
			handicap += HandicapPrimary
		}
		if i == b.negotiatedPathIdx {
			handicap += HandicapNegotiated
		}
		s.failoverScore = int(s.allocation) + handicap
	}
}

// abPushMissingToFrontLocked inserts every eligible path not already in the
// queue at the front, then runs a single bubble-up pass so higher-scoring
// entries drift forward — an insertion-with-bubble-up, not a full sort, per
// spec.md §4.8.
func (b *Bond) abPushMissingToFrontLocked() {
	for i, s := range b.paths {
		if s == nil || !s.allowed() || !s.eligible {
			continue
		}
		if !containsSlot(b.abFailoverQueue, i) {
			b.abFailoverQueue = append([]int{i}, b.abFailoverQueue...)
		}
	}
	for i := len(b.abFailoverQueue) - 1; i > 0; i-- {
		a, c := b.abFailoverQueue[i-1], b.abFailoverQueue[i]
		if b.paths[c].failoverScore > b.paths[a].failoverScore {
			b.abFailoverQueue[i-1], b.abFailoverQueue[i] = c, a
		}
	}
}

func containsSlot(queue []int, slot int) bool {
	for _, v := range queue {
		if v == slot {
			return true
		}
	}
	return false
}

// abDequeueNextLocked pops the queue front into the active slot, resets
// packet counters bond-wide, and stamps the last-change timestamp.
func (b *Bond) abDequeueNextLocked(now int64) {
	if len(b.abFailoverQueue) == 0 {
		return
	}
	next := b.abFailoverQueue[0]
	b.abFailoverQueue = b.abFailoverQueue[1:]
	b.abPathIdx = next
	for _, s := range b.paths {
		if s != nil {
			s.resetPacketCounts()
		}
	}
	b.lastActiveBackupPathChange = now
	b.log.logf("active-backup switched to slot=%d link=%s", next, linkName(b.paths[next].link))
}

// abReselectLocked implements the three re-selection policies of spec.md
// §4.8.
func (b *Bond) abReselectLocked(now int64) {
	if len(b.abFailoverQueue) == 0 {
		return
	}
	active := b.paths[b.abPathIdx]
	front := b.paths[b.abFailoverQueue[0]]

	switch b.reselectPolicy {
	case ReselectAlways:
		if active.link != nil && !active.link.Primary() && front.link != nil && front.link.Primary() {
			b.abDequeueNextLocked(now)
		}
	case ReselectBetter:
		if front.link != nil && front.link.Primary() && front.failoverScore > active.failoverScore {
			b.abDequeueNextLocked(now)
		}
	case ReselectOptimize:
		if front.negotiated {
			b.abDequeueNextLocked(now)
			return
		}
		if now-b.lastActiveBackupPathChange >= OptimizeInterval.Milliseconds() {
			threshold := ActiveBackupOptimizeMinThreshold * float64(active.allocation)
			if float64(front.failoverScore-active.failoverScore) > threshold {
				b.abDequeueNextLocked(now)
			}
		}
	}
}

// ForceRotate is the operator-triggered forced failover restored from the
// original's abForciblyRotateLink: it pops the next failover-queue entry
// regardless of current eligibility pressure.
func (b *Bond) ForceRotate(now int64) bool {
	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()
	if len(b.abFailoverQueue) == 0 {
		return false
	}
	b.abDequeueNextLocked(now)
	b.log.logf("forced active-backup rotation")
	return true
}
