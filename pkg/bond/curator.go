package bond

// processBackgroundBondTasks is the periodic tick described in spec.md
// §4.10: curate, quality estimation, heartbeats/QoS emission,
// policy-specific work, and (for active-backup under the optimize
// re-selection policy) path negotiation.
func (b *Bond) processBackgroundBondTasks(now int64) {
	if !b.peer.LocalMultipathSupported() {
		return
	}
	if now-b.lastBackgroundTask < BackgroundTaskMinInterval.Milliseconds() {
		return
	}
	b.lastBackgroundTask = now

	b.pathsMu.Lock()
	b.curateLocked(now, false)
	if now-b.lastQualityEstimation >= b.qualityEstimationInterval.Milliseconds() {
		b.estimateQualityLocked(now)
	}
	b.emitQoSAndHeartbeatsLocked(now)

	switch b.policy {
	case PolicyActiveBackup:
		b.processActiveBackupTasksLocked(now)
		if b.reselectPolicy == ReselectOptimize {
			b.pathNegotiationCheckLocked(now)
		}
	case PolicyBalanceRR:
		// RR's only periodic concern is the cursor, which curateLocked's
		// rebuild already resets when the bonded set changes.
	}
	b.pathsMu.Unlock()

	if isBalancePolicy(b.policy) {
		b.reconcileFlows(now)
	}
}
