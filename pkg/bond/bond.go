package bond

import (
	"sync"
	"time"
)

// Bond is the per-peer bonding state machine: it owns a slotted array of
// path records, a flow table, and the policy-specific selection state. Paths
// themselves are shared handles with the outer routing layer; everything
// mutable about how the bond treats a path lives in the corresponding
// pathSlot, never on the Path itself.
type Bond struct {
	controller  *Controller
	peer        PeerInfo
	transport   Transport
	clock       Clock
	log         bondLogger
	policyAlias string
	policy      int

	failoverInterval          time.Duration
	upDelay                   time.Duration
	downDelay                 time.Duration
	monitorInterval           time.Duration
	qualityEstimationInterval time.Duration
	qosSendInterval           time.Duration
	packetsPerLink            int
	reselectPolicy            ReselectPolicy
	qualityWeights            [qwWeightCount]float32
	maxAcceptableLatencyMs        float32
	maxAcceptablePacketDelayVarMs float32
	maxAcceptablePacketLossRatio  float32
	maxAcceptablePacketErrorRatio float32

	userHasSpecifiedLinks                bool
	userHasSpecifiedPrimaryLink           bool
	userHasSpecifiedFailoverInstructions  bool
	userHasSpecifiedLinkSpeeds            bool

	pathsMu   sync.Mutex
	paths     [MaxPaths]*pathSlot
	bondedMap map[int]int // bonded_idx -> slot index

	numAliveLinks int
	numTotalLinks int
	healthy       bool

	rrIdx         int
	rrPacketsSent int

	abPathIdx                   int
	abFailoverQueue             []int
	lastActiveBackupPathChange  int64
	negotiatedPathIdx           int
	lastPathNegotiationCheck    int64
	negotiationAttemptTimes     []int64
	negotiationZeroUtilitySince int64
	lastLocalUtility            int16

	lastQualityEstimation int64
	lastBackgroundTask    int64
	overheadBytes         uint64

	flowsMu sync.Mutex
	flows   *flowTable
}

func newBond(c *Controller, policy int, peer PeerInfo, transport Transport) *Bond {
	return newBondFromTemplate(c, DefaultBondTemplate(policy), peer, transport, "")
}

func newBondFromTemplate(c *Controller, tmpl *BondTemplate, peer PeerInfo, transport Transport, templateName string) *Bond {
	b := &Bond{
		controller:  c,
		peer:        peer,
		transport:   transport,
		clock:       SystemClock{},
		policyAlias: templateName,
		policy:      tmpl.Policy,

		failoverInterval:              tmpl.FailoverInterval,
		upDelay:                       tmpl.UpDelay,
		downDelay:                     tmpl.DownDelay,
		packetsPerLink:                tmpl.PacketsPerLink,
		reselectPolicy:                tmpl.ReselectPolicy,
		qualityWeights:                tmpl.QualityWeights,
		maxAcceptableLatencyMs:        tmpl.MaxAcceptableLatencyMs,
		maxAcceptablePacketDelayVarMs: tmpl.MaxAcceptablePacketDelayVarMs,
		maxAcceptablePacketLossRatio:  tmpl.MaxAcceptablePacketLossRatio,
		maxAcceptablePacketErrorRatio: tmpl.MaxAcceptablePacketErrorRatio,

		bondedMap:         make(map[int]int),
		abPathIdx:         NoPathSlot,
		negotiatedPathIdx: NoPathSlot,
		flows:             newFlowTable(),
	}
	b.log = bondLogger{peerID: peer.PeerID(), policyAlias: policyName(tmpl.Policy)}
	b.recomputeDerivedIntervals()
	return b
}

// recomputeDerivedIntervals derives the monitor/quality/QoS intervals from
// failoverInterval. FailoverMinInterval is a configuration-time floor (the
// config loader is expected to enforce it on user input) — curate() itself
// must still behave correctly at failoverInterval=0, per spec.md §8's
// boundary behavior, so no clamping happens here.
func (b *Bond) recomputeDerivedIntervals() {
	b.monitorInterval = b.failoverInterval / time.Duration(EchosPerFailoverInterval)
	b.qualityEstimationInterval = 2 * b.failoverInterval
	b.qosSendInterval = 2 * b.failoverInterval
}

// SetBondParameters applies a fresh set of tunables to a live bond, per
// spec.md §9's Bond::setBondParameters in the original.
func (b *Bond) SetBondParameters(tmpl *BondTemplate) {
	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()
	b.failoverInterval = tmpl.FailoverInterval
	b.upDelay = tmpl.UpDelay
	b.downDelay = tmpl.DownDelay
	b.packetsPerLink = tmpl.PacketsPerLink
	b.reselectPolicy = tmpl.ReselectPolicy
	b.qualityWeights = tmpl.QualityWeights
	b.maxAcceptableLatencyMs = tmpl.MaxAcceptableLatencyMs
	b.maxAcceptablePacketDelayVarMs = tmpl.MaxAcceptablePacketDelayVarMs
	b.maxAcceptablePacketLossRatio = tmpl.MaxAcceptablePacketLossRatio
	b.maxAcceptablePacketErrorRatio = tmpl.MaxAcceptablePacketErrorRatio
	b.recomputeDerivedIntervals()
}

// Policy returns the bond's active policy code.
func (b *Bond) Policy() int { return b.policy }

// Healthy reports the most recently computed health status.
func (b *Bond) Healthy() bool {
	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()
	return b.healthy
}

// NominatePath admits a newly discovered path into the bond, per spec.md
// §4.3. Returns false if the nomination was rejected (disallowed link,
// duplicate path, or the slot array is already full) — all silent,
// per-peer-idempotent outcomes per spec.md §7.
func (b *Bond) NominatePath(path *Path, now int64) bool {
	link := b.controller.GetLinkBySocket(b.policyAlias, path.LocalSocket())
	if !b.controller.LinkAllowed(b.policyAlias, link) {
		return false
	}

	b.pathsMu.Lock()
	defer b.pathsMu.Unlock()

	freeIdx := -1
	for i, s := range b.paths {
		if s == nil {
			if freeIdx < 0 {
				freeIdx = i
			}
			continue
		}
		if s.p == path {
			return false // duplicate nomination
		}
	}
	if freeIdx < 0 {
		b.log.warnf("dropping path nomination, slot array full (max=%d)", MaxPaths)
		return false
	}

	slot := newPathSlot(path, now)
	slot.link = link
	slot.ipvPref = link.IPVPref()
	slot.mode = link.Mode()
	slot.enabled = link.Enabled()
	b.paths[freeIdx] = slot

	b.recomputeOnlyPathOnLink(link)
	b.curateLocked(now, true)
	b.estimateQualityLocked(now)

	b.log.logf("nominated path slot=%d link=%s remote=%s", freeIdx, link.IfName(), path.String())
	return true
}

// recomputeOnlyPathOnLink updates the onlyPathOnLink flag for every slot
// sharing the given link, per spec.md §4.3 step 5.
func (b *Bond) recomputeOnlyPathOnLink(link *Link) {
	count := 0
	for _, s := range b.paths {
		if s != nil && s.link == link {
			count++
		}
	}
	only := count == 1
	for _, s := range b.paths {
		if s != nil && s.link == link {
			s.onlyPathOnLink = only
		}
	}
}

// curateLocked is the eligibility state machine, evaluated per path per
// tick. Caller must hold pathsMu.
func (b *Bond) curateLocked(now int64, rebuildRequested bool) {
	for _, s := range b.paths {
		if s == nil {
			continue
		}

		alive := s.p.Age(now) < b.failoverInterval.Milliseconds()
		acceptableAge := s.p.Age(now) < (b.failoverInterval + b.downDelay).Milliseconds()
		satisfiedUpDelay := (now - s.lastAliveToggle) >= b.upDelay.Milliseconds()
		inTrial := (now - s.nominatedAt) < OptimizeInterval.Milliseconds()

		newEligible := s.allowed() && ((acceptableAge && satisfiedUpDelay) || inTrial)

		if alive != s.alive {
			s.lastAliveToggle = now
		}
		s.alive = alive

		if s.eligible && !newEligible {
			s.adjustRefractoryPeriod(now, defaultPathRefractoryPeriod.Milliseconds(), true)
			if s.bonded {
				s.bonded = false
				rebuildRequested = true
			}
			if usesFlowHashing(b.policy) {
				s.shouldReallocateFlows = true
			}
			b.log.logf("path slot link=%s went ineligible", linkName(s.link))
		} else if !s.eligible && newEligible {
			s.adjustRefractoryPeriod(now, defaultPathRefractoryPeriod.Milliseconds(), false)
			rebuildRequested = true
			b.log.logf("path slot link=%s became eligible", linkName(s.link))
		}
		s.eligible = newEligible
	}

	numAlive, numTotal := 0, 0
	for _, s := range b.paths {
		if s == nil || !s.allowed() {
			continue
		}
		numTotal++
		if s.alive {
			numAlive++
		}
	}
	b.numAliveLinks = numAlive
	b.numTotalLinks = numTotal

	healthy := b.deriveHealthy(numAlive, numTotal)
	if healthy != b.healthy {
		b.healthy = healthy
		if healthy {
			b.log.logf("bond health HEALTHY (alive=%d/%d)", numAlive, numTotal)
		} else {
			b.log.warnf("bond health DEGRADED (alive=%d/%d)", numAlive, numTotal)
		}
	}

	if isBalancePolicy(b.policy) && rebuildRequested {
		b.rebuildBondedSet(now)
	}
}

func (b *Bond) deriveHealthy(numAlive, numTotal int) bool {
	switch b.policy {
	case PolicyActiveBackup:
		return numAlive >= 2
	case PolicyBroadcast:
		return numAlive >= 1
	default:
		return numAlive == numTotal
	}
}

// rebuildBondedSet regroups eligible paths by owning link and applies each
// link's address-family preference, per spec.md §4.3. Caller holds pathsMu.
func (b *Bond) rebuildBondedSet(now int64) {
	for _, s := range b.paths {
		if s != nil {
			s.bonded = false
		}
	}

	byLink := make(map[*Link][]*pathSlot)
	var linkOrder []*Link
	for _, s := range b.paths {
		if s == nil || !s.allowed() || !s.eligible {
			continue
		}
		if _, seen := byLink[s.link]; !seen {
			linkOrder = append(linkOrder, s.link)
		}
		byLink[s.link] = append(byLink[s.link], s)
	}

	var accepted []*pathSlot
	for _, link := range linkOrder {
		candidates := byLink[link]
		switch link.IPVPref() {
		case IPVPrefAny:
			accepted = append(accepted, candidates...)
		case IPVPrefV4Only, IPVPrefV6Only:
			for _, s := range candidates {
				if s.preferred() {
					accepted = append(accepted, s)
				}
			}
		case IPVPrefV4PreferredV6, IPVPrefV6PreferredV4:
			var matching []*pathSlot
			for _, s := range candidates {
				if s.preferred() {
					matching = append(matching, s)
				}
			}
			if len(matching) > 0 {
				accepted = append(accepted, matching...)
			} else {
				accepted = append(accepted, candidates...)
			}
		default:
			accepted = append(accepted, candidates...)
		}
	}

	b.bondedMap = make(map[int]int, len(accepted))
	bondedIdx := 0
	for i, s := range b.paths {
		if s == nil {
			continue
		}
		for _, a := range accepted {
			if a == s {
				s.bonded = true
				b.bondedMap[bondedIdx] = i
				bondedIdx++
				break
			}
		}
	}

	if b.policy == PolicyBalanceRR {
		b.rrIdx = 0
		b.rrPacketsSent = 0
	}
}

func linkName(l *Link) string {
	if l == nil {
		return "?"
	}
	return l.IfName()
}

// numBonded returns the current size of the bonded set. Caller holds pathsMu.
func (b *Bond) numBonded() int { return len(b.bondedMap) }
