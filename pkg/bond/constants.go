package bond

import "time"

// Policy codes, mirroring the original engine's ZT_BOND_POLICY_* values.
const (
	PolicyNone int = iota
	PolicyActiveBackup
	PolicyBroadcast
	PolicyBalanceRR
	PolicyBalanceXOR
	PolicyBalanceAware
)

// ReselectPolicy governs when the active-backup controller will move off a
// currently-active path in favor of a better one.
type ReselectPolicy int

const (
	ReselectAlways ReselectPolicy = iota
	ReselectBetter
	ReselectOptimize
)

// Address-family preference for a link, per spec.md §3.
const (
	IPVPrefAny           = 0
	IPVPrefV4Only        = 4
	IPVPrefV6Only        = 6
	IPVPrefV4PreferredV6 = 46
	IPVPrefV6PreferredV4 = 64
)

// SlaveMode distinguishes user-designated primary links from spares.
type SlaveMode int

const (
	SlaveModeSpare SlaveMode = iota
	SlaveModePrimary
)

// MaxPaths bounds the per-bond slotted path array. Slot index is a stable
// identity referenced by the flow table and the failover queue.
const MaxPaths = 16

// NoPathSlot is the sentinel for "no slot assigned", matching spec.md §9's
// guidance to use MaxPaths as the unset value instead of leaving it
// uninitialized.
const NoPathSlot = MaxPaths

// NoFlow marks an outgoing packet as not belonging to any flow.
const NoFlow int32 = -1

// FlowMax bounds the per-bond flow table; the oldest flow is evicted on
// overflow. Implementation-defined cap per spec.md §6.
const FlowMax = 65535

// QoS protocol sizing.
const (
	QoSTableSize        = 128
	QoSMaxOutstanding    = 128
	QoSAckDivisor        = 4 // track 3 of every 4 packets: id & (divisor-1) != 0
	QoSMaxPacketSize     = QoSTableSize * 10
	qosRecordEntrySize   = 8 + 2 // packet id (u64) + holding time (u16)
)

// QoSRecordTimeout is how long an outgoing QoS record may sit unacknowledged
// before it is reclassified as lost. Fixed per spec.md §4.5.
const QoSRecordTimeout = 5000 * time.Millisecond

// Timing defaults, all overridable per policy template.
const (
	FailoverDefaultInterval = 5000 * time.Millisecond
	FailoverMinInterval     = 250 * time.Millisecond
	OptimizeInterval        = 60 * time.Second
	BackgroundTaskMinInterval = 200 * time.Millisecond
	PathExpiration          = 5 * time.Minute
	PathNegotiationCutoffTime = 15 * time.Second
	PathNegotiationTryCount   = 3
	EchosPerFailoverInterval  = 4
	StatusLogInterval         = 10 * time.Second
	defaultPathRefractoryPeriod = 8 * time.Second
)

// Failover-score handicaps applied during active-backup queue construction.
const (
	HandicapPreferred  = 20
	HandicapPrimary    = 10
	HandicapNegotiated = 5
)

// ActiveBackupOptimizeMinThreshold is the fraction of the active path's
// allocation that a candidate's failover-score advantage must exceed before
// the "optimize" re-selection policy will switch paths.
const ActiveBackupOptimizeMinThreshold = 0.10

// Acceptable-quality ceilings used to normalize raw samples before scoring.
const (
	DefaultMaxAcceptableLatencyMs         = 100.0
	DefaultMaxAcceptablePacketDelayVarMs  = 50.0
	DefaultMaxAcceptablePacketLossRatio   = 0.10
	DefaultMaxAcceptablePacketErrorRatio  = 0.10
)

// Quality-weight indices, matching the original's ZT_QOS_*_IDX ordering.
const (
	qwLatencyIdx = iota
	qwJitterIdx
	qwLossIdx
	qwErrorIdx
	qwThroughputMeanIdx
	qwScopeIdx
	qwWeightCount
)

// DefaultQualityWeights sum to 1.0, matching spec.md §4.5's defaults.
func DefaultQualityWeights() [qwWeightCount]float32 {
	return [qwWeightCount]float32{
		qwLatencyIdx:        0.3,
		qwJitterIdx:         0.3,
		qwLossIdx:           0.1,
		qwErrorIdx:          0.1,
		qwThroughputMeanIdx: 0.1,
		qwScopeIdx:          0.1,
	}
}

// sampleBufferCapacity bounds the latency/validity/QoS-record-size ring
// buffers kept per path.
const sampleBufferCapacity = 64
