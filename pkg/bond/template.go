package bond

import "time"

// BondTemplate is a named, reusable set of policy parameters a Bond may be
// instantiated from. It carries no per-peer state — only the tunables a new
// Bond copies at construction time.
type BondTemplate struct {
	Policy int

	FailoverInterval time.Duration
	UpDelay          time.Duration
	DownDelay        time.Duration
	PacketsPerLink   int
	ReselectPolicy   ReselectPolicy
	QualityWeights   [qwWeightCount]float32

	MaxAcceptableLatencyMs        float32
	MaxAcceptablePacketDelayVarMs float32
	MaxAcceptablePacketLossRatio  float32
	MaxAcceptablePacketErrorRatio float32
}

// DefaultBondTemplate returns the stock tunables for a policy code, matching
// spec.md §6's documented defaults.
func DefaultBondTemplate(policy int) *BondTemplate {
	return &BondTemplate{
		Policy:                        policy,
		FailoverInterval:              FailoverDefaultInterval,
		UpDelay:                       0,
		DownDelay:                     0,
		PacketsPerLink:                0,
		ReselectPolicy:                ReselectOptimize,
		QualityWeights:                DefaultQualityWeights(),
		MaxAcceptableLatencyMs:        DefaultMaxAcceptableLatencyMs,
		MaxAcceptablePacketDelayVarMs: DefaultMaxAcceptablePacketDelayVarMs,
		MaxAcceptablePacketLossRatio:  DefaultMaxAcceptablePacketLossRatio,
		MaxAcceptablePacketErrorRatio: DefaultMaxAcceptablePacketErrorRatio,
	}
}

// SetUserQualityWeights installs custom weights, rejecting the set when the
// six values don't sum to 1±0.01, per spec.md §4.5.
func (t *BondTemplate) SetUserQualityWeights(w [qwWeightCount]float32) bool {
	var sum float32
	for _, v := range w {
		sum += v
	}
	if sum < 0.99 || sum > 1.01 {
		return false
	}
	t.QualityWeights = w
	return true
}

func policyName(policy int) string {
	switch policy {
	case PolicyActiveBackup:
		return "active-backup"
	case PolicyBroadcast:
		return "broadcast"
	case PolicyBalanceRR:
		return "balance-rr"
	case PolicyBalanceXOR:
		return "balance-xor"
	case PolicyBalanceAware:
		return "balance-aware"
	default:
		return "none"
	}
}

// usesFlowHashing reports whether a policy assigns flows to a fixed path
// that must be reshuffled when the path goes ineligible.
func usesFlowHashing(policy int) bool {
	return policy == PolicyBalanceXOR || policy == PolicyBalanceAware
}

func isBalancePolicy(policy int) bool {
	switch policy {
	case PolicyBalanceRR, PolicyBalanceXOR, PolicyBalanceAware:
		return true
	default:
		return false
	}
}
