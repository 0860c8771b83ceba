package bond

import (
	"time"

	"github.com/bondmesh/bond/pkg/bond/config"
)

// ApplyConfigFile wires a parsed policy-template file into a Controller:
// default policy/template, every named template (with its links), and
// every peer-to-template assignment.
func ApplyConfigFile(c *Controller, f *config.File) {
	if f.DefaultPolicy != "" {
		c.SetDefaultPolicy(parsePolicyName(f.DefaultPolicy))
	}
	if f.DefaultPolicyTemplate != "" {
		c.SetDefaultPolicyTemplate(f.DefaultPolicyTemplate)
	}

	for _, t := range f.Templates {
		tmpl := DefaultBondTemplate(parsePolicyName(t.Policy))
		if t.FailoverIntervalMs > 0 {
			tmpl.FailoverInterval = t.FailoverInterval()
			if tmpl.FailoverInterval < FailoverMinInterval {
				tmpl.FailoverInterval = FailoverMinInterval
			}
		}
		tmpl.UpDelay = time.Duration(t.UpDelayMs) * time.Millisecond
		tmpl.DownDelay = time.Duration(t.DownDelayMs) * time.Millisecond
		tmpl.PacketsPerLink = t.PacketsPerLink
		tmpl.ReselectPolicy = parseReselectPolicy(t.ReselectPolicy)
		if t.QualityWeights != nil {
			w := t.QualityWeights
			tmpl.SetUserQualityWeights([qwWeightCount]float32{
				qwLatencyIdx:        w.Latency,
				qwJitterIdx:         w.Jitter,
				qwLossIdx:           w.Loss,
				qwErrorIdx:          w.Error,
				qwThroughputMeanIdx: w.ThroughputMean,
				qwScopeIdx:          w.Scope,
			})
		}
		c.AddCustomPolicy(t.Name, tmpl)

		for _, l := range t.Links {
			mode := SlaveModeSpare
			if l.Primary {
				mode = SlaveModePrimary
			}
			c.AddCustomLink(t.Name, NewLink(l.IfName, l.SpeedMbps, l.Primary, l.FailoverTo, l.IPVPref, mode))
		}
	}

	for _, pa := range f.PeerAssignments {
		c.AssignPolicyToPeer(pa.PeerID, pa.Template)
	}
}

func parsePolicyName(name string) int {
	switch name {
	case "active-backup":
		return PolicyActiveBackup
	case "broadcast":
		return PolicyBroadcast
	case "balance-rr":
		return PolicyBalanceRR
	case "balance-xor":
		return PolicyBalanceXOR
	case "balance-aware":
		return PolicyBalanceAware
	default:
		return PolicyNone
	}
}

func parseReselectPolicy(name string) ReselectPolicy {
	switch name {
	case "always":
		return ReselectAlways
	case "better":
		return ReselectBetter
	case "optimize", "":
		return ReselectOptimize
	default:
		return ReselectOptimize
	}
}
