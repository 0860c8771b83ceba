package bond

import "math"

// estimateQualityLocked converts raw per-path samples into normalized
// scores, weights them, and derives an 8-bit allocation per bonded path, per
// spec.md §4.5. Caller holds pathsMu.
func (b *Bond) estimateQualityLocked(now int64) {
	b.normalizeLinkSpeedsLocked()

	type computed struct {
		slotIdx                                     int
		scoreLat, scoreJit, scoreLoss, scoreErr      float32
		throughput, scope                            float32
	}

	var rows []computed
	var maxScoreLat, maxScoreJit, maxScoreLoss, maxScoreErr float32
	var maxThroughput, maxScope float32

	for i, s := range b.paths {
		if s == nil || !s.allowed() {
			continue
		}

		lost := 0
		for id, sentAt := range s.qosStatsOut {
			if now-sentAt > QoSRecordTimeout.Milliseconds() {
				delete(s.qosStatsOut, id)
				lost++
			}
		}
		s.lostRecords += lost

		if total := s.lostRecords + s.ackedRecords; total > 0 {
			s.packetLossRatio = float32(s.lostRecords) / float32(total)
		}

		s.latencyMean = s.latencySamples.mean()
		s.latencyVariance = s.latencySamples.stddev()
		s.packetErrorRatio = 1 - float32(s.packetValiditySamples.mean())
		if b.userHasSpecifiedLinkSpeeds && s.link != nil && s.link.Speed() > 0 {
			s.throughputMean = float32(s.link.Speed())
		}

		latNorm := clamp01safe(s.latencyMean, b.maxAcceptableLatencyMs)
		jitNorm := clamp01safe(s.latencyVariance, b.maxAcceptablePacketDelayVarMs)
		lossNorm := clamp01safe(s.packetLossRatio, b.maxAcceptablePacketLossRatio)
		errNorm := clamp01safe(s.packetErrorRatio, b.maxAcceptablePacketErrorRatio)

		row := computed{
			slotIdx:   i,
			scoreLat:  qualityScore(latNorm),
			scoreJit:  qualityScore(jitNorm),
			scoreLoss: qualityScore(lossNorm),
			scoreErr:  qualityScore(errNorm),
			throughput: s.throughputMean,
		}
		if s.link != nil {
			row.scope = float32(s.link.RelativeSpeed())
		}

		if row.scoreLat > maxScoreLat {
			maxScoreLat = row.scoreLat
		}
		if row.scoreJit > maxScoreJit {
			maxScoreJit = row.scoreJit
		}
		if row.scoreLoss > maxScoreLoss {
			maxScoreLoss = row.scoreLoss
		}
		if row.scoreErr > maxScoreErr {
			maxScoreErr = row.scoreErr
		}
		if row.throughput > maxThroughput {
			maxThroughput = row.throughput
		}
		if row.scope > maxScope {
			maxScope = row.scope
		}

		rows = append(rows, row)
	}

	qualities := make(map[int]float32, len(rows))
	var sumQuality float32
	for _, r := range rows {
		s := b.paths[r.slotIdx]
		if !s.bonded {
			continue
		}
		var q float32
		q += weightedTerm(r.scoreLat, maxScoreLat, b.qualityWeights[qwLatencyIdx])
		q += weightedTerm(r.scoreJit, maxScoreJit, b.qualityWeights[qwJitterIdx])
		q += weightedTerm(r.scoreLoss, maxScoreLoss, b.qualityWeights[qwLossIdx])
		q += weightedTerm(r.scoreErr, maxScoreErr, b.qualityWeights[qwErrorIdx])
		q += weightedTerm(r.throughput, maxThroughput, b.qualityWeights[qwThroughputMeanIdx])
		q += weightedTerm(r.scope, maxScope, b.qualityWeights[qwScopeIdx])
		qualities[r.slotIdx] = q
		sumQuality += q
	}

	for slotIdx, q := range qualities {
		var alloc uint8
		if sumQuality > 0 {
			alloc = uint8(math.Ceil(float64(q / sumQuality * 255)))
		}
		b.paths[slotIdx].allocation = alloc
	}
	b.lastQualityEstimation = now
}

// normalizeLinkSpeedsLocked computes each link's relativeSpeed (0-255) among
// all links currently carrying an allowed path, restoring the original's
// Bond::estimatePathQuality step 1 (spec.md §3/§4, "Link.relativeSpeed").
func (b *Bond) normalizeLinkSpeedsLocked() {
	if !b.userHasSpecifiedLinkSpeeds {
		return
	}
	var maxSpeed uint32
	seen := make(map[*Link]bool)
	for _, s := range b.paths {
		if s == nil || !s.allowed() || s.link == nil || seen[s.link] {
			continue
		}
		seen[s.link] = true
		if s.link.Speed() > maxSpeed {
			maxSpeed = s.link.Speed()
		}
	}
	if maxSpeed == 0 {
		return
	}
	for link := range seen {
		rel := uint32(float64(link.Speed()) * 255.0 / float64(maxSpeed))
		link.setRelativeSpeed(rel)
	}
}

// qualityScore is the monotone-decreasing, saturating mapping from a
// normalized metric to a raw quality score, per spec.md §4.5 step 3.
func qualityScore(norm float32) float32 {
	return float32(1.0 / math.Exp(4*float64(norm)))
}

// clamp01safe normalizes x against max, clamped to [0,1]; a non-positive max
// contributes zero rather than dividing by zero, per spec.md §4.5's numeric
// note.
func clamp01safe(x, max float32) float32 {
	if max <= 0 {
		return 0
	}
	n := x / max
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

func weightedTerm(score, max, weight float32) float32 {
	if max <= 0 {
		return 0
	}
	return (score / max) * weight
}
