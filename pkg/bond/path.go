package bond

import (
	"net"
	"sync/atomic"
)

// Path is a concrete (local socket, remote address) pair nominated to a
// bond. Path is an immutable shared handle: its identity never changes after
// construction, and it may be referenced by both the bond and the outer
// routing layer simultaneously. All bond-private, mutable per-path state
// lives in pathSlot, never here.
type Path struct {
	localSocket int64
	remoteAddr  net.Addr

	lastIn  atomic.Int64
	lastOut atomic.Int64
	created int64
}

// NewPath constructs a shared Path handle for a (local socket, remote
// address) pair. now is the construction time in milliseconds.
func NewPath(localSocket int64, remoteAddr net.Addr, now int64) *Path {
	p := &Path{localSocket: localSocket, remoteAddr: remoteAddr, created: now}
	p.lastIn.Store(now)
	p.lastOut.Store(now)
	return p
}

func (p *Path) LocalSocket() int64    { return p.localSocket }
func (p *Path) RemoteAddr() net.Addr  { return p.remoteAddr }

// Age returns the milliseconds since the most recent inbound packet.
func (p *Path) Age(now int64) int64 { return now - p.lastIn.Load() }

func (p *Path) touchIn(now int64)  { p.lastIn.Store(now) }
func (p *Path) touchOut(now int64) { p.lastOut.Store(now) }

func (p *Path) String() string {
	if p.remoteAddr == nil {
		return "?"
	}
	return p.remoteAddr.String()
}

// pathSlot holds all bond-private, mutable state associated with a nominated
// path, indexed by stable slot number within the bond's path array.
type pathSlot struct {
	p    *Path
	link *Link

	nominatedAt      int64
	lastAliveToggle  int64

	alive                 bool
	eligible              bool
	bonded                bool
	onlyPathOnLink        bool
	negotiated            bool
	enabled               bool
	shouldReallocateFlows bool

	ipvPref int
	mode    SlaveMode

	packetsIn         uint64
	packetsOut        uint64
	assignedFlowCount int

	qosStatsOut map[uint64]int64 // packet id -> local send time
	qosStatsIn  map[uint64]int64 // packet id -> local recv time

	packetsReceivedSinceLastQoS int
	lastQoSMeasurement          int64

	latencySamples     *sampleRing
	qosRecordSizeSamples *intRing
	packetValiditySamples *boolRing

	latencyMean       float32
	latencyVariance   float32
	packetLossRatio   float32
	packetErrorRatio  float32
	throughputMean    float32
	throughputVariance float32

	lostRecords int
	ackedRecords int

	allocation     uint8
	failoverScore  int
	refractoryPeriod int64
}

func newPathSlot(p *Path, now int64) *pathSlot {
	return &pathSlot{
		p:                     p,
		nominatedAt:           now,
		lastAliveToggle:       now,
		enabled:               true,
		qosStatsOut:           make(map[uint64]int64),
		qosStatsIn:            make(map[uint64]int64),
		latencySamples:        newSampleRing(sampleBufferCapacity),
		qosRecordSizeSamples:  newIntRing(sampleBufferCapacity),
		packetValiditySamples: newBoolRing(sampleBufferCapacity),
	}
}

// allowed reports whether the path's owning link currently permits traffic
// (link-level enabled flag). This is the `allowed()` predicate referenced
// throughout spec.md §4.
func (s *pathSlot) allowed() bool {
	return s.p != nil && s.enabled
}

// preferred reports whether this path's address family matches the owning
// link's address-family preference, per spec.md's GLOSSARY.
func (s *pathSlot) preferred() bool {
	if s.ipvPref == IPVPrefAny {
		return true
	}
	isV4 := isIPv4Addr(s.p.RemoteAddr())
	switch s.ipvPref {
	case IPVPrefV4Only, IPVPrefV4PreferredV6:
		return isV4
	case IPVPrefV6Only, IPVPrefV6PreferredV4:
		return !isV4
	default:
		return true
	}
}

func (s *pathSlot) resetPacketCounts() {
	s.packetsIn = 0
	s.packetsOut = 0
}

// adjustRefractoryPeriod mirrors the original's refractory-period bookkeeping:
// set to defaultPeriod on an eligibility drop, and cleared to zero as soon as
// the path becomes eligible again.
func (s *pathSlot) adjustRefractoryPeriod(now int64, defaultPeriod int64, justWentIneligible bool) {
	if justWentIneligible {
		s.refractoryPeriod = defaultPeriod
		return
	}
	if s.refractoryPeriod > 0 {
		s.refractoryPeriod = 0
	}
}

func isIPv4Addr(a net.Addr) bool {
	host := a
	if udp, ok := a.(*net.UDPAddr); ok {
		return udp.IP.To4() != nil
	}
	if tcp, ok := a.(*net.TCPAddr); ok {
		return tcp.IP.To4() != nil
	}
	_ = host
	return true
}
