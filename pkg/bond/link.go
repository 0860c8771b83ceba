package bond

import "sync/atomic"

// Link is a user- or auto-registered logical network interface belonging to
// a policy template. Interface name is unique within a template.
type Link struct {
	ifname       string
	speed        uint32
	relativeSpeed uint32 // 0-255, speed scaled so the fastest link on the bond is 255
	primary      bool
	failoverTo   string
	ipvPref      int
	mode         SlaveMode
	enabled      bool
	userSpecified atomic.Bool
	hasFailoverInstructions bool
}

// NewLink constructs a Link. speed is the user-reported link speed in
// arbitrary units (bps is conventional); zero means "unspecified".
func NewLink(ifname string, speed uint32, primary bool, failoverTo string, ipvPref int, mode SlaveMode) *Link {
	return &Link{
		ifname:     ifname,
		speed:      speed,
		primary:    primary,
		failoverTo: failoverTo,
		ipvPref:    ipvPref,
		mode:       mode,
		enabled:    true,
		hasFailoverInstructions: failoverTo != "",
	}
}

func (l *Link) IfName() string { return l.ifname }
func (l *Link) Speed() uint32  { return l.speed }
func (l *Link) Primary() bool  { return l.primary }
func (l *Link) FailoverToLink() string { return l.failoverTo }
func (l *Link) IPVPref() int   { return l.ipvPref }
func (l *Link) Mode() SlaveMode { return l.mode }
func (l *Link) Enabled() bool { return l.enabled }
func (l *Link) IsUserSpecified() bool { return l.userSpecified.Load() }
func (l *Link) UserHasSpecifiedFailoverInstructions() bool { return l.hasFailoverInstructions }

func (l *Link) setAsUserSpecified(v bool) { l.userSpecified.Store(v) }

// RelativeSpeed returns this link's speed scaled to 0-255 against the
// fastest link among the bond's allowed paths, as computed by
// estimateQuality. It stays 0 unless the user specified link speeds.
func (l *Link) RelativeSpeed() uint32 { return atomic.LoadUint32(&l.relativeSpeed) }

func (l *Link) setRelativeSpeed(v uint32) { atomic.StoreUint32(&l.relativeSpeed, v) }
