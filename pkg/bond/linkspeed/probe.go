// Package linkspeed provides an optional ethtool-backed probe that reads an
// interface's reported link speed. It does not modify any bond.Link; a
// Link's speed is only ever the value passed to bond.NewLink.
package linkspeed

import (
	"fmt"
	"sync"

	"github.com/safchain/ethtool"
	"k8s.io/klog/v2"
)

// Probe wraps a single ethtool handle for repeated link-speed queries,
// grounded in the teacher's pkg/hardware/nic/manager.go use of the same
// library.
type Probe struct {
	mu sync.Mutex
	et *ethtool.Ethtool
}

// NewProbe opens the ethtool ioctl handle. Callers should Close it on
// shutdown.
func NewProbe() (*Probe, error) {
	et, err := ethtool.NewEthtool()
	if err != nil {
		return nil, fmt.Errorf("linkspeed: opening ethtool handle: %w", err)
	}
	return &Probe{et: et}, nil
}

// Close releases the underlying ethtool handle.
func (p *Probe) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.et != nil {
		p.et.Close()
		p.et = nil
	}
}

// SpeedMbps reads the reported link speed in megabits/sec for an interface.
// Returns 0 if the driver doesn't report a speed or the interface is down;
// callers treat 0 as "unspecified", matching bond.Link's own convention.
func (p *Probe) SpeedMbps(ifname string) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.et == nil {
		return 0
	}

	cmd := ethtool.EthtoolCmd{}
	speed, err := p.et.CmdGet(&cmd, ifname)
	if err != nil {
		klog.V(4).Infof("linkspeed: ethtool query for %s failed: %v", ifname, err)
		return 0
	}
	return speed
}
