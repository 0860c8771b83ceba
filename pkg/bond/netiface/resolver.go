// Package netiface provides an optional netlink-backed lookup from a local
// socket's bound address to the name of the interface that owns it.
// Resolver.GetIfName takes the socket-address source as a second argument,
// so a Resolver does not by itself satisfy the bond package's
// IfNameResolver interface.
package netiface

import (
	"fmt"
	"net"
	"sync"

	"github.com/vishvananda/netlink"
	"k8s.io/klog/v2"
)

// Resolver caches local-socket-to-interface-name lookups backed by the
// kernel's routing table, grounded in the teacher's
// pkg/network/interfaces/kernel.go use of netlink.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]string // local IP string -> ifname
}

// NewResolver constructs an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]string)}
}

// socketAddrs maps an opaque local-socket identity to its bound address.
// Callers that track local sockets as raw fds/handles supply this lookup;
// the bond package never needs to know the mapping itself.
type socketAddrs interface {
	LocalAddrFor(localSocket int64) net.Addr
}

// GetIfName resolves a local socket's bound address to the interface that
// owns it, via netlink.RouteGet. Because it also takes the address source,
// its signature differs from bond.IfNameResolver's GetIfName.
func (r *Resolver) GetIfName(localSocket int64, addrs socketAddrs) string {
	addr := addrs.LocalAddrFor(localSocket)
	if addr == nil {
		return ""
	}
	ip := addrIP(addr)
	if ip == nil {
		return ""
	}

	r.mu.RLock()
	if ifname, ok := r.cache[ip.String()]; ok {
		r.mu.RUnlock()
		return ifname
	}
	r.mu.RUnlock()

	ifname, err := r.resolveByRoute(ip)
	if err != nil {
		klog.V(4).Infof("netiface: failed to resolve ifname for %s: %v", ip, err)
		return ""
	}

	r.mu.Lock()
	r.cache[ip.String()] = ifname
	r.mu.Unlock()
	return ifname
}

func (r *Resolver) resolveByRoute(ip net.IP) (string, error) {
	routes, err := netlink.RouteGet(ip)
	if err != nil {
		return "", fmt.Errorf("route lookup for %s: %w", ip, err)
	}
	if len(routes) == 0 || routes[0].LinkIndex == 0 {
		return "", fmt.Errorf("no route found for %s", ip)
	}
	link, err := netlink.LinkByIndex(routes[0].LinkIndex)
	if err != nil {
		return "", fmt.Errorf("link lookup for index %d: %w", routes[0].LinkIndex, err)
	}
	return link.Attrs().Name, nil
}

// InvalidateInterface drops every cached entry pointing at ifname, used
// after a link-down/up cycle so stale addresses don't stick around.
func (r *Resolver) InvalidateInterface(ifname string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ip, name := range r.cache {
		if name == ifname {
			delete(r.cache, ip)
		}
	}
}

func addrIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.IP
	case *net.TCPAddr:
		return v.IP
	default:
		return nil
	}
}
