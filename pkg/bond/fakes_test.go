package bond

import (
	"net"
	"sync"
)

type fakePeer struct {
	id            int64
	multipath     bool
	protoVersion  int
}

func (p *fakePeer) PeerID() int64                   { return p.id }
func (p *fakePeer) LocalMultipathSupported() bool    { return p.multipath }
func (p *fakePeer) RemoteProtocolVersion() int       { return p.protoVersion }
func (p *fakePeer) Armor(verb Verb, payload []byte) ([]byte, error) {
	return payload, nil
}

type sentPacket struct {
	localSocket int64
	remoteAddr  net.Addr
	data        []byte
}

type fakeTransport struct {
	mu      sync.Mutex
	sent    []sentPacket
	ifnames map[int64]string
}

func newFakeTransport(ifnames map[int64]string) *fakeTransport {
	return &fakeTransport{ifnames: ifnames}
}

func (t *fakeTransport) PutPacket(localSocket int64, remoteAddr net.Addr, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentPacket{localSocket, remoteAddr, data})
	return nil
}

func (t *fakeTransport) GetIfName(localSocket int64) string {
	return t.ifnames[localSocket]
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func udpAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: port}
}
