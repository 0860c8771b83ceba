package bond

import "net"

// Verb identifies the wire-level packet kind, mirroring the transport's own
// packet verb enumeration. The bond only cares about a handful of them for
// accounting and QoS-tracking purposes; everything else is opaque.
type Verb int

const (
	VerbFrame Verb = iota
	VerbExtFrame
	VerbEcho
	VerbAck
	VerbQoSMeasurement
	VerbPathNegotiationRequest
	VerbOther
)

// isFrame reports whether a verb counts toward packets_in/packets_out, per
// spec.md §4.7. No separate last-frame timestamp is kept.
func (v Verb) isFrame() bool {
	return v == VerbEcho || v == VerbFrame || v == VerbExtFrame
}

// Transport is the collaborator that owns sockets and wire framing. The bond
// core never touches a socket directly; it only asks the transport to send
// already-armored bytes and to resolve local sockets to interface names.
type Transport interface {
	// PutPacket performs a fire-and-forget send. It must not block.
	PutPacket(localSocket int64, remoteAddr net.Addr, data []byte) error
	// GetIfName reverse-resolves a local socket to its owning interface name.
	GetIfName(localSocket int64) string
}

// PeerInfo is the subset of peer/identity state the bond needs to frame
// control packets and gate optional protocol features.
type PeerInfo interface {
	// PeerID is a stable opaque identifier for the remote peer (e.g. derived
	// from its public identity), used for path-negotiation tie-breaks.
	PeerID() int64
	// LocalMultipathSupported reports whether the remote peer negotiated
	// multipath support; the periodic tick is a no-op until it does.
	LocalMultipathSupported() bool
	// RemoteProtocolVersion gates optional features like heartbeats.
	RemoteProtocolVersion() int
	// Armor frames and encrypts an outgoing control packet payload. The core
	// treats the result as opaque bytes.
	Armor(verb Verb, payload []byte) ([]byte, error)
}

// Clock abstracts wall-clock access so tests can drive time explicitly.
type Clock interface {
	Now() int64 // milliseconds
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current time in milliseconds since the Unix epoch.
func (SystemClock) Now() int64 {
	return nowMillis()
}
