package bond

import "errors"

// Error kinds surfaced to callers. Most of the taxonomy in spec.md §7 (flow
// table overflow, unknown path, rejected nomination, QoS buffer full) is
// handled silently by design — eviction and drop are the correct behavior,
// not failure — so only the outcomes a caller must branch on are errors.
var (
	// ErrNoEligiblePath is returned by PathOrError when the policy has no
	// path to offer; the caller decides whether to drop or queue the packet.
	ErrNoEligiblePath = errors.New("bond: no eligible path")

	// ErrBondNotFound is returned by BondOrError for an unknown peer.
	ErrBondNotFound = errors.New("bond: no bond for peer")

	// ErrNoBondedPaths is returned when a flow cannot be created because the
	// bond currently has no bonded paths to assign it to.
	ErrNoBondedPaths = errors.New("bond: no bonded paths available")
)
