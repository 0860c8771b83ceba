package bond

// PathOrError is GetPath's error-returning counterpart, for callers that
// prefer to propagate a sentinel error rather than branch on ok.
func (b *Bond) PathOrError(now int64, flowID int32) (*Path, error) {
	p, ok := b.GetPath(now, flowID)
	if !ok {
		return nil, ErrNoEligiblePath
	}
	return p, nil
}

// BondOrError is GetBondByPeerID's error-returning counterpart.
func (c *Controller) BondOrError(peerID int64) (*Bond, error) {
	b, ok := c.GetBondByPeerID(peerID)
	if !ok {
		return nil, ErrBondNotFound
	}
	return b, nil
}

// CreateFlowOrError is CreateFlow's error-returning counterpart.
func (b *Bond) CreateFlowOrError(pathSlotIdx int, flowID int32, entropy byte, now int64) (*Flow, error) {
	f, ok := b.CreateFlow(pathSlotIdx, flowID, entropy, now)
	if !ok {
		return nil, ErrNoBondedPaths
	}
	return f, nil
}
