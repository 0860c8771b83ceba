package bond

import (
	"sync"
)

// Controller is the process-wide bonding context: the catalog of policy
// templates, user-defined links, peer-to-template assignments, and the set
// of live per-peer bonds. Per DESIGN_NOTES in spec.md §9, this replaces the
// original implementation's ambient static singletons with an explicitly
// constructed and passed object.
type Controller struct {
	registryMu sync.Mutex
	linksMu    sync.Mutex

	defaultPolicy         int
	defaultPolicyTemplate string

	policyAssignments map[int64]string          // peer id -> template name
	policyTemplates    map[string]*BondTemplate  // template name -> template
	linkDefinitions    map[string][]*Link        // template name -> links
	interfaceToLink    map[string]map[string]*Link // template name -> ifname -> link

	bonds map[int64]*Bond // peer id -> bond

	ifResolver IfNameResolver

	// localPeerID identifies this node for path-negotiation tie-breaks
	// (spec.md §4.9). Set once at startup via SetLocalPeerID before any
	// negotiation traffic flows; not protected by a lock.
	localPeerID int64
}

// SetLocalPeerID records this node's own identity, used to break ties in
// path-negotiation requests against the remote peer's id.
func (c *Controller) SetLocalPeerID(id int64) {
	c.localPeerID = id
}

// IfNameResolver reverse-resolves a local socket identity to the interface
// name that owns it. The default Transport collaborator satisfies this via
// Transport.GetIfName; Controller accepts its own copy so link resolution
// can happen outside the packet-send path.
type IfNameResolver interface {
	GetIfName(localSocket int64) string
}

// NewController constructs an empty bonding controller. ifResolver may be
// nil, in which case every socket resolves to the empty interface name and
// GetLinkBySocket returns one spare link named "" (auto-created on the
// first lookup) for all of them.
func NewController(ifResolver IfNameResolver) *Controller {
	return &Controller{
		policyAssignments: make(map[int64]string),
		policyTemplates:    make(map[string]*BondTemplate),
		linkDefinitions:    make(map[string][]*Link),
		interfaceToLink:    make(map[string]map[string]*Link),
		bonds:              make(map[int64]*Bond),
		ifResolver:         ifResolver,
	}
}

// SetDefaultPolicy sets the bare policy code used when a peer has no
// template assignment and no default template name is configured.
func (c *Controller) SetDefaultPolicy(policy int) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	c.defaultPolicy = policy
}

// SetDefaultPolicyTemplate names the template used when a peer has no
// peer-specific assignment. Takes precedence over SetDefaultPolicy.
func (c *Controller) SetDefaultPolicyTemplate(name string) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	c.defaultPolicyTemplate = name
}

// AddCustomLink registers a link definition under a policy template. First
// link with a given interface name wins; later duplicates are ignored,
// matching the per-peer idempotence spec.md requires of the registry as a
// whole.
func (c *Controller) AddCustomLink(templateName string, l *Link) {
	c.linksMu.Lock()
	defer c.linksMu.Unlock()

	c.linkDefinitions[templateName] = append(c.linkDefinitions[templateName], l)
	if c.interfaceToLink[templateName] == nil {
		c.interfaceToLink[templateName] = make(map[string]*Link)
	}
	if _, exists := c.interfaceToLink[templateName][l.IfName()]; !exists {
		l.setAsUserSpecified(true)
		c.interfaceToLink[templateName][l.IfName()] = l
	}
}

// AddCustomPolicy registers a named policy template. Idempotent: the first
// registration for a given name wins.
func (c *Controller) AddCustomPolicy(templateName string, tmpl *BondTemplate) bool {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	if _, exists := c.policyTemplates[templateName]; exists {
		return false
	}
	c.policyTemplates[templateName] = tmpl
	return true
}

// AssignPolicyToPeer assigns a named policy template to a peer. Idempotent:
// the first assignment for a given peer wins.
func (c *Controller) AssignPolicyToPeer(peerID int64, templateName string) bool {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	if _, exists := c.policyAssignments[peerID]; exists {
		return false
	}
	c.policyAssignments[peerID] = templateName
	return true
}

// LinkAllowed reports whether a template's explicit link set (if any)
// includes the given link. A template with no explicit link set allows
// everything.
func (c *Controller) LinkAllowed(templateName string, l *Link) bool {
	c.linksMu.Lock()
	defer c.linksMu.Unlock()
	defs := c.linkDefinitions[templateName]
	if len(defs) == 0 {
		return true
	}
	for _, d := range defs {
		if d.IfName() == l.IfName() {
			return true
		}
	}
	return false
}

// GetLinkByName looks up a registered link by interface name within a
// template, returning (nil, false) if absent.
func (c *Controller) GetLinkByName(templateName, ifname string) (*Link, bool) {
	c.linksMu.Lock()
	defer c.linksMu.Unlock()
	l, ok := c.interfaceToLink[templateName][ifname]
	return l, ok
}

// GetLinkBySocket maps a local socket to its owning interface name via the
// resolver, then looks the link up by name. If no link is registered under
// that name yet, a spare link is auto-created and inserted, per spec.md
// §4.1.
func (c *Controller) GetLinkBySocket(templateName string, localSocket int64) *Link {
	ifname := ""
	if c.ifResolver != nil {
		ifname = c.ifResolver.GetIfName(localSocket)
	}
	c.linksMu.Lock()
	defer c.linksMu.Unlock()
	if c.interfaceToLink[templateName] == nil {
		c.interfaceToLink[templateName] = make(map[string]*Link)
	}
	if l, ok := c.interfaceToLink[templateName][ifname]; ok {
		return l
	}
	l := NewLink(ifname, 0, false, "", IPVPrefAny, SlaveModeSpare)
	c.interfaceToLink[templateName][ifname] = l
	return l
}

// GetBondByPeerID returns the live bond for a peer, if any.
func (c *Controller) GetBondByPeerID(peerID int64) (*Bond, bool) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	b, ok := c.bonds[peerID]
	return b, ok
}

// CreateTransportTriggeredBond returns the existing bond for a peer, or
// constructs one on first path nomination per spec.md §4.2: peer-specific
// template assignment takes precedence over the default template, which
// takes precedence over the bare default policy code.
func (c *Controller) CreateTransportTriggeredBond(peer PeerInfo, transport Transport) *Bond {
	peerID := peer.PeerID()

	c.registryMu.Lock()
	if existing, ok := c.bonds[peerID]; ok {
		c.registryMu.Unlock()
		return existing
	}

	var b *Bond
	templateName, hasAssignment := c.policyAssignments[peerID]
	switch {
	case hasAssignment:
		if tmpl, ok := c.policyTemplates[templateName]; ok {
			b = newBondFromTemplate(c, tmpl, peer, transport, templateName)
		} else {
			b = newBond(c, c.defaultPolicy, peer, transport)
			b.log.warnf("template %q not found, falling back to default policy", templateName)
		}
	case c.defaultPolicyTemplate != "":
		templateName = c.defaultPolicyTemplate
		if tmpl, ok := c.policyTemplates[templateName]; ok {
			b = newBondFromTemplate(c, tmpl, peer, transport, templateName)
		} else {
			b = newBond(c, c.defaultPolicy, peer, transport)
		}
	default:
		b = newBond(c, c.defaultPolicy, peer, transport)
	}
	c.bonds[peerID] = b
	c.registryMu.Unlock()

	c.applyUserLinkFlags(b)
	b.log.logf("new bond created (policy=%s)", policyName(b.policy))
	return b
}

// applyUserLinkFlags scans the template's registered links to determine
// whether the user has specified anything that should affect the bonding
// policy's decisions, per spec.md §4.2.
func (c *Controller) applyUserLinkFlags(b *Bond) {
	c.linksMu.Lock()
	defer c.linksMu.Unlock()
	links := c.interfaceToLink[b.policyAlias]
	for _, l := range links {
		if !l.IsUserSpecified() {
			continue
		}
		b.userHasSpecifiedLinks = true
		if l.Primary() {
			b.userHasSpecifiedPrimaryLink = true
		}
		if l.UserHasSpecifiedFailoverInstructions() {
			b.userHasSpecifiedFailoverInstructions = true
		}
		if l.Speed() > 0 {
			b.userHasSpecifiedLinkSpeeds = true
		}
	}
}

// ProcessBackgroundTasks ticks every live bond and returns the minimum
// monitor interval any of them currently requires, so an outer scheduler
// knows how often it must be called, per spec.md §4.2.
func (c *Controller) ProcessBackgroundTasks(now int64) int64 {
	c.registryMu.Lock()
	bonds := make([]*Bond, 0, len(c.bonds))
	for _, b := range c.bonds {
		bonds = append(bonds, b)
	}
	c.registryMu.Unlock()

	minInterval := FailoverDefaultInterval.Milliseconds()
	for _, b := range bonds {
		if mi := b.monitorInterval.Milliseconds(); mi < minInterval {
			minInterval = mi
		}
		b.processBackgroundBondTasks(now)
	}
	return minInterval
}

// ForgetPeer removes a peer's bond entirely, releasing its path slots and
// flow table. Not part of the original distillation's surface but needed so
// long-running processes don't leak bonds for peers that go away, per
// spec.md §3's bond lifecycle ("live until the peer is forgotten").
func (c *Controller) ForgetPeer(peerID int64) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	delete(c.bonds, peerID)
}
