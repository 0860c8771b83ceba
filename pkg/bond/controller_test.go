package bond

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddCustomLinkFirstIfNameWins(t *testing.T) {
	c := NewController(nil)
	first := NewLink("eth0", 100, true, "", IPVPrefAny, SlaveModePrimary)
	second := NewLink("eth0", 200, false, "", IPVPrefAny, SlaveModeSpare)
	c.AddCustomLink("t", first)
	c.AddCustomLink("t", second)

	got, ok := c.GetLinkByName("t", "eth0")
	if !ok {
		t.Fatalf("expected link to be registered")
	}
	if got != first {
		t.Fatalf("expected the first registration to win, got speed=%d", got.Speed())
	}
}

func TestAddCustomPolicyIsIdempotent(t *testing.T) {
	c := NewController(nil)
	first := DefaultBondTemplate(PolicyActiveBackup)
	second := DefaultBondTemplate(PolicyBalanceRR)

	if !c.AddCustomPolicy("t", first) {
		t.Fatalf("expected first registration to succeed")
	}
	if c.AddCustomPolicy("t", second) {
		t.Fatalf("expected second registration under the same name to be rejected")
	}
}

func TestAssignPolicyToPeerIsIdempotent(t *testing.T) {
	c := NewController(nil)
	if !c.AssignPolicyToPeer(7, "a") {
		t.Fatalf("expected first assignment to succeed")
	}
	if c.AssignPolicyToPeer(7, "b") {
		t.Fatalf("expected second assignment for the same peer to be rejected")
	}
}

func TestGetLinkBySocketAutoCreatesSpare(t *testing.T) {
	transport := newFakeTransport(map[int64]string{9: "eth9"})
	c := NewController(transport)

	l := c.GetLinkBySocket("t", 9)
	if l.IfName() != "eth9" {
		t.Fatalf("expected auto-created link named after resolved interface, got %q", l.IfName())
	}
	if l.Mode() != SlaveModeSpare {
		t.Fatalf("expected auto-created link to default to spare mode")
	}

	again := c.GetLinkBySocket("t", 9)
	if again != l {
		t.Fatalf("expected a second lookup to return the same auto-created link")
	}
}

func TestCreateTransportTriggeredBondPrecedence(t *testing.T) {
	transport := newFakeTransport(map[int64]string{1: "eth0"})

	t.Run("peer assignment wins over default template", func(t *testing.T) {
		c := NewController(transport)
		c.SetDefaultPolicyTemplate("default-tmpl")
		c.AddCustomPolicy("default-tmpl", DefaultBondTemplate(PolicyBroadcast))
		c.AddCustomPolicy("peer-tmpl", DefaultBondTemplate(PolicyBalanceXOR))
		c.AssignPolicyToPeer(1, "peer-tmpl")

		b := c.CreateTransportTriggeredBond(&fakePeer{id: 1, multipath: true, protoVersion: 1}, transport)
		if b.Policy() != PolicyBalanceXOR {
			t.Fatalf("expected peer assignment to win, got policy %d", b.Policy())
		}
	})

	t.Run("default template wins over bare default policy", func(t *testing.T) {
		c := NewController(transport)
		c.SetDefaultPolicy(PolicyActiveBackup)
		c.SetDefaultPolicyTemplate("default-tmpl")
		c.AddCustomPolicy("default-tmpl", DefaultBondTemplate(PolicyBalanceAware))

		b := c.CreateTransportTriggeredBond(&fakePeer{id: 2, multipath: true, protoVersion: 1}, transport)
		if b.Policy() != PolicyBalanceAware {
			t.Fatalf("expected default template to win, got policy %d", b.Policy())
		}
	})

	t.Run("bare default policy as last resort", func(t *testing.T) {
		c := NewController(transport)
		c.SetDefaultPolicy(PolicyActiveBackup)

		b := c.CreateTransportTriggeredBond(&fakePeer{id: 3, multipath: true, protoVersion: 1}, transport)
		if b.Policy() != PolicyActiveBackup {
			t.Fatalf("expected bare default policy, got %d", b.Policy())
		}
	})

	t.Run("repeated calls for the same peer return the same bond", func(t *testing.T) {
		c := NewController(transport)
		peer := &fakePeer{id: 4, multipath: true, protoVersion: 1}
		b1 := c.CreateTransportTriggeredBond(peer, transport)
		b2 := c.CreateTransportTriggeredBond(peer, transport)
		if b1 != b2 {
			t.Fatalf("expected the same bond instance to be returned")
		}
	})
}

func TestForgetPeerRemovesBond(t *testing.T) {
	transport := newFakeTransport(map[int64]string{1: "eth0"})
	c := NewController(transport)
	peer := &fakePeer{id: 5, multipath: true, protoVersion: 1}
	c.CreateTransportTriggeredBond(peer, transport)

	_, ok := c.GetBondByPeerID(5)
	require.True(t, ok, "expected bond to exist before ForgetPeer")

	c.ForgetPeer(5)
	_, ok = c.GetBondByPeerID(5)
	require.False(t, ok, "expected bond to be gone after ForgetPeer")
}
