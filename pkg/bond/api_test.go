package bond

import (
	"errors"
	"testing"
)

func TestPathOrErrorWrapsNoEligiblePath(t *testing.T) {
	b, _ := newTestBond(t, PolicyActiveBackup, nil)
	_, err := b.PathOrError(1_000_000, NoFlow)
	if !errors.Is(err, ErrNoEligiblePath) {
		t.Fatalf("expected ErrNoEligiblePath, got %v", err)
	}
}

func TestBondOrErrorWrapsNotFound(t *testing.T) {
	c := NewController(nil)
	_, err := c.BondOrError(999)
	if !errors.Is(err, ErrBondNotFound) {
		t.Fatalf("expected ErrBondNotFound, got %v", err)
	}
}

func TestCreateFlowOrErrorWrapsNoBondedPaths(t *testing.T) {
	b, _ := newTestBond(t, PolicyBalanceXOR, nil)
	_, err := b.CreateFlowOrError(NoPathSlot, 1, 0, 1_000_000)
	if !errors.Is(err, ErrNoBondedPaths) {
		t.Fatalf("expected ErrNoBondedPaths, got %v", err)
	}
}
