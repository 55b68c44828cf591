package merkletree

import "github.com/lightprotocol/forester-go/txerrors"

// Rollover replaces a filled tree with a successor of identical shape,
// enforcing every precondition the protocol names as a distinct error.
func (t *Tree) Rollover(successor *Tree, successorPubkey [32]byte) error {
	if t.NextIndex < t.Capacity() {
		return txerrors.ErrNotReadyForRollover
	}
	if t.RolloverThreshold == nil {
		return txerrors.ErrRolloverNotConfigured
	}
	if t.RolledOver {
		return txerrors.ErrAlreadyRolledOver
	}
	if successor.Height != t.Height || len(successor.Roots) != len(t.Roots) {
		return txerrors.ErrSizeMismatch
	}
	if (t.NetworkFee == nil) != (successor.NetworkFee == nil) {
		return txerrors.ErrInvalidNetworkFee
	}
	if t.NetworkFee != nil && successor.NetworkFee != nil && *t.NetworkFee != *successor.NetworkFee {
		return txerrors.ErrInvalidNetworkFee
	}

	t.RolledOver = true
	t.NextTreePubkey = &successorPubkey
	return nil
}
