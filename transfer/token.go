package transfer

import "github.com/lightprotocol/forester-go/compressedaccount"

// TokenState mirrors the SPL-compatible {Initialized, Frozen} account
// state; only these two values are meaningful for a compressed token leaf.
type TokenState uint8

const (
	TokenStateInitialized TokenState = iota
	TokenStateFrozen
)

// TokenData is the compressed-token payload embedded into a compressed
// account's data blob under a fixed discriminator.
type TokenData struct {
	Mint     compressedaccount.Pubkey
	Owner    compressedaccount.Pubkey
	Amount   uint64
	Delegate *compressedaccount.Pubkey
	State    TokenState
	TLV      []byte
}

// IsFrozen reports whether the token account may not currently be
// transferred, compressed, or decompressed.
func (t TokenData) IsFrozen() bool {
	return t.State == TokenStateFrozen
}

// Freeze is idempotent: freezing an already-frozen account is a no-op,
// satisfying the protocol's "idempotent freeze" testable property.
func (t TokenData) Freeze() TokenData {
	t.State = TokenStateFrozen
	return t
}

// Thaw is idempotent for the same reason.
func (t TokenData) Thaw() TokenData {
	t.State = TokenStateInitialized
	return t
}

// MintExtensions flags the restricted SPL-2022-style extensions that gate a
// mint to the hot (compress+decompress-in-one-instruction) path only.
type MintExtensions struct {
	Pausable          bool
	PermanentDelegate bool
	TransferFee       bool
	TransferHook      bool
}

// HasRestrictedExtension reports whether any extension that restricts a
// lone compress/decompress is set.
func (e MintExtensions) HasRestrictedExtension() bool {
	return e.Pausable || e.PermanentDelegate || e.TransferFee || e.TransferHook
}
