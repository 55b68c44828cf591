package compression

import (
	"encoding/binary"

	"github.com/lightprotocol/forester-go/compressedaccount"
	"github.com/lightprotocol/forester-go/hash"
)

// tokenDataHash folds a compressed token leaf's mint/owner/amount into the
// data_hash a CompressAndClose output carries, since the raw TokenData
// itself lives off-chain and only its hash is part of the leaf preimage.
func tokenDataHash(mint, owner compressedaccount.Pubkey, amount uint64) ([32]byte, error) {
	var amountBytes [32]byte
	binary.BigEndian.PutUint64(amountBytes[24:], amount)
	return hash.Poseidon(mint[:], owner[:], amountBytes[:])
}
