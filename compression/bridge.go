// Package compression implements the compression bridge: the bookkeeping
// that mediates between native (SPL-style) token accounts and compressed
// leaves, including the rent-sponsorship scheme that lets a forester
// compress and close an idle native account after its prepaid epochs run
// out.
package compression

import (
	"fmt"

	"github.com/lightprotocol/forester-go/compressedaccount"
	"github.com/lightprotocol/forester-go/hash"
)

// MintPDAs names the three PDAs the compression bridge derives per mint.
// This module models only their bookkeeping role; it does not derive real
// Solana PDAs since no on-chain runtime is in scope.
type MintPDAs struct {
	SplInterface         compressedaccount.Pubkey
	CompressionAuthority compressedaccount.Pubkey
	RentSponsor          compressedaccount.Pubkey
}

// DerivePDAs derives the bridge's three per-mint addresses. With no Solana
// runtime in scope, derivation is a domain-tagged hash rather than a
// curve-point bump search; determinism per mint is the only property the
// bookkeeping relies on.
func DerivePDAs(mint compressedaccount.Pubkey) MintPDAs {
	return MintPDAs{
		SplInterface:         derivePDA("spl_interface", mint),
		CompressionAuthority: derivePDA("compression_authority", mint),
		RentSponsor:          derivePDA("rent_sponsor", mint),
	}
}

func derivePDA(tag string, mint compressedaccount.Pubkey) compressedaccount.Pubkey {
	return compressedaccount.Pubkey(hash.Keccak256ToFieldSize([]byte(tag), mint[:]))
}

// RentSponsor tracks a prepaid-rent balance for one compressible native
// account: it accrues lamports for numPrepaidEpochs, and once
// AvailableAtSlot passes with no intervening writes, the account becomes
// eligible for a forester to compress and close.
type RentSponsor struct {
	Pubkey           compressedaccount.Pubkey
	LamportsPerEpoch uint64
	NumPrepaidEpochs uint64
	AvailableAtSlot  uint64
	LastWriteSlot    uint64
}

// NewRentSponsor prepays numPrepaidEpochs of rent starting at startSlot,
// each epoch lasting slotsPerEpoch slots.
func NewRentSponsor(pubkey compressedaccount.Pubkey, lamportsPerEpoch, numPrepaidEpochs, slotsPerEpoch, startSlot uint64) RentSponsor {
	return RentSponsor{
		Pubkey:           pubkey,
		LamportsPerEpoch: lamportsPerEpoch,
		NumPrepaidEpochs: numPrepaidEpochs,
		AvailableAtSlot:  startSlot + numPrepaidEpochs*slotsPerEpoch,
		LastWriteSlot:    startSlot,
	}
}

// Balance is the total prepaid lamports the sponsor is currently holding.
func (s RentSponsor) Balance() uint64 {
	return s.LamportsPerEpoch * s.NumPrepaidEpochs
}

// RecordWrite resets the compress-eligibility clock: any write to the
// sponsored account postpones compression until a fresh idle period elapses.
func (s RentSponsor) RecordWrite(slot, slotsPerEpoch uint64) RentSponsor {
	s.LastWriteSlot = slot
	s.AvailableAtSlot = slot + s.NumPrepaidEpochs*slotsPerEpoch
	return s
}

// EligibleForCompression reports whether currentSlot has passed
// AvailableAtSlot with no intervening write, the gate a forester must check
// before compressing and closing the sponsored account.
func (s RentSponsor) EligibleForCompression(currentSlot uint64) bool {
	return currentSlot >= s.AvailableAtSlot
}

// CompressAndClose refunds the sponsor's remaining prepaid balance and
// returns the compressed output leaf that now carries the native account's
// balance, fulfilling the compression-bridge's "crucial rule."
func CompressAndClose(sponsor RentSponsor, mint compressedaccount.Pubkey, nativeBalance uint64, currentSlot uint64, owner compressedaccount.Pubkey) (refund uint64, output compressedaccount.CompressedAccount, err error) {
	if !sponsor.EligibleForCompression(currentSlot) {
		return 0, compressedaccount.CompressedAccount{}, fmt.Errorf("compression: sponsor %x not yet eligible at slot %d (available at %d)", sponsor.Pubkey, currentSlot, sponsor.AvailableAtSlot)
	}

	discriminator := [8]byte{'c', 't', 'o', 'k', 'e', 'n', 0, 1}
	dataHash, hashErr := tokenDataHash(mint, owner, nativeBalance)
	if hashErr != nil {
		return 0, compressedaccount.CompressedAccount{}, hashErr
	}

	return sponsor.Balance(), compressedaccount.CompressedAccount{
		Owner:    owner,
		Lamports: nativeBalance,
		Data: &compressedaccount.CompressedAccountData{
			Discriminator: discriminator,
			DataHash:      dataHash,
		},
	}, nil
}
