package transfer

import (
	"fmt"

	"github.com/lightprotocol/forester-go/compressedaccount"
	"github.com/lightprotocol/forester-go/txerrors"
)

// checkNotFrozen enforces the frozen-account guard: a transfer touching any
// frozen input account fails AccountFrozen.
func checkNotFrozen(inputs []TokenData) error {
	for _, in := range inputs {
		if in.IsFrozen() {
			return txerrors.ErrAccountFrozen
		}
	}
	return nil
}

func checkSameMint(inputs []TokenData) error {
	if len(inputs) == 0 {
		return nil
	}
	mint := inputs[0].Mint
	for _, in := range inputs[1:] {
		if in.Mint != mint {
			return fmt.Errorf("transfer: %w: inputs reference different mints", txerrors.ErrDiscriminatorMismatch)
		}
	}
	return nil
}

// OutputRequest describes one new token leaf a transfer-shaped operation
// should produce: destination owner, amount, and the delegate (if any) it
// should carry.
type OutputRequest struct {
	Owner    compressedaccount.Pubkey
	Amount   uint64
	Delegate *compressedaccount.Pubkey
}

// Transfer moves value between owners: Σ inputs must equal Σ outputs, all
// inputs must share a mint, and no input may be frozen.
func Transfer(mint compressedaccount.Pubkey, inputs []TokenData, outputs []OutputRequest) ([]TokenData, error) {
	if err := checkNotFrozen(inputs); err != nil {
		return nil, err
	}
	if err := checkSameMint(inputs); err != nil {
		return nil, err
	}

	inputAmounts := make([]uint64, len(inputs))
	for i, in := range inputs {
		inputAmounts[i] = in.Amount
	}
	outputAmounts := make([]uint64, len(outputs))
	for i, out := range outputs {
		outputAmounts[i] = out.Amount
	}
	if err := SumCheck(inputAmounts, outputAmounts, nil, false); err != nil {
		return nil, err
	}

	result := make([]TokenData, len(outputs))
	for i, out := range outputs {
		result[i] = TokenData{Mint: mint, Owner: out.Owner, Amount: out.Amount, Delegate: out.Delegate}
	}
	return result, nil
}

// Compress moves amount from a native SPL-style balance into a new
// compressed output, requiring the source balance to cover it and the mint
// to have no restricted extension (a lone compress is only legal when the
// mint carries none).
func Compress(mint compressedaccount.Pubkey, ext MintExtensions, sourceBalance, amount uint64, recipient compressedaccount.Pubkey) (newSourceBalance uint64, output TokenData, err error) {
	if ext.HasRestrictedExtension() {
		return 0, TokenData{}, txerrors.ErrMintHasRestrictedExtensions
	}
	if amount > sourceBalance {
		return 0, TokenData{}, fmt.Errorf("transfer: %w", txerrors.ErrComputeCompressSum)
	}
	return sourceBalance - amount, TokenData{Mint: mint, Owner: recipient, Amount: amount}, nil
}

// Decompress moves amount out of compressed inputs into a native SPL-style
// destination balance, requiring Σ compressed inputs ≥ amount.
func Decompress(mint compressedaccount.Pubkey, ext MintExtensions, inputs []TokenData, amount uint64, changeOwner compressedaccount.Pubkey) (change *TokenData, newDestinationDelta uint64, err error) {
	if ext.HasRestrictedExtension() {
		return nil, 0, txerrors.ErrMintHasRestrictedExtensions
	}
	if err := checkNotFrozen(inputs); err != nil {
		return nil, 0, err
	}
	if err := checkSameMint(inputs); err != nil {
		return nil, 0, err
	}

	var total uint64
	for _, in := range inputs {
		next := total + in.Amount
		if next < total {
			return nil, 0, fmt.Errorf("transfer: %w", txerrors.ErrComputeInputSumFailed)
		}
		total = next
	}
	if amount > total {
		return nil, 0, fmt.Errorf("transfer: %w", txerrors.ErrComputeDecompressSum)
	}

	remaining := total - amount
	if remaining == 0 {
		return nil, amount, nil
	}
	return &TokenData{Mint: mint, Owner: changeOwner, Amount: remaining}, amount, nil
}

// CompressAndClose is the restricted-extension hot path: it compresses a
// ctoken account's full balance into a single compressed output in the same
// atomic operation that closes the source account, so a mint with a
// restricted extension never needs a lone (non-atomic) compress.
func CompressAndClose(mint compressedaccount.Pubkey, sourceBalance uint64, recipient compressedaccount.Pubkey) TokenData {
	return TokenData{Mint: mint, Owner: recipient, Amount: sourceBalance}
}

// Approve delegates delegatedAmount of Σ inputs to delegate: one delegated
// output carrying the full approved amount, one owner-change output with no
// delegate carrying the remainder.
func Approve(mint compressedaccount.Pubkey, owner compressedaccount.Pubkey, inputs []TokenData, delegatedAmount uint64, delegate compressedaccount.Pubkey) (delegated TokenData, change *TokenData, err error) {
	if err := checkNotFrozen(inputs); err != nil {
		return TokenData{}, nil, err
	}
	if err := checkSameMint(inputs); err != nil {
		return TokenData{}, nil, err
	}

	var total uint64
	for _, in := range inputs {
		next := total + in.Amount
		if next < total {
			return TokenData{}, nil, fmt.Errorf("transfer: %w", txerrors.ErrComputeInputSumFailed)
		}
		total = next
	}
	if delegatedAmount > total {
		return TokenData{}, nil, fmt.Errorf("transfer: %w", txerrors.ErrComputeOutputSumFailed)
	}

	delegated = TokenData{Mint: mint, Owner: owner, Amount: delegatedAmount, Delegate: &delegate}
	remaining := total - delegatedAmount
	if remaining == 0 {
		return delegated, nil, nil
	}
	return delegated, &TokenData{Mint: mint, Owner: owner, Amount: remaining}, nil
}

// Revoke merges inputs (which may carry any delegates) into a single output
// with no delegate at all.
func Revoke(mint compressedaccount.Pubkey, owner compressedaccount.Pubkey, inputs []TokenData) (TokenData, error) {
	if err := checkNotFrozen(inputs); err != nil {
		return TokenData{}, err
	}
	if err := checkSameMint(inputs); err != nil {
		return TokenData{}, err
	}
	var total uint64
	for _, in := range inputs {
		next := total + in.Amount
		if next < total {
			return TokenData{}, fmt.Errorf("transfer: %w", txerrors.ErrComputeInputSumFailed)
		}
		total = next
	}
	return TokenData{Mint: mint, Owner: owner, Amount: total}, nil
}

// Burn destroys burnAmount of Σ inputs, returning an optional change output
// and the amount to decrement the mint's compressed pool balance by.
func Burn(mint compressedaccount.Pubkey, owner compressedaccount.Pubkey, inputs []TokenData, burnAmount uint64) (change *TokenData, poolDelta uint64, err error) {
	if err := checkNotFrozen(inputs); err != nil {
		return nil, 0, err
	}
	if err := checkSameMint(inputs); err != nil {
		return nil, 0, err
	}
	var total uint64
	for _, in := range inputs {
		next := total + in.Amount
		if next < total {
			return nil, 0, fmt.Errorf("transfer: %w", txerrors.ErrComputeInputSumFailed)
		}
		total = next
	}
	if burnAmount > total {
		return nil, 0, fmt.Errorf("transfer: %w", txerrors.ErrComputeOutputSumFailed)
	}
	remaining := total - burnAmount
	if remaining == 0 {
		return nil, burnAmount, nil
	}
	return &TokenData{Mint: mint, Owner: owner, Amount: remaining}, burnAmount, nil
}

// DelegateSigner identifies whether the transaction's signer is the
// account's delegate or its owner, for ApplyDelegationRule.
type DelegateSigner int

const (
	SignerIsOwner DelegateSigner = iota
	SignerIsDelegate
)

// ApplyDelegationRule enforces the delegation preservation rule for a
// delegate-initiated partial transfer: when the delegate signs, the change
// output must carry the same delegate with a decremented amount; when the
// owner signs, the change output must carry no delegate at all.
func ApplyDelegationRule(signer DelegateSigner, delegate compressedaccount.Pubkey, changeAmount uint64) TokenData {
	change := TokenData{Amount: changeAmount}
	if signer == SignerIsDelegate {
		d := delegate
		change.Delegate = &d
	}
	return change
}
