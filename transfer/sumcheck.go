// Package transfer implements the compressed-token transfer state machine:
// sum-checked Transfer/Compress/Decompress/CompressAndClose/Approve/Revoke/
// Burn operations over TokenData-bearing compressed accounts.
package transfer

import (
	"fmt"

	"github.com/lightprotocol/forester-go/txerrors"
)

// SumCheck verifies Σ inputs + (isCompress ? compressionAmount : 0) ==
// Σ outputs + (¬isCompress ? compressionAmount : 0), mirroring
// process_transfer.rs's sum_check exactly, including which named error each
// arithmetic step raises on failure.
func SumCheck(inputAmounts []uint64, outputAmounts []uint64, compressionAmount *uint64, isCompress bool) error {
	var sum uint64
	for _, in := range inputAmounts {
		next := sum + in
		if next < sum {
			return fmt.Errorf("transfer: %w", txerrors.ErrComputeInputSumFailed)
		}
		sum = next
	}

	if compressionAmount != nil {
		if isCompress {
			next := sum + *compressionAmount
			if next < sum {
				return fmt.Errorf("transfer: %w", txerrors.ErrComputeCompressSum)
			}
			sum = next
		} else {
			if *compressionAmount > sum {
				return fmt.Errorf("transfer: %w", txerrors.ErrComputeDecompressSum)
			}
			sum -= *compressionAmount
		}
	}

	for _, out := range outputAmounts {
		if out > sum {
			return fmt.Errorf("transfer: %w", txerrors.ErrComputeOutputSumFailed)
		}
		sum -= out
	}

	if sum != 0 {
		return txerrors.ErrSumCheckFailed
	}
	return nil
}
