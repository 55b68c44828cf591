// Package txerrors collects the sentinel error values the protocol's error
// taxonomy names, grouped by kind. Call sites wrap these with fmt.Errorf's
// %w so callers can still dispatch on the sentinel via errors.Is.
package txerrors

import "errors"

// Arithmetic.
var (
	ErrUnderflow              = errors.New("arithmetic: underflow")
	ErrOverflow               = errors.New("arithmetic: overflow")
	ErrSumCheckFailed         = errors.New("sum check: inputs and outputs do not balance")
	ErrComputeInputSumFailed  = errors.New("sum check: summing inputs overflowed")
	ErrComputeOutputSumFailed = errors.New("sum check: subtracting outputs underflowed")
	ErrComputeCompressSum     = errors.New("sum check: adding compression amount overflowed")
	ErrComputeDecompressSum   = errors.New("sum check: subtracting decompression amount underflowed")
)

// Auth.
var (
	ErrSignerCheckFailed           = errors.New("auth: required signer missing")
	ErrInvalidDelegate             = errors.New("auth: delegate mismatch")
	ErrAccountFrozen               = errors.New("auth: account is frozen")
	ErrMintHasRestrictedExtensions = errors.New("auth: mint has a restricted extension; only the hot path is allowed")
)

// Structural.
var (
	ErrDiscriminatorMismatch = errors.New("structural: discriminator mismatch")
	ErrNotInFieldRange       = errors.New("structural: value exceeds BN254 scalar field range")
	ErrSizeMismatch          = errors.New("structural: size mismatch")
	ErrTreeFull              = errors.New("structural: tree is full")
	ErrQueueFull             = errors.New("structural: queue ring is full")
	ErrRootMismatch          = errors.New("structural: root mismatch")
	ErrBatchCardinality      = errors.New("structural: batch cardinality mismatch")
)

// Lifecycle.
var (
	ErrNotReadyForRollover   = errors.New("lifecycle: tree not ready for rollover")
	ErrAlreadyRolledOver     = errors.New("lifecycle: tree already rolled over")
	ErrRolloverNotConfigured = errors.New("lifecycle: rollover threshold not configured")
	ErrInvalidNetworkFee     = errors.New("lifecycle: network fee mismatch between source and successor")
)

// Concurrency.
var (
	ErrAlreadyNullified = errors.New("concurrency: nullifier already spent")
	ErrChangelogStale   = errors.New("concurrency: changelog cache is stale")
	ErrProverTimeout    = errors.New("concurrency: prover timed out")
)

// External.
var (
	ErrRPC     = errors.New("external: rpc error")
	ErrIndexer = errors.New("external: indexer error")
)

// ProverError wraps a prover-supplied message, matching the taxonomy's
// ProverError(string) variant — a distinct type rather than a sentinel so
// the message survives errors.As.
type ProverError struct {
	Message string
}

func (e *ProverError) Error() string {
	return "external: prover error: " + e.Message
}

// codes assigns each protocol error its stable numeric code, starting at
// 6000 the way Anchor programs number custom errors. External tools match
// on these codes in event logs, so the assignment is frozen.
var codes = []struct {
	err  error
	code uint32
}{
	{ErrComputeInputSumFailed, 6000},
	{ErrComputeCompressSum, 6001},
	{ErrComputeDecompressSum, 6002},
	{ErrComputeOutputSumFailed, 6003},
	{ErrSumCheckFailed, 6004},
	{ErrSignerCheckFailed, 6005},
	{ErrInvalidDelegate, 6006},
	{ErrAccountFrozen, 6007},
	{ErrMintHasRestrictedExtensions, 6008},
	{ErrDiscriminatorMismatch, 6009},
	{ErrNotInFieldRange, 6010},
	{ErrSizeMismatch, 6011},
	{ErrTreeFull, 6012},
	{ErrRootMismatch, 6013},
	{ErrBatchCardinality, 6014},
	{ErrNotReadyForRollover, 6015},
	{ErrAlreadyRolledOver, 6016},
	{ErrRolloverNotConfigured, 6017},
	{ErrInvalidNetworkFee, 6018},
	{ErrAlreadyNullified, 6019},
	{ErrChangelogStale, 6020},
	{ErrProverTimeout, 6021},
	{ErrUnderflow, 6022},
	{ErrOverflow, 6023},
	{ErrQueueFull, 6024},
}

// Code returns the numeric code for err (matched through wrapping via
// errors.Is), or 0 when err carries no protocol code.
func Code(err error) uint32 {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return 0
}
