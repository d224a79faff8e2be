// Package params holds the protocol resource limits and the tuning
// constants used by the telemetry pipeline.
package params

// Per-block resource limits enforced by the protocol. Utilization and
// capacity-warning scores are computed against these ceilings.
const (
	BlockGasLimit         uint64 = 30_000_000
	BlockKVUpdateLimit    uint64 = 500_000
	BlockTxSizeLimit      uint64 = 1_000_000  // bytes
	BlockDASizeLimit      uint64 = 1_000_000  // compressed bytes
	BlockDataLimit        uint64 = 10_000_000 // bytes
	BlockStateGrowthLimit uint64 = 100_000
)

// DepositTxType is the EIP-2718 type tag of sequencer-injected L1->L2
// deposit transactions. Deposits are never posted to the DA layer.
const DepositTxType uint8 = 0x7e

// Execution-resource estimation constants, pending execution-trace
// integration. Replacements must keep storage = total - compute and all
// fields non-negative.
const (
	CallComputeGasRatio     = 0.7 // input longer than a selector
	TransferComputeGasRatio = 0.3

	GasPerKVUpdate          uint64 = 20_000
	KVUpdatesPerStateGrowth uint64 = 5
)

// Normalizer tuning.
const (
	NormalizerIQRMultiplier  = 1.5
	CapacityWarningThreshold = 0.5
)

// Dashboard normalization denominators.
const (
	TypicalMaxGasPerBlock = 30_000_000.0
	TypicalMaxKVPerBlock  = 1_000.0
	TypicalMaxComputeGas  = 20_000_000.0
	TypicalMaxStorageGas  = 10_000_000.0
)
