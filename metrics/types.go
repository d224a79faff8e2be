// Package metrics derives and stores per-transaction and per-block
// resource usage along the chain's eight dimensions: total gas, compute
// gas, storage gas, transaction size, DA size, data size, key-value
// updates and state growth.
package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxMetrics is the resource usage of one transaction. Records are
// written once by the calculator and never mutated.
type TxMetrics struct {
	TxHash      common.Hash     `json:"tx_hash"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   time.Time       `json:"timestamp"`
	To          *common.Address `json:"to"`
	From        common.Address  `json:"from"`

	TotalGas    uint64 `json:"total_gas"`
	ComputeGas  uint64 `json:"compute_gas"`
	StorageGas  uint64 `json:"storage_gas"`
	TxSize      uint64 `json:"tx_size"`
	DASize      uint64 `json:"da_size"`
	DataSize    uint64 `json:"data_size"`
	KVUpdates   uint64 `json:"kv_updates"`
	StateGrowth uint64 `json:"state_growth"`
}

// BlockMetrics aggregates one block: the element-wise sums of its
// transactions' metrics plus block identity and the gas limit.
type BlockMetrics struct {
	BlockNumber uint64      `json:"block_number"`
	BlockHash   common.Hash `json:"block_hash"`
	Timestamp   time.Time   `json:"timestamp"`
	TxCount     uint64      `json:"tx_count"`

	TotalGas    uint64 `json:"total_gas"`
	ComputeGas  uint64 `json:"compute_gas"`
	StorageGas  uint64 `json:"storage_gas"`
	TxSize      uint64 `json:"tx_size"`
	DASize      uint64 `json:"da_size"`
	DataSize    uint64 `json:"data_size"`
	KVUpdates   uint64 `json:"kv_updates"`
	StateGrowth uint64 `json:"state_growth"`

	GasLimit uint64 `json:"gas_limit"`
}

// WindowStats summarizes all blocks and transactions inside a sliding
// time window: per-block means and sums, per-transaction p95 and max.
type WindowStats struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	BlockCount  uint64    `json:"block_count"`
	TxCount     uint64    `json:"tx_count"`

	MeanTotalGas    float64 `json:"mean_total_gas"`
	MeanComputeGas  float64 `json:"mean_compute_gas"`
	MeanStorageGas  float64 `json:"mean_storage_gas"`
	MeanTxSize      float64 `json:"mean_tx_size"`
	MeanDASize      float64 `json:"mean_da_size"`
	MeanDataSize    float64 `json:"mean_data_size"`
	MeanKVUpdates   float64 `json:"mean_kv_updates"`
	MeanStateGrowth float64 `json:"mean_state_growth"`

	P95TotalGas    uint64 `json:"p95_total_gas"`
	P95ComputeGas  uint64 `json:"p95_compute_gas"`
	P95StorageGas  uint64 `json:"p95_storage_gas"`
	P95TxSize      uint64 `json:"p95_tx_size"`
	P95DASize      uint64 `json:"p95_da_size"`
	P95DataSize    uint64 `json:"p95_data_size"`
	P95KVUpdates   uint64 `json:"p95_kv_updates"`
	P95StateGrowth uint64 `json:"p95_state_growth"`

	MaxTotalGas    uint64 `json:"max_total_gas"`
	MaxComputeGas  uint64 `json:"max_compute_gas"`
	MaxStorageGas  uint64 `json:"max_storage_gas"`
	MaxTxSize      uint64 `json:"max_tx_size"`
	MaxDASize      uint64 `json:"max_da_size"`
	MaxDataSize    uint64 `json:"max_data_size"`
	MaxKVUpdates   uint64 `json:"max_kv_updates"`
	MaxStateGrowth uint64 `json:"max_state_growth"`

	SumTotalGas    uint64 `json:"sum_total_gas"`
	SumComputeGas  uint64 `json:"sum_compute_gas"`
	SumStorageGas  uint64 `json:"sum_storage_gas"`
	SumTxSize      uint64 `json:"sum_tx_size"`
	SumDASize      uint64 `json:"sum_da_size"`
	SumDataSize    uint64 `json:"sum_data_size"`
	SumKVUpdates   uint64 `json:"sum_kv_updates"`
	SumStateGrowth uint64 `json:"sum_state_growth"`
}
