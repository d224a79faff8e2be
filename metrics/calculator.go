package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/NethermindEth/rollup-telemetry/params"
	"github.com/NethermindEth/rollup-telemetry/rpcclient"
	"github.com/NethermindEth/rollup-telemetry/txsize"
)

// Calculator derives the eight resource metrics from a raw block and its
// receipts. It is pure and safe for concurrent use.
type Calculator struct{}

// ProcessBlock returns the block aggregate and one record per
// transaction. Receipts may be missing for some transactions; total gas
// then falls back to the transaction's gas limit, keeping the aggregate
// consistent with the retained per-transaction records.
func (Calculator) ProcessBlock(block *rpcclient.RawBlock, receipts []*rpcclient.RawReceipt) (*BlockMetrics, []*TxMetrics) {
	timestamp := time.Unix(int64(block.Time), 0).UTC()

	receiptsByHash := make(map[common.Hash]*rpcclient.RawReceipt, len(receipts))
	for _, receipt := range receipts {
		receiptsByHash[receipt.TxHash] = receipt
	}

	aggregate := &BlockMetrics{
		BlockNumber: block.Number,
		BlockHash:   block.Hash,
		Timestamp:   timestamp,
		GasLimit:    block.GasLimit,
	}
	txMetrics := make([]*TxMetrics, 0, len(block.Transactions))

	for _, tx := range block.Transactions {
		totalGas := tx.Gas
		if receipt, ok := receiptsByHash[tx.Hash]; ok {
			totalGas = receipt.GasUsed
		}

		computeGas, dataSize, kvUpdates, stateGrowth := estimateExecMetrics(totalGas, uint64(len(tx.Input)))
		storageGas := uint64(0)
		if totalGas > computeGas {
			storageGas = totalGas - computeGas
		}

		record := &TxMetrics{
			TxHash:      tx.Hash,
			BlockNumber: block.Number,
			Timestamp:   timestamp,
			To:          tx.To,
			From:        tx.From,
			TotalGas:    totalGas,
			ComputeGas:  computeGas,
			StorageGas:  storageGas,
			TxSize:      txsize.EncodedSize(tx),
			DASize:      txsize.DASize(tx),
			DataSize:    dataSize,
			KVUpdates:   kvUpdates,
			StateGrowth: stateGrowth,
		}

		aggregate.TotalGas += record.TotalGas
		aggregate.ComputeGas += record.ComputeGas
		aggregate.StorageGas += record.StorageGas
		aggregate.TxSize += record.TxSize
		aggregate.DASize += record.DASize
		aggregate.DataSize += record.DataSize
		aggregate.KVUpdates += record.KVUpdates
		aggregate.StateGrowth += record.StateGrowth

		txMetrics = append(txMetrics, record)
	}

	aggregate.TxCount = uint64(len(txMetrics))
	return aggregate, txMetrics
}

// estimateExecMetrics stands in for execution-trace metering until the
// tracer integration supplies these directly. Replacements must keep all
// values non-negative with compute never exceeding total.
func estimateExecMetrics(totalGas, inputLen uint64) (computeGas, dataSize, kvUpdates, stateGrowth uint64) {
	if inputLen > 4 {
		computeGas = uint64(float64(totalGas) * params.CallComputeGasRatio)
	} else {
		computeGas = uint64(float64(totalGas) * params.TransferComputeGasRatio)
	}
	dataSize = inputLen
	kvUpdates = totalGas / params.GasPerKVUpdate
	if kvUpdates == 0 {
		kvUpdates = 1
	}
	stateGrowth = kvUpdates / params.KVUpdatesPerStateGrowth
	return computeGas, dataSize, kvUpdates, stateGrowth
}
