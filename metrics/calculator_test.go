package metrics

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/rollup-telemetry/rpcclient"
)

func testTx(hash byte, gas uint64, inputLen int) *rpcclient.RawTransaction {
	to := common.HexToAddress("0xabcd000000000000000000000000000000000000")
	return &rpcclient.RawTransaction{
		Hash:  common.Hash{hash},
		From:  common.HexToAddress("0x1000000000000000000000000000000000000001"),
		To:    &to,
		Gas:   gas,
		Input: make([]byte, inputLen),
		Value: uint256.NewInt(0),
	}
}

func testReceipt(hash byte, gasUsed uint64) *rpcclient.RawReceipt {
	return &rpcclient.RawReceipt{
		TxHash:  common.Hash{hash},
		GasUsed: gasUsed,
		Status:  true,
	}
}

func TestProcessBlock_ComputeStorageSplit(t *testing.T) {
	block := &rpcclient.RawBlock{
		Number:   100,
		Hash:     common.Hash{0xbb},
		GasUsed:  621_000,
		GasLimit: 30_000_000,
		Time:     1_700_000_000,
		Transactions: []*rpcclient.RawTransaction{
			testTx(1, 21_000, 0),    // simple transfer: 30% compute
			testTx(2, 500_000, 132), // contract call: 70% compute
			testTx(3, 100_000, 36),  // contract call: 70% compute
		},
	}
	receipts := []*rpcclient.RawReceipt{
		testReceipt(1, 21_000),
		testReceipt(2, 500_000),
		testReceipt(3, 100_000),
	}

	var calc Calculator
	aggregate, txs := calc.ProcessBlock(block, receipts)
	require.Len(t, txs, 3)

	assert.Equal(t, uint64(6_300), txs[0].ComputeGas)
	assert.Equal(t, uint64(350_000), txs[1].ComputeGas)
	assert.Equal(t, uint64(70_000), txs[2].ComputeGas)

	assert.Equal(t, uint64(100), aggregate.BlockNumber)
	assert.Equal(t, uint64(3), aggregate.TxCount)
	assert.Equal(t, uint64(621_000), aggregate.TotalGas)
	assert.Equal(t, uint64(426_300), aggregate.ComputeGas)
	assert.Equal(t, uint64(194_700), aggregate.StorageGas)
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), aggregate.Timestamp)
	assert.Equal(t, uint64(30_000_000), aggregate.GasLimit)
}

func TestProcessBlock_AggregateMatchesRecords(t *testing.T) {
	block := &rpcclient.RawBlock{
		Number: 7,
		Time:   1_700_000_000,
		Transactions: []*rpcclient.RawTransaction{
			testTx(1, 21_000, 0),
			testTx(2, 80_000, 4), // input of exactly selector size stays a transfer
			testTx(3, 1_234_567, 4096),
		},
	}
	receipts := []*rpcclient.RawReceipt{
		testReceipt(1, 21_000),
		testReceipt(2, 77_123),
		testReceipt(3, 900_001),
	}

	var calc Calculator
	aggregate, txs := calc.ProcessBlock(block, receipts)

	var sums BlockMetrics
	for _, tx := range txs {
		require.Equal(t, tx.TotalGas, tx.ComputeGas+tx.StorageGas)
		sums.TotalGas += tx.TotalGas
		sums.ComputeGas += tx.ComputeGas
		sums.StorageGas += tx.StorageGas
		sums.TxSize += tx.TxSize
		sums.DASize += tx.DASize
		sums.DataSize += tx.DataSize
		sums.KVUpdates += tx.KVUpdates
		sums.StateGrowth += tx.StateGrowth
	}
	assert.Equal(t, sums.TotalGas, aggregate.TotalGas)
	assert.Equal(t, sums.ComputeGas, aggregate.ComputeGas)
	assert.Equal(t, sums.StorageGas, aggregate.StorageGas)
	assert.Equal(t, sums.TxSize, aggregate.TxSize)
	assert.Equal(t, sums.DASize, aggregate.DASize)
	assert.Equal(t, sums.DataSize, aggregate.DataSize)
	assert.Equal(t, sums.KVUpdates, aggregate.KVUpdates)
	assert.Equal(t, sums.StateGrowth, aggregate.StateGrowth)
}

func TestProcessBlock_MissingReceiptFallsBack(t *testing.T) {
	block := &rpcclient.RawBlock{
		Number: 9,
		Time:   1_700_000_000,
		Transactions: []*rpcclient.RawTransaction{
			testTx(1, 55_000, 0),
			testTx(2, 90_000, 0),
		},
	}
	// Only the first transaction has a receipt.
	receipts := []*rpcclient.RawReceipt{testReceipt(1, 21_000)}

	var calc Calculator
	aggregate, txs := calc.ProcessBlock(block, receipts)
	require.Len(t, txs, 2)
	assert.Equal(t, uint64(21_000), txs[0].TotalGas, "receipt gas wins")
	assert.Equal(t, uint64(90_000), txs[1].TotalGas, "falls back to tx gas limit")
	assert.Equal(t, uint64(111_000), aggregate.TotalGas)
}

func TestProcessBlock_DepositHasNoDASize(t *testing.T) {
	deposit := testTx(1, 100_000, 200)
	deposit.Type = 0x7e
	regular := testTx(2, 100_000, 200)
	regular.Type = 2

	block := &rpcclient.RawBlock{
		Number:       11,
		Time:         1_700_000_000,
		Transactions: []*rpcclient.RawTransaction{deposit, regular},
	}

	var calc Calculator
	_, txs := calc.ProcessBlock(block, nil)
	require.Len(t, txs, 2)
	assert.Zero(t, txs[0].DASize)
	assert.NotZero(t, txs[0].TxSize, "deposits still count toward tx size")
	assert.NotZero(t, txs[1].DASize)
}

func TestEstimateExecMetrics(t *testing.T) {
	tests := []struct {
		name               string
		totalGas, inputLen uint64
		compute, data      uint64
		kvUpdates, growth  uint64
	}{
		{name: "transfer", totalGas: 21_000, inputLen: 0, compute: 6_300, data: 0, kvUpdates: 1, growth: 0},
		{name: "call", totalGas: 500_000, inputLen: 132, compute: 350_000, data: 132, kvUpdates: 25, growth: 5},
		{name: "zero gas floors kv at one", totalGas: 0, inputLen: 0, compute: 0, data: 0, kvUpdates: 1, growth: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compute, data, kv, growth := estimateExecMetrics(tt.totalGas, tt.inputLen)
			assert.Equal(t, tt.compute, compute)
			assert.Equal(t, tt.data, data)
			assert.Equal(t, tt.kvUpdates, kv)
			assert.Equal(t, tt.growth, growth)
		})
	}
}
