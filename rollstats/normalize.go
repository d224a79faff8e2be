package rollstats

import (
	"math"

	"github.com/NethermindEth/rollup-telemetry/params"
)

// Normalized scores one observation against the recent distribution and
// its protocol limit.
type Normalized struct {
	Raw            uint64  `json:"raw"`
	Score          float64 `json:"score"` // -100 to +100
	UtilizationPct float64 `json:"utilization_pct"`
	Limit          uint64  `json:"limit"`
}

// NormalizedBlock carries the normalized view of all tracked metrics.
type NormalizedBlock struct {
	Gas         Normalized `json:"gas"`
	KVUpdates   Normalized `json:"kv_updates"`
	TxSize      Normalized `json:"tx_size"`
	DASize      Normalized `json:"da_size"`
	DataSize    Normalized `json:"data_size"`
	StateGrowth Normalized `json:"state_growth"`
}

// Normalize scores value against stats and the protocol limit.
//
// The common case is a sigmoid centered on the empirical median, scaled
// by the interquartile range, which keeps typical traffic near zero with
// usable dynamic range. Two departures from it:
//
//   - with no samples or zero spread the score degrades to pure
//     utilization mapped onto [-100, 100];
//   - past half the protocol limit the score is floored at the
//     utilization percentage, so a block nearing the ceiling reads as
//     saturated even when recent traffic has been quiet.
func Normalize(value uint64, stats PercentileStats, limit uint64) Normalized {
	utilization := float64(value) / float64(limit)
	utilizationPct := utilization * 100

	if stats.Count == 0 || stats.IQR == 0 {
		return Normalized{
			Raw:            value,
			Score:          clampScore(utilization*200 - 100),
			UtilizationPct: utilizationPct,
			Limit:          limit,
		}
	}

	spread := float64(stats.IQR) * params.NormalizerIQRMultiplier
	x := (float64(value) - float64(stats.Median)) / spread
	score := math.Tanh(x) * 100

	if utilization > params.CapacityWarningThreshold {
		if capacityScore := utilization * 100; capacityScore > score {
			score = capacityScore
		}
	}

	return Normalized{
		Raw:            value,
		Score:          clampScore(score),
		UtilizationPct: utilizationPct,
		Limit:          limit,
	}
}

// NormalizeBlock scores a block's per-block values against the current
// rolling distribution and the protocol limits.
func (r *Rolling) NormalizeBlock(totalGas, kvUpdates, txSize, daSize, dataSize, stateGrowth uint64) NormalizedBlock {
	stats := r.Stats()
	return NormalizedBlock{
		Gas:         Normalize(totalGas, stats.Gas, params.BlockGasLimit),
		KVUpdates:   Normalize(kvUpdates, stats.KVUpdates, params.BlockKVUpdateLimit),
		TxSize:      Normalize(txSize, stats.TxSize, params.BlockTxSizeLimit),
		DASize:      Normalize(daSize, stats.DASize, params.BlockDASizeLimit),
		DataSize:    Normalize(dataSize, stats.DataSize, params.BlockDataLimit),
		StateGrowth: Normalize(stateGrowth, stats.StateGrowth, params.BlockStateGrowthLimit),
	}
}

func clampScore(score float64) float64 {
	return math.Max(-100, math.Min(100, score))
}
