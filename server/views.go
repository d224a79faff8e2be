package server

import (
	"net/http"
	"time"

	"github.com/NethermindEth/rollup-telemetry/metrics"
	"github.com/NethermindEth/rollup-telemetry/params"
)

// RingView is the activity-ring payload: window aggregates folded into
// a handful of [0, 1] factors plus the raw sums dashboards display.
type RingView struct {
	GasNormalized float64 `json:"gas_normalized"`
	KVNormalized  float64 `json:"kv_normalized"`
	ComputeRatio  float64 `json:"compute_ratio"`
	ActivityLevel float64 `json:"activity_level"`

	TotalGas   uint64 `json:"total_gas"`
	ComputeGas uint64 `json:"compute_gas"`
	StorageGas uint64 `json:"storage_gas"`
	KVUpdates  uint64 `json:"kv_updates"`
	DASize     uint64 `json:"da_size"`
	TxCount    uint64 `json:"tx_count"`
	BlockCount uint64 `json:"block_count"`
}

// DialMetrics is one gauge of the dual compute/storage dial view.
type DialMetrics struct {
	Mean       float64 `json:"mean"`
	P95        uint64  `json:"p95"`
	Max        uint64  `json:"max"`
	Sum        uint64  `json:"sum"`
	Normalized float64 `json:"normalized"`
}

// DialView carries both dials plus the window totals.
type DialView struct {
	Compute DialMetrics `json:"compute"`
	Storage DialMetrics `json:"storage"`

	TotalGas   uint64 `json:"total_gas"`
	BlockCount uint64 `json:"block_count"`
	TxCount    uint64 `json:"tx_count"`
}

func (s *Server) handleRing(w http.ResponseWriter, r *http.Request) {
	seconds := queryUint(r, "seconds", defaultWindowSeconds)
	stats := s.store.WindowStats(time.Duration(seconds) * time.Second)
	writeJSON(w, http.StatusOK, ringView(stats))
}

func (s *Server) handleDials(w http.ResponseWriter, r *http.Request) {
	seconds := queryUint(r, "seconds", defaultWindowSeconds)
	stats := s.store.WindowStats(time.Duration(seconds) * time.Second)
	writeJSON(w, http.StatusOK, dialView(stats))
}

func ringView(stats *metrics.WindowStats) RingView {
	gasNormalized := clamp01(stats.MeanTotalGas / params.TypicalMaxGasPerBlock)
	kvNormalized := clamp01(stats.MeanKVUpdates / params.TypicalMaxKVPerBlock)

	computeRatio := 0.5 // no traffic reads as balanced
	if stats.MeanTotalGas > 0 {
		computeRatio = stats.MeanComputeGas / stats.MeanTotalGas
	}

	activity := clamp01(gasNormalized*0.5 + kvNormalized*0.3 + computeRatio*0.2)

	return RingView{
		GasNormalized: gasNormalized,
		KVNormalized:  kvNormalized,
		ComputeRatio:  computeRatio,
		ActivityLevel: activity,
		TotalGas:      stats.SumTotalGas,
		ComputeGas:    stats.SumComputeGas,
		StorageGas:    stats.SumStorageGas,
		KVUpdates:     stats.SumKVUpdates,
		DASize:        stats.SumDASize,
		TxCount:       stats.TxCount,
		BlockCount:    stats.BlockCount,
	}
}

func dialView(stats *metrics.WindowStats) DialView {
	return DialView{
		Compute: DialMetrics{
			Mean:       stats.MeanComputeGas,
			P95:        stats.P95ComputeGas,
			Max:        stats.MaxComputeGas,
			Sum:        stats.SumComputeGas,
			Normalized: clamp01(stats.MeanComputeGas / params.TypicalMaxComputeGas),
		},
		Storage: DialMetrics{
			Mean:       stats.MeanStorageGas,
			P95:        stats.P95StorageGas,
			Max:        stats.MaxStorageGas,
			Sum:        stats.SumStorageGas,
			Normalized: clamp01(stats.MeanStorageGas / params.TypicalMaxStorageGas),
		},
		TotalGas:   stats.SumTotalGas,
		BlockCount: stats.BlockCount,
		TxCount:    stats.TxCount,
	}
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
