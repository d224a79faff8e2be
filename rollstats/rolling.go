// Package rollstats maintains a bounded rolling window of per-block
// metric samples, computes empirical percentiles over it, and normalizes
// fresh observations against the distribution and the protocol limits.
package rollstats

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultWindow is how much history the estimator considers.
	DefaultWindow = 10 * time.Minute
	// DefaultMaxSamples bounds memory regardless of block cadence.
	DefaultMaxSamples = 2000
)

// Sample carries the per-block values tracked for percentiles. The
// compute/storage split is derived downstream and not sampled here.
type Sample struct {
	Time        time.Time
	TotalGas    uint64
	KVUpdates   uint64
	TxSize      uint64
	DASize      uint64
	DataSize    uint64
	StateGrowth uint64
}

// PercentileStats describes the empirical distribution of one metric.
type PercentileStats struct {
	Min    uint64 `json:"min"`
	P10    uint64 `json:"p10"`
	P25    uint64 `json:"p25"`
	Median uint64 `json:"median"`
	P75    uint64 `json:"p75"`
	P90    uint64 `json:"p90"`
	Max    uint64 `json:"max"`
	IQR    uint64 `json:"iqr"` // p75 - p25, clamped at zero
	Count  int    `json:"count"`
}

// Stats bundles the percentile stats of all tracked metrics.
type Stats struct {
	Gas         PercentileStats `json:"gas"`
	KVUpdates   PercentileStats `json:"kv_updates"`
	TxSize      PercentileStats `json:"tx_size"`
	DASize      PercentileStats `json:"da_size"`
	DataSize    PercentileStats `json:"data_size"`
	StateGrowth PercentileStats `json:"state_growth"`
}

// Rolling is the bounded sample deque. On insertion, samples older than
// the window are evicted first, then the oldest sample is dropped if the
// capacity bound would be exceeded.
type Rolling struct {
	mu         sync.Mutex
	window     time.Duration
	maxSamples int
	samples    []Sample
}

// New creates an estimator with the default window and capacity.
func New() *Rolling {
	return NewWithParams(DefaultWindow, DefaultMaxSamples)
}

// NewWithParams creates an estimator with a custom window and capacity.
func NewWithParams(window time.Duration, maxSamples int) *Rolling {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Rolling{window: window, maxSamples: maxSamples}
}

// Add inserts one sample. A zero Time is stamped with the current time.
func (r *Rolling) Add(sample Sample) {
	if sample.Time.IsZero() {
		sample.Time = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	i := 0
	for i < len(r.samples) && r.samples[i].Time.Before(cutoff) {
		i++
	}
	r.samples = r.samples[i:]

	if len(r.samples) >= r.maxSamples {
		r.samples = r.samples[1:]
	}
	r.samples = append(r.samples, sample)
}

// AddValues inserts a sample from raw per-block values, stamped now.
func (r *Rolling) AddValues(totalGas, kvUpdates, txSize, daSize, dataSize, stateGrowth uint64) {
	r.Add(Sample{
		TotalGas:    totalGas,
		KVUpdates:   kvUpdates,
		TxSize:      txSize,
		DASize:      daSize,
		DataSize:    dataSize,
		StateGrowth: stateGrowth,
	})
}

// Count returns the number of retained samples.
func (r *Rolling) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Stats computes the percentile stats of every tracked metric over the
// retained samples.
func (r *Rolling) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) == 0 {
		return Stats{}
	}
	return Stats{
		Gas:         r.percentiles(func(s *Sample) uint64 { return s.TotalGas }),
		KVUpdates:   r.percentiles(func(s *Sample) uint64 { return s.KVUpdates }),
		TxSize:      r.percentiles(func(s *Sample) uint64 { return s.TxSize }),
		DASize:      r.percentiles(func(s *Sample) uint64 { return s.DASize }),
		DataSize:    r.percentiles(func(s *Sample) uint64 { return s.DataSize }),
		StateGrowth: r.percentiles(func(s *Sample) uint64 { return s.StateGrowth }),
	}
}

// percentiles reads the nearest-rank percentiles of one metric. The
// caller holds the lock.
func (r *Rolling) percentiles(value func(*Sample) uint64) PercentileStats {
	values := make([]uint64, len(r.samples))
	for i := range r.samples {
		values[i] = value(&r.samples[i])
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	n := len(values)
	p25 := values[n*25/100]
	p75 := values[n*75/100]
	iqr := uint64(0)
	if p75 > p25 {
		iqr = p75 - p25
	}
	return PercentileStats{
		Min:    values[0],
		P10:    values[n*10/100],
		P25:    p25,
		Median: values[n*50/100],
		P75:    p75,
		P90:    values[n*90/100],
		Max:    values[n-1],
		IQR:    iqr,
		Count:  n,
	}
}
