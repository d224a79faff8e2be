// Package poller tails the chain head at a confirmation lag, sequencing
// every block through the metrics pipeline exactly once.
package poller

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	"golang.org/x/sync/errgroup"

	"github.com/NethermindEth/rollup-telemetry/bus"
	"github.com/NethermindEth/rollup-telemetry/metrics"
	"github.com/NethermindEth/rollup-telemetry/rollstats"
	"github.com/NethermindEth/rollup-telemetry/rpcclient"
)

var (
	blocksProcessedMeter = gethmetrics.NewRegisteredMeter("poller/blocks", nil)
	txsProcessedMeter    = gethmetrics.NewRegisteredMeter("poller/txs", nil)
	fetchFailureMeter    = gethmetrics.NewRegisteredMeter("poller/fetch/failures", nil)
	headGauge            = gethmetrics.NewRegisteredGauge("poller/head", nil)
	processedGauge       = gethmetrics.NewRegisteredGauge("poller/processed", nil)
)

const (
	// DefaultInterval between polling ticks.
	DefaultInterval = time.Second
	// DefaultConfirmations is how far behind the head the poller stays.
	// Blocks inside this band may still reorg and are never processed.
	DefaultConfirmations = 5
	// maxBlocksPerTick bounds catch-up work per tick.
	maxBlocksPerTick = 100
	// backfillDepth is how far behind the confirmed head a fresh poller
	// starts.
	backfillDepth = 100
)

// Client is the subset of the RPC adapter the poller needs.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*rpcclient.RawBlock, error)
	BlockReceipts(ctx context.Context, number uint64) ([]*rpcclient.RawReceipt, error)
}

// Config carries the poller knobs; zero values select the defaults.
type Config struct {
	Interval      time.Duration
	Confirmations uint64
}

// Poller drives the ingestion pipeline. Blocks are processed strictly in
// ascending order; a block is inserted into the store, sampled into the
// estimator and published on the bus, in that order.
type Poller struct {
	client  Client
	store   *metrics.Store
	rolling *rollstats.Rolling
	bus     *bus.Bus
	calc    metrics.Calculator
	log     log.Logger

	interval      time.Duration
	confirmations uint64

	next        uint64
	initialized bool
}

// New creates a poller over the given pipeline components.
func New(client Client, store *metrics.Store, rolling *rollstats.Rolling, b *bus.Bus, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Confirmations == 0 {
		cfg.Confirmations = DefaultConfirmations
	}
	return &Poller{
		client:        client,
		store:         store,
		rolling:       rolling,
		bus:           b,
		log:           log.New("component", "poller"),
		interval:      cfg.Interval,
		confirmations: cfg.Confirmations,
	}
}

// Run polls until ctx is cancelled. Failures are logged and retried on
// the next tick; the loop never stops on its own.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("Starting block poller", "interval", p.interval, "confirmations", p.confirmations)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("Block poller stopped")
			return
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil && ctx.Err() == nil {
				p.log.Error("Poll failed", "err", err)
			}
		}
	}
}

// pollOnce processes up to maxBlocksPerTick blocks behind the
// confirmation band.
func (p *Poller) pollOnce(ctx context.Context) error {
	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		return err
	}
	headGauge.Update(int64(head))
	if head < p.confirmations {
		return nil
	}
	target := head - p.confirmations

	if !p.initialized {
		start := uint64(0)
		if target > backfillDepth {
			start = target - backfillDepth
		}
		p.next = start
		p.initialized = true
		p.log.Info("Poller initialized", "head", head, "start", start, "target", target)
	}

	for processed := 0; p.next <= target && processed < maxBlocksPerTick; processed++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		number := p.next
		err := p.processBlock(ctx, number)
		switch {
		case err == nil:
			p.next = number + 1
		case rpcclient.KindOf(err) == rpcclient.KindMalformed:
			// Not retryable; a malformed block stays malformed.
			p.log.Warn("Skipping malformed block", "number", number, "err", err)
			p.next = number + 1
		case rpcclient.IsNotFound(err):
			p.log.Warn("Block not yet available", "number", number)
			fetchFailureMeter.Mark(1)
			return nil
		default:
			fetchFailureMeter.Mark(1)
			return err
		}
	}
	return nil
}

// processBlock fetches block and receipts concurrently, derives metrics
// and feeds the store, the estimator and the bus.
func (p *Poller) processBlock(ctx context.Context, number uint64) error {
	var (
		block    *rpcclient.RawBlock
		receipts []*rpcclient.RawReceipt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		block, err = p.client.BlockByNumber(gctx, number)
		return err
	})
	g.Go(func() error {
		var err error
		receipts, err = p.client.BlockReceipts(gctx, number)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if len(receipts) != len(block.Transactions) {
		p.log.Warn("Receipt count mismatch", "number", number,
			"txs", len(block.Transactions), "receipts", len(receipts))
	}

	blockMetrics, txMetrics := p.calc.ProcessBlock(block, receipts)
	p.store.Add(blockMetrics, txMetrics)
	p.rolling.AddValues(blockMetrics.TotalGas, blockMetrics.KVUpdates, blockMetrics.TxSize,
		blockMetrics.DASize, blockMetrics.DataSize, blockMetrics.StateGrowth)
	p.bus.Publish(bus.BlockEvent{Block: blockMetrics})

	blocksProcessedMeter.Mark(1)
	txsProcessedMeter.Mark(int64(len(txMetrics)))
	processedGauge.Update(int64(number))
	p.log.Debug("Processed block", "number", number, "txs", len(txMetrics),
		"gas", blockMetrics.TotalGas, "daSize", blockMetrics.DASize)
	return nil
}
