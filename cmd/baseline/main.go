// baseline fetches a stretch of recent blocks and prints the empirical
// percentile baseline of every tracked metric, plus a normalized reading
// of the newest block. Useful for sanity-checking the normalizer against
// live traffic before deploying.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/NethermindEth/rollup-telemetry/metrics"
	"github.com/NethermindEth/rollup-telemetry/params"
	"github.com/NethermindEth/rollup-telemetry/rollstats"
	"github.com/NethermindEth/rollup-telemetry/rpcclient"
)

var (
	rpcURLFlag = &cli.StringFlag{
		Name:    "rpc",
		Usage:   "Chain JSON-RPC endpoint",
		Value:   "https://carrot.megaeth.com/rpc",
		EnvVars: []string{"RPC_URL"},
	}
	blocksFlag = &cli.Uint64Flag{
		Name:  "blocks",
		Usage: "How many recent blocks to sample",
		Value: 500,
	}
	concurrencyFlag = &cli.IntFlag{
		Name:  "concurrency",
		Usage: "Parallel block fetches",
		Value: 8,
	}
	outputFlag = &cli.StringFlag{
		Name:  "output",
		Usage: "Write the computed baseline as JSON to this file",
	}
)

func main() {
	app := &cli.App{
		Name:   "baseline",
		Usage:  "compute the percentile baseline of recent chain traffic",
		Flags:  []cli.Flag{rpcURLFlag, blocksFlag, concurrencyFlag, outputFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.LevelWarn, useColor)))

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := rpcclient.DialContext(rootCtx, ctx.String(rpcURLFlag.Name))
	if err != nil {
		return err
	}
	defer client.Close()

	head, err := client.BlockNumber(rootCtx)
	if err != nil {
		return err
	}
	count := ctx.Uint64(blocksFlag.Name)
	start := uint64(0)
	if head >= count {
		start = head - count + 1
	}
	fmt.Printf("Sampling blocks %d to %d (%d blocks)\n", start, head, head-start+1)

	blocks, err := fetchBlockMetrics(rootCtx, client, start, head, ctx.Int(concurrencyFlag.Name))
	if err != nil {
		return err
	}

	// A wide window keeps the estimator from evicting during backfill.
	rolling := rollstats.NewWithParams(time.Hour, len(blocks))
	var txTotal uint64
	for _, b := range blocks {
		rolling.AddValues(b.TotalGas, b.KVUpdates, b.TxSize, b.DASize, b.DataSize, b.StateGrowth)
		txTotal += b.TxCount
	}
	fmt.Printf("Fetched %d blocks, %d transactions\n\n", len(blocks), txTotal)

	stats := rolling.Stats()
	printStatsTable(stats)

	var normalized rollstats.NormalizedBlock
	if len(blocks) > 0 {
		newest := blocks[len(blocks)-1]
		normalized = rolling.NormalizeBlock(newest.TotalGas, newest.KVUpdates, newest.TxSize,
			newest.DASize, newest.DataSize, newest.StateGrowth)
		fmt.Printf("\nNormalized view of block %d (%d txs):\n", newest.BlockNumber, newest.TxCount)
		printNormalizedTable(normalized)
	}

	if path := ctx.String(outputFlag.Name); path != "" {
		return writeBaseline(path, stats, normalized)
	}
	return nil
}

// fetchBlockMetrics pulls the range with bounded concurrency and returns
// the per-block aggregates in ascending block order. Blocks that cannot
// be fetched contribute a zero-valued aggregate, keeping the baseline
// cadence-true.
func fetchBlockMetrics(ctx context.Context, client *rpcclient.Client, start, end uint64, concurrency int) ([]*metrics.BlockMetrics, error) {
	var (
		calc metrics.Calculator
		mu   sync.Mutex
	)
	results := make(map[uint64]*metrics.BlockMetrics)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for number := start; number <= end; number++ {
		number := number
		g.Go(func() error {
			block, err := client.BlockByNumber(gctx, number)
			if err != nil {
				log.Warn("Skipping block", "number", number, "err", err)
				mu.Lock()
				results[number] = &metrics.BlockMetrics{BlockNumber: number}
				mu.Unlock()
				return nil
			}
			receipts, err := client.BlockReceipts(gctx, number)
			if err != nil {
				receipts = nil
			}
			aggregate, _ := calc.ProcessBlock(block, receipts)
			mu.Lock()
			results[number] = aggregate
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	numbers := make([]uint64, 0, len(results))
	for number := range results {
		numbers = append(numbers, number)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	ordered := make([]*metrics.BlockMetrics, 0, len(numbers))
	for _, number := range numbers {
		ordered = append(ordered, results[number])
	}
	return ordered, nil
}

func printStatsTable(stats rollstats.Stats) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Limit", "Min", "P10", "P25", "Median", "P75", "P90", "Max", "IQR"})
	appendStatsRow(table, "Total Gas", stats.Gas, params.BlockGasLimit)
	appendStatsRow(table, "KV Updates", stats.KVUpdates, params.BlockKVUpdateLimit)
	appendStatsRow(table, "Tx Size", stats.TxSize, params.BlockTxSizeLimit)
	appendStatsRow(table, "DA Size", stats.DASize, params.BlockDASizeLimit)
	appendStatsRow(table, "Data Size", stats.DataSize, params.BlockDataLimit)
	appendStatsRow(table, "State Growth", stats.StateGrowth, params.BlockStateGrowthLimit)
	table.Render()
}

func appendStatsRow(table *tablewriter.Table, name string, s rollstats.PercentileStats, limit uint64) {
	table.Append([]string{
		name,
		strconv.FormatUint(limit, 10),
		strconv.FormatUint(s.Min, 10),
		strconv.FormatUint(s.P10, 10),
		strconv.FormatUint(s.P25, 10),
		strconv.FormatUint(s.Median, 10),
		strconv.FormatUint(s.P75, 10),
		strconv.FormatUint(s.P90, 10),
		strconv.FormatUint(s.Max, 10),
		strconv.FormatUint(s.IQR, 10),
	})
}

func printNormalizedTable(normalized rollstats.NormalizedBlock) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Raw", "Score", "Util %"})
	appendNormalizedRow(table, "Gas", normalized.Gas)
	appendNormalizedRow(table, "KV Updates", normalized.KVUpdates)
	appendNormalizedRow(table, "Tx Size", normalized.TxSize)
	appendNormalizedRow(table, "DA Size", normalized.DASize)
	appendNormalizedRow(table, "Data Size", normalized.DataSize)
	appendNormalizedRow(table, "State Growth", normalized.StateGrowth)
	table.Render()
}

func appendNormalizedRow(table *tablewriter.Table, name string, n rollstats.Normalized) {
	table.Append([]string{
		name,
		strconv.FormatUint(n.Raw, 10),
		fmt.Sprintf("%+.1f", n.Score),
		fmt.Sprintf("%.3f", n.UtilizationPct),
	})
}

func writeBaseline(path string, stats rollstats.Stats, normalized rollstats.NormalizedBlock) error {
	payload := struct {
		Stats      rollstats.Stats           `json:"stats"`
		Normalized rollstats.NormalizedBlock `json:"normalized_latest"`
	}{stats, normalized}
	blob, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}
