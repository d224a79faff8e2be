// contractid identifies the protocol or token behind one or more
// deployed contracts, using RPC probes, the block explorer and bytecode
// fingerprinting, with results cached under CACHE_DB_PATH.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/NethermindEth/rollup-telemetry/blockscout"
	"github.com/NethermindEth/rollup-telemetry/cachedb"
	"github.com/NethermindEth/rollup-telemetry/contractid"
	"github.com/NethermindEth/rollup-telemetry/rpcclient"
)

var (
	rpcURLFlag = &cli.StringFlag{
		Name:    "rpc",
		Usage:   "Chain JSON-RPC endpoint",
		Value:   "https://carrot.megaeth.com/rpc",
		EnvVars: []string{"RPC_URL"},
	}
	explorerFlag = &cli.StringFlag{
		Name:  "explorer",
		Usage: "Block explorer API endpoint",
		Value: blockscout.DefaultBaseURL,
	}
	cacheFlag = &cli.StringFlag{
		Name:    "cache",
		Usage:   "Contract cache database path (empty disables caching)",
		EnvVars: []string{"CACHE_DB_PATH"},
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Emit results as JSON lines",
	}
)

func main() {
	app := &cli.App{
		Name:      "contractid",
		Usage:     "identify the protocol behind deployed contracts",
		ArgsUsage: "<address> [address...]",
		Flags:     []cli.Flag{rpcURLFlag, explorerFlag, cacheFlag, jsonFlag},
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.Exit("at least one contract address is required", 1)
	}
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.LevelWarn, useColor)))

	rootCtx := context.Background()
	client, err := rpcclient.DialContext(rootCtx, ctx.String(rpcURLFlag.Name))
	if err != nil {
		return err
	}
	defer client.Close()

	var cache *cachedb.DB
	if path := ctx.String(cacheFlag.Name); path != "" {
		cache, err = cachedb.Open(path)
		if err != nil {
			return fmt.Errorf("opening cache at %s: %w", path, err)
		}
		defer cache.Close()
	}

	identifier := contractid.New(client, blockscout.NewWithBaseURL(ctx.String(explorerFlag.Name)), cache)

	for _, arg := range ctx.Args().Slice() {
		if !common.IsHexAddress(arg) {
			fmt.Fprintf(os.Stderr, "skipping %q: not a hex address\n", arg)
			continue
		}
		addr := common.HexToAddress(arg)
		info, err := identifier.Identify(rootCtx, addr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", addr.Hex(), err)
			continue
		}
		if ctx.Bool(jsonFlag.Name) {
			blob, _ := json.Marshal(struct {
				Address string `json:"address"`
				*contractid.Info
			}{addr.Hex(), info})
			fmt.Println(string(blob))
			continue
		}
		fmt.Printf("%s  %-24s %-8s %-12s confidence=%.2f via %s\n",
			addr.Hex(), info.Name, info.Symbol, info.Category, info.Confidence, info.Source)
	}
	return nil
}
