// telemetry is the real-time chain resource telemetry service: it tails
// the chain over JSON-RPC, derives per-block resource metrics and serves
// them over HTTP and WebSocket.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/NethermindEth/rollup-telemetry/bus"
	"github.com/NethermindEth/rollup-telemetry/metrics"
	"github.com/NethermindEth/rollup-telemetry/poller"
	"github.com/NethermindEth/rollup-telemetry/rollstats"
	"github.com/NethermindEth/rollup-telemetry/rpcclient"
	"github.com/NethermindEth/rollup-telemetry/server"
)

const defaultRPCURL = "https://carrot.megaeth.com/rpc"

var (
	rpcURLFlag = &cli.StringFlag{
		Name:    "rpc",
		Usage:   "Chain JSON-RPC endpoint",
		Value:   defaultRPCURL,
		EnvVars: []string{"RPC_URL"},
	}
	portFlag = &cli.IntFlag{
		Name:    "port",
		Usage:   "API listen port",
		Value:   3001,
		EnvVars: []string{"PORT"},
	}
	pollIntervalFlag = &cli.Uint64Flag{
		Name:    "poll-interval",
		Usage:   "Polling interval in milliseconds",
		Value:   1000,
		EnvVars: []string{"POLL_INTERVAL_MS"},
	}
	confirmationsFlag = &cli.Uint64Flag{
		Name:    "confirmations",
		Usage:   "How many blocks behind the head to stay",
		Value:   poller.DefaultConfirmations,
		EnvVars: []string{"CONFIRMATION_BLOCKS"},
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	}
	logFileFlag = &cli.StringFlag{
		Name:    "log.file",
		Usage:   "Write logs to a rotating file instead of stderr",
		EnvVars: []string{"LOG_FILE"},
	}
)

func main() {
	app := &cli.App{
		Name:  "telemetry",
		Usage: "real-time chain resource telemetry service",
		Flags: []cli.Flag{
			rpcURLFlag, portFlag, pollIntervalFlag, confirmationsFlag,
			verbosityFlag, logFileFlag,
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	setupLogging(ctx)
	if _, err := maxprocs.Set(); err != nil {
		log.Warn("Failed to honour CPU quota", "err", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rpcURL := ctx.String(rpcURLFlag.Name)
	client, err := rpcclient.DialContext(rootCtx, rpcURL)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", rpcURL, err)
	}
	defer client.Close()

	chainID, err := client.ChainID(rootCtx)
	if err != nil {
		return fmt.Errorf("fetching chain id: %w", err)
	}
	log.Info("Connected to chain", "chainid", chainID, "rpc", rpcURL)

	store := metrics.NewStore(0)
	rolling := rollstats.New()
	eventBus := bus.New(0)

	p := poller.New(client, store, rolling, eventBus, poller.Config{
		Interval:      time.Duration(ctx.Uint64(pollIntervalFlag.Name)) * time.Millisecond,
		Confirmations: ctx.Uint64(confirmationsFlag.Name),
	})
	go p.Run(rootCtx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", ctx.Int(portFlag.Name)),
		Handler: server.New(store, eventBus).Handler(),
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info("Shutting down")
	case err := <-serveErr:
		return fmt.Errorf("API server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "err", err)
	}
	eventBus.CloseAll()
	return nil
}

func setupLogging(ctx *cli.Context) {
	var output io.Writer = os.Stderr
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	if file := ctx.String(logFileFlag.Name); file != "" {
		output = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // MiB
			MaxBackups: 3,
		}
		useColor = false
	}
	handler := log.NewTerminalHandlerWithLevel(output, log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)), useColor)
	log.SetDefault(log.NewLogger(handler))
}
