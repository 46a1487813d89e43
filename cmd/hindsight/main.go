// Command hindsight runs the batch orchestrator against a stream of
// landed-transaction hints, backtesting each for a profitable backrun.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/flashbots-run/hindsight/chainclient"
	"github.com/flashbots-run/hindsight/engine"
	"github.com/flashbots-run/hindsight/model"
	"github.com/flashbots-run/hindsight/orchestrator"
	"github.com/flashbots-run/hindsight/search"
)

var (
	rpcEndpointFlag = &cli.StringFlag{
		Name:    "rpc-endpoint",
		Usage:   "Archive-node JSON-RPC endpoint (http(s):// or ws(s)://)",
		EnvVars: []string{"HINDSIGHT_RPC_ENDPOINT"},
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to a config file (env HINDSIGHT_* overrides take precedence)",
	}
	maxReconnectsFlag = &cli.IntFlag{
		Name:  "max-reconnects",
		Usage: "Bounded reconnect budget before the chain client gives up",
		Value: 5,
	}
	intervalsFlag = &cli.IntFlag{
		Name:  "search-intervals",
		Usage: "Sample points per bracketed-search round",
		Value: model.DefaultSearchIntervals,
	}
	maxDepthFlag = &cli.IntFlag{
		Name:  "search-max-depth",
		Usage: "Maximum bracketed-search recursion depth",
		Value: model.DefaultSearchMaxDepth,
	}
	batchSizeFlag = &cli.IntFlag{
		Name:  "batch-size",
		Usage: "Hints processed concurrently per orchestrator batch (0 = max(1, cores/2))",
	}
)

func loadConfig(c *cli.Context) error {
	viper.SetEnvPrefix("hindsight")
	viper.AutomaticEnv()
	if path := c.String(configFlag.Name); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return nil
}

func run(c *cli.Context) error {
	if err := loadConfig(c); err != nil {
		return err
	}

	endpoint := c.String(rpcEndpointFlag.Name)
	if viper.IsSet("rpc_endpoint") {
		endpoint = viper.GetString("rpc_endpoint")
	}
	if endpoint == "" {
		return fmt.Errorf("hindsight: --rpc-endpoint (or HINDSIGHT_RPC_ENDPOINT) is required")
	}

	ctx := c.Context

	chain, err := chainclient.Dial(ctx, chainclient.Config{
		Endpoint:      endpoint,
		MaxReconnects: c.Int(maxReconnectsFlag.Name),
	})
	if err != nil {
		return err
	}
	defer chain.Close()

	cfg := search.Config{
		Intervals: c.Int(intervalsFlag.Name),
		MaxDepth:  c.Int(maxDepthFlag.Name),
	}
	eng := engine.New(chain, cfg)

	source := &emptyEventSource{}
	sink := &loggingSink{}

	log.Info("hindsight: starting orchestrator", "endpoint", endpoint, "intervals", cfg.Intervals, "maxDepth", cfg.MaxDepth)
	return orchestrator.Run(ctx, source, eng, sink, c.Int(batchSizeFlag.Name))
}

// emptyEventSource is a placeholder EventSource: a real deployment wires
// this to a relay/hint feed. It immediately reports exhaustion so
// `hindsight` is runnable end-to-end without one.
type emptyEventSource struct{}

func (*emptyEventSource) Next(ctx context.Context) (model.Hint, bool, error) {
	return model.Hint{}, false, nil
}

// loggingSink is a placeholder Sink: a real deployment wires this to
// durable storage (out of scope). It logs every non-empty batch it's
// handed.
type loggingSink struct{}

func (*loggingSink) WriteArbs(ctx context.Context, batch model.SimArbBatch) error {
	log.Info("hindsight: arb batch found", "tx", batch.Event.TxHash, "results", len(batch.Results), "maxProfit", batch.MaxProfit)
	return nil
}

func main() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.LevelInfo, true)))

	app := &cli.App{
		Name:  "hindsight",
		Usage: "historical MEV backrun backtesting engine",
		Flags: []cli.Flag{
			rpcEndpointFlag,
			configFlag,
			maxReconnectsFlag,
			intervalsFlag,
			maxDepthFlag,
			batchSizeFlag,
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
