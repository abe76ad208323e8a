// Command scout runs the Scout process: it watches the public mempool and
// a privacy relay for pending Chainlink forwarder transactions, decodes the
// nested OCR2 report, and publishes a PriceUpdate for every non-duplicate
// price it sees (spec.md §4.1).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/configs"
	"github.com/vega-mev/liquidator/internal/scout"
	"github.com/vega-mev/liquidator/pkg/bus"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yml", "path to config.yml")
	relayURL := flag.String("relay-url", "", "privacy relay websocket URL (overrides config)")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := configs.LoadConfig(*configPath)
	if err != nil {
		log.Error("scout: load config", zap.Error(err))
		return 1
	}

	chainlinkFile := os.Getenv("VEGA_CHAINLINK_ADDRESSES_FILE")
	if chainlinkFile == "" {
		log.Error("scout: VEGA_CHAINLINK_ADDRESSES_FILE not set")
		return 2
	}
	table, err := scout.LoadForwarderTable(chainlinkFile)
	if err != nil {
		log.Error("scout: load forwarder table", zap.Error(err))
		return 2
	}
	log.Info("scout: forwarder table loaded", zap.Int("forwarders", table.Size()))

	dedup, err := scout.NewDedupCache(0)
	if err != nil {
		log.Error("scout: new dedup cache", zap.Error(err))
		return 1
	}

	inbound := cfg.Bus.InboundEndpoint
	if inbound == "" {
		inbound = bus.DefaultInboundEndpoint
	}
	publisher, err := bus.NewPublisher(inbound, cfg.Bus.QueueDepth, log)
	if err != nil {
		log.Error("scout: bind bus publisher", zap.Error(err))
		return 1
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	counters := scout.NewCounters(reg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rpcClient, err := rpc.DialContext(ctx, cfg.RPC)
	if err != nil {
		log.Error("scout: dial rpc", zap.Error(err), zap.String("url", cfg.RPC))
		return 1
	}
	ethClient := ethclient.NewClient(rpcClient)

	relay := *relayURL
	if relay == "" {
		relay = os.Getenv("VEGA_PRIVACY_RELAY_URL")
	}

	s := scout.New(log, table, dedup, publisher, counters, cfg.Bus.QueueDepth)
	s.Run(ctx, rpcClient, ethClient, relay)

	log.Info("scout: shutting down")
	return 0
}
