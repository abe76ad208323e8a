// Command listener runs the Event Listener process: it subscribes to the
// AAVE v3 Pool contract's position-mutating logs and republishes every
// non-dust one as a PositionEvent for Brain's warm path (spec.md §4.2).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/configs"
	"github.com/vega-mev/liquidator/internal/brain"
	"github.com/vega-mev/liquidator/internal/listener"
	"github.com/vega-mev/liquidator/pkg/bus"
	"github.com/vega-mev/liquidator/pkg/contractclient"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yml", "path to config.yml")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := configs.LoadConfig(*configPath)
	if err != nil {
		log.Error("listener: load config", zap.Error(err))
		return 1
	}

	reserves, err := cfg.ReserveList()
	if err != nil {
		log.Error("listener: parse reserve list", zap.Error(err))
		return 2
	}

	poolContract, ok := cfg.Contracts["pool"]
	if !ok || !common.IsHexAddress(poolContract.Address) {
		log.Error("listener: config.contracts.pool missing or invalid")
		return 2
	}
	pool := common.HexToAddress(poolContract.Address)

	routesFile := os.Getenv("VEGA_CHAINLINK_ADDRESSES_FILE")
	if routesFile == "" {
		log.Error("listener: VEGA_CHAINLINK_ADDRESSES_FILE not set")
		return 2
	}
	routes, err := brain.LoadChainlinkRoutes(routesFile)
	if err != nil {
		log.Error("listener: load chainlink routes", zap.Error(err))
		return 2
	}

	inbound := cfg.Bus.InboundEndpoint
	if inbound == "" {
		inbound = bus.DefaultInboundEndpoint
	}
	publisher, err := bus.NewPublisher(inbound, cfg.Bus.QueueDepth, log)
	if err != nil {
		log.Error("listener: bind bus publisher", zap.Error(err))
		return 1
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	counters := listener.NewCounters(reg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ethClient, err := ethclient.DialContext(ctx, cfg.RPC)
	if err != nil {
		log.Error("listener: dial rpc", zap.Error(err), zap.String("url", cfg.RPC))
		return 1
	}

	oracle := brain.NewPriceOracle(routes, contractclient.NewMulticaller(ethClient))
	chainPrices := listener.NewChainPrices()
	go chainPrices.Run(ctx, log, oracle, 12*time.Second)
	dust := listener.NewDustFilter(reserves, chainPrices, nil)

	l := listener.New(log, pool, publisher, dust, counters)
	l.Run(ctx, ethClient)

	log.Info("listener: shutting down")
	return 0
}
