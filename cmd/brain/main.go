// Command brain runs the Brain process: it holds the authoritative
// user-position cache, recomputes health factors on both the hot
// (simulated PriceUpdate) and warm (canonical PositionEvent) paths, and
// emits UnderwaterUser messages for Liquidator (spec.md §4.3).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/configs"
	"github.com/vega-mev/liquidator/internal/brain"
	"github.com/vega-mev/liquidator/internal/db"
	"github.com/vega-mev/liquidator/pkg/bus"
	"github.com/vega-mev/liquidator/pkg/contractclient"
	"github.com/vega-mev/liquidator/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yml", "path to config.yml")
	buckets := flag.Int("buckets", 0, "override config.brain.buckets")
	adminAddr := flag.String("admin-addr", ":9090", "admin HTTP surface listen address (/healthz, /metrics)")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := configs.LoadConfig(*configPath)
	if err != nil {
		log.Error("brain: load config", zap.Error(err))
		return 1
	}
	if *buckets > 0 {
		cfg.Brain.Buckets = *buckets
	}

	reserves, err := cfg.ReserveList()
	if err != nil {
		log.Error("brain: parse reserve list", zap.Error(err))
		return 2
	}

	poolContract, ok := cfg.Contracts["pool"]
	if !ok || !common.IsHexAddress(poolContract.Address) {
		log.Error("brain: config.contracts.pool missing or invalid")
		return 2
	}
	pool := common.HexToAddress(poolContract.Address)

	routesFile := os.Getenv("VEGA_CHAINLINK_ADDRESSES_FILE")
	if routesFile == "" {
		log.Error("brain: VEGA_CHAINLINK_ADDRESSES_FILE not set")
		return 2
	}
	routes, err := brain.LoadChainlinkRoutes(routesFile)
	if err != nil {
		log.Error("brain: load chainlink routes", zap.Error(err))
		return 2
	}

	universeFile := os.Getenv("VEGA_ADDRESSES_FILE")
	if universeFile == "" {
		log.Error("brain: VEGA_ADDRESSES_FILE not set")
		return 2
	}
	universe, err := brain.LoadAddressUniverse(universeFile)
	if err != nil {
		log.Error("brain: load address universe", zap.Error(err))
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ethClient, err := ethclient.DialContext(ctx, cfg.RPC)
	if err != nil {
		log.Error("brain: dial rpc", zap.Error(err), zap.String("url", cfg.RPC))
		return 1
	}
	canonicalReader := brain.NewPositionReader(pool, contractclient.NewMulticaller(ethClient))

	cache, err := brain.Bootstrap(ctx, log, reserves, routes, universe, canonicalReader)
	if err != nil {
		log.Error("brain: bootstrap cache", zap.Error(err))
		return 1
	}

	if len(cfg.ForkRPCs) == 0 {
		log.Error("brain: config.forkRpcs is empty, no fork-EVM slots to simulate against")
		return 2
	}
	forkClients := make([]*rpc.Client, 0, len(cfg.ForkRPCs))
	for _, url := range cfg.ForkRPCs {
		c, err := rpc.DialContext(ctx, url)
		if err != nil {
			log.Error("brain: dial fork rpc", zap.Error(err), zap.String("url", url))
			return 1
		}
		forkClients = append(forkClients, c)
	}
	forks := brain.NewForkPool(forkClients)

	inbound := cfg.Bus.InboundEndpoint
	if inbound == "" {
		inbound = bus.DefaultInboundEndpoint
	}
	subscriber, err := bus.NewSubscriber(inbound, log)
	if err != nil {
		log.Error("brain: dial bus subscriber", zap.Error(err))
		return 1
	}

	outboundEndpoint := cfg.Bus.OutboundEndpoint
	if outboundEndpoint == "" {
		outboundEndpoint = bus.DefaultOutboundEndpoint
	}
	publisher, err := bus.NewPublisher(outboundEndpoint, cfg.Bus.QueueDepth, log)
	if err != nil {
		log.Error("brain: bind bus publisher", zap.Error(err))
		return 1
	}
	defer publisher.Close()

	var recorder *db.TraceRecorder
	if dsn := os.Getenv("VEGA_BRAIN_TRACE_DSN"); dsn != "" {
		recorder, err = db.NewTraceRecorder(dsn)
		if err != nil {
			log.Warn("brain: trace recorder disabled, failed to connect", zap.Error(err))
			recorder = nil
		}
	}

	reg := prometheus.NewRegistry()
	counters := brain.NewCounters(reg)

	pipeline := brain.NewPipeline(cache, forks, canonicalReader, publisher, log, recorder,
		cfg.Brain.Buckets, cfg.SimulationTimeout(), counters)
	defer pipeline.Close()

	go serveAdmin(*adminAddr, log, reg)

	log.Info("brain: running", zap.Int("buckets", cfg.Brain.Buckets), zap.Int("fork_slots", forks.Size()))
	for {
		select {
		case <-ctx.Done():
			log.Info("brain: shutting down")
			return 0
		case env := <-subscriber.Envelopes():
			dispatch(ctx, log, pipeline, env)
		}
	}
}

func dispatch(ctx context.Context, log *zap.Logger, pipeline *brain.Pipeline, env types.Envelope) {
	switch env.Kind {
	case types.KindPriceUpdate:
		update, err := types.UnmarshalPriceUpdate(env.Payload)
		if err != nil {
			log.Warn("brain: malformed PriceUpdate envelope", zap.Error(err))
			return
		}
		pipeline.HandlePriceUpdate(ctx, update)
	case types.KindPositionEvent:
		trace, event, err := types.UnmarshalPositionEvent(env.Payload)
		if err != nil {
			log.Warn("brain: malformed PositionEvent envelope", zap.Error(err))
			return
		}
		pipeline.HandlePositionEvent(ctx, trace, event)
	default:
		log.Debug("brain: ignoring envelope of unexpected kind", zap.Uint8("kind", uint8(env.Kind)))
	}
}

// serveAdmin exposes Brain's operator-visible surface (SPEC_FULL §9.2):
// /healthz for liveness probes and /metrics for Prometheus scraping.
func serveAdmin(addr string, log *zap.Logger, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("brain: admin http surface stopped", zap.Error(err))
	}
}
