// Command liquidator runs the Liquidator process: for every UnderwaterUser
// it receives, it searches for the most profitable (collateral, debt) pair,
// picks a flash-loan source, signs a bundle, and submits it to the relay
// (spec.md §4.4).
package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/configs"
	"github.com/vega-mev/liquidator/internal/brain"
	"github.com/vega-mev/liquidator/internal/liquidator"
	"github.com/vega-mev/liquidator/internal/util"
	"github.com/vega-mev/liquidator/pkg/bus"
	"github.com/vega-mev/liquidator/pkg/contractclient"
	"github.com/vega-mev/liquidator/pkg/types"
)

// errNoSigningKey means FOXDIE_OWNER_PK was not set; the process cannot
// sign bundles without it.
var errNoSigningKey = errors.New("liquidator: FOXDIE_OWNER_PK not set")

// defaultLiquidationGasUnits is the expected gas cost of one
// liquidate()+bribe bundle, used to seed GasParams until a live simulation
// replaces it.
const defaultLiquidationGasUnits = 450_000

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
		log.Error("liquidator: load config", zap.Error(err))
		return 1
	}

	reserves, err := cfg.ReserveList()
	if err != nil {
		log.Error("liquidator: parse reserve list", zap.Error(err))
		return 2
	}
	reserveMap := make(map[common.Address]types.Reserve, len(reserves))
	for _, r := range reserves {
		reserveMap[r.Underlying] = r
	}

	poolContract, ok := cfg.Contracts["pool"]
	if !ok || !common.IsHexAddress(poolContract.Address) {
		log.Error("liquidator: config.contracts.pool missing or invalid")
		return 2
	}
	pool := common.HexToAddress(poolContract.Address)

	foxdieAddr := os.Getenv("FOXDIE_ADDRESS")
	if !common.IsHexAddress(foxdieAddr) {
		log.Error("liquidator: FOXDIE_ADDRESS missing or invalid")
		return 2
	}
	liquidationContract := common.HexToAddress(foxdieAddr)

	signingKey, err := loadSigningKey(log)
	if err != nil {
		log.Error("liquidator: load signing key", zap.Error(err))
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ethClient, err := ethclient.DialContext(ctx, cfg.RPC)
	if err != nil {
		log.Error("liquidator: dial rpc", zap.Error(err), zap.String("url", cfg.RPC))
		return 1
	}
	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		log.Error("liquidator: fetch chain id", zap.Error(err))
		return 1
	}

	providerURLs := append([]string{cfg.RPC}, cfg.ForkRPCs...)
	providers := make([]*ethclient.Client, 0, len(providerURLs))
	for _, url := range providerURLs {
		c, err := ethclient.DialContext(ctx, url)
		if err != nil {
			log.Error("liquidator: dial rpc provider", zap.Error(err), zap.String("url", url))
			return 1
		}
		providers = append(providers, c)
	}
	providerCache := liquidator.NewProviderCache(providers)

	canonicalReader := brain.NewPositionReader(pool, contractclient.NewMulticaller(ethClient))
	positions := liquidator.NewOnchainPositionSource(canonicalReader)

	routesFile := os.Getenv("VEGA_CHAINLINK_ADDRESSES_FILE")
	if routesFile == "" {
		log.Error("liquidator: VEGA_CHAINLINK_ADDRESSES_FILE not set")
		return 2
	}
	routes, err := brain.LoadChainlinkRoutes(routesFile)
	if err != nil {
		log.Error("liquidator: load chainlink routes", zap.Error(err))
		return 2
	}
	oracle := brain.NewPriceOracle(routes, contractclient.NewMulticaller(ethClient))
	priceCache := liquidator.NewPriceCache(4 * 1024 * 1024)
	pricePoller := liquidator.NewPricePoller(priceCache, ethClient)
	go pricePoller.Run(ctx, log, oracle, 12*time.Second)

	refund := liquidator.ZeroRefund{}
	slippage := liquidator.FlatSlippagePolicy{RateBps: 50}
	bribeBps := uint32(cfg.Liquidator.BribeRatio * types.BpsScale)
	var minProfitBase *big.Int // nil selects NewPlanner's $10 default; overridden below if configured
	if cfg.Liquidator.MinProfitThresholdUSD > 0 {
		minProfitBase = dollarsToBase(cfg.Liquidator.MinProfitThresholdUSD)
	}
	planner := liquidator.NewPlanner(refund, slippage, bribeBps, minProfitBase)

	liquidity := liquidator.NewOnchainLiquidity(providerCache, nil) // holder table populated via deployment-specific config, empty until wired.

	wethContract, ok := cfg.Contracts["weth"]
	var nativeAsset common.Address
	if ok && common.IsHexAddress(wethContract.Address) {
		nativeAsset = common.HexToAddress(wethContract.Address)
	}
	gasEstimator := liquidator.NewChainGasEstimator(providerCache, defaultLiquidationGasUnits, priceCache, nativeAsset)

	signer := liquidator.NewSigner(signingKey, liquidationContract, chainID)
	nonces := liquidator.NewChainNonceSource(providerCache, signer.Address())

	relayURL := cfg.Liquidator.RelayURL
	if relayURL == "" {
		log.Error("liquidator: config.liquidator.relayUrl is empty")
		return 2
	}
	relayRPC, err := rpc.DialContext(ctx, relayURL)
	if err != nil {
		log.Error("liquidator: dial relay", zap.Error(err), zap.String("url", relayURL))
		return 1
	}
	relay := liquidator.NewRelayClient(relayRPC, log)

	outboundEndpoint := cfg.Bus.OutboundEndpoint
	if outboundEndpoint == "" {
		outboundEndpoint = bus.DefaultOutboundEndpoint
	}
	subscriber, err := bus.NewSubscriber(outboundEndpoint, log)
	if err != nil {
		log.Error("liquidator: dial bus subscriber", zap.Error(err))
		return 1
	}

	reg := prometheus.NewRegistry()
	counters := liquidator.NewCounters(reg)

	reservesIndicesSource := canonicalReader

	l := liquidator.New(log, reserveMap, positions, priceCache, ethClient, reservesIndicesSource,
		planner, liquidity, gasEstimator, nonces, signer, relay, counters)

	log.Info("liquidator: running",
		zap.String("liquidation_contract", liquidationContract.Hex()),
		zap.String("liquidator_eoa", signer.Address().Hex()),
		zap.Int("reserves", len(reserves)),
		zap.Int("providers", len(providers)))

	l.Run(ctx, subscriber)

	log.Info("liquidator: shutting down")
	return 0
}

// loadSigningKey resolves the liquidator EOA's private key from
// FOXDIE_OWNER_PK, decrypting it with LIQUIDATOR_KEY_ENCRYPTION_KEY when
// present (the teacher's ENC_PK/KEY pattern); falls back to treating
// FOXDIE_OWNER_PK as an already-plaintext hex key for local/test setups.
func loadSigningKey(log *zap.Logger) (*ecdsa.PrivateKey, error) {
	encoded := os.Getenv("FOXDIE_OWNER_PK")
	if encoded == "" {
		return nil, errNoSigningKey
	}
	if aesKeyHex := os.Getenv("LIQUIDATOR_KEY_ENCRYPTION_KEY"); aesKeyHex != "" {
		aesKey, err := hex.DecodeString(aesKeyHex)
		if err != nil {
			return nil, err
		}
		plain, err := util.Decrypt(aesKey, encoded)
		if err != nil {
			return nil, err
		}
		return util.LoadSigningKey(plain)
	}
	log.Warn("liquidator: LIQUIDATOR_KEY_ENCRYPTION_KEY not set, treating FOXDIE_OWNER_PK as plaintext")
	return util.LoadSigningKey(encoded)
}

func dollarsToBase(usd float64) *big.Int {
	scaled := usd * 1e8
	return big.NewInt(int64(scaled))
}
