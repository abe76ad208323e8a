package liquidator

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vega-mev/liquidator/pkg/contractclient"
	"github.com/vega-mev/liquidator/pkg/types"
)

// erc20ABIJSON is the one ERC20 view Liquidator needs: how much of an
// asset a flash-loan source actually has on hand.
const erc20ABIJSON = `[{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("liquidator: invalid embedded erc20 ABI: %v", err))
	}
	erc20ABI = parsed
}

type sourceReservePair struct {
	source  types.FlashLoanSource
	reserve common.Address
}

// onchainLiquidity answers LiquidityLookup by reading a flash-loan source's
// holder's ERC20 balanceOf(asset), rotating across a ProviderCache so a
// burst of profitability checks never monopolizes one RPC connection. The
// "holder" for a source is the address actually custodying that asset:
// the Morpho vault for FlashLoanMorpho, the Pool's aToken for
// FlashLoanPoolFlashLoan.
type onchainLiquidity struct {
	providers *ProviderCache
	holders   map[sourceReservePair]common.Address
}

// NewOnchainLiquidity builds a LiquidityLookup backed by ERC20 balance
// reads against holders[source][reserve], rotating connections from
// providers. A (source, reserve) pair absent from holders always reads as
// zero liquidity rather than erroring.
func NewOnchainLiquidity(providers *ProviderCache, holders map[types.FlashLoanSource]map[common.Address]common.Address) *onchainLiquidity {
	flat := make(map[sourceReservePair]common.Address)
	for source, byReserve := range holders {
		for reserve, holder := range byReserve {
			flat[sourceReservePair{source: source, reserve: reserve}] = holder
		}
	}
	return &onchainLiquidity{providers: providers, holders: flat}
}

func (l *onchainLiquidity) AvailableLiquidity(source types.FlashLoanSource, asset common.Address) (*big.Int, error) {
	holder, ok := l.holders[sourceReservePair{source: source, reserve: asset}]
	if !ok {
		return big.NewInt(0), nil
	}

	client, err := l.providers.Acquire(context.Background())
	if err != nil {
		return nil, fmt.Errorf("liquidator: acquire rpc provider: %w", err)
	}
	defer l.providers.Release(client)

	cc := contractclient.New(client, asset, erc20ABI)
	out, err := cc.Call(nil, "balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("liquidator: balanceOf(%s, %s): %w", asset, holder, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("liquidator: unexpected balanceOf output shape")
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("liquidator: unexpected balanceOf output type")
	}
	return balance, nil
}

// chainGasEstimator reads the current fee environment off the latest block
// header and the node's tip-cap suggestion, rotating across a
// ProviderCache the same way onchainLiquidity does.
type chainGasEstimator struct {
	providers    *ProviderCache
	gasUnits     uint64
	nativePrices *PriceCache
	nativeAsset  common.Address
}

// NewChainGasEstimator builds a GasEstimator. gasUnits is the liquidation
// call's expected gas cost; nativePrices resolves the chain's native asset
// price (e.g. WETH) in base units so GasParams.CostBase can convert wei to
// base units. nativePrices is kept warm by a PricePoller running
// concurrently against the same cache.
func NewChainGasEstimator(providers *ProviderCache, gasUnits uint64, nativePrices *PriceCache, nativeAsset common.Address) *chainGasEstimator {
	return &chainGasEstimator{providers: providers, gasUnits: gasUnits, nativePrices: nativePrices, nativeAsset: nativeAsset}
}

func (g *chainGasEstimator) Estimate(ctx context.Context) (GasParams, error) {
	client, err := g.providers.Acquire(ctx)
	if err != nil {
		return GasParams{}, fmt.Errorf("liquidator: acquire rpc provider: %w", err)
	}
	defer g.providers.Release(client)

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return GasParams{}, fmt.Errorf("liquidator: fetch latest header: %w", err)
	}
	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		tip = big.NewInt(0)
	}

	price, _ := g.nativePrices.Get(g.nativeAsset, header.Number.Uint64())
	return GasParams{
		GasUnits:        new(big.Int).SetUint64(g.gasUnits),
		BaseFeeWei:      header.BaseFee,
		PriorityFeeWei:  tip,
		NativePriceBase: price,
	}, nil
}

// chainNonceSource resolves the liquidator EOA's next pending nonce,
// rotating across a ProviderCache.
type chainNonceSource struct {
	providers *ProviderCache
	account   common.Address
}

// NewChainNonceSource builds a NonceSource for account.
func NewChainNonceSource(providers *ProviderCache, account common.Address) *chainNonceSource {
	return &chainNonceSource{providers: providers, account: account}
}

func (n *chainNonceSource) PendingNonce(ctx context.Context) (uint64, error) {
	client, err := n.providers.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("liquidator: acquire rpc provider: %w", err)
	}
	defer n.providers.Release(client)
	return client.PendingNonceAt(ctx, n.account)
}
