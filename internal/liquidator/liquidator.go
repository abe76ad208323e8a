package liquidator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/pkg/types"
)

// Counters are Liquidator's per-kind operational metrics.
type Counters struct {
	Triggered         prometheus.Counter
	NoPairFound       prometheus.Counter
	NoFlashLoanSource prometheus.Counter
	Submitted         prometheus.Counter
	SubmissionErrors  prometheus.Counter
}

// NewCounters registers Liquidator's counters against reg.
func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		Triggered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_liquidator_triggered_total", Help: "UnderwaterUser messages received.",
		}),
		NoPairFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_liquidator_no_pair_total", Help: "Traces with no (collateral,debt) pair clearing the profit threshold.",
		}),
		NoFlashLoanSource: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_liquidator_no_flashloan_total", Help: "Traces discarded for lack of flash-loan liquidity.",
		}),
		Submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_liquidator_bundles_submitted_total", Help: "Bundles submitted to the relay.",
		}),
		SubmissionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_liquidator_submission_errors_total", Help: "Bundle submissions that failed.",
		}),
	}
	reg.MustRegister(c.Triggered, c.NoPairFound, c.NoFlashLoanSource, c.Submitted, c.SubmissionErrors)
	return c
}

// PositionSource resolves a user's current raw positions across the
// reserves they touch, e.g. backed by pkg/contractclient.Multicaller
// against the canonical (non-forked) RPC endpoint.
type PositionSource interface {
	UserPositions(ctx context.Context, user common.Address, reserves []common.Address) ([]types.UserPosition, error)
}

// GasEstimator supplies the current network fee environment.
type GasEstimator interface {
	Estimate(ctx context.Context) (GasParams, error)
}

// NonceSource resolves the liquidator EOA's next nonce.
type NonceSource interface {
	PendingNonce(ctx context.Context) (uint64, error)
}

// Liquidator wires together position resolution, best-pair search,
// flash-loan source selection, bundle signing and relay submission for
// every UnderwaterUser it receives (spec.md §4.4).
type Liquidator struct {
	log       *zap.Logger
	reserves  map[common.Address]types.Reserve
	positions PositionSource
	prices    *PriceCache       // kept warm by a PricePoller; canonical fallback for the overlay below
	blocks    BlockNumberSource // resolves the block height to read l.prices at
	indices   ReserveIndicesSource
	planner   *Planner
	liquidity LiquidityLookup
	gas       GasEstimator
	nonces    NonceSource
	signer    *Signer
	relay     *RelayClient
	counters  *Counters
}

// ReserveIndicesSource resolves current liquidity/borrow indices for a set
// of reserves.
type ReserveIndicesSource interface {
	ReserveIndices(ctx context.Context, reserves []common.Address) (map[common.Address]types.ReserveIndices, error)
}

// New builds a Liquidator.
func New(
	log *zap.Logger,
	reserves map[common.Address]types.Reserve,
	positions PositionSource,
	prices *PriceCache,
	blocks BlockNumberSource,
	indices ReserveIndicesSource,
	planner *Planner,
	liquidity LiquidityLookup,
	gas GasEstimator,
	nonces NonceSource,
	signer *Signer,
	relay *RelayClient,
	counters *Counters,
) *Liquidator {
	return &Liquidator{
		log: log, reserves: reserves, positions: positions, prices: prices, blocks: blocks,
		indices: indices, planner: planner, liquidity: liquidity, gas: gas, nonces: nonces,
		signer: signer, relay: relay, counters: counters,
	}
}

// overlayPriceTable layers a trace's speculative prices over the
// liquidator's canonical/cache lookup, the same overlay shape Brain's
// PriceTable uses.
type overlayPriceTable struct {
	speculative map[common.Address]*big.Int
	fallback    PriceTable
}

func (o overlayPriceTable) Price(reserve common.Address) (*big.Int, bool) {
	if p, ok := o.speculative[reserve]; ok {
		return p, true
	}
	return o.fallback.Price(reserve)
}

// cachePriceTable adapts PriceCache to PriceTable for a single resolved
// block height.
type cachePriceTable struct {
	cache *PriceCache
	block uint64
}

func (t cachePriceTable) Price(reserve common.Address) (*big.Int, bool) {
	return t.cache.Get(reserve, t.block)
}

// Handle processes one UnderwaterUser: resolve positions, search for the
// best pair, pick a flash-loan source, assemble and submit a bundle.
// Policy rejections (no pair, no flash-loan source) are routine and
// debug-logged, never errors (spec.md §7).
func (l *Liquidator) Handle(ctx context.Context, trace types.TraceID, u types.UnderwaterUser) error {
	l.counters.Triggered.Inc()

	reserveAddrs := make([]common.Address, 0, len(l.reserves))
	for addr := range l.reserves {
		reserveAddrs = append(reserveAddrs, addr)
	}

	rawPositions, err := l.positions.UserPositions(ctx, u.User, reserveAddrs)
	if err != nil {
		return err
	}
	idx, err := l.indices.ReserveIndices(ctx, reserveAddrs)
	if err != nil {
		return err
	}

	speculative := make(map[common.Address]*big.Int, len(u.SpeculativePrices))
	for _, pr := range u.SpeculativePrices {
		speculative[pr.Reserve] = pr.Price
	}
	block, err := l.blocks.BlockNumber(ctx)
	if err != nil {
		return err
	}
	prices := overlayPriceTable{speculative: speculative, fallback: cachePriceTable{cache: l.prices, block: block}}

	collaterals, debts, err := BuildPairInputs(rawPositions, l.reserves, idx, prices)
	if err != nil {
		return err
	}
	if len(collaterals) == 0 || len(debts) == 0 {
		l.counters.NoPairFound.Inc()
		l.log.Debug("liquidator: user has no liquidatable pair", zap.String("user", u.User.Hex()))
		return nil
	}

	gas, err := l.gas.Estimate(ctx)
	if err != nil {
		return err
	}

	best, ok, err := l.planner.BestPair(u.Snapshot.HealthFactor, collaterals, debts, gas, u.User)
	if err != nil {
		return err
	}
	if !ok {
		l.counters.NoPairFound.Inc()
		l.log.Debug("liquidator: no pair cleared the profit threshold", zap.String("user", u.User.Hex()))
		return nil
	}

	source, err := ChooseFlashLoanSource(l.liquidity, best.debt, best.debtRepay)
	if err != nil {
		l.counters.NoFlashLoanSource.Inc()
		l.log.Debug("liquidator: no flash-loan source qualified",
			zap.String("user", u.User.Hex()), zap.String("debt_asset", best.debt.Hex()))
		return nil
	}

	bribe, err := l.planner.Bribe(best.netProfit)
	if err != nil {
		return err
	}

	plan := types.LiquidationPlan{
		User:                 u.User,
		CollateralAsset:      best.collateral,
		DebtAsset:            best.debt,
		DebtToRepay:          best.debtRepay,
		CollateralToReceive:  best.collReceived,
		ProtocolFee:          best.protocolFee,
		NetProfit:            best.netProfit,
		Bribe:                bribe,
		FlashLoanSource:      source,
		TargetInclusionBlock: u.TargetInclusionBlock,
	}

	nonce, err := l.nonces.PendingNonce(ctx)
	if err != nil {
		return err
	}
	bundle, err := l.signer.AssembleBundle(plan, u.RawTx, nonce, gas)
	if err != nil {
		return err
	}

	submissionID, err := l.relay.SubmitBundle(ctx, bundle)
	if err != nil {
		l.counters.SubmissionErrors.Inc()
		l.log.Warn("liquidator: bundle submission failed", zap.Error(err), zap.String("user", u.User.Hex()))
		return err
	}
	l.counters.Submitted.Inc()
	l.log.Info("liquidator: bundle submitted",
		zap.String("submission_id", submissionID),
		zap.String("user", u.User.Hex()),
		zap.String("net_profit", plan.NetProfit.String()),
		zap.String("bribe", plan.Bribe.String()),
		zap.String("flash_loan_source", plan.FlashLoanSource.String()))
	return nil
}
