package brain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vega-mev/liquidator/internal/util"
	"github.com/vega-mev/liquidator/pkg/types"
)

// PriceTable resolves a reserve's current base-unit price, scale
// types.PriceScale. Both the canonical (warm-path) and speculative
// (hot-path) recompute use the same interface; only the backing map
// differs.
type PriceTable interface {
	Price(reserve common.Address) (*big.Int, bool)
}

// staticPrices is a PriceTable backed by a plain map, used to splice one or
// more speculative prices on top of the canonical table (spec.md §4.3.2
// step 4: "overlay the pending price, leave every other reserve at its
// last-known canonical value").
type staticPrices struct {
	base     PriceTable
	override map[common.Address]*big.Int
}

// NewOverlayPrices returns a PriceTable that answers with override[reserve]
// when present, falling back to base otherwise.
func NewOverlayPrices(base PriceTable, override map[common.Address]*big.Int) PriceTable {
	return &staticPrices{base: base, override: override}
}

func (s *staticPrices) Price(reserve common.Address) (*big.Int, bool) {
	if p, ok := s.override[reserve]; ok {
		return p, true
	}
	return s.base.Price(reserve)
}

// MapPrices is a trivial, map-backed PriceTable used by this package's
// tests; both recompute paths read prices through Cache.PriceTable instead.
type MapPrices map[common.Address]*big.Int

func (m MapPrices) Price(reserve common.Address) (*big.Int, bool) {
	p, ok := m[reserve]
	return p, ok
}

// ComputeHealthFactor implements spec.md §4.3.4: sum each position's
// collateral/debt into base units using its reserve's price and the
// reserve's current liquidity/borrow index, weight collateral by its
// liquidation threshold, then divide weighted-collateral by debt at
// types.HFScale precision. A user with zero debt has an infinite health
// factor, represented as a nil HealthFactor.
func ComputeHealthFactor(
	positions []types.UserPosition,
	reserves map[common.Address]types.Reserve,
	indices map[common.Address]types.ReserveIndices,
	prices PriceTable,
) (types.AccountSnapshot, error) {
	totalCollateral := big.NewInt(0)
	weightedCollateral := big.NewInt(0)
	totalDebt := big.NewInt(0)

	for _, p := range positions {
		reserve, ok := reserves[p.Reserve]
		if !ok {
			continue // reserve delisted since position was cached; ignore.
		}
		price, ok := prices.Price(p.Reserve)
		if !ok {
			continue // no price observed yet; treated as zero contribution.
		}
		idx, ok := indices[p.Reserve]
		if !ok {
			continue
		}

		if p.HasCollateral() {
			real, err := util.MulDiv(p.ScaledCollateral, idx.LiquidityIndex, rayUnit)
			if err != nil {
				return types.AccountSnapshot{}, err
			}
			base, err := toBaseUnits(real, price, reserve.Decimals)
			if err != nil {
				return types.AccountSnapshot{}, err
			}
			totalCollateral.Add(totalCollateral, base)

			weighted, err := util.MulDivRatio(base, reserve.LiquidationThreshold, types.BpsScale)
			if err != nil {
				return types.AccountSnapshot{}, err
			}
			weightedCollateral.Add(weightedCollateral, weighted)
		}

		if p.HasDebt() {
			real, err := util.MulDiv(p.ScaledVariableDebt, idx.VariableBorrowIndex, rayUnit)
			if err != nil {
				return types.AccountSnapshot{}, err
			}
			base, err := toBaseUnits(real, price, reserve.Decimals)
			if err != nil {
				return types.AccountSnapshot{}, err
			}
			totalDebt.Add(totalDebt, base)
		}
	}

	snap := types.AccountSnapshot{TotalCollateralBase: totalCollateral, TotalDebtBase: totalDebt}
	if totalDebt.Sign() == 0 {
		snap.HealthFactor = nil
		return snap, nil
	}
	hf, err := util.MulDiv(weightedCollateral, types.HFScale, totalDebt)
	if err != nil {
		return types.AccountSnapshot{}, err
	}
	snap.HealthFactor = hf
	return snap, nil
}

// rayUnit is AAVE's 1e27 fixed-point scale used for liquidity/borrow
// indices.
var rayUnit, _ = new(big.Int).SetString("1000000000000000000000000000", 10)

// toBaseUnits converts a real token amount (at the reserve's own decimals)
// into base units (types.PriceScale) using price (also at PriceScale).
func toBaseUnits(amount, price *big.Int, decimals uint8) (*big.Int, error) {
	tokenUnit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return util.MulDiv(amount, price, tokenUnit)
}

// IsUnderwater reports whether snap's health factor is below 1.0 and its
// total collateral is at or above ReportableThresholdBase — spec.md §4.3.2
// step 6's emit gate, which also covers the edge case that an
// all-debt-no-collateral user is undercollateralized but not a liquidation
// target (there is nothing worth seizing).
func IsUnderwater(snap types.AccountSnapshot) bool {
	if snap.HealthFactor == nil {
		return false
	}
	if snap.TotalCollateralBase == nil || snap.TotalCollateralBase.Cmp(ReportableThresholdBase) < 0 {
		return false
	}
	return snap.HealthFactor.Cmp(types.HFScale) < 0
}
