package liquidator

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vega-mev/liquidator/internal/util"
	"github.com/vega-mev/liquidator/pkg/types"
)

// rayUnit is AAVE's scaled-balance fixed-point scale (1e27), duplicated
// from internal/brain/healthfactor.go rather than shared: it's a single
// constant and the two packages value positions for different purposes
// (HF vs. per-reserve base amounts for the best-pair search).
var rayUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

// PriceTable is the narrow price lookup valuation needs.
type PriceTable interface {
	Price(reserve common.Address) (*big.Int, bool)
}

// MapPrices is a trivial, map-backed PriceTable; Handle itself reads
// canonical prices from the PriceCache instead.
type MapPrices map[common.Address]*big.Int

func (m MapPrices) Price(reserve common.Address) (*big.Int, bool) {
	p, ok := m[reserve]
	return p, ok
}

// BuildPairInputs turns a user's raw scaled positions into the
// CollateralPosition/DebtPosition lists the planner's best-pair search
// enumerates, converting scaled balances to base units via each reserve's
// current liquidity/borrow index and price, the same real-balance math
// Brain uses for health factors (spec.md §4.3.4).
func BuildPairInputs(
	positions []types.UserPosition,
	reserves map[common.Address]types.Reserve,
	indices map[common.Address]types.ReserveIndices,
	prices PriceTable,
) ([]CollateralPosition, []DebtPosition, error) {
	var collaterals []CollateralPosition
	var debts []DebtPosition

	for _, pos := range positions {
		reserve, ok := reserves[pos.Reserve]
		if !ok {
			continue
		}
		idx, ok := indices[pos.Reserve]
		if !ok {
			continue
		}
		price, ok := prices.Price(pos.Reserve)
		if !ok || price == nil {
			continue
		}

		if pos.HasCollateral() {
			base, err := toBaseUnits(pos.ScaledCollateral, idx.LiquidityIndex, price, reserve.Decimals)
			if err != nil {
				return nil, nil, err
			}
			collaterals = append(collaterals, CollateralPosition{
				Asset:      pos.Reserve,
				AmountBase: base,
				BonusBps:   reserve.LiquidationBonusBps,
				FeeBps:     reserve.LiquidationProtocolFeeBps,
			})
		}
		if pos.HasDebt() {
			base, err := toBaseUnits(pos.ScaledVariableDebt, idx.VariableBorrowIndex, price, reserve.Decimals)
			if err != nil {
				return nil, nil, err
			}
			debts = append(debts, DebtPosition{
				Asset:           pos.Reserve,
				AmountBase:      base,
				FlashPremiumBps: reserve.FlashLoanPremiumBps,
			})
		}
	}
	return collaterals, debts, nil
}

func toBaseUnits(scaled, index, price *big.Int, decimals uint8) (*big.Int, error) {
	real, err := util.MulDiv(scaled, index, rayUnit)
	if err != nil {
		return nil, fmt.Errorf("liquidator: scaled-to-real: %w", err)
	}
	tokenScale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	base, err := util.MulDiv(real, price, tokenScale)
	if err != nil {
		return nil, fmt.Errorf("liquidator: real-to-base: %w", err)
	}
	return base, nil
}
