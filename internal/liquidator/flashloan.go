package liquidator

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vega-mev/liquidator/pkg/types"
)

// ErrNoFlashLoanSource means every candidate source lacked sufficient
// liquidity; the plan must be discarded rather than fall back to wallet
// balance (spec.md §4.4).
var ErrNoFlashLoanSource = errors.New("liquidator: no flash-loan source has sufficient liquidity")

// LiquidityLookup reports how much of asset a flash-loan source can lend
// right now, in the asset's base units.
type LiquidityLookup interface {
	AvailableLiquidity(source types.FlashLoanSource, asset common.Address) (*big.Int, error)
}

// FlashLoanPreference is the fixed source preference order of spec.md
// §4.4: Morpho first, then the Pool's own flash loan, with "none" as a
// sentinel meaning no source qualified (liquidations never fall back to
// wallet balance by design).
var FlashLoanPreference = []types.FlashLoanSource{types.FlashLoanMorpho, types.FlashLoanPoolFlashLoan}

// ChooseFlashLoanSource tries each source in FlashLoanPreference and
// returns the first with liquidity >= required. Returns FlashLoanNone and
// ErrNoFlashLoanSource if none qualify.
func ChooseFlashLoanSource(lookup LiquidityLookup, asset common.Address, required *big.Int) (types.FlashLoanSource, error) {
	for _, source := range FlashLoanPreference {
		available, err := lookup.AvailableLiquidity(source, asset)
		if err != nil {
			continue
		}
		if available != nil && available.Cmp(required) >= 0 {
			return source, nil
		}
	}
	return types.FlashLoanNone, ErrNoFlashLoanSource
}
