// Package liquidator implements the Liquidator process: given an
// UnderwaterUser, search for the most profitable (collateral, debt) pair to
// liquidate, choose a flash-loan source, assemble a bundle, and submit it to
// the builder relay (spec.md §4.4).
package liquidator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RefundPolicy estimates the relay's gas refund for a bundle. The source
// protocol's "refunded gas" semantics are documented as TBA (spec.md §9
// Open Question); ZeroRefund is the safe default until a specific builder's
// behavior is known.
type RefundPolicy interface {
	EstimateRefund(user common.Address, debtAsset common.Address) *big.Int
}

// ZeroRefund always returns zero, matching the "treat as zero unless a
// specific builder is selected" resolution of the refunded-gas open
// question.
type ZeroRefund struct{}

func (ZeroRefund) EstimateRefund(common.Address, common.Address) *big.Int {
	return big.NewInt(0)
}

// SlippagePolicy estimates the fraction of collateral value lost to
// execution slippage when the liquidator converts it. Rate is expressed as
// a fraction of BpsScale (e.g. 50 = 0.5%).
type SlippagePolicy interface {
	SlippageBps(collateralAsset common.Address, amountBase *big.Int) uint32
}

// FlatSlippagePolicy applies the same slippage rate to every pair,
// matching the source's flat-percentage approach (spec.md §9 Open
// Question: whether per-pair slippage should come from an on-chain AMM
// quote is left undecided; this is the default, AMM-quote-backed policies
// are a drop-in replacement via the same interface).
type FlatSlippagePolicy struct {
	RateBps uint32
}

func (p FlatSlippagePolicy) SlippageBps(common.Address, *big.Int) uint32 {
	return p.RateBps
}
