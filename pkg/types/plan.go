package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FlashLoanSource identifies where the Liquidator borrows the debt asset
// from, in preference order.
type FlashLoanSource uint8

const (
	FlashLoanNone FlashLoanSource = iota
	FlashLoanMorpho
	FlashLoanPoolFlashLoan
)

func (s FlashLoanSource) String() string {
	switch s {
	case FlashLoanMorpho:
		return "morpho"
	case FlashLoanPoolFlashLoan:
		return "pool"
	default:
		return "none"
	}
}

// LiquidationPlan is the Liquidator's internal result of the best-pair
// search: which reserve pair to liquidate, how much, and where the flash
// loan comes from.
type LiquidationPlan struct {
	User                      common.Address
	CollateralAsset           common.Address
	DebtAsset                 common.Address
	DebtToRepay               *big.Int
	CollateralToReceive       *big.Int
	ProtocolFee               *big.Int
	NetProfit                 *big.Int
	Bribe                     *big.Int
	FlashLoanSource           FlashLoanSource
	TargetInclusionBlock      uint64
}
