// Package types holds the data model shared by every vega process: reserves,
// positions, the reverse index, price tables and the messages that travel on
// the bus between Scout/Listener, Brain and Liquidator.
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Reserve is an asset registered in the lending pool. The set of reserves is
// discovered once at Brain startup and is stable for the life of the process.
type Reserve struct {
	Underlying            common.Address
	Symbol                string
	Decimals              uint8
	LiquidationBonusBps   uint32 // basis points, scale 1e4
	LiquidationThreshold  uint32 // basis points, scale 1e4
	LiquidationProtocolFeeBps uint32
	FlashLoanPremiumBps   uint32
}

// PriceScale is the fixed-point scale used for all base-unit prices (value
// per whole token).
var PriceScale = big.NewInt(1e8)

// HFScale is the fixed-point scale of a HealthFactor.
var HFScale, _ = new(big.Int).SetString("1000000000000000000", 10)

// BpsScale is the scale basis-point fields (liquidation bonus/threshold/fee)
// are expressed in.
const BpsScale = 10_000
