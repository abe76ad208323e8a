package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UserPosition is the (user, reserve) pair the protocol actually stores.
// Real balances require the reserve's current liquidity/borrow index, which
// moves every block, so callers must re-read indices before computing a
// health factor from a cached position.
type UserPosition struct {
	User               common.Address
	Reserve            common.Address
	ScaledCollateral   *big.Int
	CollateralEnabled  bool
	ScaledVariableDebt *big.Int
}

// HasCollateral reports whether this position contributes to the reserve's
// collateral-user set (invariant I1 of spec.md §3).
func (p UserPosition) HasCollateral() bool {
	return p.CollateralEnabled && p.ScaledCollateral != nil && p.ScaledCollateral.Sign() > 0
}

// HasDebt reports whether this position contributes to the reserve's
// debt-user set.
func (p UserPosition) HasDebt() bool {
	return p.ScaledVariableDebt != nil && p.ScaledVariableDebt.Sign() > 0
}

// ReserveIndices are the per-reserve multipliers needed to turn a scaled
// balance into a real one. They change with every block that touches the
// reserve.
type ReserveIndices struct {
	LiquidityIndex     *big.Int
	VariableBorrowIndex *big.Int
}

// AccountSnapshot is the per-user totals a HF computation produces; it is
// what gets carried inside an UnderwaterUser so the liquidator never has to
// repeat the health-factor math against the live cache.
type AccountSnapshot struct {
	TotalCollateralBase *big.Int
	TotalDebtBase        *big.Int
	HealthFactor          *big.Int // scale HFScale; nil means +Inf (zero debt)
}

// PositionEventKind enumerates the four Pool log topics Event Listener
// tracks.
type PositionEventKind uint8

const (
	EventLiquidationCall PositionEventKind = iota + 1
	EventBorrow
	EventSupply
	EventRepay
)

func (k PositionEventKind) String() string {
	switch k {
	case EventLiquidationCall:
		return "LiquidationCall"
	case EventBorrow:
		return "Borrow"
	case EventSupply:
		return "Supply"
	case EventRepay:
		return "Repay"
	default:
		return "Unknown"
	}
}

// PositionEvent is emitted by Event Listener for every position-mutating log.
type PositionEvent struct {
	Kind    PositionEventKind
	User    common.Address
	Reserve common.Address
	Amount  *big.Int
	Block   uint64
	TxHash  common.Hash
}
