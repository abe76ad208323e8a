package listener

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vega-mev/liquidator/pkg/types"
)

// DefaultDustThresholdBase is the fallback per-reserve dust floor, in base
// units at types.PriceScale (1e8): $6.
var DefaultDustThresholdBase = big.NewInt(6 * 1e8)

// DustFilter decides whether a PositionEvent's amount is too small to be
// worth triggering Brain's warm path over (spec.md §4.2). Thresholds are
// expressed in base units, not raw token amounts, since a dust threshold in
// raw units would mean something different for an 18-decimal token and a
// 6-decimal one.
type DustFilter struct {
	thresholds map[common.Address]*big.Int // reserve -> base-unit floor
	prices     PriceTable
	decimals   map[common.Address]uint8
}

// PriceTable is the narrow price lookup DustFilter needs; satisfied by
// brain.PriceTable-shaped implementations or a static snapshot loaded at
// startup.
type PriceTable interface {
	Price(reserve common.Address) (*big.Int, bool)
}

// NewDustFilter builds a filter from reserves (for decimals), a price table
// and optional per-reserve overrides; reserves absent from overrides use
// DefaultDustThresholdBase.
func NewDustFilter(reserves []types.Reserve, prices PriceTable, overrides map[common.Address]*big.Int) *DustFilter {
	thresholds := make(map[common.Address]*big.Int, len(reserves))
	decimals := make(map[common.Address]uint8, len(reserves))
	for _, r := range reserves {
		decimals[r.Underlying] = r.Decimals
		if v, ok := overrides[r.Underlying]; ok {
			thresholds[r.Underlying] = v
		} else {
			thresholds[r.Underlying] = DefaultDustThresholdBase
		}
	}
	return &DustFilter{thresholds: thresholds, prices: prices, decimals: decimals}
}

// IsDust reports whether amount (in the reserve's raw token units) converts
// to fewer base units than the reserve's configured dust floor. Events for
// reserves with no known price are never treated as dust: Brain should
// decide, not Listener, when price data is unavailable.
func (f *DustFilter) IsDust(reserve common.Address, amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return true
	}
	price, ok := f.prices.Price(reserve)
	if !ok || price == nil {
		return false
	}
	decimals, ok := f.decimals[reserve]
	if !ok {
		return false
	}
	threshold, ok := f.thresholds[reserve]
	if !ok {
		threshold = DefaultDustThresholdBase
	}

	amt, overflow := uint256.FromBig(amount)
	if overflow {
		return false
	}
	p, overflow := uint256.FromBig(price)
	if overflow {
		return false
	}
	scale, overflow := uint256.FromBig(pow10(decimals))
	if overflow || scale.IsZero() {
		return false
	}
	thr, overflow := uint256.FromBig(threshold)
	if overflow {
		return false
	}

	// baseUnits = amount * price / 10^decimals, compared against threshold.
	product, overflow := new(uint256.Int).MulOverflow(amt, p)
	if overflow {
		return false // too large to possibly be dust
	}
	baseUnits := new(uint256.Int).Div(product, scale)
	return baseUnits.Lt(thr)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
