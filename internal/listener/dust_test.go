package listener

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/vega-mev/liquidator/pkg/types"
)

type staticPriceTable map[common.Address]*big.Int

func (s staticPriceTable) Price(reserve common.Address) (*big.Int, bool) {
	p, ok := s[reserve]
	return p, ok
}

func TestDustFilterBelowThresholdIsDust(t *testing.T) {
	weth := common.HexToAddress("0x01")
	reserves := []types.Reserve{{Underlying: weth, Decimals: 18}}
	prices := staticPriceTable{weth: big.NewInt(2000 * 1e8)} // $2000, scale 1e8

	f := NewDustFilter(reserves, prices, nil)

	// 0.0001 WETH * $2000 = $0.20 -> well under the $6 default floor.
	tiny := new(big.Int).Div(bigPow10(18), big.NewInt(10000))
	assert.True(t, f.IsDust(weth, tiny))
}

func TestDustFilterAboveThresholdIsNotDust(t *testing.T) {
	weth := common.HexToAddress("0x01")
	reserves := []types.Reserve{{Underlying: weth, Decimals: 18}}
	prices := staticPriceTable{weth: big.NewInt(2000 * 1e8)}

	f := NewDustFilter(reserves, prices, nil)

	// 1 WETH * $2000 = $2000 -> far above the floor.
	oneWeth := bigPow10(18)
	assert.False(t, f.IsDust(weth, oneWeth))
}

func TestDustFilterUnknownPriceIsNeverDust(t *testing.T) {
	weth := common.HexToAddress("0x01")
	reserves := []types.Reserve{{Underlying: weth, Decimals: 18}}
	f := NewDustFilter(reserves, staticPriceTable{}, nil)

	assert.False(t, f.IsDust(weth, big.NewInt(1)))
}

func TestDustFilterZeroOrNilAmountIsDust(t *testing.T) {
	weth := common.HexToAddress("0x01")
	f := NewDustFilter(nil, staticPriceTable{}, nil)

	assert.True(t, f.IsDust(weth, big.NewInt(0)))
	assert.True(t, f.IsDust(weth, nil))
}

func TestDustFilterHonorsPerReserveOverride(t *testing.T) {
	usdc := common.HexToAddress("0x02")
	reserves := []types.Reserve{{Underlying: usdc, Decimals: 6}}
	prices := staticPriceTable{usdc: big.NewInt(1 * 1e8)} // $1
	overrides := map[common.Address]*big.Int{usdc: big.NewInt(1 * 1e8)} // $1 floor instead of $6

	f := NewDustFilter(reserves, prices, overrides)

	threeUSDC := big.NewInt(3_000_000) // 3 * 1e6
	assert.False(t, f.IsDust(usdc, threeUSDC), "3 USDC should clear a $1 override floor")
}

func bigPow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
