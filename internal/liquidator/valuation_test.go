package liquidator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vega-mev/liquidator/pkg/types"
)

func rayAmount(n int64) *big.Int {
	ray := new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)
	return new(big.Int).Mul(big.NewInt(n), ray)
}

func TestBuildPairInputsSplitsCollateralAndDebt(t *testing.T) {
	weth := common.HexToAddress("0x01")
	usdc := common.HexToAddress("0x02")
	user := common.HexToAddress("0x03")

	reserves := map[common.Address]types.Reserve{
		weth: {Underlying: weth, Decimals: 18, LiquidationBonusBps: 500, LiquidationThreshold: 8250},
		usdc: {Underlying: usdc, Decimals: 6, LiquidationThreshold: 8700},
	}
	ray := new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)
	indices := map[common.Address]types.ReserveIndices{
		weth: {LiquidityIndex: ray, VariableBorrowIndex: ray},
		usdc: {LiquidityIndex: ray, VariableBorrowIndex: ray},
	}
	prices := staticPrices{weth: big.NewInt(2000_00000000), usdc: big.NewInt(1_00000000)}

	positions := []types.UserPosition{
		{User: user, Reserve: weth, ScaledCollateral: new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), CollateralEnabled: true, ScaledVariableDebt: big.NewInt(0)},
		{User: user, Reserve: usdc, ScaledVariableDebt: new(big.Int).Mul(big.NewInt(1000), new(big.Int).Exp(big.NewInt(10), big.NewInt(6), nil))},
	}

	collaterals, debts, err := BuildPairInputs(positions, reserves, indices, prices)
	require.NoError(t, err)
	require.Len(t, collaterals, 1)
	require.Len(t, debts, 1)
	assert.Equal(t, weth, collaterals[0].Asset)
	assert.Equal(t, 0, collaterals[0].AmountBase.Cmp(big.NewInt(2000_00000000)), "1 WETH at $2000 should be $2000 in base units")
	assert.Equal(t, usdc, debts[0].Asset)
}

func TestBuildPairInputsSkipsReservesWithoutPrice(t *testing.T) {
	weth := common.HexToAddress("0x01")
	user := common.HexToAddress("0x02")
	reserves := map[common.Address]types.Reserve{weth: {Underlying: weth, Decimals: 18}}
	ray := new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)
	indices := map[common.Address]types.ReserveIndices{weth: {LiquidityIndex: ray, VariableBorrowIndex: ray}}

	positions := []types.UserPosition{
		{User: user, Reserve: weth, ScaledCollateral: rayAmount(1), CollateralEnabled: true},
	}
	collaterals, debts, err := BuildPairInputs(positions, reserves, indices, staticPrices{})
	require.NoError(t, err)
	assert.Empty(t, collaterals)
	assert.Empty(t, debts)
}

type staticPrices map[common.Address]*big.Int

func (s staticPrices) Price(reserve common.Address) (*big.Int, bool) {
	p, ok := s[reserve]
	return p, ok
}
