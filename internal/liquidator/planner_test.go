package liquidator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vega-mev/liquidator/pkg/types"
)

func usd(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), types.PriceScale)
}

func TestPlannerCloseFactorFullBelowThreshold(t *testing.T) {
	p := NewPlanner(ZeroRefund{}, FlatSlippagePolicy{}, 0, big.NewInt(1))
	weth := common.HexToAddress("0x01")
	usdc := common.HexToAddress("0x02")

	hf := new(big.Int).Sub(CloseFactorThreshold, big.NewInt(1)) // just under 0.95
	collaterals := []CollateralPosition{{Asset: weth, AmountBase: usd(10_000), BonusBps: 500, FeeBps: 0}}
	debts := []DebtPosition{{Asset: usdc, AmountBase: usd(1_000)}}

	best, ok, err := p.BestPair(hf, collaterals, debts, GasParams{}, common.Address{})
	require.NoError(t, err)
	require.True(t, ok)
	// full close factor: up to all 1000 USDC may be repaid.
	assert.Equal(t, 0, best.debtRepay.Cmp(usd(1_000)))
}

func TestPlannerCloseFactorHalfAboveThreshold(t *testing.T) {
	p := NewPlanner(ZeroRefund{}, FlatSlippagePolicy{}, 0, big.NewInt(1))
	weth := common.HexToAddress("0x01")
	usdc := common.HexToAddress("0x02")

	hf := new(big.Int).Add(CloseFactorThreshold, big.NewInt(1)) // just above 0.95
	collaterals := []CollateralPosition{{Asset: weth, AmountBase: usd(10_000), BonusBps: 500, FeeBps: 0}}
	debts := []DebtPosition{{Asset: usdc, AmountBase: usd(1_000)}}

	best, ok, err := p.BestPair(hf, collaterals, debts, GasParams{}, common.Address{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, best.debtRepay.Cmp(usd(500)))
}

func TestPlannerDiscardsBelowProfitThreshold(t *testing.T) {
	minProfit := usd(10)
	p := NewPlanner(ZeroRefund{}, FlatSlippagePolicy{RateBps: 0}, 0, minProfit)
	weth := common.HexToAddress("0x01")
	usdc := common.HexToAddress("0x02")

	hf := new(big.Int).Add(CloseFactorThreshold, big.NewInt(1))
	// Tiny debt position means tiny profit, well under the $10 floor.
	collaterals := []CollateralPosition{{Asset: weth, AmountBase: usd(1), BonusBps: 500}}
	debts := []DebtPosition{{Asset: usdc, AmountBase: usd(1)}}

	_, ok, err := p.BestPair(hf, collaterals, debts, GasParams{}, common.Address{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlannerTieBreakPrefersHigherProfit(t *testing.T) {
	p := NewPlanner(ZeroRefund{}, FlatSlippagePolicy{}, 0, big.NewInt(1))
	assetA := common.HexToAddress("0x01")
	assetB := common.HexToAddress("0x02")
	usdc := common.HexToAddress("0x03")

	hf := new(big.Int).Add(CloseFactorThreshold, big.NewInt(1))
	collaterals := []CollateralPosition{
		{Asset: assetA, AmountBase: usd(500), BonusBps: 500},
		{Asset: assetB, AmountBase: usd(10_000), BonusBps: 500},
	}
	debts := []DebtPosition{{Asset: usdc, AmountBase: usd(1_000)}}

	best, ok, err := p.BestPair(hf, collaterals, debts, GasParams{}, common.Address{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, assetB, best.collateral, "the pair with more available collateral should win on higher profit")
}

func TestPlannerBribeIs95Percent(t *testing.T) {
	p := NewPlanner(ZeroRefund{}, FlatSlippagePolicy{}, 0, big.NewInt(1))
	netProfit := usd(10) // 1,000,000,000 at PriceScale
	bribe, err := p.Bribe(netProfit)
	require.NoError(t, err)
	want := new(big.Int).Div(new(big.Int).Mul(netProfit, big.NewInt(9500)), big.NewInt(10000))
	assert.Equal(t, 0, bribe.Cmp(want), "bribe should be 95%% of net profit")
}

func TestBetterPairLexicographicTieBreak(t *testing.T) {
	lo := common.HexToAddress("0x01")
	hi := common.HexToAddress("0x02")

	a := candidatePlan{collateral: lo, debt: hi, netProfit: usd(10), debtRepay: usd(5)}
	b := candidatePlan{collateral: hi, debt: lo, netProfit: usd(10), debtRepay: usd(5)}

	assert.True(t, betterPair(a, b), "lexicographically smaller collateral address should win on a full tie")
	assert.False(t, betterPair(b, a))
}

func TestGasParamsCostBaseConvertsWeiToBaseUnits(t *testing.T) {
	gas := GasParams{
		GasUnits:        big.NewInt(400_000),
		BaseFeeWei:      big.NewInt(20_000_000_000), // 20 gwei
		PriorityFeeWei:  big.NewInt(2_000_000_000),  // 2 gwei
		NativePriceBase: usd(2_000),
	}
	cost, err := gas.CostBase()
	require.NoError(t, err)
	assert.True(t, cost.Sign() > 0)
}
