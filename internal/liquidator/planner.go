package liquidator

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vega-mev/liquidator/internal/util"
	"github.com/vega-mev/liquidator/pkg/types"
)

// WeiPerEther is the fixed-point scale of the native gas token.
var WeiPerEther = big.NewInt(1_000_000_000_000_000_000)

// CloseFactorThreshold is the HF below which the full debt position (not
// just half) may be repaid in one liquidation (spec.md §4.4, glossary
// "Close Factor").
var CloseFactorThreshold = new(big.Int).Mul(big.NewInt(95), big.NewInt(1e16)) // 0.95 * HFScale

const (
	closeFactorFullBps  = 10_000
	closeFactorHalfBps  = 5_000
	defaultBribeBps     = 9_500
)

// CollateralPosition is one reserve a user holds as enabled collateral, in
// base units (scale types.PriceScale).
type CollateralPosition struct {
	Asset       common.Address
	AmountBase  *big.Int
	BonusBps    uint32 // reserve's LiquidationBonusBps
	FeeBps      uint32 // reserve's LiquidationProtocolFeeBps
}

// DebtPosition is one reserve a user has variable debt in, in base units.
type DebtPosition struct {
	Asset          common.Address
	AmountBase     *big.Int
	FlashPremiumBps uint32
}

// GasParams are the inputs to the gas-cost term of the profit formula, all
// in native-token wei except NativePriceBase (base units per whole token).
type GasParams struct {
	GasUnits        *big.Int
	BaseFeeWei      *big.Int
	PriorityFeeWei  *big.Int
	NativePriceBase *big.Int
}

// CostBase converts the gas estimate into base units (scale types.PriceScale).
func (g GasParams) CostBase() (*big.Int, error) {
	if g.GasUnits == nil || g.BaseFeeWei == nil || g.PriorityFeeWei == nil || g.NativePriceBase == nil {
		return big.NewInt(0), nil
	}
	feePerGas := new(big.Int).Add(g.BaseFeeWei, g.PriorityFeeWei)
	wei := new(big.Int).Mul(g.GasUnits, feePerGas)
	return util.MulDiv(wei, g.NativePriceBase, WeiPerEther)
}

// Planner implements the best-pair search of spec.md §4.4.
type Planner struct {
	refund        RefundPolicy
	slippage      SlippagePolicy
	bribeBps      uint32
	minProfitBase *big.Int
}

// NewPlanner builds a Planner. bribeBps <= 0 uses the spec default (9500 =
// 95%); minProfitBase <= 0 uses the spec default ($10 at types.PriceScale).
func NewPlanner(refund RefundPolicy, slippage SlippagePolicy, bribeBps uint32, minProfitBase *big.Int) *Planner {
	if bribeBps == 0 {
		bribeBps = defaultBribeBps
	}
	if minProfitBase == nil || minProfitBase.Sign() <= 0 {
		minProfitBase = new(big.Int).Mul(big.NewInt(10), types.PriceScale)
	}
	return &Planner{refund: refund, slippage: slippage, bribeBps: bribeBps, minProfitBase: minProfitBase}
}

// candidatePlan is the planner's working representation before the
// flash-loan source is resolved; it becomes a types.LiquidationPlan once a
// source is chosen.
type candidatePlan struct {
	collateral   common.Address
	debt         common.Address
	debtRepay    *big.Int
	collReceived *big.Int
	protocolFee  *big.Int
	netProfit    *big.Int
}

// BestPair enumerates every (collateral, debt) pair across the user's
// positions and returns the one maximizing net profit (pre-bribe), applying
// the tie-break rules of spec.md §4.4. Returns ok=false if no pair clears
// minProfitBase.
func (p *Planner) BestPair(
	hf *big.Int,
	collaterals []CollateralPosition,
	debts []DebtPosition,
	gas GasParams,
	user common.Address,
) (candidatePlan, bool, error) {
	closeFactorBps := closeFactorHalfBps
	if hf == nil || hf.Cmp(CloseFactorThreshold) < 0 {
		closeFactorBps = closeFactorFullBps
	}

	gasCostBase, err := gas.CostBase()
	if err != nil {
		return candidatePlan{}, false, err
	}
	refund := p.refund.EstimateRefund(user, common.Address{})

	var best candidatePlan
	found := false

	for _, d := range debts {
		maxDebtToRepay, err := util.MulDivRatio(d.AmountBase, uint32(closeFactorBps), types.BpsScale)
		if err != nil {
			return candidatePlan{}, false, err
		}
		for _, c := range collaterals {
			plan, err := p.evaluatePair(c, d, maxDebtToRepay, gasCostBase, refund)
			if err != nil {
				return candidatePlan{}, false, err
			}
			if plan.netProfit.Cmp(p.minProfitBase) < 0 {
				continue
			}
			if !found || betterPair(plan, best) {
				best = plan
				found = true
			}
		}
	}
	return best, found, nil
}

func (p *Planner) evaluatePair(c CollateralPosition, d DebtPosition, maxDebtToRepay, gasCostBase, refund *big.Int) (candidatePlan, error) {
	bonusMultiplier := types.BpsScale + int64(c.BonusBps)

	desiredCollateral, err := util.MulDivRatio(maxDebtToRepay, uint32(bonusMultiplier), types.BpsScale)
	if err != nil {
		return candidatePlan{}, err
	}

	var actualCollateral, actualDebt *big.Int
	if desiredCollateral.Cmp(c.AmountBase) > 0 {
		actualCollateral = new(big.Int).Set(c.AmountBase)
		actualDebt, err = util.MulDivRatio(actualCollateral, types.BpsScale, uint32(bonusMultiplier))
		if err != nil {
			return candidatePlan{}, err
		}
	} else {
		actualCollateral = desiredCollateral
		actualDebt = new(big.Int).Set(maxDebtToRepay)
	}

	bonusAmount := new(big.Int).Sub(actualCollateral, actualDebt)
	if bonusAmount.Sign() < 0 {
		bonusAmount = big.NewInt(0)
	}
	protocolFee, err := util.MulDivRatio(bonusAmount, c.FeeBps, types.BpsScale)
	if err != nil {
		return candidatePlan{}, err
	}

	slippageBps := p.slippage.SlippageBps(c.Asset, actualCollateral)
	collateralAfterSlippage, err := util.MulDivRatio(actualCollateral, types.BpsScale-slippageBps, types.BpsScale)
	if err != nil {
		return candidatePlan{}, err
	}
	collateralAfterSlippage.Sub(collateralAfterSlippage, protocolFee)

	debtWithPremium, err := util.MulDivRatio(actualDebt, types.BpsScale+d.FlashPremiumBps, types.BpsScale)
	if err != nil {
		return candidatePlan{}, err
	}

	netProfit := new(big.Int).Sub(collateralAfterSlippage, debtWithPremium)
	netProfit.Sub(netProfit, gasCostBase)
	netProfit.Add(netProfit, refund)

	return candidatePlan{
		collateral:   c.Asset,
		debt:         d.Asset,
		debtRepay:    actualDebt,
		collReceived: actualCollateral,
		protocolFee:  protocolFee,
		netProfit:    netProfit,
	}, nil
}

// betterPair reports whether a beats the current best b, applying spec.md
// §4.4's three deterministic tie-break rules in order: higher net profit,
// then smaller debt repaid, then lexicographic (collateral, debt) address
// ordering.
func betterPair(a, b candidatePlan) bool {
	if cmp := a.netProfit.Cmp(b.netProfit); cmp != 0 {
		return cmp > 0
	}
	if cmp := a.debtRepay.Cmp(b.debtRepay); cmp != 0 {
		return cmp < 0
	}
	pairs := [][2]common.Address{{a.collateral, a.debt}, {b.collateral, b.debt}}
	sort.Slice(pairs, func(i, j int) bool {
		ci, cj := pairs[i][0], pairs[j][0]
		if ci != cj {
			return lessAddress(ci, cj)
		}
		return lessAddress(pairs[i][1], pairs[j][1])
	})
	return pairs[0] == [2]common.Address{a.collateral, a.debt}
}

func lessAddress(a, b common.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Bribe computes the 9500/10000 bribe split from a candidate's net profit
// (spec.md §4.4 "Bribe policy").
func (p *Planner) Bribe(netProfit *big.Int) (*big.Int, error) {
	return util.MulDivRatio(netProfit, p.bribeBps, types.BpsScale)
}
