package brain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vega-mev/liquidator/pkg/contractclient"
)

// aggregatorABIJSON is the Chainlink AggregatorV3Interface slice PriceOracle
// needs: the raw answer and its decimals, read directly off each reserve's
// aggregator rather than through its forwarder (the forwarder only ever
// carries the *next*, not-yet-settled speculative round).
const aggregatorABIJSON = `[
  {"inputs":[],"name":"latestAnswer","outputs":[{"internalType":"int256","name":"","type":"int256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic(fmt.Sprintf("brain: invalid embedded aggregator ABI: %v", err))
	}
	aggregatorABI = parsed
}

// PriceOracle keeps Brain's canonical, types.PriceScale-denominated price
// for every reserve in the Chainlink routing table — the base table that
// HandlePriceUpdate's speculative overlay and HandlePositionEvent's warm
// recompute both read through, instead of an always-empty price map
// (spec.md §4.3.1 step 4, §4.3.4).
type PriceOracle struct {
	mc         *contractclient.Multicaller
	aggregator map[common.Address]common.Address // reserve -> aggregator
}

// NewPriceOracle builds a PriceOracle from the Chainlink routing table
// loaded at startup (the same routes Scout's forwarder table and Brain's
// forwarder->reserve mapping come from).
func NewPriceOracle(routes []ChainlinkRoute, mc *contractclient.Multicaller) *PriceOracle {
	byReserve := make(map[common.Address]common.Address, len(routes))
	for _, r := range routes {
		byReserve[r.Reserve] = r.Aggregator
	}
	return &PriceOracle{mc: mc, aggregator: byReserve}
}

// Refresh reads latestAnswer and decimals for every tracked reserve's
// aggregator in one multicall batch, rescaling each to types.PriceScale.
// A reserve whose aggregator read fails is simply omitted from the
// returned map rather than zeroed, so Cache.SetPrices can merge the result
// on top of the last-known values instead of wiping them.
func (o *PriceOracle) Refresh(ctx context.Context) (map[common.Address]*big.Int, error) {
	reserves := make([]common.Address, 0, len(o.aggregator))
	calls := make([]contractclient.Call3, 0, len(o.aggregator)*2)
	for reserve, agg := range o.aggregator {
		answerData, err := aggregatorABI.Pack("latestAnswer")
		if err != nil {
			return nil, fmt.Errorf("brain: pack latestAnswer(%s): %w", agg, err)
		}
		decimalsData, err := aggregatorABI.Pack("decimals")
		if err != nil {
			return nil, fmt.Errorf("brain: pack decimals(%s): %w", agg, err)
		}
		calls = append(calls,
			contractclient.Call3{Target: agg, AllowFailure: true, CallData: answerData},
			contractclient.Call3{Target: agg, AllowFailure: true, CallData: decimalsData},
		)
		reserves = append(reserves, reserve)
	}
	if len(calls) == 0 {
		return map[common.Address]*big.Int{}, nil
	}

	results, err := o.mc.Aggregate(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("brain: aggregate chainlink reads: %w", err)
	}

	out := make(map[common.Address]*big.Int, len(reserves))
	for i, reserve := range reserves {
		answerRes := results[i*2]
		decimalsRes := results[i*2+1]
		if !answerRes.Success || !decimalsRes.Success {
			continue
		}
		answerUnpacked, err := aggregatorABI.Unpack("latestAnswer", answerRes.ReturnData)
		if err != nil || len(answerUnpacked) != 1 {
			continue
		}
		answer, ok := answerUnpacked[0].(*big.Int)
		if !ok {
			continue
		}
		decimalsUnpacked, err := aggregatorABI.Unpack("decimals", decimalsRes.ReturnData)
		if err != nil || len(decimalsUnpacked) != 1 {
			continue
		}
		decimals, ok := decimalsUnpacked[0].(uint8)
		if !ok {
			continue
		}
		out[reserve] = rescalePrice(answer, decimals)
	}
	return out, nil
}

// rescalePrice converts an aggregator answer at its native decimals to
// types.PriceScale (1e8).
func rescalePrice(answer *big.Int, decimals uint8) *big.Int {
	scale := int64(decimals) - 8
	switch {
	case scale == 0:
		return new(big.Int).Set(answer)
	case scale > 0:
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(scale), nil)
		return new(big.Int).Quo(answer, div)
	default:
		mul := new(big.Int).Exp(big.NewInt(10), big.NewInt(-scale), nil)
		return new(big.Int).Mul(answer, mul)
	}
}
