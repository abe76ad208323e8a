// Package listener implements Event Listener: subscribe to the Pool
// contract's position-mutating log stream, decode each log into a
// PositionEvent, filter dust, and publish onto the bus for Brain's warm
// path (spec.md §4.2).
package listener

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/vega-mev/liquidator/pkg/types"
)

// poolEventsABIJSON declares the four position-mutating events Event
// Listener tracks, trimmed to the fields decoding needs.
const poolEventsABIJSON = `[
	{"anonymous":false,"name":"Supply","type":"event","inputs":[
		{"indexed":true,"name":"reserve","type":"address"},
		{"indexed":false,"name":"user","type":"address"},
		{"indexed":true,"name":"onBehalfOf","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":true,"name":"referralCode","type":"uint16"}
	]},
	{"anonymous":false,"name":"Borrow","type":"event","inputs":[
		{"indexed":true,"name":"reserve","type":"address"},
		{"indexed":false,"name":"user","type":"address"},
		{"indexed":true,"name":"onBehalfOf","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"interestRateMode","type":"uint8"},
		{"indexed":false,"name":"borrowRate","type":"uint256"},
		{"indexed":true,"name":"referralCode","type":"uint16"}
	]},
	{"anonymous":false,"name":"Repay","type":"event","inputs":[
		{"indexed":true,"name":"reserve","type":"address"},
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":true,"name":"repayer","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"useATokens","type":"bool"}
	]},
	{"anonymous":false,"name":"LiquidationCall","type":"event","inputs":[
		{"indexed":true,"name":"collateralAsset","type":"address"},
		{"indexed":true,"name":"debtAsset","type":"address"},
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":false,"name":"debtToCover","type":"uint256"},
		{"indexed":false,"name":"liquidatedCollateralAmount","type":"uint256"},
		{"indexed":false,"name":"liquidator","type":"address"},
		{"indexed":false,"name":"receiveAToken","type":"bool"}
	]}
]`

var poolEventsABI abi.ABI

func init() {
	var err error
	poolEventsABI, err = abi.JSON(strings.NewReader(poolEventsABIJSON))
	if err != nil {
		panic(fmt.Sprintf("listener: invalid embedded Pool events ABI: %v", err))
	}
}

// eventKind maps an event name to the PositionEventKind Brain understands.
func eventKind(name string) (types.PositionEventKind, bool) {
	switch name {
	case "LiquidationCall":
		return types.EventLiquidationCall, true
	case "Borrow":
		return types.EventBorrow, true
	case "Supply":
		return types.EventSupply, true
	case "Repay":
		return types.EventRepay, true
	default:
		return 0, false
	}
}

// DecodeLog turns one Pool contract log into a PositionEvent. Returns
// ok=false for logs that aren't one of the four tracked events (e.g. a
// different contract's log delivered by a noisy filter, or a Pool event
// Event Listener doesn't track).
func DecodeLog(l gethtypes.Log) (types.PositionEvent, bool, error) {
	if len(l.Topics) == 0 {
		return types.PositionEvent{}, false, nil
	}
	ev, err := poolEventsABI.EventByID(l.Topics[0])
	if err != nil {
		return types.PositionEvent{}, false, nil
	}
	kind, ok := eventKind(ev.Name)
	if !ok {
		return types.PositionEvent{}, false, nil
	}

	data := make(map[string]interface{})
	if err := poolEventsABI.UnpackIntoMap(data, ev.Name, l.Data); err != nil {
		return types.PositionEvent{}, false, fmt.Errorf("listener: unpack %s data: %w", ev.Name, err)
	}
	indexed := make(map[string]interface{})
	if err := abi.ParseTopicsIntoMap(indexed, indexedArguments(ev), l.Topics[1:]); err != nil {
		return types.PositionEvent{}, false, fmt.Errorf("listener: unpack %s topics: %w", ev.Name, err)
	}

	out := types.PositionEvent{
		Kind:   kind,
		Block:  l.BlockNumber,
		TxHash: l.TxHash,
	}

	switch ev.Name {
	case "LiquidationCall":
		out.Reserve, _ = indexed["collateralAsset"].(common.Address)
		out.User, _ = indexed["user"].(common.Address)
		out.Amount, _ = data["liquidatedCollateralAmount"].(*big.Int)
	case "Borrow":
		out.Reserve, _ = indexed["reserve"].(common.Address)
		out.User, _ = data["user"].(common.Address)
		out.Amount, _ = data["amount"].(*big.Int)
	case "Supply":
		out.Reserve, _ = indexed["reserve"].(common.Address)
		out.User, _ = data["user"].(common.Address)
		out.Amount, _ = data["amount"].(*big.Int)
	case "Repay":
		out.Reserve, _ = indexed["reserve"].(common.Address)
		out.User, _ = indexed["user"].(common.Address)
		out.Amount, _ = data["amount"].(*big.Int)
	}
	if out.Amount == nil {
		out.Amount = big.NewInt(0)
	}
	return out, true, nil
}

// indexedArguments returns just the indexed inputs of ev, the shape
// abi.ParseTopicsIntoMap expects.
func indexedArguments(ev abi.Event) abi.Arguments {
	var args abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			args = append(args, in)
		}
	}
	return args
}

// Topics returns the four event signature hashes to filter the Pool log
// subscription on.
func Topics() []common.Hash {
	names := []string{"LiquidationCall", "Borrow", "Supply", "Repay"}
	out := make([]common.Hash, 0, len(names))
	for _, n := range names {
		out = append(out, poolEventsABI.Events[n].ID)
	}
	return out
}
