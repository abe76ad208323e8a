package contractclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Multicall3Address is the canonical, chain-independent deployment address
// of Multicall3 (https://www.multicall3.com), used so bucketed health-factor
// recomputation never issues one RPC per user (spec.md §4.3.2 step 5).
var Multicall3Address = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

const multicall3ABIJSON = `[{"inputs":[{"components":[{"internalType":"address","name":"target","type":"address"},{"internalType":"bool","name":"allowFailure","type":"bool"},{"internalType":"bytes","name":"callData","type":"bytes"}],"internalType":"struct Multicall3.Call3[]","name":"calls","type":"tuple[]"}],"name":"aggregate3","outputs":[{"components":[{"internalType":"bool","name":"success","type":"bool"},{"internalType":"bytes","name":"returnData","type":"bytes"}],"internalType":"struct Multicall3.Result[]","name":"returnData","type":"tuple[]"}],"stateMutability":"payable","type":"function"}]`

var multicall3ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(multicall3ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("contractclient: embedded multicall3 ABI is invalid: %v", err))
	}
	multicall3ABI = parsed
}

// Call3 is one leg of a Multicall3.aggregate3 batch.
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Result3 is the decoded per-call outcome of a batch.
type Result3 struct {
	Success    bool
	ReturnData []byte
}

// Multicaller issues a single eth_call batching many contract reads, the
// primitive Brain's bucket workers use to avoid per-user RPCs.
type Multicaller struct {
	client RPC
}

// NewMulticaller binds a Multicaller to client.
func NewMulticaller(client RPC) *Multicaller {
	return &Multicaller{client: client}
}

// Aggregate executes calls in one eth_call against Multicall3Address.
func (m *Multicaller) Aggregate(ctx context.Context, calls []Call3) ([]Result3, error) {
	type call3Tuple struct {
		Target       common.Address
		AllowFailure bool
		CallData     []byte
	}
	tuples := make([]call3Tuple, len(calls))
	for i, c := range calls {
		tuples[i] = call3Tuple{Target: c.Target, AllowFailure: c.AllowFailure, CallData: c.CallData}
	}

	data, err := multicall3ABI.Pack("aggregate3", tuples)
	if err != nil {
		return nil, fmt.Errorf("contractclient: pack aggregate3: %w", err)
	}

	out, err := m.client.CallContract(ctx, ethereum.CallMsg{To: &Multicall3Address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("contractclient: aggregate3 call: %w", err)
	}

	unpacked, err := multicall3ABI.Unpack("aggregate3", out)
	if err != nil {
		return nil, fmt.Errorf("contractclient: unpack aggregate3: %w", err)
	}
	if len(unpacked) != 1 {
		return nil, fmt.Errorf("contractclient: unexpected aggregate3 output shape")
	}

	raw, ok := unpacked[0].([]struct {
		Success    bool
		ReturnData []byte
	})
	if !ok {
		return nil, fmt.Errorf("contractclient: unexpected aggregate3 result type")
	}
	results := make([]Result3, len(raw))
	for i, r := range raw {
		results[i] = Result3{Success: r.Success, ReturnData: r.ReturnData}
	}
	return results, nil
}
