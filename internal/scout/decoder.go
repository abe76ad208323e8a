package scout

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/vega-mev/liquidator/pkg/types"
)

// ErrNotForwarded is returned when a transaction's `to` is not a tracked
// forwarder; callers drop it without counting it as a structural error.
var ErrNotForwarded = errors.New("scout: transaction is not addressed to a tracked forwarder")

// ErrStructuralDecode wraps any failure decoding the forward()/transmit()
// calldata nesting or the OCR report payload — spec.md §4.1 step 3 treats
// these as structural errors: logged and counted, never fatal.
var ErrStructuralDecode = errors.New("scout: structural decode failure")

const forwarderABIJSON = `[{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"bytes","name":"data","type":"bytes"}],"name":"forward","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

const transmitABIJSON = `[{"inputs":[{"internalType":"bytes32[3]","name":"reportContext","type":"bytes32[3]"},{"internalType":"bytes","name":"report","type":"bytes"},{"internalType":"bytes32[]","name":"rs","type":"bytes32[]"},{"internalType":"bytes32[]","name":"ss","type":"bytes32[]"},{"internalType":"bytes32","name":"rawVs","type":"bytes32"}],"name":"transmit","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// reportArguments decodes an OCR2 report's ABI-encoded body:
// (uint32 observationsTimestamp, bytes32 observers, uint8 observationsCount,
// int192[] observations, int192 juelsPerFeeCoin).
var reportArguments = mustReportArguments()

var forwarderABI, transmitABI abi.ABI

func init() {
	var err error
	forwarderABI, err = abi.JSON(strings.NewReader(forwarderABIJSON))
	if err != nil {
		panic(fmt.Sprintf("scout: invalid embedded forwarder ABI: %v", err))
	}
	transmitABI, err = abi.JSON(strings.NewReader(transmitABIJSON))
	if err != nil {
		panic(fmt.Sprintf("scout: invalid embedded transmit ABI: %v", err))
	}
}

func mustReportArguments() abi.Arguments {
	uint32Ty, _ := abi.NewType("uint32", "", nil)
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)
	uint8Ty, _ := abi.NewType("uint8", "", nil)
	int192SliceTy, _ := abi.NewType("int192[]", "", nil)
	int192Ty, _ := abi.NewType("int192", "", nil)
	return abi.Arguments{
		{Name: "observationsTimestamp", Type: uint32Ty},
		{Name: "observers", Type: bytes32Ty},
		{Name: "observationsCount", Type: uint8Ty},
		{Name: "observations", Type: int192SliceTy},
		{Name: "juelsPerFeeCoin", Type: int192Ty},
	}
}

// DecodedPrice is the result of decoding one pending forwarder transaction.
type DecodedPrice struct {
	Forwarder        common.Address
	Aggregator       common.Address
	Price            *big.Int // base units, scale types.PriceScale-equivalent (1e8, Chainlink's native answer scale)
	InnerCalldata    []byte
	AggregatorTarget common.Address
}

// DecodeForwardedTransaction implements spec.md §4.1 steps 1-4: reject
// untracked forwarders, unwrap the forward(to, data) call, decode the
// inner transmit() call, and extract the median-indexed observation as the
// new price.
func DecodeForwardedTransaction(tx *gethtypes.Transaction, table *ForwarderTable) (DecodedPrice, error) {
	to := tx.To()
	if to == nil || !table.Tracked(*to) {
		return DecodedPrice{}, ErrNotForwarded
	}
	aggregator, _ := table.Aggregator(*to)

	data := tx.Data()
	if len(data) < 4 {
		return DecodedPrice{}, fmt.Errorf("%w: calldata too short", ErrStructuralDecode)
	}
	method, err := forwarderABI.MethodById(data[:4])
	if err != nil || method.Name != "forward" {
		return DecodedPrice{}, fmt.Errorf("%w: not a forward() call: %v", ErrStructuralDecode, err)
	}
	args := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return DecodedPrice{}, fmt.Errorf("%w: unpack forward(): %v", ErrStructuralDecode, err)
	}
	target, ok := args["to"].(common.Address)
	if !ok {
		return DecodedPrice{}, fmt.Errorf("%w: forward() missing target address", ErrStructuralDecode)
	}
	inner, ok := args["data"].([]byte)
	if !ok || len(inner) < 4 {
		return DecodedPrice{}, fmt.Errorf("%w: forward() inner calldata too short", ErrStructuralDecode)
	}

	innerMethod, err := transmitABI.MethodById(inner[:4])
	if err != nil || innerMethod.Name != "transmit" {
		return DecodedPrice{}, fmt.Errorf("%w: inner call is not transmit(): %v", ErrStructuralDecode, err)
	}
	innerArgs := make(map[string]interface{})
	if err := innerMethod.Inputs.UnpackIntoMap(innerArgs, inner[4:]); err != nil {
		return DecodedPrice{}, fmt.Errorf("%w: unpack transmit(): %v", ErrStructuralDecode, err)
	}
	report, ok := innerArgs["report"].([]byte)
	if !ok {
		return DecodedPrice{}, fmt.Errorf("%w: transmit() missing report", ErrStructuralDecode)
	}

	price, err := medianObservation(report)
	if err != nil {
		return DecodedPrice{}, err
	}
	if price.Sign() <= 0 {
		return DecodedPrice{}, fmt.Errorf("%w: non-positive price %s", ErrStructuralDecode, price)
	}

	return DecodedPrice{
		Forwarder:        *to,
		Aggregator:        aggregator,
		Price:            price,
		InnerCalldata:    inner,
		AggregatorTarget: target,
	}, nil
}

// medianObservation decodes an OCR2 report body and returns the
// median-indexed observation (the report's observations array is already
// sorted by the reporting network; indexing its midpoint avoids re-sorting
// on every pending transaction).
func medianObservation(report []byte) (*big.Int, error) {
	values, err := reportArguments.Unpack(report)
	if err != nil || len(values) < 4 {
		return nil, fmt.Errorf("%w: unpack OCR report: %v", ErrStructuralDecode, err)
	}
	observations, ok := values[3].([]*big.Int)
	if !ok || len(observations) == 0 {
		return nil, fmt.Errorf("%w: report has no observations", ErrStructuralDecode)
	}
	return observations[len(observations)/2], nil
}

// ToPriceUpdate assembles a PriceUpdate from a decoded transaction, stamping
// it with the caller-supplied trace id for downstream correlation.
func ToPriceUpdate(trace types.TraceID, decoded DecodedPrice, tx *gethtypes.Transaction, rawTx []byte, targetBlock uint64, sender common.Address) types.PriceUpdate {
	return types.PriceUpdate{
		TraceID:              trace,
		TxHash:               tx.Hash(),
		RawTx:                rawTx,
		TargetInclusionBlock: targetBlock,
		NewPrice:             decoded.Price,
		ForwarderAddress:     decoded.Forwarder,
		Sender:               sender,
		Recipient:            decoded.AggregatorTarget,
		Calldata:             decoded.InnerCalldata,
	}
}
