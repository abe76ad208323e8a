package types

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func someTrace() TraceID {
	return TraceID{1, 2, 3, 4, 5, 6, 7, 8}
}

func TestPriceUpdateRoundTrip(t *testing.T) {
	want := PriceUpdate{
		TraceID:              someTrace(),
		TxHash:               common.HexToHash("0xabc"),
		RawTx:                []byte{0xde, 0xad, 0xbe, 0xef},
		TargetInclusionBlock: 12345,
		NewPrice:             big.NewInt(297854000000),
		ForwarderAddress:     common.HexToAddress("0x1"),
		Sender:               common.HexToAddress("0x2"),
		Recipient:            common.HexToAddress("0x3"),
		Calldata:             []byte{0x01, 0x02},
	}

	env := Envelope{Kind: KindPriceUpdate, TraceID: want.TraceID, Payload: MarshalPriceUpdate(want)}
	decodedEnv, err := DecodeEnvelope(bytes.NewReader(env.Encode()))
	assert.NoError(t, err)
	assert.Equal(t, env.Kind, decodedEnv.Kind)
	assert.Equal(t, env.TraceID, decodedEnv.TraceID)

	got, err := UnmarshalPriceUpdate(decodedEnv.Payload)
	assert.NoError(t, err)
	assert.Equal(t, want.TraceID, got.TraceID)
	assert.Equal(t, want.TxHash, got.TxHash)
	assert.Equal(t, want.RawTx, got.RawTx)
	assert.Equal(t, want.TargetInclusionBlock, got.TargetInclusionBlock)
	assert.Equal(t, 0, want.NewPrice.Cmp(got.NewPrice))
	assert.Equal(t, want.ForwarderAddress, got.ForwarderAddress)
	assert.Equal(t, want.Sender, got.Sender)
	assert.Equal(t, want.Recipient, got.Recipient)
	assert.Equal(t, want.Calldata, got.Calldata)
}

func TestPositionEventRoundTrip(t *testing.T) {
	trace := someTrace()
	want := PositionEvent{
		Kind:    EventBorrow,
		User:    common.HexToAddress("0x4"),
		Reserve: common.HexToAddress("0x5"),
		Amount:  big.NewInt(1_000_000),
		Block:   999,
		TxHash:  common.HexToHash("0xdead"),
	}

	payload := MarshalPositionEvent(trace, want)
	gotTrace, got, err := UnmarshalPositionEvent(payload)
	assert.NoError(t, err)
	assert.Equal(t, trace, gotTrace)
	assert.Equal(t, want, got)
}

func TestUnderwaterUserRoundTrip(t *testing.T) {
	want := UnderwaterUser{
		TraceID:              someTrace(),
		User:                 common.HexToAddress("0x6"),
		RawTx:                nil,
		TargetInclusionBlock: 42,
		Snapshot: AccountSnapshot{
			TotalCollateralBase: big.NewInt(1_000_000_000),
			TotalDebtBase:        big.NewInt(999_000_000),
			HealthFactor:          big.NewInt(998_000_000_000_000_000),
		},
		SpeculativePrices: []PricedReserve{
			{Reserve: common.HexToAddress("0x7"), Price: big.NewInt(297854000000)},
			{Reserve: common.HexToAddress("0x8"), Price: big.NewInt(100000000)},
		},
	}

	payload := MarshalUnderwaterUser(want)
	got, err := UnmarshalUnderwaterUser(payload)
	assert.NoError(t, err)
	assert.Equal(t, want.TraceID, got.TraceID)
	assert.Equal(t, want.User, got.User)
	assert.Equal(t, want.TargetInclusionBlock, got.TargetInclusionBlock)
	assert.Equal(t, 0, want.Snapshot.TotalCollateralBase.Cmp(got.Snapshot.TotalCollateralBase))
	assert.Equal(t, 0, want.Snapshot.TotalDebtBase.Cmp(got.Snapshot.TotalDebtBase))
	assert.Equal(t, 0, want.Snapshot.HealthFactor.Cmp(got.Snapshot.HealthFactor))
	assert.Len(t, got.SpeculativePrices, 2)
	for i := range want.SpeculativePrices {
		assert.Equal(t, want.SpeculativePrices[i].Reserve, got.SpeculativePrices[i].Reserve)
		assert.Equal(t, 0, want.SpeculativePrices[i].Price.Cmp(got.SpeculativePrices[i].Price))
	}
}

func TestEnvelopeEmptyPayload(t *testing.T) {
	env := Envelope{Kind: KindPositionEvent, TraceID: TraceID{}, Payload: nil}
	decoded, err := DecodeEnvelope(bytes.NewReader(env.Encode()))
	assert.NoError(t, err)
	assert.Equal(t, KindPositionEvent, decoded.Kind)
	assert.Empty(t, decoded.Payload)
}
