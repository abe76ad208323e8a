package listener

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/pkg/types"
)

type fakeSink struct {
	envelopes []types.Envelope
}

func (f *fakeSink) Publish(env types.Envelope) {
	f.envelopes = append(f.envelopes, env)
}

func supplyLog(t *testing.T, reserve, user common.Address, amount *big.Int, block uint64) gethtypes.Log {
	t.Helper()
	addrTy, _ := abi.NewType("address", "", nil)
	uintTy, _ := abi.NewType("uint256", "", nil)
	data, err := abi.Arguments{{Type: addrTy}, {Type: uintTy}}.Pack(user, amount)
	require.NoError(t, err)
	// indexed: reserve, onBehalfOf, referralCode (0, encoded as a zero word).
	topics := append([]common.Hash{poolEventsABI.Events["Supply"].ID}, packIndexed(t, reserve, user, common.Address{})...)
	return gethtypes.Log{Topics: topics, Data: data, BlockNumber: block}
}

func TestListenerHandleLogPublishesNonDustEvent(t *testing.T) {
	reserve := common.HexToAddress("0x01")
	user := common.HexToAddress("0x02")
	sink := &fakeSink{}
	dust := NewDustFilter([]types.Reserve{{Underlying: reserve, Decimals: 18}}, staticPriceTable{reserve: big.NewInt(2000 * 1e8)}, nil)
	l := New(zap.NewNop(), common.HexToAddress("0x05"), sink, dust, NewCounters(prometheus.NewRegistry()))

	l.handleLog(supplyLog(t, reserve, user, bigPow10(18), 10))

	require.Len(t, sink.envelopes, 1)
	assert.Equal(t, types.KindPositionEvent, sink.envelopes[0].Kind)
}

func TestListenerHandleLogDropsDustEvent(t *testing.T) {
	reserve := common.HexToAddress("0x01")
	user := common.HexToAddress("0x02")
	sink := &fakeSink{}
	dust := NewDustFilter([]types.Reserve{{Underlying: reserve, Decimals: 18}}, staticPriceTable{reserve: big.NewInt(2000 * 1e8)}, nil)
	l := New(zap.NewNop(), common.HexToAddress("0x05"), sink, dust, NewCounters(prometheus.NewRegistry()))

	tiny := new(big.Int).Div(bigPow10(18), big.NewInt(10000))
	l.handleLog(supplyLog(t, reserve, user, tiny, 10))

	assert.Empty(t, sink.envelopes)
}

func TestListenerHandleLogIgnoresUnknownEvent(t *testing.T) {
	sink := &fakeSink{}
	l := New(zap.NewNop(), common.HexToAddress("0x05"), sink, nil, NewCounters(prometheus.NewRegistry()))

	l.handleLog(gethtypes.Log{Topics: []common.Hash{common.HexToHash("0xdead")}})

	assert.Empty(t, sink.envelopes)
}
