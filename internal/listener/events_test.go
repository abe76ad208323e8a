package listener

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vega-mev/liquidator/pkg/types"
)

func packIndexed(t *testing.T, addrs ...common.Address) []common.Hash {
	t.Helper()
	out := make([]common.Hash, len(addrs))
	for i, a := range addrs {
		out[i] = common.BytesToHash(common.LeftPadBytes(a.Bytes(), 32))
	}
	return out
}

func TestDecodeLogSupply(t *testing.T) {
	reserve := common.HexToAddress("0x01")
	user := common.HexToAddress("0x02")
	amount := big.NewInt(1_000_000)

	addrTy, _ := abi.NewType("address", "", nil)
	uintTy, _ := abi.NewType("uint256", "", nil)
	data, err := abi.Arguments{{Type: addrTy}, {Type: uintTy}}.Pack(user, amount)
	require.NoError(t, err)

	// indexed: reserve, onBehalfOf, referralCode (0, encoded as a zero word).
	topics := append([]common.Hash{poolEventsABI.Events["Supply"].ID}, packIndexed(t, reserve, user, common.Address{})...)
	lg := gethtypes.Log{Topics: topics, Data: data, BlockNumber: 100, TxHash: common.HexToHash("0xaa")}

	event, ok, err := DecodeLog(lg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.EventSupply, event.Kind)
	assert.Equal(t, reserve, event.Reserve)
	assert.Equal(t, user, event.User)
	assert.Equal(t, 0, amount.Cmp(event.Amount))
	assert.Equal(t, uint64(100), event.Block)
}

func TestDecodeLogLiquidationCall(t *testing.T) {
	collateral := common.HexToAddress("0x01")
	debt := common.HexToAddress("0x02")
	user := common.HexToAddress("0x03")
	liquidator := common.HexToAddress("0x04")

	uintTy, _ := abi.NewType("uint256", "", nil)
	addrTy, _ := abi.NewType("address", "", nil)
	boolTy, _ := abi.NewType("bool", "", nil)
	data, err := abi.Arguments{{Type: uintTy}, {Type: uintTy}, {Type: addrTy}, {Type: boolTy}}.Pack(
		big.NewInt(500), big.NewInt(600), liquidator, true)
	require.NoError(t, err)

	topics := append([]common.Hash{poolEventsABI.Events["LiquidationCall"].ID}, packIndexed(t, collateral, debt, user)...)
	lg := gethtypes.Log{Topics: topics, Data: data, BlockNumber: 50}

	event, ok, err := DecodeLog(lg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.EventLiquidationCall, event.Kind)
	assert.Equal(t, collateral, event.Reserve)
	assert.Equal(t, user, event.User)
	assert.Equal(t, 0, big.NewInt(600).Cmp(event.Amount))
}

func TestDecodeLogUnknownTopicIsIgnored(t *testing.T) {
	lg := gethtypes.Log{Topics: []common.Hash{common.HexToHash("0xdead")}, BlockNumber: 1}
	_, ok, err := DecodeLog(lg)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeLogNoTopicsIsIgnored(t *testing.T) {
	_, ok, err := DecodeLog(gethtypes.Log{})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTopicsReturnsFourSignatures(t *testing.T) {
	assert.Len(t, Topics(), 4)
}
