package scout

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildReport(t *testing.T, observations []*big.Int) []byte {
	t.Helper()
	var observers [32]byte
	data, err := reportArguments.Pack(
		uint32(1_700_000_000),
		observers,
		uint8(len(observations)),
		observations,
		big.NewInt(0),
	)
	require.NoError(t, err)
	return data
}

func buildForwardedTx(t *testing.T, forwarder, aggregatorTarget common.Address, report []byte, pk *ecdsa.PrivateKey) *gethtypes.Transaction {
	t.Helper()
	var reportContext [3][32]byte
	innerData, err := transmitABI.Pack("transmit", reportContext, report, [][32]byte{}, [][32]byte{}, [32]byte{})
	require.NoError(t, err)

	outerData, err := forwarderABI.Pack("forward", aggregatorTarget, innerData)
	require.NoError(t, err)

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    0,
		To:       &forwarder,
		Value:    big.NewInt(0),
		Gas:      500_000,
		GasPrice: big.NewInt(1),
		Data:     outerData,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.NewEIP155Signer(big.NewInt(1)), pk)
	require.NoError(t, err)
	return signed
}

func TestDecodeForwardedTransactionExtractsMedianPrice(t *testing.T) {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)

	forwarder := common.HexToAddress("0xF00D")
	aggregator := common.HexToAddress("0xAAAA")
	table := &ForwarderTable{
		forwarders: newTestSet(forwarder),
		aggregator: map[common.Address]common.Address{forwarder: aggregator},
	}

	observations := []*big.Int{big.NewInt(1995_00000000), big.NewInt(2000_00000000), big.NewInt(2005_00000000)}
	report := buildReport(t, observations)
	tx := buildForwardedTx(t, forwarder, aggregator, report, pk)

	decoded, err := DecodeForwardedTransaction(tx, table)
	require.NoError(t, err)
	assert.Equal(t, forwarder, decoded.Forwarder)
	assert.Equal(t, 0, decoded.Price.Cmp(big.NewInt(2000_00000000)))
}

func TestDecodeForwardedTransactionRejectsUntrackedForwarder(t *testing.T) {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	forwarder := common.HexToAddress("0xF00D")
	table := &ForwarderTable{forwarders: newTestSet(), aggregator: map[common.Address]common.Address{}}

	report := buildReport(t, []*big.Int{big.NewInt(1)})
	tx := buildForwardedTx(t, forwarder, common.HexToAddress("0xAAAA"), report, pk)

	_, err = DecodeForwardedTransaction(tx, table)
	assert.ErrorIs(t, err, ErrNotForwarded)
}

func TestDecodeForwardedTransactionRejectsNonPositivePrice(t *testing.T) {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	forwarder := common.HexToAddress("0xF00D")
	aggregator := common.HexToAddress("0xAAAA")
	table := &ForwarderTable{
		forwarders: newTestSet(forwarder),
		aggregator: map[common.Address]common.Address{forwarder: aggregator},
	}

	report := buildReport(t, []*big.Int{big.NewInt(0)})
	tx := buildForwardedTx(t, forwarder, aggregator, report, pk)

	_, err = DecodeForwardedTransaction(tx, table)
	assert.ErrorIs(t, err, ErrStructuralDecode)
}
