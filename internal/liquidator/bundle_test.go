package liquidator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vega-mev/liquidator/pkg/types"
)

func TestAssembleBundleOrdersTransactions(t *testing.T) {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)

	signer := NewSigner(pk, common.HexToAddress("0xfeed"), big.NewInt(1))
	plan := types.LiquidationPlan{
		User:                 common.HexToAddress("0x01"),
		CollateralAsset:      common.HexToAddress("0x02"),
		DebtAsset:            common.HexToAddress("0x03"),
		DebtToRepay:          big.NewInt(1000),
		CollateralToReceive:  big.NewInt(1050),
		Bribe:                big.NewInt(10),
		FlashLoanSource:      types.FlashLoanMorpho,
		TargetInclusionBlock: 100,
	}

	rawPreempt := []byte{0xde, 0xad, 0xbe, 0xef}
	bundle, err := signer.AssembleBundle(plan, rawPreempt, 5, GasParams{})
	require.NoError(t, err)

	require.Len(t, bundle.RawTxs, 2)
	assert.Equal(t, rawPreempt, bundle.RawTxs[0], "the preempted tx must be first in the bundle")
	assert.Equal(t, uint64(100), bundle.TargetInclusionBlock)
	assert.Equal(t, uint64(103), bundle.MaxBlock)
}

func TestAssembleBundleWithoutPreemptOmitsIt(t *testing.T) {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := NewSigner(pk, common.HexToAddress("0xfeed"), big.NewInt(1))
	plan := types.LiquidationPlan{
		CollateralAsset:      common.HexToAddress("0x02"),
		DebtAsset:            common.HexToAddress("0x03"),
		DebtToRepay:          big.NewInt(1000),
		Bribe:                big.NewInt(10),
		TargetInclusionBlock: 50,
	}

	bundle, err := signer.AssembleBundle(plan, nil, 0, GasParams{})
	require.NoError(t, err)
	assert.Len(t, bundle.RawTxs, 1, "with no raw preempt tx, only the liquidate call (carrying the bribe as value) should be in the bundle")
}
