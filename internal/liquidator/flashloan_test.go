package liquidator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vega-mev/liquidator/pkg/types"
)

type fakeLiquidity map[types.FlashLoanSource]*big.Int

func (f fakeLiquidity) AvailableLiquidity(source types.FlashLoanSource, _ common.Address) (*big.Int, error) {
	v, ok := f[source]
	if !ok {
		return big.NewInt(0), nil
	}
	return v, nil
}

func TestChooseFlashLoanSourcePrefersMorpho(t *testing.T) {
	lookup := fakeLiquidity{
		types.FlashLoanMorpho:         big.NewInt(1000),
		types.FlashLoanPoolFlashLoan:  big.NewInt(1000),
	}
	source, err := ChooseFlashLoanSource(lookup, common.Address{}, big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, types.FlashLoanMorpho, source)
}

func TestChooseFlashLoanSourceFallsBackToPool(t *testing.T) {
	lookup := fakeLiquidity{
		types.FlashLoanMorpho:        big.NewInt(0),
		types.FlashLoanPoolFlashLoan: big.NewInt(1000),
	}
	source, err := ChooseFlashLoanSource(lookup, common.Address{}, big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, types.FlashLoanPoolFlashLoan, source)
}

func TestChooseFlashLoanSourceDiscardsWhenBothInsufficient(t *testing.T) {
	lookup := fakeLiquidity{
		types.FlashLoanMorpho:        big.NewInt(0),
		types.FlashLoanPoolFlashLoan: big.NewInt(0),
	}
	_, err := ChooseFlashLoanSource(lookup, common.Address{}, big.NewInt(500))
	assert.ErrorIs(t, err, ErrNoFlashLoanSource)
}
