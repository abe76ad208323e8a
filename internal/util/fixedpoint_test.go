package util

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulDiv(t *testing.T) {
	t.Run("basic truncation", func(t *testing.T) {
		got, err := MulDiv(big.NewInt(10), big.NewInt(3), big.NewInt(4))
		assert.NoError(t, err)
		assert.Equal(t, big.NewInt(7), got) // floor(30/4) = 7
	})

	t.Run("zero divisor", func(t *testing.T) {
		_, err := MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0))
		assert.Error(t, err)
	})

	t.Run("large intermediate product does not overflow", func(t *testing.T) {
		// x*y alone would overflow 128 bits but the 512-bit intermediate
		// and final division keeps the result within range.
		x, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
		y, _ := new(big.Int).SetString("987654321098765432109876543210", 10)
		d, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
		got, err := MulDiv(x, y, d)
		assert.NoError(t, err)
		assert.Equal(t, 0, got.Cmp(y))
	})

	t.Run("overflow beyond uint256", func(t *testing.T) {
		max256, _ := new(big.Int).SetString("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", 16)
		_, err := MulDiv(max256, max256, big.NewInt(1))
		assert.ErrorIs(t, err, ErrOverflow256)
	})
}

func TestMulDivRatio(t *testing.T) {
	got, err := MulDivRatio(big.NewInt(1_000_000), 500, 10_000) // 5%
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(50_000), got)
}
