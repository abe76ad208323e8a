package liquidator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestPriceCacheHitWithinTTL(t *testing.T) {
	c := NewPriceCache(1 << 16)
	weth := common.HexToAddress("0x01")
	c.Set(weth, big.NewInt(2000_00000000), 100)

	price, ok := c.Get(weth, 101)
	assert.True(t, ok)
	assert.Equal(t, 0, price.Cmp(big.NewInt(2000_00000000)))
}

func TestPriceCacheMissAfterTTLExpires(t *testing.T) {
	c := NewPriceCache(1 << 16)
	weth := common.HexToAddress("0x01")
	c.Set(weth, big.NewInt(2000_00000000), 100)

	_, ok := c.Get(weth, 102)
	assert.False(t, ok, "an entry observed 2 blocks ago should be stale under a 1-block TTL")
}

func TestPriceCacheMissForUnknownReserve(t *testing.T) {
	c := NewPriceCache(1 << 16)
	_, ok := c.Get(common.HexToAddress("0x99"), 1)
	assert.False(t, ok)
}

func TestPriceCacheInvalidate(t *testing.T) {
	c := NewPriceCache(1 << 16)
	weth := common.HexToAddress("0x01")
	c.Set(weth, big.NewInt(1), 100)
	c.Invalidate(weth)

	_, ok := c.Get(weth, 100)
	assert.False(t, ok)
}
