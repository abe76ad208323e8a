package scout

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupCacheFirstSightingIsNotSeen(t *testing.T) {
	d, err := NewDedupCache(0)
	require.NoError(t, err)

	forwarder := common.HexToAddress("0x01")
	assert.False(t, d.SeenBefore(forwarder, big.NewInt(100)))
}

func TestDedupCacheRepeatPairIsSeen(t *testing.T) {
	d, err := NewDedupCache(0)
	require.NoError(t, err)

	forwarder := common.HexToAddress("0x01")
	require.False(t, d.SeenBefore(forwarder, big.NewInt(100)))
	assert.True(t, d.SeenBefore(forwarder, big.NewInt(100)))
}

func TestDedupCacheDistinguishesPriceAndForwarder(t *testing.T) {
	d, err := NewDedupCache(0)
	require.NoError(t, err)

	forwarderA := common.HexToAddress("0x01")
	forwarderB := common.HexToAddress("0x02")
	require.False(t, d.SeenBefore(forwarderA, big.NewInt(100)))
	assert.False(t, d.SeenBefore(forwarderA, big.NewInt(101)), "different price must not collide")
	assert.False(t, d.SeenBefore(forwarderB, big.NewInt(100)), "different forwarder must not collide")
}

func TestDedupCacheEvictsBeyondCapacity(t *testing.T) {
	d, err := NewDedupCache(2)
	require.NoError(t, err)

	forwarder := common.HexToAddress("0x01")
	require.False(t, d.SeenBefore(forwarder, big.NewInt(1)))
	require.False(t, d.SeenBefore(forwarder, big.NewInt(2)))
	require.False(t, d.SeenBefore(forwarder, big.NewInt(3))) // evicts price=1's entry

	assert.False(t, d.SeenBefore(forwarder, big.NewInt(1)), "oldest entry should have been evicted")
}
