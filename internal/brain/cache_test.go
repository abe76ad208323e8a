package brain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/vega-mev/liquidator/pkg/types"
)

func testReserves() []types.Reserve {
	return []types.Reserve{
		{Underlying: common.HexToAddress("0xAAA1"), Symbol: "WETH", Decimals: 18, LiquidationThreshold: 8250},
		{Underlying: common.HexToAddress("0xAAA2"), Symbol: "USDC", Decimals: 6, LiquidationThreshold: 8700},
	}
}

func TestCacheUpsertMaintainsReverseIndex(t *testing.T) {
	c := NewCache(testReserves())
	weth := common.HexToAddress("0xAAA1")
	usdc := common.HexToAddress("0xAAA2")
	alice := common.HexToAddress("0xA11CE")

	c.Upsert(types.UserPosition{
		User: alice, Reserve: weth,
		ScaledCollateral: big.NewInt(100), CollateralEnabled: true,
	})
	c.Upsert(types.UserPosition{
		User: alice, Reserve: usdc,
		ScaledVariableDebt: big.NewInt(50),
	})
	c.SetActive(alice, true)

	affected := c.AffectedUsers([]common.Address{weth})
	assert.Contains(t, affected, alice)
	assert.NotContains(t, c.AffectedUsers([]common.Address{usdc}), common.HexToAddress("0xB0B"))

	affectedDebt := c.AffectedUsers([]common.Address{usdc})
	assert.Contains(t, affectedDebt, alice)
}

func TestCacheUpsertRemovesFromIndexWhenZeroed(t *testing.T) {
	c := NewCache(testReserves())
	weth := common.HexToAddress("0xAAA1")
	alice := common.HexToAddress("0xA11CE")

	c.Upsert(types.UserPosition{User: alice, Reserve: weth, ScaledCollateral: big.NewInt(100), CollateralEnabled: true})
	c.SetActive(alice, true)
	assert.Contains(t, c.AffectedUsers([]common.Address{weth}), alice)

	c.Upsert(types.UserPosition{User: alice, Reserve: weth, ScaledCollateral: big.NewInt(0), CollateralEnabled: true})
	assert.NotContains(t, c.AffectedUsers([]common.Address{weth}), alice)
}

func TestAffectedUsersExcludesDormantUsers(t *testing.T) {
	c := NewCache(testReserves())
	weth := common.HexToAddress("0xAAA1")
	alice := common.HexToAddress("0xA11CE")

	c.Upsert(types.UserPosition{User: alice, Reserve: weth, ScaledCollateral: big.NewInt(100), CollateralEnabled: true})
	assert.NotContains(t, c.AffectedUsers([]common.Address{weth}), alice, "dormant by default until SetActive promotes them")

	c.SetActive(alice, true)
	assert.Contains(t, c.AffectedUsers([]common.Address{weth}), alice)

	c.SetActive(alice, false)
	assert.NotContains(t, c.AffectedUsers([]common.Address{weth}), alice)
}

func TestForwarderReserveMapping(t *testing.T) {
	c := NewCache(testReserves())
	forwarder := common.HexToAddress("0xF0F0")
	weth := common.HexToAddress("0xAAA1")

	assert.Empty(t, c.ReservesForForwarder(forwarder))
	c.SetForwarderReserves(forwarder, []common.Address{weth})
	assert.Equal(t, []common.Address{weth}, c.ReservesForForwarder(forwarder))
}

func TestSnapshotForIsolatesConcurrentWrites(t *testing.T) {
	c := NewCache(testReserves())
	weth := common.HexToAddress("0xAAA1")
	alice := common.HexToAddress("0xA11CE")
	c.Upsert(types.UserPosition{User: alice, Reserve: weth, ScaledCollateral: big.NewInt(100), CollateralEnabled: true})

	snap := c.SnapshotFor([]common.Address{alice})
	c.Upsert(types.UserPosition{User: alice, Reserve: weth, ScaledCollateral: big.NewInt(999), CollateralEnabled: true})

	got := snap.Positions(alice)
	assert.Len(t, got, 1)
	assert.Equal(t, 0, got[0].ScaledCollateral.Cmp(big.NewInt(100)))
}
