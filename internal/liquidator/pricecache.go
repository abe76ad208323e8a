package liquidator

import (
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
)

// PriceCacheTTLBlocks is the default staleness window: a cached price older
// than this many blocks is treated as a miss (spec.md §4.4 "TTL default 1
// block").
const PriceCacheTTLBlocks = 1

// PriceCache is a reserve -> (base-unit price, observed-at block) cache
// backed by fastcache. fastcache has no TTL primitive of its own, so
// staleness is enforced here by storing the observation block alongside
// the price and comparing it against the caller's current block on every
// Get.
type PriceCache struct {
	mu    sync.Mutex // fastcache.Cache is goroutine-safe, but Set-then-lookback pairs need atomicity for invalidation
	cache *fastcache.Cache
	ttl   uint64
}

// NewPriceCache builds a PriceCache with the given byte budget (fastcache
// rounds up internally; a few MB comfortably covers a reserve universe in
// the hundreds).
func NewPriceCache(maxBytes int) *PriceCache {
	return &PriceCache{cache: fastcache.New(maxBytes), ttl: PriceCacheTTLBlocks}
}

func cacheKey(reserve common.Address) []byte {
	return reserve.Bytes()
}

// Set records reserve's price as observed at block.
func (c *PriceCache) Set(reserve common.Address, price *big.Int, block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	priceBytes := price.Bytes()
	buf := make([]byte, 8+1+len(priceBytes))
	binary.BigEndian.PutUint64(buf[:8], block)
	buf[8] = byte(len(priceBytes))
	copy(buf[9:], priceBytes)
	c.cache.Set(cacheKey(reserve), buf)
}

// Get returns reserve's cached price if it was observed within ttl blocks
// of currentBlock.
func (c *PriceCache) Get(reserve common.Address, currentBlock uint64) (*big.Int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw := c.cache.Get(nil, cacheKey(reserve))
	if len(raw) < 9 {
		return nil, false
	}
	observedAt := binary.BigEndian.Uint64(raw[:8])
	if currentBlock > observedAt && currentBlock-observedAt > c.ttl {
		return nil, false
	}
	n := int(raw[8])
	if len(raw) < 9+n {
		return nil, false
	}
	return new(big.Int).SetBytes(raw[9 : 9+n]), true
}

// Invalidate drops reserve's cached entry, used when a speculative price
// override supersedes the canonical one mid-trace.
func (c *PriceCache) Invalidate(reserve common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Del(cacheKey(reserve))
}
