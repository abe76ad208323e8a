package scout

import (
	"math/big"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ethereum/go-ethereum/common"
)

// DedupCacheSize is the default LRU capacity (spec.md §4.1 step 5, invariant
// I4).
const DedupCacheSize = 16

// DedupCache drops repeat (forwarder, price) pairs within its LRU window,
// matching observed oracle duplicates across consecutive blocks (spec.md §9
// Design Note "dedup window": block number is deliberately excluded from the
// key).
type DedupCache struct {
	cache *lru.Cache
}

// NewDedupCache builds a DedupCache with the given capacity (0 uses
// DedupCacheSize).
func NewDedupCache(size int) (*DedupCache, error) {
	if size <= 0 {
		size = DedupCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &DedupCache{cache: c}, nil
}

// SeenBefore reports whether (forwarder, price) was already observed, and
// records it if not.
func (d *DedupCache) SeenBefore(forwarder common.Address, price *big.Int) bool {
	key := forwarder.Hex() + "|" + price.String()
	if d.cache.Contains(key) {
		return true
	}
	d.cache.Add(key, struct{}{})
	return false
}
