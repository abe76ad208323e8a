package liquidator

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrProvidersBusy is returned when no provider became available before the
// acquire deadline.
var ErrProvidersBusy = errors.New("liquidator: all RPC providers busy")

// ProviderAcquireTimeout bounds how long Acquire waits for a free slot.
const ProviderAcquireTimeout = 200 * time.Millisecond

// ProviderCache is a round-robin ring of RPC connections, acquired
// nonblocking with a deadline fallback — the same pattern as
// internal/brain's ForkPool, applied here to Liquidator's pre-submission
// liquidity/allowance checks (spec.md §4.4 "ProviderCache").
type ProviderCache struct {
	slots chan *ethclient.Client
}

// NewProviderCache builds a ProviderCache over clients.
func NewProviderCache(clients []*ethclient.Client) *ProviderCache {
	slots := make(chan *ethclient.Client, len(clients))
	for _, c := range clients {
		slots <- c
	}
	return &ProviderCache{slots: slots}
}

// Acquire returns a provider, blocking up to ProviderAcquireTimeout (or
// ctx's own deadline, whichever is sooner).
func (p *ProviderCache) Acquire(ctx context.Context) (*ethclient.Client, error) {
	cctx, cancel := context.WithTimeout(ctx, ProviderAcquireTimeout)
	defer cancel()
	select {
	case c := <-p.slots:
		return c, nil
	case <-cctx.Done():
		return nil, ErrProvidersBusy
	}
}

// Release returns c to the ring.
func (p *ProviderCache) Release(c *ethclient.Client) {
	select {
	case p.slots <- c:
	default:
	}
}

// Size reports the ring's capacity.
func (p *ProviderCache) Size() int {
	return cap(p.slots)
}
