package listener

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Refresher is the narrow surface ChainPrices needs from Brain's Chainlink
// oracle reader (internal/brain.PriceOracle), kept as an interface so this
// package doesn't otherwise depend on internal/brain's broader cache/pipeline
// machinery.
type Refresher interface {
	Refresh(ctx context.Context) (map[common.Address]*big.Int, error)
}

// ChainPrices is a periodically-refreshed PriceTable backed by a
// Refresher, giving DustFilter a real canonical price source instead of an
// always-empty stand-in. A reserve the most recent refresh couldn't read
// keeps its previous value rather than going stale to "unknown".
type ChainPrices struct {
	mu     sync.RWMutex
	prices map[common.Address]*big.Int
}

// NewChainPrices returns an empty ChainPrices; call Run to start polling.
func NewChainPrices() *ChainPrices {
	return &ChainPrices{prices: make(map[common.Address]*big.Int)}
}

func (c *ChainPrices) Price(reserve common.Address) (*big.Int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[reserve]
	return p, ok
}

// Run polls src every interval until ctx is cancelled, merging each
// successful read into the live price table. A failed poll logs and keeps
// the previous values rather than clearing them.
func (c *ChainPrices) Run(ctx context.Context, log *zap.Logger, src Refresher, interval time.Duration) {
	if interval <= 0 {
		interval = 12 * time.Second
	}
	c.poll(ctx, log, src)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx, log, src)
		}
	}
}

func (c *ChainPrices) poll(ctx context.Context, log *zap.Logger, src Refresher) {
	fresh, err := src.Refresh(ctx)
	if err != nil {
		log.Warn("listener: price refresh failed, keeping stale prices", zap.Error(err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for reserve, price := range fresh {
		c.prices[reserve] = price
	}
}
