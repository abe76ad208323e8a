package liquidator

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Refresher is the narrow surface PricePoller needs from Brain's Chainlink
// oracle reader (internal/brain.PriceOracle); kept as an interface so this
// package doesn't depend on internal/brain's broader cache/pipeline
// machinery.
type Refresher interface {
	Refresh(ctx context.Context) (map[common.Address]*big.Int, error)
}

// BlockNumberSource resolves the chain's current block height, used to
// stamp PriceCache entries for its TTL check.
type BlockNumberSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// PricePoller periodically refreshes src into cache at the current block
// height, giving Liquidator (and its gas estimator) a live PriceCache
// instead of the always-empty MapPrices{} Handle and Estimate previously
// read from (spec.md §4.4's profit formula needs a real native-asset price
// for gas cost, and a real canonical price as the overlay fallback for
// every reserve a trace's SpeculativePrices doesn't cover).
type PricePoller struct {
	cache  *PriceCache
	blocks BlockNumberSource
}

// NewPricePoller builds a PricePoller writing into cache.
func NewPricePoller(cache *PriceCache, blocks BlockNumberSource) *PricePoller {
	return &PricePoller{cache: cache, blocks: blocks}
}

// Run polls src every interval until ctx is cancelled.
func (p *PricePoller) Run(ctx context.Context, log *zap.Logger, src Refresher, interval time.Duration) {
	if interval <= 0 {
		interval = 12 * time.Second
	}
	p.poll(ctx, log, src)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, log, src)
		}
	}
}

func (p *PricePoller) poll(ctx context.Context, log *zap.Logger, src Refresher) {
	block, err := p.blocks.BlockNumber(ctx)
	if err != nil {
		log.Warn("liquidator: fetch block number for price poll failed", zap.Error(err))
		return
	}
	fresh, err := src.Refresh(ctx)
	if err != nil {
		log.Warn("liquidator: price refresh failed, keeping stale prices", zap.Error(err))
		return
	}
	for reserve, price := range fresh {
		p.cache.Set(reserve, price, block)
	}
}
