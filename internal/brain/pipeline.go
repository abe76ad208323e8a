package brain

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vega-mev/liquidator/internal/db"
	"github.com/vega-mev/liquidator/pkg/contractclient"
	"github.com/vega-mev/liquidator/pkg/types"
)

// Sink is the narrow surface Pipeline needs to emit results, implemented by
// *bus.Publisher (and by a recording fake in tests).
type Sink interface {
	Publish(env types.Envelope)
}

// Pipeline wires the cache, fork pool, and onchain readers into Brain's two
// recompute paths described in spec.md §4.3.2/§4.3.3.
type Pipeline struct {
	cache      *Cache
	forks      *ForkPool
	canonical  *PositionReader // reads against the live chain (warm path)
	lane       *Lane
	outbound   Sink
	log        *zap.Logger
	recorder   *db.TraceRecorder // optional; nil disables telemetry writes
	buckets    int
	simTimeout time.Duration

	counters *Counters
}

// NewPipeline constructs a Pipeline. recorder may be nil (telemetry is
// best-effort and never gates the hot path).
func NewPipeline(
	cache *Cache,
	forks *ForkPool,
	canonical *PositionReader,
	outbound Sink,
	log *zap.Logger,
	recorder *db.TraceRecorder,
	buckets int,
	simTimeout time.Duration,
	counters *Counters,
) *Pipeline {
	if buckets <= 0 {
		buckets = 64
	}
	return &Pipeline{
		cache:      cache,
		forks:      forks,
		canonical:  canonical,
		lane:       NewLane(),
		outbound:   outbound,
		log:        log,
		recorder:   recorder,
		buckets:    buckets,
		simTimeout: simTimeout,
		counters:   counters,
	}
}

// Close stops the pipeline's warm-path lane.
func (p *Pipeline) Close() {
	p.lane.Close()
}

// bucketize splits users into up to p.buckets roughly-equal slices, the
// unit of work an errgroup goroutine owns (spec.md §4.3.2 step 3: "hot
// slice is partitioned into buckets, each bucket recomputed by one
// goroutine").
func bucketize(users []common.Address, buckets int) [][]common.Address {
	if len(users) == 0 {
		return nil
	}
	if buckets > len(users) {
		buckets = len(users)
	}
	out := make([][]common.Address, buckets)
	for i, u := range users {
		b := i % buckets
		out[b] = append(out[b], u)
	}
	return out
}

// HandlePriceUpdate runs the hot path for an incoming speculative price
// update: resolve the reserve it touches, gather the affected user slice
// from the reverse index, fan out bucket-parallel simulated HF recompute,
// and emit an UnderwaterUser for every bucket result with HF below scale
// (spec.md §4.3.2).
func (p *Pipeline) HandlePriceUpdate(ctx context.Context, update types.PriceUpdate) {
	p.counters.TracesStarted.Inc()
	start := time.Now()
	log := p.log.With(zap.String("trace_id", hexTrace(update.TraceID)))

	reserves := p.cache.ReservesForForwarder(update.ForwarderAddress)
	if len(reserves) == 0 {
		log.Debug("price update's forwarder feeds no tracked reserve, skipping simulation")
		p.counters.TracesCompleted.Inc()
		return
	}
	affected := p.cache.AffectedUsers(reserves)
	if len(affected) == 0 {
		log.Debug("price update touches no cached users, skipping simulation")
		p.counters.TracesCompleted.Inc()
		return
	}

	deadline := p.simTimeout
	if deadline <= 0 {
		deadline = 2 * time.Second
	}
	simCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	buckets := bucketize(affected, p.buckets)
	g, gctx := errgroup.WithContext(simCtx)

	underwaterCh := make(chan types.UnderwaterUser, len(affected))
	var overloadedCount int32

	for _, bucketUsers := range buckets {
		bucketUsers := bucketUsers
		g.Go(func() error {
			return p.simulateBucket(gctx, bucketUsers, reserves, update, underwaterCh, &overloadedCount)
		})
	}

	err := g.Wait()
	close(underwaterCh)
	if err != nil {
		log.Warn("bucket simulation failed", zap.Error(err))
		p.counters.SimulationErrors.Inc()
	}
	overloaded := int(atomic.LoadInt32(&overloadedCount))

	underwaterCount := 0
	for u := range underwaterCh {
		p.outbound.Publish(types.Envelope{
			Kind:    types.KindUnderwaterUser,
			TraceID: u.TraceID,
			Payload: types.MarshalUnderwaterUser(u),
		})
		p.counters.UnderwaterEmitted.Inc()
		underwaterCount++
	}

	p.counters.TracesCompleted.Inc()
	if p.recorder != nil {
		_ = p.recorder.RecordTrace(db.TraceRecord{
			TraceID:          hexTrace(update.TraceID),
			ForwarderAddress: update.ForwarderAddress.Hex(),
			BucketCount:      len(buckets),
			AffectedUserCount: len(affected),
			UnderwaterCount:  underwaterCount,
			OverloadedForks:  overloaded,
			DurationMillis:   time.Since(start).Milliseconds(),
			Preempted:        len(update.RawTx) > 0,
		})
	}
}

// simulateBucket runs one bucket's worth of users against a single fork
// slot: reset, optionally replay the preemption candidate (or splice in the
// speculative price via storage override), multicall-read positions, and
// recompute each user's health factor.
func (p *Pipeline) simulateBucket(
	ctx context.Context,
	users []common.Address,
	pricedReserves []common.Address,
	update types.PriceUpdate,
	out chan<- types.UnderwaterUser,
	overloaded *int32,
) error {
	fork, err := p.forks.Acquire(ctx)
	if err != nil {
		atomic.AddInt32(overloaded, 1)
		p.counters.OverloadedForks.Inc()
		return nil // a skipped bucket is not a hard failure; others still run.
	}
	defer p.forks.Release(fork)

	sim := NewSimulator(fork)
	if err := sim.Reset(ctx); err != nil {
		return err
	}
	if len(update.RawTx) > 0 {
		if err := sim.SendRawTransaction(ctx, update.RawTx); err != nil {
			return err
		}
	} else if overrides := p.priceOverrides(pricedReserves, update.NewPrice); len(overrides) > 0 {
		// No preemption candidate to replay; splice the speculative price
		// straight into each reserve's aggregator storage instead of forcing
		// a forward() replay just to move the price (spec.md §4.3.5).
		if err := sim.ApplyOverrides(ctx, overrides); err != nil {
			return err
		}
	}

	mc := contractclient.NewMulticaller(sim.Call())
	reader := &PositionReader{pool: p.canonical.pool, mc: mc}

	reserves := p.cache.Reserves()
	reserveAddrs := make([]common.Address, len(reserves))
	reserveMap := make(map[common.Address]types.Reserve, len(reserves))
	for i, r := range reserves {
		reserveAddrs[i] = r.Underlying
		reserveMap[r.Underlying] = r
	}

	indices, err := reader.ReserveIndices(ctx, reserveAddrs)
	if err != nil {
		return err
	}
	positions, err := reader.UserPositions(ctx, users, reserveAddrs)
	if err != nil {
		return err
	}

	overlay := make(map[common.Address]*big.Int, len(pricedReserves))
	speculative := make([]types.PricedReserve, 0, len(pricedReserves))
	for _, res := range pricedReserves {
		overlay[res] = update.NewPrice
		speculative = append(speculative, types.PricedReserve{Reserve: res, Price: update.NewPrice})
	}
	prices := NewOverlayPrices(p.cache.PriceTable(), overlay)

	byUser := make(map[common.Address][]types.UserPosition)
	for _, pos := range positions {
		byUser[pos.User] = append(byUser[pos.User], pos)
	}

	for _, user := range users {
		snap, err := ComputeHealthFactor(byUser[user], reserveMap, indices, prices)
		if err != nil {
			continue
		}
		if IsUnderwater(snap) {
			out <- types.UnderwaterUser{
				User:                 user,
				TraceID:              update.TraceID,
				RawTx:                update.RawTx,
				TargetInclusionBlock: update.TargetInclusionBlock,
				Snapshot:             snap,
				SpeculativePrices:    speculative,
			}
		}
	}
	return nil
}

// priceOverrides builds the fork storage writes that splice price into each
// of reserves' Chainlink aggregators, for reserves whose aggregator/slot is
// registered. A reserve with no registered aggregator is silently skipped —
// its price still reaches ComputeHealthFactor through the overlay table;
// only the fork's own on-chain view of that aggregator stays stale.
func (p *Pipeline) priceOverrides(reserves []common.Address, price *big.Int) []StorageOverride {
	var out []StorageOverride
	for _, res := range reserves {
		agg, slot, ok := p.cache.Aggregator(res)
		if !ok {
			continue
		}
		var slotBytes, valueBytes [32]byte
		new(big.Int).SetUint64(slot).FillBytes(slotBytes[:])
		price.FillBytes(valueBytes[:])
		out = append(out, StorageOverride{
			Address: [20]byte(agg),
			Slot:    slotBytes,
			Value:   valueBytes,
		})
	}
	return out
}

// HandlePositionEvent runs the warm path for a single-user position
// mutation: re-read that user's positions from the canonical chain state,
// update the cache, and recheck their health factor at canonical prices
// (spec.md §4.3.2 "warm path").
func (p *Pipeline) HandlePositionEvent(ctx context.Context, trace types.TraceID, event types.PositionEvent) {
	p.lane.Submit(func() {
		reserves := p.cache.Reserves()
		reserveAddrs := make([]common.Address, len(reserves))
		reserveMap := make(map[common.Address]types.Reserve, len(reserves))
		for i, r := range reserves {
			reserveAddrs[i] = r.Underlying
			reserveMap[r.Underlying] = r
		}

		positions, err := p.canonical.UserPositions(ctx, []common.Address{event.User}, reserveAddrs)
		if err != nil {
			p.log.Warn("warm path: re-read positions failed", zap.Error(err), zap.String("user", event.User.Hex()))
			return
		}
		for _, pos := range positions {
			p.cache.Upsert(pos)
		}

		indices, err := p.canonical.ReserveIndices(ctx, reserveAddrs)
		if err != nil {
			p.log.Warn("warm path: re-read indices failed", zap.Error(err))
			return
		}

		snap, err := ComputeHealthFactor(positions, reserveMap, indices, p.cache.PriceTable())
		if err != nil {
			p.log.Warn("warm path: health factor computation failed", zap.Error(err))
			return
		}
		p.cache.SetActive(event.User, snap.TotalCollateralBase != nil && snap.TotalCollateralBase.Cmp(ReportableThresholdBase) >= 0)
		if IsUnderwater(snap) {
			u := types.UnderwaterUser{User: event.User, TraceID: trace, Snapshot: snap}
			p.outbound.Publish(types.Envelope{
				Kind:    types.KindUnderwaterUser,
				TraceID: trace,
				Payload: types.MarshalUnderwaterUser(u),
			})
			p.counters.UnderwaterEmitted.Inc()
		}
	})
}

func hexTrace(t types.TraceID) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(t)*2)
	for i, b := range t {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0f]
	}
	return string(out)
}
