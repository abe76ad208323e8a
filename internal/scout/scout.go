package scout

import (
	"context"
	"crypto/rand"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/pkg/types"
)

// Counters are Scout's per-kind structural metrics (spec.md §7).
type Counters struct {
	Decoded        prometheus.Counter
	StructuralErrs prometheus.Counter
	Deduped        prometheus.Counter
	Emitted        prometheus.Counter
}

// NewCounters registers Scout's counters against reg.
func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		Decoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_scout_decoded_total", Help: "Pending transactions successfully decoded into a price.",
		}),
		StructuralErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_scout_structural_errors_total", Help: "Forwarded transactions that failed to decode.",
		}),
		Deduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_scout_deduped_total", Help: "Decoded prices dropped as a repeat of a recent (forwarder, price) pair.",
		}),
		Emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_scout_price_updates_emitted_total", Help: "PriceUpdate messages published to the bus.",
		}),
	}
	reg.MustRegister(c.Decoded, c.StructuralErrs, c.Deduped, c.Emitted)
	return c
}

// Sink is the narrow surface Scout needs to publish, implemented by
// *bus.Publisher.
type Sink interface {
	Publish(env types.Envelope)
}

// Scout wires the forwarder table, dedup cache, feeders and decoder worker
// described in spec.md §4.1.
type Scout struct {
	log       *zap.Logger
	table     *ForwarderTable
	dedup     *DedupCache
	outbound  Sink
	counters  *Counters
	queue     *feedQueue
	ethClient *ethclient.Client
}

// New constructs a Scout. queueCapacity <= 0 uses the package default.
func New(log *zap.Logger, table *ForwarderTable, dedup *DedupCache, outbound Sink, counters *Counters, queueCapacity int) *Scout {
	return &Scout{
		log:      log,
		table:    table,
		dedup:    dedup,
		outbound: outbound,
		counters: counters,
		queue:    newFeedQueue(queueCapacity),
	}
}

// Run starts both feeders and the decoder worker, blocking until ctx is
// cancelled.
func (s *Scout) Run(ctx context.Context, rpcClient *rpc.Client, ethClient *ethclient.Client, relayURL string) {
	s.ethClient = ethClient
	go runPendingTxFeeder(ctx, s.log, rpcClient, ethClient, s.queue)
	if relayURL != "" {
		go runPrivacyRelayFeeder(ctx, s.log, relayURL, s.queue)
	}
	s.decodeLoop(ctx)
}

func (s *Scout) decodeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-s.queue.ch:
			s.handleCandidate(ctx, c)
		}
	}
}

func (s *Scout) handleCandidate(ctx context.Context, c candidate) {
	decoded, err := DecodeForwardedTransaction(c.tx, s.table)
	if err != nil {
		if err != ErrNotForwarded {
			s.counters.StructuralErrs.Inc()
			s.log.Debug("scout: structural decode failure", zap.Error(err), zap.String("tx", c.tx.Hash().Hex()))
		}
		return
	}
	s.counters.Decoded.Inc()

	if s.dedup.SeenBefore(decoded.Forwarder, decoded.Price) {
		s.counters.Deduped.Inc()
		return
	}

	trace, err := newTraceID()
	if err != nil {
		s.log.Error("scout: failed to generate trace id", zap.Error(err))
		return
	}

	targetBlock := s.nextBlock(ctx)
	update := ToPriceUpdate(trace, decoded, c.tx, c.rawTx, targetBlock, c.sender)
	s.outbound.Publish(types.Envelope{
		Kind:    types.KindPriceUpdate,
		TraceID: trace,
		Payload: types.MarshalPriceUpdate(update),
	})
	s.counters.Emitted.Inc()
	s.log.Info("scout: price update emitted",
		zap.String("trace_id", hexTraceID(trace)),
		zap.String("forwarder", decoded.Forwarder.Hex()),
		zap.String("price", decoded.Price.String()))
}

// nextBlock resolves the block a preemption candidate is most likely to
// land in: the chain head plus one. A failed lookup falls back to 0, which
// downstream fork replay treats as "use the fork's current head".
func (s *Scout) nextBlock(ctx context.Context) uint64 {
	if s.ethClient == nil {
		return 0
	}
	head, err := s.ethClient.BlockNumber(ctx)
	if err != nil {
		return 0
	}
	return head + 1
}

func newTraceID() (types.TraceID, error) {
	var t types.TraceID
	_, err := rand.Read(t[:])
	return t, err
}

func hexTraceID(t types.TraceID) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(t)*2)
	for i, b := range t {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0f]
	}
	return string(out)
}
