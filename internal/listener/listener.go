package listener

import (
	"context"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/internal/reconnect"
	"github.com/vega-mev/liquidator/pkg/types"
)

// Counters are Event Listener's per-kind structural metrics.
type Counters struct {
	Decoded prometheus.Counter
	Dust    prometheus.Counter
	Emitted prometheus.Counter
}

// NewCounters registers Event Listener's counters against reg.
func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		Decoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_listener_decoded_total", Help: "Pool logs decoded into a PositionEvent.",
		}),
		Dust: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_listener_dust_dropped_total", Help: "PositionEvents dropped for being below the dust threshold.",
		}),
		Emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_listener_position_events_emitted_total", Help: "PositionEvent messages published to the bus.",
		}),
	}
	reg.MustRegister(c.Decoded, c.Dust, c.Emitted)
	return c
}

// Sink is the narrow surface Event Listener needs to publish, implemented
// by *bus.Publisher.
type Sink interface {
	Publish(env types.Envelope)
}

// Listener subscribes to the Pool contract's position-mutating logs and
// republishes each (non-dust) one as a PositionEvent (spec.md §4.2).
type Listener struct {
	log      *zap.Logger
	pool     common.Address
	outbound Sink
	dust     *DustFilter
	counters *Counters
}

// New builds a Listener. dust may be nil, in which case no event is ever
// treated as dust.
func New(log *zap.Logger, pool common.Address, outbound Sink, dust *DustFilter, counters *Counters) *Listener {
	return &Listener{log: log, pool: pool, outbound: outbound, dust: dust, counters: counters}
}

// Run subscribes via client.SubscribeFilterLogs and processes logs until
// ctx is cancelled, reconnecting on any subscription error with the same
// fixed-backoff policy Scout uses.
func (l *Listener) Run(ctx context.Context, client *ethclient.Client) {
	reconnect.Run(ctx, l.log, "pool log subscription", func(ctx context.Context) error {
		query := ethereum.FilterQuery{
			Addresses: []common.Address{l.pool},
			Topics:    [][]common.Hash{Topics()},
		}
		logs := make(chan gethtypes.Log, 256)
		sub, err := client.SubscribeFilterLogs(ctx, query, logs)
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()

		// Logs arrive from the node in strictly ascending (block, logIndex)
		// order on a single subscription; this loop preserves that order by
		// processing each log synchronously before reading the next one
		// (spec.md §4.2: "within a block preserved; across blocks, strictly
		// monotonic").
		var lastBlock uint64
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-sub.Err():
				return err
			case lg := <-logs:
				if lg.Removed {
					continue // reorg'd out; Brain's warm path re-reads canonical state anyway
				}
				if lg.BlockNumber < lastBlock {
					l.log.Warn("listener: out-of-order log observed, skipping",
						zap.Uint64("block", lg.BlockNumber), zap.Uint64("last_block", lastBlock))
					continue
				}
				lastBlock = lg.BlockNumber
				l.handleLog(lg)
			}
		}
	})
}

func (l *Listener) handleLog(lg gethtypes.Log) {
	event, ok, err := DecodeLog(lg)
	if err != nil {
		l.log.Debug("listener: log decode failed", zap.Error(err), zap.String("tx", lg.TxHash.Hex()))
		return
	}
	if !ok {
		return
	}
	l.counters.Decoded.Inc()

	if l.dust != nil && l.dust.IsDust(event.Reserve, event.Amount) {
		l.counters.Dust.Inc()
		return
	}

	trace, err := newTraceID()
	if err != nil {
		l.log.Error("listener: failed to generate trace id", zap.Error(err))
		return
	}
	l.outbound.Publish(types.Envelope{
		Kind:    types.KindPositionEvent,
		TraceID: trace,
		Payload: types.MarshalPositionEvent(trace, event),
	})
	l.counters.Emitted.Inc()
	l.log.Info("listener: position event emitted",
		zap.String("kind", event.Kind.String()),
		zap.String("user", event.User.Hex()),
		zap.String("reserve", event.Reserve.Hex()),
		zap.Uint64("block", event.Block))
}
