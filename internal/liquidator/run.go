package liquidator

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/pkg/types"
)

// Source is the narrow surface Run needs to receive bus envelopes,
// implemented by *bus.Subscriber.
type Source interface {
	Envelopes() <-chan types.Envelope
}

// Run drains inbound until ctx is cancelled, handling each UnderwaterUser
// concurrently (spec.md §5: "Liquidator: concurrent across distinct
// UnderwaterUsers; per user, bundle submission is sequential" — Handle
// calls for the same user are serialized by a per-user lock, while
// separate users run as independent goroutines).
func (l *Liquidator) Run(ctx context.Context, inbound Source) {
	userLocks := make(map[common.Address]*sync.Mutex)
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-inbound.Envelopes():
			if !ok {
				return
			}
			if env.Kind != types.KindUnderwaterUser {
				continue
			}
			u, err := types.UnmarshalUnderwaterUser(env.Payload)
			if err != nil {
				l.log.Warn("liquidator: malformed UnderwaterUser payload", zap.Error(err))
				continue
			}
			lock, ok := userLocks[u.User]
			if !ok {
				lock = &sync.Mutex{}
				userLocks[u.User] = lock
			}
			go func(trace types.TraceID, u types.UnderwaterUser) {
				lock.Lock()
				defer lock.Unlock()
				if err := l.Handle(ctx, trace, u); err != nil {
					l.log.Warn("liquidator: trace failed", zap.Error(err), zap.String("user", u.User.Hex()))
				}
			}(env.TraceID, u)
		}
	}
}
