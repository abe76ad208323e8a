package scout

import (
	"testing"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txWithNonce(nonce uint64) *gethtypes.Transaction {
	return gethtypes.NewTx(&gethtypes.LegacyTx{Nonce: nonce})
}

func TestFeedQueuePushDoesNotBlockWhenFull(t *testing.T) {
	q := newFeedQueue(2)
	q.push(candidate{tx: txWithNonce(1)})
	q.push(candidate{tx: txWithNonce(2)})

	done := make(chan struct{})
	go func() {
		q.push(candidate{tx: txWithNonce(3)})
		close(done)
	}()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond, "push must never block even when the queue is full")
}

func TestFeedQueueDropsOldestOnBackpressure(t *testing.T) {
	q := newFeedQueue(1)
	q.push(candidate{tx: txWithNonce(1)})
	q.push(candidate{tx: txWithNonce(2)})

	select {
	case c := <-q.ch:
		assert.Equal(t, uint64(2), c.tx.Nonce(), "the newer candidate should survive backpressure, not the stale one")
	default:
		t.Fatal("expected a queued candidate")
	}
}

func TestNewFeedQueueDefaultsCapacity(t *testing.T) {
	q := newFeedQueue(0)
	assert.Equal(t, 4096, cap(q.ch))
}
