package scout

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/internal/reconnect"
)

// candidate is one pending transaction handed from a feeder to the decoder
// worker, tagged with which stream it came from (a privacy-relay hint
// already carries the raw bytes Scout needs to preempt; a public mempool
// sighting usually does not, and RawTx stays nil until/unless the node
// exposes it).
type candidate struct {
	tx     *gethtypes.Transaction
	rawTx  []byte
	sender common.Address
}

// feedQueue is the bounded channel both feeders publish into and the
// decoder worker drains, with non-blocking drop-oldest-on-full semantics so
// a burst never stalls either feeder (spec.md §4.1 "two feeder goroutines
// ... backpressure drops the oldest element").
type feedQueue struct {
	ch chan candidate
}

func newFeedQueue(capacity int) *feedQueue {
	if capacity <= 0 {
		capacity = 4096
	}
	return &feedQueue{ch: make(chan candidate, capacity)}
}

func (q *feedQueue) push(c candidate) {
	select {
	case q.ch <- c:
		return
	default:
	}
	select {
	case <-q.ch:
	default:
	}
	select {
	case q.ch <- c:
	default:
	}
}

// runPendingTxFeeder subscribes to the node's newPendingTransactions feed
// (eth_subscribe over the rpc.Client backing client) and pushes each
// resolved transaction into queue. Reconnects with the shared fixed-backoff
// policy on any subscription error.
func runPendingTxFeeder(ctx context.Context, log *zap.Logger, rpcClient *rpc.Client, client *ethclient.Client, queue *feedQueue) {
	reconnect.Run(ctx, log, "pending-tx subscription", func(ctx context.Context) error {
		hashes := make(chan common.Hash, 256)
		sub, err := rpcClient.EthSubscribe(ctx, hashes, "newPendingTransactions")
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-sub.Err():
				return err
			case hash := <-hashes:
				tx, isPending, err := client.TransactionByHash(ctx, hash)
				if err != nil || !isPending || tx == nil {
					continue
				}
				sender, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(tx.ChainId()), tx)
				if err != nil {
					continue
				}
				queue.push(candidate{tx: tx, sender: sender})
			}
		}
	})
}

// privacyHint is the JSON shape the privacy-preserving relay streams:
// a raw signed transaction the relay has pre-cleared for bundle inclusion.
type privacyHint struct {
	RawTx string `json:"rawTx"`
}

// runPrivacyRelayFeeder connects to the relay's websocket stream and pushes
// each hinted transaction into queue, carrying the raw bytes Scout needs to
// preempt the price update in a forked-EVM replay.
func runPrivacyRelayFeeder(ctx context.Context, log *zap.Logger, url string, queue *feedQueue) {
	reconnect.Run(ctx, log, "privacy relay stream", func(ctx context.Context) error {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			_, message, err := conn.ReadMessage()
			if err != nil {
				return err
			}
			var hint privacyHint
			if err := json.Unmarshal(message, &hint); err != nil {
				continue
			}
			rawTx := common.FromHex(hint.RawTx)
			if len(rawTx) == 0 {
				continue
			}
			tx := new(gethtypes.Transaction)
			if err := tx.UnmarshalBinary(rawTx); err != nil {
				continue
			}
			sender, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(tx.ChainId()), tx)
			if err != nil {
				continue
			}
			queue.push(candidate{tx: tx, rawTx: rawTx, sender: sender})
		}
	})
}
