package brain

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrOverloadedFork is returned when no fork-EVM slot becomes available
// within the acquire deadline (spec.md §4.3.3: "a bucket that cannot get a
// fork within 200ms gives up rather than queueing").
var ErrOverloadedFork = errors.New("brain: overloaded fork pool")

// AcquireTimeout is the non-blocking acquire deadline before a caller gets
// ErrOverloadedFork instead of waiting.
const AcquireTimeout = 200 * time.Millisecond

// ForkPool is a fixed-size round-robin pool of forked-EVM JSON-RPC
// connections (Anvil/Hardhat), used so bucket workers simulate a pending
// price update without racing each other over one node's state.
type ForkPool struct {
	slots chan *rpc.Client
}

// NewForkPool wraps clients (already dialed) in an acquire/release pool.
func NewForkPool(clients []*rpc.Client) *ForkPool {
	slots := make(chan *rpc.Client, len(clients))
	for _, c := range clients {
		slots <- c
	}
	return &ForkPool{slots: slots}
}

// Acquire returns a fork client, blocking up to AcquireTimeout before
// returning ErrOverloadedFork.
func (p *ForkPool) Acquire(ctx context.Context) (*rpc.Client, error) {
	deadline, cancel := context.WithTimeout(ctx, AcquireTimeout)
	defer cancel()
	select {
	case c := <-p.slots:
		return c, nil
	case <-deadline.Done():
		return nil, ErrOverloadedFork
	}
}

// Release returns a fork client to the pool.
func (p *ForkPool) Release(c *rpc.Client) {
	p.slots <- c
}

// Size reports the pool's capacity.
func (p *ForkPool) Size() int {
	return cap(p.slots)
}

// Simulator wraps the raw JSON-RPC calls a bucket worker issues against one
// forked-EVM slot: reset to head, override Chainlink answer storage slots,
// optionally replay the pending raw tx, then call the Pool contract.
type Simulator struct {
	client *rpc.Client
}

// NewSimulator binds a Simulator to an already-acquired fork client.
func NewSimulator(client *rpc.Client) *Simulator {
	return &Simulator{client: client}
}

// Reset rolls the fork back to the live chain's head, discarding any state
// a previous bucket iteration left behind.
func (s *Simulator) Reset(ctx context.Context) error {
	return s.client.CallContext(ctx, nil, "anvil_reset", map[string]interface{}{
		"forking": map[string]interface{}{},
	})
}

// StorageOverride is one (address, slot) -> value write applied before a
// simulated call, the mechanism used to splice a speculative oracle answer
// into the fork without replaying the forwarder transaction.
type StorageOverride struct {
	Address [20]byte
	Slot    [32]byte
	Value   [32]byte
}

// ApplyOverrides writes each override's storage slot via anvil_setStorageAt,
// used when a PriceUpdate carries no RawTx (a pure price refresh, not a
// preemption candidate).
func (s *Simulator) ApplyOverrides(ctx context.Context, overrides []StorageOverride) error {
	for _, o := range overrides {
		if err := s.client.CallContext(ctx, nil, "anvil_setStorageAt",
			o.Address, o.Slot, o.Value); err != nil {
			return err
		}
	}
	return nil
}

// SendRawTransaction replays the pending preemption candidate against the
// fork so its side effects (the oracle price write) land before the
// downstream eth_call batch reads reserve state.
func (s *Simulator) SendRawTransaction(ctx context.Context, rawTx []byte) error {
	return s.client.CallContext(ctx, nil, "eth_sendRawTransaction", rawTx)
}

// Call wraps the fork's raw RPC client as an ethclient so a Multicaller can
// issue its aggregate3 batch (which needs bind.ContractBackend) against
// simulated, post-override state.
func (s *Simulator) Call() *ethclient.Client {
	return ethclient.NewClient(s.client)
}
