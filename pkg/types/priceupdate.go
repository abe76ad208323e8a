package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TraceID is the opaque 8-byte correlation token that propagates end-to-end
// from a PriceUpdate (or a single-user PositionEvent) through every message
// it causes.
type TraceID [8]byte

// PricedReserve is one entry of a speculative price-table overlay: what a
// reserve's base-unit price would be if the pending oracle tx lands.
type PricedReserve struct {
	Reserve common.Address
	Price   *big.Int // base units, scale PriceScale
}

// PriceUpdate is produced by Scout from a pre-inclusion forwarder
// transaction. Its lifetime ends when Brain finishes (or abandons) the
// simulation trace it triggers.
type PriceUpdate struct {
	TraceID              TraceID
	TxHash               common.Hash
	RawTx                []byte
	TargetInclusionBlock uint64
	NewPrice             *big.Int
	ForwarderAddress     common.Address
	Sender               common.Address
	Recipient            common.Address
	Calldata             []byte
}

// UnderwaterUser is emitted by Brain once a simulated (or, in the warm path,
// canonical) health factor for a user drops below HFScale. RawTx is empty in
// the warm-path, non-preempted case.
type UnderwaterUser struct {
	User                 common.Address
	TraceID              TraceID
	RawTx                []byte
	TargetInclusionBlock uint64
	Snapshot             AccountSnapshot
	SpeculativePrices    []PricedReserve
}
