package liquidator

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vega-mev/liquidator/pkg/types"
)

// singleUserReader adapts a plural-users position reader (the shape
// internal/brain.PositionReader exposes, batched for Brain's bucket
// workers) down to the single-user PositionSource Liquidator needs per
// trace.
type singleUserReader struct {
	reader interface {
		UserPositions(ctx context.Context, users, reserves []common.Address) ([]types.UserPosition, error)
	}
}

// NewOnchainPositionSource wraps reader (typically *brain.PositionReader,
// reused as-is since the underlying Multicall3 read is identical whether
// Brain batches many users or Liquidator asks about one) as a
// PositionSource.
func NewOnchainPositionSource(reader interface {
	UserPositions(ctx context.Context, users, reserves []common.Address) ([]types.UserPosition, error)
}) PositionSource {
	return singleUserReader{reader: reader}
}

func (s singleUserReader) UserPositions(ctx context.Context, user common.Address, reserves []common.Address) ([]types.UserPosition, error) {
	return s.reader.UserPositions(ctx, []common.Address{user}, reserves)
}
