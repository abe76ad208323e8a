package brain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/vega-mev/liquidator/pkg/types"
)

func TestBucketizeSpreadsUsersEvenly(t *testing.T) {
	users := make([]common.Address, 10)
	for i := range users {
		users[i] = common.BigToAddress(common.Big1)
	}
	buckets := bucketize(users, 4)
	assert.Len(t, buckets, 4)

	total := 0
	for _, b := range buckets {
		total += len(b)
	}
	assert.Equal(t, 10, total)
}

func TestBucketizeCapsAtUserCount(t *testing.T) {
	users := make([]common.Address, 2)
	buckets := bucketize(users, 64)
	assert.Len(t, buckets, 2)
	for _, b := range buckets {
		assert.Len(t, b, 1)
	}
}

func TestBucketizeEmpty(t *testing.T) {
	assert.Nil(t, bucketize(nil, 64))
}

func TestHexTraceEncodesLowercaseHex(t *testing.T) {
	trace := types.TraceID{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04}
	assert.Equal(t, "deadbeef01020304", hexTrace(trace))
}
