package bus

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/pkg/types"
)

func TestParseEndpoint(t *testing.T) {
	path, err := ParseEndpoint("ipc:///tmp/vega_inbound")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/vega_inbound", path)

	_, err = ParseEndpoint("tcp://127.0.0.1:1234")
	assert.Error(t, err)
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	log := zap.NewNop()
	sockPath := filepath.Join(t.TempDir(), "vega_test.sock")
	endpoint := fmt.Sprintf("ipc://%s", sockPath)

	pub, err := NewPublisher(endpoint, 8, log)
	require.NoError(t, err)
	defer pub.Close()

	sub, err := NewSubscriber(endpoint, log)
	require.NoError(t, err)
	defer sub.Close()

	// give the subscriber time to dial and the publisher time to accept.
	time.Sleep(100 * time.Millisecond)

	trace := types.TraceID{9, 9, 9, 9, 9, 9, 9, 9}
	env := types.Envelope{Kind: types.KindPositionEvent, TraceID: trace, Payload: []byte("hello")}
	pub.Publish(env)

	select {
	case got := <-sub.Envelopes():
		assert.Equal(t, env.Kind, got.Kind)
		assert.Equal(t, env.TraceID, got.TraceID)
		assert.Equal(t, env.Payload, got.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestPublisherDropsWhenQueueFull(t *testing.T) {
	log := zap.NewNop()
	sockPath := filepath.Join(t.TempDir(), "vega_test2.sock")
	endpoint := fmt.Sprintf("ipc://%s", sockPath)

	pub, err := NewPublisher(endpoint, 1, log)
	require.NoError(t, err)
	defer pub.Close()

	// no subscriber connected: queue fills and must drop instead of
	// blocking the caller.
	for i := 0; i < 5; i++ {
		pub.Publish(types.Envelope{Kind: types.KindPriceUpdate, Payload: []byte{byte(i)}})
	}
	assert.Greater(t, pub.Dropped(), uint64(0))
}
