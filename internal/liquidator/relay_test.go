package liquidator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRelayClientSubmitBundlePostsMevSendBundle(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		gotMethod = req.Method
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"ok"}`))
	}))
	defer srv.Close()

	client, err := rpc.DialHTTP(srv.URL)
	require.NoError(t, err)
	defer client.Close()

	relay := NewRelayClient(client, zap.NewNop())
	bundle := Bundle{RawTxs: [][]byte{{0x01, 0x02}}, TargetInclusionBlock: 100, MaxBlock: 103}

	id, err := relay.SubmitBundle(context.Background(), bundle)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "mev_sendBundle", gotMethod)
}
