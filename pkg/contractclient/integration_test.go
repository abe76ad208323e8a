package contractclient

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

const erc20DecimalsABIJSON = `[{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`

// TestMulticallerAggregateLive batches decimals() reads for one or more
// ERC20 contracts through the live Multicall3 deployment, the same call
// shape Brain's PriceOracle and PositionReader make in production. Gated by
// .env.test.local the way the teacher's own RPC-touching tests are, but
// skipped rather than failed when credentials are absent so `go test ./...`
// stays green without a funded/configured environment.
func TestMulticallerAggregateLive(t *testing.T) {
	_ = godotenv.Load(".env.test.local")

	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		t.Skip("RPC_URL not set in .env.test.local, skipping live multicall test")
	}
	tokensCSV := os.Getenv("MULTICALL_TEST_TOKENS")
	if tokensCSV == "" {
		t.Skip("MULTICALL_TEST_TOKENS not set in .env.test.local, skipping live multicall test")
	}

	var tokens []common.Address
	for _, addr := range strings.Split(tokensCSV, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		require.True(t, common.IsHexAddress(addr), "malformed address in MULTICALL_TEST_TOKENS: %s", addr)
		tokens = append(tokens, common.HexToAddress(addr))
	}
	require.NotEmpty(t, tokens)

	parsed, err := abi.JSON(strings.NewReader(erc20DecimalsABIJSON))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	require.NoError(t, err)
	defer client.Close()

	mc := NewMulticaller(client)
	calls := make([]Call3, len(tokens))
	for i, token := range tokens {
		data, err := parsed.Pack("decimals")
		require.NoError(t, err)
		calls[i] = Call3{Target: token, AllowFailure: true, CallData: data}
	}

	results, err := mc.Aggregate(ctx, calls)
	require.NoError(t, err)
	require.Len(t, results, len(tokens))
	for i, r := range results {
		if !r.Success {
			continue
		}
		unpacked, err := parsed.Unpack("decimals", r.ReturnData)
		require.NoError(t, err)
		require.Len(t, unpacked, 1)
		t.Logf("token %s: decimals=%v", tokens[i], unpacked[0])
	}
}
