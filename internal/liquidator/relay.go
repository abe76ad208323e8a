package liquidator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// privacyHints mirrors the relay protocol's privacy-hints object (spec.md
// §6 "Relay protocol").
type privacyHints struct {
	Calldata        bool `json:"calldata"`
	ContractAddress bool `json:"contractAddress"`
	FunctionSelector bool `json:"functionSelector"`
	Logs            bool `json:"logs"`
}

var defaultPrivacyHints = privacyHints{Calldata: true, ContractAddress: true, FunctionSelector: true, Logs: true}

// sendBundleParams is the mev_sendBundle JSON-RPC request body.
type sendBundleParams struct {
	Txs               []string      `json:"txs"`
	BlockNumber       string        `json:"blockNumber"`
	MaxBlockNumber    string        `json:"maxBlockNumber"`
	PrivacyHints      privacyHints  `json:"privacyHints"`
}

// RelayClient submits bundles to a block builder over JSON-RPC, correlating
// each submission with a google/uuid id distinct from the message bus's
// trace_id (spec.md §4.4).
type RelayClient struct {
	client *rpc.Client
	log    *zap.Logger
}

// NewRelayClient wraps an already-dialed JSON-RPC client.
func NewRelayClient(client *rpc.Client, log *zap.Logger) *RelayClient {
	return &RelayClient{client: client, log: log}
}

// SubmitBundle sends b via mev_sendBundle once, returning the submission id
// used to correlate this call's logs.
func (r *RelayClient) SubmitBundle(ctx context.Context, b Bundle) (string, error) {
	submissionID := uuid.NewString()

	txs := make([]string, len(b.RawTxs))
	for i, raw := range b.RawTxs {
		txs[i] = hexutil.Encode(raw)
	}

	params := sendBundleParams{
		Txs:            txs,
		BlockNumber:    hexutil.EncodeUint64(b.TargetInclusionBlock),
		MaxBlockNumber: hexutil.EncodeUint64(b.MaxBlock),
		PrivacyHints:   defaultPrivacyHints,
	}

	var result interface{}
	if err := r.client.CallContext(ctx, &result, "mev_sendBundle", params); err != nil {
		return submissionID, fmt.Errorf("liquidator: mev_sendBundle: %w", err)
	}
	r.log.Info("liquidator: bundle submitted",
		zap.String("submission_id", submissionID),
		zap.Uint64("target_block", b.TargetInclusionBlock),
		zap.Int("tx_count", len(txs)))
	return submissionID, nil
}
