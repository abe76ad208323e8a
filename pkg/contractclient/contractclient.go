// Package contractclient wraps an ABI-bound contract address behind a small
// Call/Send/Multicall surface, adapted from the teacher's ContractClient
// abstraction. Brain's bucketed health-factor recompute and the Liquidator's
// pre-submission checks both go through Multicall so a bucket of a few
// hundred users costs one RPC round trip instead of one per user.
package contractclient

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TxKind distinguishes a plain call from one that needs special gas
// handling; kept for parity with the teacher's Send signature even though
// vega only ever sends Standard transactions today.
type TxKind int

const (
	Standard TxKind = iota
)

// TxReceipt is the subset of a transaction receipt callers need; gas fields
// are kept as decimal strings so they round-trip through JSON the same way
// the teacher's recorder expects.
type TxReceipt struct {
	TxHash            common.Hash
	Status            uint64
	GasUsed           string
	EffectiveGasPrice string
	Logs              []*types.Log
}

// DecodedTransaction is the result of decoding a transaction's calldata
// against this client's ABI.
type DecodedTransaction struct {
	MethodName string                 `json:"methodName"`
	Parameters map[string]interface{} `json:"parameters"`
}

// RPC is the subset of *ethclient.Client a ContractClient needs; defined as
// an interface so tests and the forked-EVM simulator can supply a fake.
type RPC interface {
	bind.ContractBackend
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// ContractClient binds one contract address to its ABI and an RPC
// connection.
type ContractClient struct {
	client   RPC
	address  common.Address
	abi      abi.ABI
	callOpts time.Duration
}

// New builds a ContractClient for address using abi over client.
func New(client RPC, address common.Address, contractABI abi.ABI) *ContractClient {
	return &ContractClient{client: client, address: address, abi: contractABI, callOpts: 2 * time.Second}
}

// ContractAddress returns the bound contract address.
func (c *ContractClient) ContractAddress() common.Address { return c.address }

// Abi exposes the bound ABI, e.g. to hand-pack calldata for a multicall.
func (c *ContractClient) Abi() abi.ABI { return c.abi }

// Call performs a read-only eth_call against method, decoding the outputs
// into a slice in declaration order.
func (c *ContractClient) Call(from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.callOpts)
	defer cancel()

	msg := ethereum.CallMsg{To: &c.address, Data: data}
	if from != nil {
		msg.From = *from
	}
	out, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("contractclient: call %s: %w", method, err)
	}
	return c.abi.Unpack(method, out)
}

// Send signs and broadcasts a transaction calling method with args. gasLimit
// nil means estimate automatically.
func (c *ContractClient) Send(
	kind TxKind,
	gasLimit *uint64,
	from *common.Address,
	pk *ecdsa.PrivateKey,
	method string,
	args ...interface{},
) (common.Hash, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	nonce, err := c.client.PendingNonceAt(ctx, *from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: gas price: %w", err)
	}

	limit := uint64(0)
	if gasLimit != nil {
		limit = *gasLimit
	} else {
		estimated, err := c.client.EstimateGas(ctx, ethereum.CallMsg{From: *from, To: &c.address, Data: data})
		if err != nil {
			return common.Hash{}, fmt.Errorf("contractclient: estimate gas: %w", err)
		}
		limit = estimated
	}

	chainID, err := c.client.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: chain id: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Value:    big.NewInt(0),
		Gas:      limit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), pk)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: sign: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: send: %w", err)
	}
	return signed.Hash(), nil
}

// TransactionData fetches raw calldata for hash via the bound RPC.
func (c *ContractClient) TransactionData(hash common.Hash) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.callOpts)
	defer cancel()
	tx, _, err := c.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("contractclient: fetch tx %s: %w", hash, err)
	}
	return tx.Data(), nil
}

// DecodeTransaction decodes calldata against the bound ABI.
func (c *ContractClient) DecodeTransaction(data []byte) (*DecodedTransaction, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("contractclient: calldata too short")
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("contractclient: unknown selector %x: %w", data[:4], err)
	}
	args := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil, fmt.Errorf("contractclient: unpack %s: %w", method.Name, err)
	}
	return &DecodedTransaction{MethodName: method.Name, Parameters: args}, nil
}

// ParseReceipt renders a receipt's decoded logs as JSON, the way the
// teacher's NFT-mint event lookup consumed a receipt.
func (c *ContractClient) ParseReceipt(receipt *TxReceipt) (string, error) {
	type decodedEvent struct {
		EventName string                 `json:"EventName"`
		Parameter map[string]interface{} `json:"Parameter"`
	}
	var events []decodedEvent
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 {
			continue
		}
		ev, err := c.abi.EventByID(l.Topics[0])
		if err != nil {
			continue // not one of this contract's events
		}
		params := make(map[string]interface{})
		if err := c.abi.UnpackIntoMap(params, ev.Name, l.Data); err != nil {
			continue
		}
		events = append(events, decodedEvent{EventName: ev.Name, Parameter: params})
	}
	out, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// EOAFromKey derives the checksummed address for a private key; the
// Liquidator's Signer uses it to resolve its EOA.
func EOAFromKey(pk *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(pk.PublicKey)
}
