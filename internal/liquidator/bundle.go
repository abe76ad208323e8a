package liquidator

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/vega-mev/liquidator/pkg/contractclient"
	"github.com/vega-mev/liquidator/pkg/types"
)

// MaxBlockWindow is how many blocks past the target inclusion block a
// bundle remains valid for (spec.md §4.4 step 4).
const MaxBlockWindow = 3

// liquidate is payable: the bribe rides along as msg.value, and the FOXDIE
// contract forwards it to block.coinbase itself (the COINBASE opcode reads
// live block context during execution, unlike a pre-signed transaction's
// immutable To field — a separate bribe tx can never target the block
// builder/validator actually chosen for inclusion).
const liquidationABIJSON = `[{"inputs":[
	{"internalType":"address","name":"collateralAsset","type":"address"},
	{"internalType":"address","name":"debtAsset","type":"address"},
	{"internalType":"address","name":"user","type":"address"},
	{"internalType":"uint256","name":"debtToCover","type":"uint256"},
	{"internalType":"bool","name":"receiveUnderlying","type":"bool"},
	{"internalType":"uint8","name":"flashLoanSource","type":"uint8"}
],"name":"liquidate","outputs":[],"stateMutability":"payable","type":"function"}]`

var liquidationABI abi.ABI

func init() {
	var err error
	liquidationABI, err = abi.JSON(strings.NewReader(liquidationABIJSON))
	if err != nil {
		panic(fmt.Sprintf("liquidator: invalid embedded liquidation ABI: %v", err))
	}
}

// Bundle is the ordered, signed transaction set submitted to the relay.
type Bundle struct {
	RawTxs               [][]byte
	TargetInclusionBlock uint64
	MaxBlock             uint64
}

// Signer bundles what bundle assembly needs to turn a plan into signed
// transactions.
type Signer struct {
	key              *ecdsa.PrivateKey
	liquidationAddr  common.Address
	chainID          *big.Int
}

// NewSigner builds a Signer for the liquidator EOA, whose key is decrypted
// at startup the same way the teacher's ENC_PK/KEY pattern decrypts a
// signing key (internal/util.Decrypt).
func NewSigner(key *ecdsa.PrivateKey, liquidationContract common.Address, chainID *big.Int) *Signer {
	return &Signer{key: key, liquidationAddr: liquidationContract, chainID: chainID}
}

// Address returns the liquidator EOA's address.
func (s *Signer) Address() common.Address {
	return contractclient.EOAFromKey(s.key)
}

// AssembleBundle implements spec.md §4.4 "Bundle assembly": the optional
// preempted raw transaction first, then the liquidation call, paying
// plan.Bribe as attached value so the FOXDIE contract forwards it to
// block.coinbase from inside its own execution (see the ABI doc comment on
// why a second, pre-signed bribe transaction can't do this correctly).
func (s *Signer) AssembleBundle(
	plan types.LiquidationPlan,
	rawPreemptTx []byte,
	nonce uint64,
	gas GasParams,
) (Bundle, error) {
	var raws [][]byte
	if len(rawPreemptTx) > 0 {
		raws = append(raws, rawPreemptTx)
	}

	liquidateTx, err := s.signLiquidationCall(plan, nonce, gas)
	if err != nil {
		return Bundle{}, fmt.Errorf("liquidator: sign liquidation call: %w", err)
	}
	raws = append(raws, liquidateTx)

	return Bundle{
		RawTxs:               raws,
		TargetInclusionBlock: plan.TargetInclusionBlock,
		MaxBlock:             plan.TargetInclusionBlock + MaxBlockWindow,
	}, nil
}

func (s *Signer) signLiquidationCall(plan types.LiquidationPlan, nonce uint64, gas GasParams) ([]byte, error) {
	data, err := liquidationABI.Pack("liquidate",
		plan.CollateralAsset, plan.DebtAsset, plan.User, plan.DebtToRepay, true, uint8(plan.FlashLoanSource))
	if err != nil {
		return nil, err
	}
	bribe := plan.Bribe
	if bribe == nil {
		bribe = big.NewInt(0)
	}
	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		To:        &s.liquidationAddr,
		Value:     bribe,
		Gas:       gas.gasUnitsOrDefault(),
		GasFeeCap: gas.baseFeeOrDefault(),
		GasTipCap: gas.priorityFeeOrDefault(),
		Data:      data,
	})
	return s.signAndEncode(tx)
}

func (s *Signer) signAndEncode(tx *gethtypes.Transaction) ([]byte, error) {
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, err
	}
	return signed.MarshalBinary()
}

func (g GasParams) gasUnitsOrDefault() uint64 {
	if g.GasUnits == nil {
		return 400_000
	}
	return g.GasUnits.Uint64()
}

func (g GasParams) baseFeeOrDefault() *big.Int {
	if g.BaseFeeWei == nil {
		return big.NewInt(0)
	}
	return g.BaseFeeWei
}

func (g GasParams) priorityFeeOrDefault() *big.Int {
	if g.PriorityFeeWei == nil {
		return big.NewInt(0)
	}
	return g.PriorityFeeWei
}
