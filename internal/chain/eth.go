package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
)

// shuffleContractABI covers the two contract entry points this connector
// needs: the `utxos` view used by LookupUTXO, and the `shuffle` method used
// by SubmitTransaction to transfer a room's inputs to their shuffled
// outputs in one call. Kept inline rather than generated since this
// exercise ships no bindgen step.
const shuffleContractABI = `[
	{"constant":true,"inputs":[{"name":"id","type":"uint256"}],"name":"utxos","outputs":[{"name":"owner","type":"address"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"inputs","type":"uint256[]"},{"name":"outputs","type":"bytes[]"}],"name":"shuffle","outputs":[],"payable":false,"stateMutability":"nonpayable","type":"function"}
]`

// EthConnector is the production domain.ChainConnector, backed by
// go-ethereum's ethclient against an EVM-compatible RPC endpoint. It signs
// and submits the shuffle transaction itself with the coordinator's own
// submitting key; participant signatures collected over ShuffleRound/
// SignShuffleTx authorize the shuffle off-chain and are not themselves part
// of this wire call (SPEC_FULL §3.1's non-goal: no contract ABI semantics
// beyond this seam are specified by the protocol).
type EthConnector struct {
	client     *ethclient.Client
	contract   common.Address
	abi        abi.ABI
	signer     *ecdsa.PrivateKey
	signerAddr common.Address
}

// NewEthConnector dials rpcAddr and prepares the connector to call contract,
// signing submitted transactions with signerKey (the coordinator's own
// submitting wallet, distinct from any participant's key).
func NewEthConnector(rpcAddr string, contract common.Address, signerKey *ecdsa.PrivateKey) (*EthConnector, error) {
	client, err := ethclient.Dial(rpcAddr)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcAddr, err)
	}
	parsed, err := abi.JSON(strings.NewReader(shuffleContractABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}
	return &EthConnector{
		client:     client,
		contract:   contract,
		abi:        parsed,
		signer:     signerKey,
		signerAddr: crypto.PubkeyToAddress(signerKey.PublicKey),
	}, nil
}

func (c *EthConnector) LookupUTXO(ctx context.Context, id domain.UTXOID) (*domain.UTXO, error) {
	idInt := new(big.Int).SetBytes(id[:])
	data, err := c.abi.Pack("utxos", idInt)
	if err != nil {
		return nil, fmt.Errorf("chain: pack call: %w", err)
	}

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call contract: %w", err)
	}

	var result struct {
		Owner  common.Address
		Token  common.Address
		Amount *big.Int
	}
	if err := c.abi.UnpackIntoInterface(&result, "utxos", out); err != nil {
		return nil, fmt.Errorf("chain: unpack result: %w", err)
	}
	if result.Amount == nil || result.Amount.Sign() == 0 {
		return nil, nil
	}

	return &domain.UTXO{
		ID:     id,
		Owner:  [20]byte(result.Owner),
		Token:  [20]byte(result.Token),
		Amount: result.Amount,
	}, nil
}

// SubmitTransaction packs inputs/outputs into a call to the contract's
// shuffle method, signs it with the coordinator's own submitting key, and
// sends it. Per-participant signatures are collected (duplicates rejected,
// not cryptographically verified) before this call is reached
// (internal/room); this boundary only needs the chain ID, nonce,
// and gas parameters to produce a valid signed transaction, not a full
// bindgen-generated client.
func (c *EthConnector) SubmitTransaction(ctx context.Context, inputs []*big.Int, outputs [][]byte) ([32]byte, error) {
	data, err := c.abi.Pack("shuffle", inputs, outputs)
	if err != nil {
		return [32]byte{}, fmt.Errorf("chain: pack shuffle call: %w", err)
	}

	chainID, err := c.client.ChainID(ctx)
	if err != nil {
		return [32]byte{}, fmt.Errorf("chain: fetch chain id: %w", err)
	}
	nonce, err := c.client.PendingNonceAt(ctx, c.signerAddr)
	if err != nil {
		return [32]byte{}, fmt.Errorf("chain: fetch nonce: %w", err)
	}
	gasTipCap, err := c.client.SuggestGasTipCap(ctx)
	if err != nil {
		return [32]byte{}, fmt.Errorf("chain: suggest gas tip cap: %w", err)
	}
	head, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return [32]byte{}, fmt.Errorf("chain: fetch latest header: %w", err)
	}
	gasFeeCap := new(big.Int).Add(gasTipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	msg := ethereum.CallMsg{From: c.signerAddr, To: &c.contract, Data: data}
	gasLimit, err := c.client.EstimateGas(ctx, msg)
	if err != nil {
		return [32]byte{}, fmt.Errorf("chain: estimate gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        &c.contract,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.signer)
	if err != nil {
		return [32]byte{}, fmt.Errorf("chain: sign transaction: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return [32]byte{}, fmt.Errorf("chain: send transaction: %w", err)
	}
	return signed.Hash(), nil
}

var _ domain.ChainConnector = (*EthConnector)(nil)
