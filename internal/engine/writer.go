package engine

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"veilswap/internal/model"
)

// TxBackend is the chain capability the writer needs. *chain.Client
// satisfies it.
type TxBackend interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Writer submits claim and withdraw transactions to the settlement
// engine. It does not retry: a revert must surface to the caller as-is.
type Writer struct {
	chain    TxBackend
	contract common.Address
	key      *ecdsa.PrivateKey
	sender   common.Address
	chainID  *big.Int
	logger   *zap.Logger
}

// NewWriter builds a writer signing with the given key.
func NewWriter(ctx context.Context, chainClient TxBackend, contract common.Address, key *ecdsa.PrivateKey, logger *zap.Logger) (*Writer, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	return &Writer{
		chain:    chainClient,
		contract: contract,
		key:      key,
		sender:   crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		logger:   logger,
	}, nil
}

// Sender returns the transaction-signing address.
func (w *Writer) Sender() common.Address {
	return w.sender
}

// Claim submits a claim for one position.
func (w *Writer) Claim(ctx context.Context, key model.PositionKey) (common.Hash, error) {
	return w.send(ctx, "claim", key.PoolID, big.NewInt(int64(key.Tick)), uint8(key.Side))
}

// Withdraw submits a withdrawal of an encrypted amount from one position.
func (w *Writer) Withdraw(ctx context.Context, key model.PositionKey, encryptedAmount *big.Int) (common.Hash, error) {
	if encryptedAmount == nil {
		return common.Hash{}, fmt.Errorf("encrypted amount is required")
	}
	return w.send(ctx, "withdraw", key.PoolID, big.NewInt(int64(key.Tick)), uint8(key.Side), encryptedAmount)
}

func (w *Writer) send(ctx context.Context, method string, args ...interface{}) (common.Hash, error) {
	callsABI, err := CallsABI()
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse calls abi: %w", err)
	}
	data, err := callsABI.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{From: w.sender, To: &w.contract, Data: data}
	gasLimit, err := w.chain.EstimateGas(ctx, msg)
	if err != nil {
		// Estimation runs the call; a revert shows up here before any
		// transaction is broadcast.
		if reason, ok := revertReason(err); ok {
			return common.Hash{}, &RevertError{Op: method, Reason: reason}
		}
		return common.Hash{}, fmt.Errorf("estimate gas for %s: %w", method, err)
	}

	nonce, err := w.chain.PendingNonceAt(ctx, w.sender)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := w.chain.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &w.contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign %s: %w", method, err)
	}

	if err := w.chain.SendTransaction(ctx, signed); err != nil {
		if reason, ok := revertReason(err); ok {
			return common.Hash{}, &RevertError{Op: method, Reason: reason}
		}
		return common.Hash{}, fmt.Errorf("send %s: %w", method, err)
	}

	w.logger.Info("engine write submitted",
		zap.String("method", method),
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
	)
	return signed.Hash(), nil
}

// revertReason extracts a revert message from an RPC error when the
// node reports one.
func revertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	msg := err.Error()
	if strings.Contains(msg, "execution reverted") {
		parts := strings.SplitN(msg, "execution reverted", 2)
		reason := strings.TrimLeft(parts[1], ": ")
		return reason, true
	}
	return "", false
}
