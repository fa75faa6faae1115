package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"attendance-backend/logger"
	"attendance-backend/models"
)

// AttendanceNFT ABI - only the functions and events we need.
const attendanceABI = `[
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"isAuthorizedMinter","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"string","name":"eventName","type":"string"},{"internalType":"string","name":"eventDate","type":"string"},{"internalType":"string","name":"eventLocation","type":"string"},{"internalType":"string","name":"eventId","type":"string"},{"internalType":"string","name":"tokenUri","type":"string"}],"name":"mintAttendanceNft","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"to","type":"address"},{"indexed":true,"internalType":"uint256","name":"tokenId","type":"uint256"},{"indexed":false,"internalType":"string","name":"eventId","type":"string"}],"name":"Mint","type":"event"}
]`

// Backend is the subset of ethclient.Client the gateway needs. Narrowed for
// test doubles.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Gateway wraps the attendance NFT contract: it submits mint transactions
// signed by the administrative key, waits for block inclusion within a
// bounded window, and reports the token id the chain assigned. It refuses to
// operate until the admin key has passed the contract's authorization check.
type Gateway struct {
	client       Backend
	contractAddr common.Address
	abi          abi.ABI
	adminKey     *ecdsa.PrivateKey
	adminAddr    common.Address
	chainID      *big.Int
	waitTimeout  time.Duration
	pollInterval time.Duration
	initialized  bool
}

// NewGateway builds a gateway and verifies the admin key is authorized to
// mint on the target contract. An unauthorized key is a fatal startup
// condition: the returned error wraps models.ErrNotAuthorized and the
// service must not accept check-ins.
func NewGateway(ctx context.Context, client Backend, contractAddress, adminPrivateKey string, chainID int64, waitTimeout time.Duration) (*Gateway, error) {
	parsedABI, err := abi.JSON(strings.NewReader(attendanceABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse attendance ABI: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(adminPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid admin private key: %w", err)
	}

	g := &Gateway{
		client:       client,
		contractAddr: common.HexToAddress(contractAddress),
		abi:          parsedABI,
		adminKey:     key,
		adminAddr:    crypto.PubkeyToAddress(key.PublicKey),
		chainID:      big.NewInt(chainID),
		waitTimeout:  waitTimeout,
		pollInterval: 2 * time.Second,
	}

	authorized, err := g.isAuthorizedMinter(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify minter authorization: %w", err)
	}
	if !authorized {
		return nil, fmt.Errorf("%w: %s", models.ErrNotAuthorized, g.adminAddr.Hex())
	}

	g.initialized = true
	logger.Info("minting gateway ready, admin account %s authorized on %s", g.adminAddr.Hex(), g.contractAddr.Hex())

	return g, nil
}

// isAuthorizedMinter calls the contract's view function for the admin key.
func (g *Gateway) isAuthorizedMinter(ctx context.Context) (bool, error) {
	callData, err := g.abi.Pack("isAuthorizedMinter", g.adminAddr)
	if err != nil {
		return false, fmt.Errorf("failed to pack call data: %w", err)
	}

	result, err := g.client.CallContract(ctx, ethereum.CallMsg{
		To:   &g.contractAddr,
		Data: callData,
	}, nil)
	if err != nil {
		return false, fmt.Errorf("failed to call isAuthorizedMinter: %w", err)
	}

	var authorized bool
	if err := g.abi.UnpackIntoInterface(&authorized, "isAuthorizedMinter", result); err != nil {
		return false, fmt.Errorf("failed to unpack result: %w", err)
	}

	return authorized, nil
}

// Mint submits one mint transaction for the given wallet and event metadata
// and returns the token id from the chain's Mint event log. Exactly one
// transaction is sent per call. Errors are classified for the caller:
// ErrMintRejected (chain refused, do not retry), ErrMintUnconfirmed
// (inclusion not observed in the wait window, retry only behind the ledger's
// idempotency gate), ErrNotInitialized (authorization check never passed).
func (g *Gateway) Mint(ctx context.Context, walletAddress string, meta models.EventMetadata) (uint64, error) {
	if !g.initialized {
		return 0, models.ErrNotInitialized
	}

	to := common.HexToAddress(walletAddress)
	callData, err := g.abi.Pack("mintAttendanceNft",
		to,
		meta.Name,
		meta.Date,
		meta.Location,
		meta.EventID,
		meta.TokenURI,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to pack mint call: %w", err)
	}

	nonce, err := g.client.PendingNonceAt(ctx, g.adminAddr)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get gas price: %w", err)
	}

	msg := ethereum.CallMsg{
		From: g.adminAddr,
		To:   &g.contractAddr,
		Data: callData,
	}
	gasLimit, err := g.client.EstimateGas(ctx, msg)
	if err != nil {
		// Estimation runs the call; a revert here means the contract would
		// reject the mint, so no transaction is sent.
		return 0, fmt.Errorf("%w: %v", models.ErrMintRejected, err)
	}

	tx := types.NewTransaction(nonce, g.contractAddr, big.NewInt(0), gasLimit, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(g.chainID), g.adminKey)
	if err != nil {
		return 0, fmt.Errorf("failed to sign mint transaction: %w", err)
	}

	if err := g.client.SendTransaction(ctx, signedTx); err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrMintRejected, err)
	}

	logger.Info("mint transaction %s submitted for wallet %s, event %s", signedTx.Hash().Hex(), walletAddress, meta.EventID)

	receipt, err := g.waitMined(ctx, signedTx.Hash())
	if err != nil {
		return 0, err
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return 0, fmt.Errorf("%w: transaction %s reverted", models.ErrMintRejected, signedTx.Hash().Hex())
	}

	tokenID, err := g.extractTokenID(receipt)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrMintRejected, err)
	}

	return tokenID, nil
}

// waitMined polls for the transaction receipt until inclusion or until the
// configured wait window elapses. Exceeding the window is reported as
// ErrMintUnconfirmed: the outcome is ambiguous because the transaction may
// still land later.
func (g *Gateway) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.client.TransactionReceipt(waitCtx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			logger.Warn("error polling receipt for %s: %v", txHash.Hex(), err)
		}

		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("%w: transaction %s not included within %s", models.ErrMintUnconfirmed, txHash.Hex(), g.waitTimeout)
		case <-ticker.C:
		}
	}
}

// extractTokenID finds the contract's Mint event in the receipt logs and
// returns the token id the chain assigned. The gateway never invents ids;
// a receipt without a Mint event is an error.
func (g *Gateway) extractTokenID(receipt *types.Receipt) (uint64, error) {
	mintEvent := g.abi.Events["Mint"]

	for _, log := range receipt.Logs {
		if log.Address != g.contractAddr {
			continue
		}
		if len(log.Topics) < 3 || log.Topics[0] != mintEvent.ID {
			continue
		}

		// tokenId is the second indexed parameter.
		tokenID := new(big.Int).SetBytes(log.Topics[2].Bytes())
		if !tokenID.IsUint64() {
			return 0, fmt.Errorf("token id out of range: %s", tokenID.String())
		}
		return tokenID.Uint64(), nil
	}

	return 0, fmt.Errorf("mint event not found in transaction logs")
}
