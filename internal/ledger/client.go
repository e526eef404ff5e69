package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	nativeTransferGas = 21000
	txLookupTimeout   = 5 * time.Second
	receiptPollEvery  = 2 * time.Second
)

// Client is the chain-side collaborator of the claim arbiter: balance lookup,
// native value transfer from the faucet account, and receipt awaiting.
type Client interface {
	FaucetAddress() common.Address
	Balance(ctx context.Context) (*big.Int, error)
	SendNative(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error)
	AwaitReceipt(ctx context.Context, hash common.Hash) (bool, error)
}

// EthClient implements Client over a JSON-RPC endpoint with a custodial
// signing key. Transfers are serialized internally so concurrent claims never
// race on the faucet account's nonce.
type EthClient struct {
	rpc     *ethclient.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	signer  types.Signer

	sendMu sync.Mutex
}

// ParseSigningKey parses a hex-encoded private key (with or without a 0x
// prefix) and derives its account address.
func ParseSigningKey(privateKeyHex string) (*ecdsa.PrivateKey, common.Address, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("invalid signing key: %w", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

// Dial connects to the RPC endpoint and prepares the signer. When chainID is
// zero it is fetched from the node.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, chainID int64) (*EthClient, error) {
	key, from, err := ParseSigningKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}

	id := big.NewInt(chainID)
	if chainID == 0 {
		id, err = rpc.ChainID(ctx)
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
	}

	return &EthClient{
		rpc:     rpc,
		key:     key,
		from:    from,
		chainID: id,
		signer:  types.LatestSignerForChainID(id),
	}, nil
}

func (c *EthClient) FaucetAddress() common.Address {
	return c.from
}

func (c *EthClient) Balance(ctx context.Context) (*big.Int, error) {
	return c.rpc.BalanceAt(ctx, c.from, nil)
}

// SendNative signs and submits a value transfer, returning its hash. The hash
// is computed locally before submission, so when the submission call errors or
// times out the node is re-queried for the transaction on a fresh context: if
// the node knows the hash, the transfer went through and is reported as
// success rather than failure.
func (c *EthClient) SendNative(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.rpc.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      nativeTransferGas,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transfer: %w", err)
	}

	hash := signed.Hash()
	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		if c.txKnown(hash) {
			return hash, nil
		}
		return common.Hash{}, fmt.Errorf("submit transfer: %w", err)
	}
	return hash, nil
}

// txKnown checks whether the node has seen the transaction, on a short fresh
// context so a request-scope cancellation does not mask an accepted transfer.
func (c *EthClient) txKnown(hash common.Hash) bool {
	ctx, cancel := context.WithTimeout(context.Background(), txLookupTimeout)
	defer cancel()
	_, _, err := c.rpc.TransactionByHash(ctx, hash)
	return err == nil
}

// AwaitReceipt polls until the transaction is mined or ctx expires. It returns
// whether the transaction executed successfully.
func (c *EthClient) AwaitReceipt(ctx context.Context, hash common.Hash) (bool, error) {
	ticker := time.NewTicker(receiptPollEvery)
	defer ticker.Stop()

	for {
		receipt, err := c.rpc.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt.Status == types.ReceiptStatusSuccessful, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return false, fmt.Errorf("fetch receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
