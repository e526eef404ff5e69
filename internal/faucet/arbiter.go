package faucet

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ArcInvoice/ArcInvoiceServer/internal/ledger"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/models"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/store"
)

const confirmTimeout = 2 * time.Minute

// ClaimResult is what a successful claim reports back: the hash of the
// initiated transfer and the dispensed amount in whole tokens.
type ClaimResult struct {
	TxHash string
	Amount string
}

// ConfirmationSink receives out-of-band notice once a dispensed transfer is
// mined. Confirmation is never awaited on the request path.
type ConfirmationSink interface {
	ClaimConfirmed(wallet, txHash string)
}

// Arbiter owns the check-then-transfer-then-record sequence. Claims are
// serialized per wallet (and per IP) so concurrent requests for the same
// wallet queue behind the in-flight one instead of both reaching the ledger.
type Arbiter struct {
	logger *log.Logger
	policy EligibilityPolicy
	claims store.ClaimStore
	chain  ledger.Client

	amountWei   *big.Int
	amountLabel string

	walletLocks *keyedLocks
	ipLocks     *keyedLocks

	sink     ConfirmationSink
	enabled  bool
	reconGap atomic.Int64
	now      func() time.Time
}

// New builds an arbiter ready to dispense. amountWei is the per-claim
// dispensation in base units, amountLabel the same amount in whole tokens.
func New(logger *log.Logger, policy EligibilityPolicy, claims store.ClaimStore, chain ledger.Client, amountWei *big.Int, amountLabel string) *Arbiter {
	return &Arbiter{
		logger:      logger,
		policy:      policy,
		claims:      claims,
		chain:       chain,
		amountWei:   amountWei,
		amountLabel: amountLabel,
		walletLocks: newKeyedLocks(),
		ipLocks:     newKeyedLocks(),
		enabled:     true,
		now:         time.Now,
	}
}

// NewDisabled builds an arbiter for a deployment missing its signing
// credential. Eligibility checks still work; every claim fails with
// ErrServiceUnavailable instead of crashing the process.
func NewDisabled(logger *log.Logger, policy EligibilityPolicy, claims store.ClaimStore) *Arbiter {
	a := New(logger, policy, claims, nil, nil, "")
	a.enabled = false
	return a
}

// WithConfirmationSink wires a sink for mined-transfer events.
func (a *Arbiter) WithConfirmationSink(sink ConfirmationSink) *Arbiter {
	a.sink = sink
	return a
}

func (a *Arbiter) Enabled() bool {
	return a.enabled
}

// FaucetAddress returns the dispensing account, or "" when disabled.
func (a *Arbiter) FaucetAddress() string {
	if !a.enabled {
		return ""
	}
	return a.chain.FaucetAddress().Hex()
}

// ReconciliationGap counts claims whose transfer succeeded but whose record
// write failed. Non-zero means the claims ledger has drifted from the chain.
func (a *Arbiter) ReconciliationGap() int64 {
	return a.reconGap.Load()
}

// Check evaluates the cooldown policy for a wallet without side effects.
func (a *Arbiter) Check(ctx context.Context, address string) (Decision, error) {
	if !common.IsHexAddress(address) {
		return Decision{}, ErrInvalidAddress
	}
	wallet := normalizeAddress(address)
	return a.policy.Evaluate(ctx, wallet, "", a.now())
}

// SubmitClaim runs the full claim sequence: validate, serialize, consult the
// policy, check the faucet balance, transfer, record. Once a transfer hash
// exists the claim is a success no matter what happens afterwards; a failed
// record write is logged for reconciliation, never surfaced as failure.
func (a *Arbiter) SubmitClaim(ctx context.Context, address, clientIP string) (ClaimResult, error) {
	if !common.IsHexAddress(address) {
		return ClaimResult{}, ErrInvalidAddress
	}
	if !a.enabled {
		a.logger.Printf("faucet claim rejected: service not configured")
		return ClaimResult{}, ErrServiceUnavailable
	}
	wallet := normalizeAddress(address)

	// Serialize per wallet, then per IP. The lock order is fixed so a shared
	// IP across two wallets cannot deadlock.
	a.walletLocks.Lock(wallet)
	defer a.walletLocks.Unlock(wallet)
	if clientIP != "" {
		a.ipLocks.Lock(clientIP)
		defer a.ipLocks.Unlock(clientIP)
	}

	decision, err := a.policy.Evaluate(ctx, wallet, clientIP, a.now())
	if err != nil {
		return ClaimResult{}, fmt.Errorf("evaluate cooldown: %w", err)
	}
	if !decision.Eligible {
		return ClaimResult{}, &CooldownError{RetryAfter: decision.RetryAfter}
	}

	balance, err := a.chain.Balance(ctx)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("query balance: %w", err)
	}
	if balance.Cmp(a.amountWei) < 0 {
		a.logger.Printf("faucet balance %s below dispensation %s, refill needed", balance, a.amountWei)
		return ClaimResult{}, ErrInsufficientFunds
	}

	hash, err := a.chain.SendNative(ctx, common.HexToAddress(wallet), a.amountWei)
	if err != nil {
		return ClaimResult{}, &TransferError{Cause: err}
	}

	// Funds have moved. Everything below is best effort.
	claim := &models.FaucetClaim{
		WalletAddress: wallet,
		IPAddress:     clientIP,
		Amount:        a.amountLabel,
		TxHash:        hash.Hex(),
		ClaimedAt:     a.now().UnixMilli(),
	}
	if err := a.claims.RecordClaim(ctx, claim); err != nil {
		a.reconGap.Add(1)
		a.logger.Printf("reconciliation: claim record write failed wallet=%s tx=%s amount=%s err=%v",
			wallet, hash.Hex(), a.amountLabel, err)
	}

	if a.sink != nil {
		go a.awaitConfirmation(wallet, hash)
	}

	return ClaimResult{TxHash: hash.Hex(), Amount: a.amountLabel}, nil
}

func (a *Arbiter) awaitConfirmation(wallet string, hash common.Hash) {
	ctx, cancel := context.WithTimeout(context.Background(), confirmTimeout)
	defer cancel()

	ok, err := a.chain.AwaitReceipt(ctx, hash)
	if err != nil {
		a.logger.Printf("confirmation wait for %s ended: %v", hash.Hex(), err)
		return
	}
	if !ok {
		a.logger.Printf("reconciliation: transfer %s mined but reverted, wallet=%s", hash.Hex(), wallet)
		return
	}
	a.sink.ClaimConfirmed(wallet, hash.Hex())
}

func normalizeAddress(address string) string {
	return strings.ToLower(common.HexToAddress(address).Hex())
}
