package faucet

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidAddress rejects malformed wallet addresses before any side
	// effect.
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrServiceUnavailable means the faucet is missing its signing key or
	// RPC endpoint. Operator-actionable, never user-actionable.
	ErrServiceUnavailable = errors.New("faucet is not configured")

	// ErrInsufficientFunds means the faucet account cannot cover one more
	// dispensation.
	ErrInsufficientFunds = errors.New("faucet account has insufficient funds")
)

// CooldownError is the expected, frequent denial: the wallet or its IP
// claimed within the cooldown window.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, retry in %s", e.RetryAfter)
}

// TransferError wraps a ledger submission failure that produced no
// transaction hash. No state was mutated; the claim is safe to retry.
type TransferError struct {
	Cause error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed: %v", e.Cause)
}

func (e *TransferError) Unwrap() error {
	return e.Cause
}
