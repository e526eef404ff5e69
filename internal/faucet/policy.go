package faucet

import (
	"context"
	"time"

	"github.com/ArcInvoice/ArcInvoiceServer/internal/store"
)

// Decision is the outcome of an eligibility check.
type Decision struct {
	Eligible   bool
	RetryAfter time.Duration
}

// EligibilityPolicy decides whether a wallet/IP pair may claim at a given
// instant. It is a named, swappable policy: the shipped WalletOrIPPolicy is
// deliberately strict across wallet AND IP, and a deployment that accepts
// more farming risk can substitute a laxer one.
type EligibilityPolicy interface {
	Evaluate(ctx context.Context, wallet, ip string, now time.Time) (Decision, error)
}

// WalletOrIPPolicy denies a claim when the most recent claim by the same
// wallet OR the same IP is younger than the cooldown window. The IP half is a
// best-effort anti-farming heuristic: one IP cannot feed multiple wallets
// within a window, at the accepted cost of false positives behind NAT.
type WalletOrIPPolicy struct {
	Claims   store.ClaimStore
	Cooldown time.Duration
}

func (p *WalletOrIPPolicy) Evaluate(ctx context.Context, wallet, ip string, now time.Time) (Decision, error) {
	last, err := p.Claims.LatestClaim(ctx, wallet, ip)
	if err != nil {
		return Decision{}, err
	}
	if last == nil {
		return Decision{Eligible: true}, nil
	}

	retryAfter := time.UnixMilli(last.ClaimedAt).Add(p.Cooldown).Sub(now)
	if retryAfter <= 0 {
		return Decision{Eligible: true}, nil
	}
	return Decision{Eligible: false, RetryAfter: retryAfter}, nil
}
