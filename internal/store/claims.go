package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/ArcInvoice/ArcInvoiceServer/internal/models"
)

// Stats aggregates the claims ledger for the public stats endpoint.
type Stats struct {
	Claims           int64   `json:"claims"`
	TotalDistributed float64 `json:"totalDistributed"`
	UniqueWallets    int64   `json:"uniqueWallets"`
}

// ClaimStore is the persistence surface the cooldown policy and arbiter see.
type ClaimStore interface {
	// LatestClaim returns the most recent claim by wallet address or, when ip
	// is non-empty, by wallet address OR ip address. A missing backing table
	// (first run) is empty history, not an error.
	LatestClaim(ctx context.Context, wallet, ip string) (*models.FaucetClaim, error)
	RecordClaim(ctx context.Context, claim *models.FaucetClaim) error
	Stats(ctx context.Context) (Stats, error)
}

type GormClaimStore struct {
	db *gorm.DB
}

func NewGormClaimStore(db *gorm.DB) *GormClaimStore {
	return &GormClaimStore{db: db}
}

func (s *GormClaimStore) LatestClaim(ctx context.Context, wallet, ip string) (*models.FaucetClaim, error) {
	q := s.db.WithContext(ctx)
	if ip != "" {
		q = q.Where("wallet_address = ? OR ip_address = ?", wallet, ip)
	} else {
		q = q.Where("wallet_address = ?", wallet)
	}

	var claim models.FaucetClaim
	err := q.Order("claimed_at DESC").First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || isUndefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest claim: %w", err)
	}
	return &claim, nil
}

func (s *GormClaimStore) RecordClaim(ctx context.Context, claim *models.FaucetClaim) error {
	if err := s.db.WithContext(ctx).Create(claim).Error; err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (s *GormClaimStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS claims,
		        COALESCE(SUM(amount), 0) AS total_distributed,
		        COUNT(DISTINCT wallet_address) AS unique_wallets
		 FROM faucet_claims`,
	).Scan(&stats).Error
	if isUndefinedTable(err) {
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate claims: %w", err)
	}
	return stats, nil
}

// isUndefinedTable matches postgres error 42P01 so a fresh database reads as
// empty history instead of failing.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
