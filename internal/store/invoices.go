package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ArcInvoice/ArcInvoiceServer/internal/models"
)

// ErrInvoiceNotFound is returned by updates that match no row in the expected
// state, so a paid invoice cannot be paid twice.
var ErrInvoiceNotFound = errors.New("invoice not found or not pending")

// InvoiceStore exposes the invoice glue around the faucet core. Updates go
// through fixed column sets per transition; there is no generic field-map
// update.
type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	Get(ctx context.Context, id string) (*models.Invoice, error)
	ListByCreator(ctx context.Context, creator string) ([]models.Invoice, error)
	MarkPaid(ctx context.Context, id, txHash string) error
	MarkExpired(ctx context.Context, id string) error
}

type GormInvoiceStore struct {
	db *gorm.DB
}

func NewGormInvoiceStore(db *gorm.DB) *GormInvoiceStore {
	return &GormInvoiceStore{db: db}
}

func (s *GormInvoiceStore) Create(ctx context.Context, inv *models.Invoice) error {
	if err := s.db.WithContext(ctx).Create(inv).Error; err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (s *GormInvoiceStore) Get(ctx context.Context, id string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query invoice: %w", err)
	}
	return &inv, nil
}

func (s *GormInvoiceStore) ListByCreator(ctx context.Context, creator string) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.db.WithContext(ctx).
		Where("creator = ?", creator).
		Order("created_at DESC").
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

func (s *GormInvoiceStore) MarkPaid(ctx context.Context, id, txHash string) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status = ?", id, models.InvoiceStatusPending).
		Updates(map[string]interface{}{
			"status":  models.InvoiceStatusPaid,
			"tx_hash": txHash,
			"paid_at": &now,
		})
	if res.Error != nil {
		return fmt.Errorf("mark invoice paid: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (s *GormInvoiceStore) MarkExpired(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status = ?", id, models.InvoiceStatusPending).
		Update("status", models.InvoiceStatusExpired)
	if res.Error != nil {
		return fmt.Errorf("mark invoice expired: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}
