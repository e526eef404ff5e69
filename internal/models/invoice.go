package models

import "time"

const (
	InvoiceStatusPending = "pending"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusExpired = "expired"
)

type Invoice struct {
	ID        string `gorm:"primaryKey"`
	Creator   string `gorm:"index"`
	Recipient string
	Title     string
	Amount    string `gorm:"type:numeric"`
	Token     string
	Status    string `gorm:"index"`
	TxHash    string
	CreatedAt time.Time
	DueAt     *time.Time
	PaidAt    *time.Time
}
