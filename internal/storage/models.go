package storage

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/NgigiN/finsync/internal/model"
)

// PendingTransaction is a transaction saved locally until the remote API
// confirms it.
type PendingTransaction struct {
	gorm.Model    `json:"-"`
	LocalID       string          `gorm:"uniqueIndex;not null" json:"local_id"`
	Owner         string          `gorm:"index" json:"email,omitempty"`
	Type          string          `gorm:"not null" json:"type"`
	Description   string          `gorm:"not null" json:"description"`
	Value         decimal.Decimal `gorm:"type:text;not null" json:"value"`
	Date          string          `gorm:"not null" json:"date"`
	Category      string          `json:"category,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Installments  int             `json:"installments,omitempty"`
	Synced        bool            `gorm:"index:idx_pending_order,priority:1;not null;default:false" json:"synced"`
	EnqueuedAt    time.Time       `gorm:"index:idx_pending_order,priority:2;not null" json:"enqueued_at"`
	SyncedAt      *time.Time      `json:"synced_at,omitempty"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	Stalled       bool            `gorm:"not null;default:false" json:"stalled"`
}

// Payload rebuilds the submission body stored in the row.
func (p PendingTransaction) Payload() model.Payload {
	return model.Payload{
		Owner:         p.Owner,
		Type:          model.TxType(p.Type),
		Description:   p.Description,
		Value:         p.Value,
		Date:          p.Date,
		Category:      p.Category,
		PaymentMethod: p.PaymentMethod,
		Installments:  p.Installments,
	}
}

func newPendingTransaction(localID string, p model.Payload, at time.Time) *PendingTransaction {
	return &PendingTransaction{
		LocalID:       localID,
		Owner:         p.Owner,
		Type:          string(p.Type),
		Description:   p.Description,
		Value:         p.Value,
		Date:          p.Date,
		Category:      p.Category,
		PaymentMethod: p.PaymentMethod,
		Installments:  p.Installments,
		EnqueuedAt:    at,
	}
}

// Status summarises the queue.
type Status struct {
	Total   int64 `json:"total"`
	Synced  int64 `json:"synced"`
	Pending int64 `json:"pending"`
	Stalled int64 `json:"stalled"`
}
