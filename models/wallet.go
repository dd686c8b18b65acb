package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a wallet ledger entry.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
	TransactionTypeRefund TransactionType = "refund"
)

// Wallet holds the denormalized balance for one user. The balance is
// always the balance_after of the user's most recent WalletTransaction;
// it is never written outside the same atomic unit that appends an entry.
type Wallet struct {
	UserID    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// WalletTransaction is one append-only ledger entry. Entries are never
// updated or deleted; corrections are compensating entries.
type WalletTransaction struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	OrderID       *uuid.UUID      `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Type          TransactionType `gorm:"type:varchar(10);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_after"`
	Reason        string          `gorm:"type:varchar(255)" json:"reason"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Delta returns the signed balance effect of the entry: debits subtract,
// credits and refunds add.
func (t *WalletTransaction) Delta() decimal.Decimal {
	if t.Type == TransactionTypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// CreditWalletRequest is the payload for crediting a wallet.
type CreditWalletRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Reason string          `json:"reason" binding:"required,max=255"`
}

// DebitWalletRequest is the payload for debiting a wallet.
type DebitWalletRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Reason string          `json:"reason" binding:"required,max=255"`
}

// RefundWalletRequest is the payload for refunding a prior order debit.
type RefundWalletRequest struct {
	Amount  decimal.Decimal `json:"amount" binding:"required"`
	OrderID uuid.UUID       `json:"order_id" binding:"required"`
}
