package repository

import (
	"context"
	"errors"
	"time"

	"delivery-core/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrBalanceConflict is returned when an append's balance_before no longer
// matches the stored balance, meaning a concurrent writer got there first.
var ErrBalanceConflict = errors.New("wallet balance changed concurrently")

// WalletRepository defines the interface for wallet ledger data access.
// The ledger is append-only: entries are never updated or deleted.
type WalletRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// Append writes one ledger entry and moves the denormalized balance to
	// the entry's balance_after in the same transaction. The balance update
	// is guarded on balance_before so the ledger and balance cannot diverge.
	Append(ctx context.Context, txn *models.WalletTransaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.WalletTransaction, int64, error)
	AllTransactions(ctx context.Context, userID uuid.UUID) ([]models.WalletTransaction, error)
	// OrderTotals returns the summed debits and refunds recorded against
	// one order, used to bound compensating refunds.
	OrderTotals(ctx context.Context, userID, orderID uuid.UUID) (debits, refunds decimal.Decimal, err error)
}

// GormWalletRepository implements WalletRepository using GORM.
type GormWalletRepository struct {
	db *gorm.DB
}

// NewGormWalletRepository creates a new GormWalletRepository.
func NewGormWalletRepository(db *gorm.DB) WalletRepository {
	return &GormWalletRepository{db: db}
}

// GetOrCreate fetches the user's wallet, creating a zero-balance one on
// first touch.
func (r *GormWalletRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	wallet = models.Wallet{UserID: userID, Balance: decimal.Zero}
	if err := r.db.WithContext(ctx).Create(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Append writes the entry and advances the balance in one transaction.
func (r *GormWalletRepository) Append(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Wallet{}).
			Where("user_id = ? AND balance = ?", txn.UserID, txn.BalanceBefore).
			Updates(map[string]interface{}{
				"balance":    txn.BalanceAfter,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrBalanceConflict
		}
		return nil
	})
}

// ListTransactions retrieves a user's ledger entries with pagination,
// newest first.
func (r *GormWalletRepository) ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.WalletTransaction, int64, error) {
	var txns []models.WalletTransaction
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&txns).Error; err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}

// AllTransactions retrieves the full ledger for a user in append order,
// for reconciliation folds.
func (r *GormWalletRepository) AllTransactions(ctx context.Context, userID uuid.UUID) ([]models.WalletTransaction, error) {
	var txns []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// OrderTotals sums the debits and refunds recorded against one order.
func (r *GormWalletRepository) OrderTotals(ctx context.Context, userID, orderID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	type row struct {
		Type  models.TransactionType
		Total decimal.Decimal
	}
	var rows []row

	err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ? AND order_id = ?", userID, orderID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	debits, refunds := decimal.Zero, decimal.Zero
	for _, r := range rows {
		switch r.Type {
		case models.TransactionTypeDebit:
			debits = r.Total
		case models.TransactionTypeRefund:
			refunds = r.Total
		}
	}
	return debits, refunds, nil
}
