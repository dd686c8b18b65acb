package services

import (
	"context"
	"time"

	apperrors "delivery-core/common/errors"
	"delivery-core/common/locks"
	"delivery-core/models"
	"delivery-core/repository"
	aws_pkg "delivery-core/pkg/aws"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Bounded retry policy for transient contention. A conflict is retried a
// small number of times with linear backoff before surfacing to the caller.
const (
	retryAttempts = 3
	retryBackoff  = 50 * time.Millisecond
)

// WalletService is the ledger API: every balance change appends exactly one
// immutable WalletTransaction, and the denormalized balance always equals
// the latest entry's balance_after.
type WalletService interface {
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string) (*models.WalletTransaction, error)
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string, orderID *uuid.UUID) (*models.WalletTransaction, error)
	Refund(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, orderID uuid.UUID) (*models.WalletTransaction, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.WalletTransaction, int64, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*ReconcileResult, error)
}

// ReconcileResult reports whether the stored balance matches the fold of
// the full transaction sequence from zero.
type ReconcileResult struct {
	UserID         uuid.UUID       `json:"user_id"`
	StoredBalance  decimal.Decimal `json:"stored_balance"`
	LedgerBalance  decimal.Decimal `json:"ledger_balance"`
	Consistent     bool            `json:"consistent"`
	EntryCount     int             `json:"entry_count"`
	BrokenChainIdx int             `json:"broken_chain_index"` // -1 when the chain is intact
}

type walletServiceImpl struct {
	repo       repository.WalletRepository
	lockMgr    *locks.Manager
	maxBalance decimal.Decimal // zero means uncapped
	metrics    *aws_pkg.MetricsClient
	logger     *zap.Logger
}

// NewWalletService creates a new WalletService.
func NewWalletService(repo repository.WalletRepository, lockMgr *locks.Manager, maxBalance decimal.Decimal, metrics *aws_pkg.MetricsClient, logger *zap.Logger) WalletService {
	return &walletServiceImpl{
		repo:       repo,
		lockMgr:    lockMgr,
		maxBalance: maxBalance,
		metrics:    metrics,
		logger:     logger,
	}
}

// Credit appends a credit entry, enforcing the configured balance cap.
func (s *walletServiceImpl) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string) (*models.WalletTransaction, error) {
	txn, err := s.append(ctx, userID, models.TransactionTypeCredit, amount, reason, nil)
	if err != nil {
		return nil, err
	}
	s.recordMetric(aws_pkg.MetricWalletCredits)
	return txn, nil
}

// Debit appends a debit entry, failing when the balance does not cover the
// amount. The balance is left untouched on failure.
func (s *walletServiceImpl) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string, orderID *uuid.UUID) (*models.WalletTransaction, error) {
	txn, err := s.append(ctx, userID, models.TransactionTypeDebit, amount, reason, orderID)
	if err != nil {
		return nil, err
	}
	s.recordMetric(aws_pkg.MetricWalletDebits)
	return txn, nil
}

// Refund appends a compensating credit tied to a prior order debit. The
// amount may never exceed the order's debits net of prior refunds; the
// bound is checked under the wallet lock so two racing refunds cannot
// both read the pre-refund totals.
func (s *walletServiceImpl) Refund(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, orderID uuid.UUID) (*models.WalletTransaction, error) {
	txn, err := s.append(ctx, userID, models.TransactionTypeRefund, amount, "refund for order "+orderID.String(), &orderID)
	if err != nil {
		return nil, err
	}
	s.recordMetric(aws_pkg.MetricWalletRefunds)
	return txn, nil
}

// append serializes on the per-wallet lock, computes the new balance and
// writes entry + balance as one atomic unit, retrying on contention.
// Refund bounds are verified inside the lock, after any earlier refund
// for the same order has landed.
func (s *walletServiceImpl) append(ctx context.Context, userID uuid.UUID, txType models.TransactionType, amount decimal.Decimal, reason string, orderID *uuid.UUID) (*models.WalletTransaction, error) {
	if amount.Sign() <= 0 {
		return nil, apperrors.Validationf("amount must be positive, got %s", amount)
	}

	var txn *models.WalletTransaction
	err := locks.Retry(ctx, retryAttempts, retryBackoff, apperrors.Retryable, func() error {
		release, err := s.lockMgr.Acquire(ctx, locks.WalletKey(userID.String()))
		if err != nil {
			return apperrors.ConcurrencyConflict("wallet busy for user "+userID.String(), err)
		}
		defer release()

		if txType == models.TransactionTypeRefund && orderID != nil {
			debits, refunds, err := s.repo.OrderTotals(ctx, userID, *orderID)
			if err != nil {
				s.logger.Error("failed to sum order wallet activity", zap.String("order_id", orderID.String()), zap.Error(err))
				return apperrors.Internal("failed to verify refundable amount", err)
			}
			refundable := debits.Sub(refunds)
			if amount.GreaterThan(refundable) {
				return apperrors.Validationf("refund %s exceeds refundable amount %s for order %s", amount, refundable, *orderID)
			}
		}

		wallet, err := s.repo.GetOrCreate(ctx, userID)
		if err != nil {
			return apperrors.Internal("failed to load wallet", err)
		}

		before := wallet.Balance
		var after decimal.Decimal
		switch txType {
		case models.TransactionTypeDebit:
			if before.LessThan(amount) {
				return apperrors.InsufficientFunds("balance " + before.String() + " is less than debit " + amount.String())
			}
			after = before.Sub(amount)
		default:
			after = before.Add(amount)
			if s.maxBalance.Sign() > 0 && after.GreaterThan(s.maxBalance) {
				return apperrors.BalanceCapExceeded("balance " + after.String() + " would exceed cap " + s.maxBalance.String())
			}
		}

		candidate := &models.WalletTransaction{
			UserID:        userID,
			OrderID:       orderID,
			Type:          txType,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			Reason:        reason,
		}
		if err := s.repo.Append(ctx, candidate); err != nil {
			if err == repository.ErrBalanceConflict {
				return apperrors.ConcurrencyConflict("wallet balance moved for user "+userID.String(), err)
			}
			return apperrors.Internal("failed to append wallet transaction", err)
		}
		txn = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet transaction appended",
		zap.String("user_id", userID.String()),
		zap.String("type", string(txType)),
		zap.String("amount", amount.String()),
		zap.String("balance_after", txn.BalanceAfter.String()),
	)
	return txn, nil
}

// GetBalance returns the user's current balance.
func (s *walletServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	wallet, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return decimal.Zero, apperrors.Internal("failed to load wallet", err)
	}
	return wallet.Balance, nil
}

// ListTransactions returns a page of the user's ledger, newest first.
func (s *walletServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.WalletTransaction, int64, error) {
	txns, total, err := s.repo.ListTransactions(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list wallet transactions", err)
	}
	return txns, total, nil
}

// Reconcile folds the full transaction sequence from zero and compares the
// result with the stored balance. It also verifies that each entry's
// balance_before continues the previous entry's balance_after.
func (s *walletServiceImpl) Reconcile(ctx context.Context, userID uuid.UUID) (*ReconcileResult, error) {
	wallet, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load wallet", err)
	}
	txns, err := s.repo.AllTransactions(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load wallet transactions", err)
	}

	folded := decimal.Zero
	brokenIdx := -1
	for i, txn := range txns {
		if brokenIdx == -1 && !txn.BalanceBefore.Equal(folded) {
			brokenIdx = i
		}
		folded = folded.Add(txn.Delta())
	}

	result := &ReconcileResult{
		UserID:         userID,
		StoredBalance:  wallet.Balance,
		LedgerBalance:  folded,
		Consistent:     brokenIdx == -1 && folded.Equal(wallet.Balance),
		EntryCount:     len(txns),
		BrokenChainIdx: brokenIdx,
	}
	if !result.Consistent {
		s.logger.Error("wallet ledger inconsistent",
			zap.String("user_id", userID.String()),
			zap.String("stored", result.StoredBalance.String()),
			zap.String("ledger", result.LedgerBalance.String()),
			zap.Int("broken_chain_index", brokenIdx),
		)
	}
	return result, nil
}

func (s *walletServiceImpl) recordMetric(name string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	go func() {
		mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(mctx, name, map[string]string{"Service": "delivery-core"})
	}()
}
