package services

import (
	"context"
	"errors"
	"strings"
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

var oneHundred = decimal.NewFromInt(100)

// PromotionService validates promotion codes and consumes redemption slots.
// Validation is a pure read; a slot is only consumed by Redeem, which
// re-checks the usage limit at increment time so used_count can never
// overshoot usage_limit under concurrent redemption.
type PromotionService interface {
	CreatePromotion(ctx context.Context, req *models.CreatePromotionRequest) (*models.Promotion, error)
	Validate(ctx context.Context, req *models.ValidatePromotionRequest, now time.Time) (*models.ValidatePromotionResponse, error)
	Redeem(ctx context.Context, promoID uuid.UUID) error
	Release(ctx context.Context, promoID uuid.UUID) error
	Deactivate(ctx context.Context, code string) error
}

type promotionServiceImpl struct {
	repo    repository.PromotionRepository
	lockMgr *locks.Manager
	metrics *aws_pkg.MetricsClient
	logger  *zap.Logger
}

// NewPromotionService creates a new PromotionService.
func NewPromotionService(repo repository.PromotionRepository, lockMgr *locks.Manager, metrics *aws_pkg.MetricsClient, logger *zap.Logger) PromotionService {
	return &promotionServiceImpl{repo: repo, lockMgr: lockMgr, metrics: metrics, logger: logger}
}

// CreatePromotion creates a new promotion.
func (s *promotionServiceImpl) CreatePromotion(ctx context.Context, req *models.CreatePromotionRequest) (*models.Promotion, error) {
	if !req.EndDate.After(req.StartDate) {
		return nil, apperrors.Validationf("end_date must be after start_date")
	}
	if req.Value.Sign() <= 0 {
		return nil, apperrors.Validationf("value must be positive")
	}
	if req.DiscountType == models.DiscountTypePercentage && req.Value.GreaterThan(oneHundred) {
		return nil, apperrors.Validationf("percentage discount cannot exceed 100")
	}

	promo := &models.Promotion{
		Code:            strings.ToUpper(req.Code),
		DiscountType:    req.DiscountType,
		Value:           req.Value,
		MinimumOrder:    req.MinimumOrder,
		MaximumDiscount: req.MaximumDiscount,
		UsageLimit:      req.UsageLimit,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		IsActive:        true,
	}

	if err := s.repo.Create(ctx, promo); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Validationf("promotion code already exists")
		}
		s.logger.Error("failed to create promotion", zap.Error(err))
		return nil, apperrors.Internal("failed to create promotion", err)
	}

	s.logger.Info("promotion created", zap.String("code", promo.Code), zap.String("type", string(promo.DiscountType)))
	return promo, nil
}

// Validate checks every redemption predicate against the given subtotal and
// instant, and returns the computed discount. Each failure names the
// specific predicate that did not hold.
func (s *promotionServiceImpl) Validate(ctx context.Context, req *models.ValidatePromotionRequest, now time.Time) (*models.ValidatePromotionResponse, error) {
	promo, err := s.repo.FindByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.PromotionInvalidf("promotion %q not found or inactive", req.Code)
		}
		return nil, apperrors.Internal("failed to fetch promotion", err)
	}

	if now.Before(promo.StartDate) {
		return nil, apperrors.PromotionInvalidf("promotion %q is not active until %s", promo.Code, promo.StartDate.Format(time.RFC3339))
	}
	if now.After(promo.EndDate) {
		return nil, apperrors.PromotionInvalidf("promotion %q expired at %s", promo.Code, promo.EndDate.Format(time.RFC3339))
	}
	if req.OrderSubtotal.LessThan(promo.MinimumOrder) {
		return nil, apperrors.PromotionInvalidf("minimum order of %s required, subtotal is %s", promo.MinimumOrder, req.OrderSubtotal)
	}
	if promo.UsageLimit > 0 && promo.UsedCount >= promo.UsageLimit {
		return nil, apperrors.PromotionInvalidf("promotion %q usage limit reached", promo.Code)
	}

	var discount decimal.Decimal
	switch promo.DiscountType {
	case models.DiscountTypePercentage:
		discount = req.OrderSubtotal.Mul(promo.Value).Div(oneHundred)
	case models.DiscountTypeFixed:
		discount = promo.Value
	case models.DiscountTypeBOGO:
		if req.CheapestItemPrice.Sign() <= 0 {
			return nil, apperrors.PromotionInvalidf("promotion %q requires a qualifying item", promo.Code)
		}
		discount = req.CheapestItemPrice
	default:
		return nil, apperrors.Internal("unknown discount type "+string(promo.DiscountType), nil)
	}

	if promo.MaximumDiscount.Sign() > 0 && discount.GreaterThan(promo.MaximumDiscount) {
		discount = promo.MaximumDiscount
	}
	if discount.GreaterThan(req.OrderSubtotal) {
		discount = req.OrderSubtotal
	}

	return &models.ValidatePromotionResponse{
		PromotionID:    promo.ID,
		Code:           promo.Code,
		DiscountType:   promo.DiscountType,
		DiscountAmount: discount.Round(2),
	}, nil
}

// Redeem consumes one redemption slot. The repository increment re-checks
// the limit in the same statement; the per-promotion lock bounds the wait
// for callers racing the last slots.
func (s *promotionServiceImpl) Redeem(ctx context.Context, promoID uuid.UUID) error {
	err := locks.Retry(ctx, retryAttempts, retryBackoff, apperrors.Retryable, func() error {
		release, err := s.lockMgr.Acquire(ctx, locks.PromotionKey(promoID.String()))
		if err != nil {
			return apperrors.ConcurrencyConflict("promotion busy: "+promoID.String(), err)
		}
		defer release()

		consumed, err := s.repo.ConsumeSlot(ctx, promoID)
		if err != nil {
			return apperrors.Internal("failed to consume redemption slot", err)
		}
		if !consumed {
			return apperrors.PromotionExhausted("promotion " + promoID.String() + " has no redemption slots left")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil && s.metrics.IsEnabled() {
		go func() {
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.metrics.RecordCount(mctx, aws_pkg.MetricPromotionsRedeemed, map[string]string{"Service": "delivery-core"})
		}()
	}
	s.logger.Info("promotion redeemed", zap.String("promotion_id", promoID.String()))
	return nil
}

// Release returns a consumed slot, compensating a redemption whose order
// never persisted.
func (s *promotionServiceImpl) Release(ctx context.Context, promoID uuid.UUID) error {
	if err := s.repo.ReleaseSlot(ctx, promoID); err != nil {
		s.logger.Error("failed to release redemption slot", zap.String("promotion_id", promoID.String()), zap.Error(err))
		return apperrors.Internal("failed to release redemption slot", err)
	}
	return nil
}

// Deactivate soft-deactivates a promotion by code.
func (s *promotionServiceImpl) Deactivate(ctx context.Context, code string) error {
	if err := s.repo.Deactivate(ctx, code); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundf("promotion %q not found", code)
		}
		s.logger.Error("failed to deactivate promotion", zap.String("code", code), zap.Error(err))
		return apperrors.Internal("failed to deactivate promotion", err)
	}
	s.logger.Info("promotion deactivated", zap.String("code", code))
	return nil
}
