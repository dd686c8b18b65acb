package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "delivery-core/common/errors"
	"delivery-core/common/locks"
	"delivery-core/models"
	"delivery-core/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPromotionService(repo *mockPromotionRepo) services.PromotionService {
	logger, _ := zap.NewDevelopment()
	return services.NewPromotionService(repo, locks.NewManager(0), nil, logger)
}

func seedPromotion(repo *mockPromotionRepo, p *models.Promotion) uuid.UUID {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	repo.promos[p.ID] = p
	return p.ID
}

func activePromotion(code string, discountType models.DiscountType, value string) *models.Promotion {
	return &models.Promotion{
		ID:           uuid.New(),
		Code:         code,
		DiscountType: discountType,
		Value:        dec(value),
		StartDate:    time.Now().Add(-time.Hour),
		EndDate:      time.Now().Add(24 * time.Hour),
		IsActive:     true,
	}
}

func TestPromotion_Create(t *testing.T) {
	repo := newMockPromotionRepo()
	svc := newTestPromotionService(repo)

	promo, err := svc.CreatePromotion(context.Background(), &models.CreatePromotionRequest{
		Code:         "welcome10",
		DiscountType: models.DiscountTypePercentage,
		Value:        dec("10"),
		UsageLimit:   100,
		StartDate:    time.Now(),
		EndDate:      time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", promo.Code) // codes are uppercased
	assert.True(t, promo.IsActive)
	assert.Equal(t, 0, promo.UsedCount)
}

func TestPromotion_CreateRejectsInvertedWindow(t *testing.T) {
	svc := newTestPromotionService(newMockPromotionRepo())

	_, err := svc.CreatePromotion(context.Background(), &models.CreatePromotionRequest{
		Code:         "BAD",
		DiscountType: models.DiscountTypeFixed,
		Value:        dec("5"),
		StartDate:    time.Now().Add(time.Hour),
		EndDate:      time.Now(),
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestPromotion_CreateRejectsDuplicateCode(t *testing.T) {
	repo := newMockPromotionRepo()
	svc := newTestPromotionService(repo)
	seedPromotion(repo, activePromotion("TAKEN", models.DiscountTypeFixed, "5"))

	_, err := svc.CreatePromotion(context.Background(), &models.CreatePromotionRequest{
		Code:         "taken",
		DiscountType: models.DiscountTypeFixed,
		Value:        dec("5"),
		StartDate:    time.Now(),
		EndDate:      time.Now().Add(time.Hour),
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestPromotion_ValidatePercentageWithCap(t *testing.T) {
	repo := newMockPromotionRepo()
	svc := newTestPromotionService(repo)

	promo := activePromotion("SAVE10", models.DiscountTypePercentage, "10")
	promo.MinimumOrder = dec("150.00")
	promo.MaximumDiscount = dec("30.00")
	seedPromotion(repo, promo)

	// 10% of 200.00 is 20.00, under the cap.
	resp, err := svc.Validate(context.Background(), &models.ValidatePromotionRequest{
		Code:          "SAVE10",
		OrderSubtotal: dec("200.00"),
	}, time.Now())
	require.NoError(t, err)
	assert.True(t, resp.DiscountAmount.Equal(dec("20.00")), "got %s", resp.DiscountAmount)

	// 10% of 400.00 is 40.00, clamped to the 30.00 cap.
	resp, err = svc.Validate(context.Background(), &models.ValidatePromotionRequest{
		Code:          "SAVE10",
		OrderSubtotal: dec("400.00"),
	}, time.Now())
	require.NoError(t, err)
	assert.True(t, resp.DiscountAmount.Equal(dec("30.00")), "got %s", resp.DiscountAmount)
}

func TestPromotion_ValidateBelowMinimumOrder(t *testing.T) {
	repo := newMockPromotionRepo()
	svc := newTestPromotionService(repo)

	promo := activePromotion("SAVE10", models.DiscountTypePercentage, "10")
	promo.MinimumOrder = dec("150.00")
	seedPromotion(repo, promo)

	_, err := svc.Validate(context.Background(), &models.ValidatePromotionRequest{
		Code:          "SAVE10",
		OrderSubtotal: dec("149.99"),
	}, time.Now())
	assert.Equal(t, apperrors.KindPromotionInvalid, apperrors.KindOf(err))
}

func TestPromotion_ValidateOutsideWindow(t *testing.T) {
	repo := newMockPromotionRepo()
	svc := newTestPromotionService(repo)

	promo := activePromotion("FUTURE", models.DiscountTypeFixed, "5")
	promo.StartDate = time.Now().Add(time.Hour)
	promo.EndDate = time.Now().Add(2 * time.Hour)
	seedPromotion(repo, promo)

	_, err := svc.Validate(context.Background(), &models.ValidatePromotionRequest{
		Code:          "FUTURE",
		OrderSubtotal: dec("100.00"),
	}, time.Now())
	assert.Equal(t, apperrors.KindPromotionInvalid, apperrors.KindOf(err))

	expired := activePromotion("EXPIRED", models.DiscountTypeFixed, "5")
	expired.StartDate = time.Now().Add(-2 * time.Hour)
	expired.EndDate = time.Now().Add(-time.Hour)
	seedPromotion(repo, expired)

	_, err = svc.Validate(context.Background(), &models.ValidatePromotionRequest{
		Code:          "EXPIRED",
		OrderSubtotal: dec("100.00"),
	}, time.Now())
	assert.Equal(t, apperrors.KindPromotionInvalid, apperrors.KindOf(err))
}

func TestPromotion_ValidateUsageExhausted(t *testing.T) {
	repo := newMockPromotionRepo()
	svc := newTestPromotionService(repo)

	promo := activePromotion("GONE", models.DiscountTypeFixed, "5")
	promo.UsageLimit = 3
	promo.UsedCount = 3
	seedPromotion(repo, promo)

	_, err := svc.Validate(context.Background(), &models.ValidatePromotionRequest{
		Code:          "GONE",
		OrderSubtotal: dec("100.00"),
	}, time.Now())
	assert.Equal(t, apperrors.KindPromotionInvalid, apperrors.KindOf(err))
}

func TestPromotion_ValidateBOGOUsesCheapestItem(t *testing.T) {
	repo := newMockPromotionRepo()
	svc := newTestPromotionService(repo)
	seedPromotion(repo, activePromotion("BOGO", models.DiscountTypeBOGO, "1"))

	resp, err := svc.Validate(context.Background(), &models.ValidatePromotionRequest{
		Code:              "BOGO",
		OrderSubtotal:     dec("45.00"),
		CheapestItemPrice: dec("12.50"),
	}, time.Now())
	require.NoError(t, err)
	assert.True(t, resp.DiscountAmount.Equal(dec("12.50")))

	// Without a qualifying item price the code does not apply.
	_, err = svc.Validate(context.Background(), &models.ValidatePromotionRequest{
		Code:          "BOGO",
		OrderSubtotal: dec("45.00"),
	}, time.Now())
	assert.Equal(t, apperrors.KindPromotionInvalid, apperrors.KindOf(err))
}

func TestPromotion_DiscountNeverExceedsSubtotal(t *testing.T) {
	repo := newMockPromotionRepo()
	svc := newTestPromotionService(repo)
	seedPromotion(repo, activePromotion("BIGFIX", models.DiscountTypeFixed, "50.00"))

	resp, err := svc.Validate(context.Background(), &models.ValidatePromotionRequest{
		Code:          "BIGFIX",
		OrderSubtotal: dec("20.00"),
	}, time.Now())
	require.NoError(t, err)
	assert.True(t, resp.DiscountAmount.Equal(dec("20.00")))
}

func TestPromotion_RedeemAndRelease(t *testing.T) {
	repo := newMockPromotionRepo()
	svc := newTestPromotionService(repo)

	promo := activePromotion("ONCE", models.DiscountTypeFixed, "5")
	promo.UsageLimit = 1
	id := seedPromotion(repo, promo)

	require.NoError(t, svc.Redeem(context.Background(), id))

	err := svc.Redeem(context.Background(), id)
	assert.Equal(t, apperrors.KindPromotionExhausted, apperrors.KindOf(err))

	require.NoError(t, svc.Release(context.Background(), id))
	require.NoError(t, svc.Redeem(context.Background(), id))
}

func TestPromotion_ConcurrentRedeemNeverOvershoots(t *testing.T) {
	repo := newMockPromotionRepo()
	svc := newTestPromotionService(repo)

	promo := activePromotion("RACE", models.DiscountTypeFixed, "5")
	promo.UsageLimit = 10
	id := seedPromotion(repo, promo)

	const callers = 50
	var succeeded, exhausted int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Redeem(context.Background(), id)
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case apperrors.IsKind(err, apperrors.KindPromotionExhausted):
				atomic.AddInt64(&exhausted, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), succeeded)
	assert.Equal(t, int64(40), exhausted)

	stored, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.UsedCount)
}

func TestPromotion_Deactivate(t *testing.T) {
	repo := newMockPromotionRepo()
	svc := newTestPromotionService(repo)
	seedPromotion(repo, activePromotion("SOONGONE", models.DiscountTypeFixed, "5"))

	require.NoError(t, svc.Deactivate(context.Background(), "SOONGONE"))

	_, err := svc.Validate(context.Background(), &models.ValidatePromotionRequest{
		Code:          "SOONGONE",
		OrderSubtotal: dec("100.00"),
	}, time.Now())
	assert.Equal(t, apperrors.KindPromotionInvalid, apperrors.KindOf(err))

	err = svc.Deactivate(context.Background(), "NEVEREXISTED")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
