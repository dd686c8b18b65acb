package services_test

import (
	"context"
	"testing"

	apperrors "delivery-core/common/errors"
	"delivery-core/common/locks"
	"delivery-core/models"
	"delivery-core/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reviewFixture struct {
	*orderFixture
	reviewRepo *mockReviewRepo
	svc        services.ReviewService
}

func newReviewFixture() *reviewFixture {
	logger, _ := zap.NewDevelopment()
	base := newOrderFixture()
	reviewRepo := newMockReviewRepo(base.catalog)
	svc := services.NewReviewService(reviewRepo, base.orderRepo, base.catalog, locks.NewManager(0), nil, logger)
	return &reviewFixture{orderFixture: base, reviewRepo: reviewRepo, svc: svc}
}

func (f *reviewFixture) deliveredOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.orderFixture.svc.PlaceOrder(context.Background(), placeReq(
		uuid.New(), f.restaurant.ID, models.PaymentMethodCash, "", item(f.burger.ID, 1),
	))
	require.NoError(t, err)
	for _, status := range []models.OrderStatus{
		models.OrderStatusConfirmed,
		models.OrderStatusPreparing,
		models.OrderStatusReady,
		models.OrderStatusOutForDelivery,
		models.OrderStatusDelivered,
	} {
		_, err = f.orderFixture.svc.Transition(context.Background(), order.ID, status)
		require.NoError(t, err)
	}
	return order
}

func reviewReq(food, delivery, overall int) *models.RecordReviewRequest {
	return &models.RecordReviewRequest{
		FoodRating:     food,
		DeliveryRating: delivery,
		OverallRating:  overall,
		Comment:        "solid",
	}
}

func TestReview_RecordForDeliveredOrder(t *testing.T) {
	f := newReviewFixture()
	order := f.deliveredOrder(t)

	review, err := f.svc.RecordReview(context.Background(), order.ID, reviewReq(5, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, order.ID, review.OrderID)
	assert.Equal(t, f.restaurant.ID, review.RestaurantID)
	assert.Equal(t, 4, review.OverallRating)

	restaurant, err := f.catalog.GetRestaurant(context.Background(), f.restaurant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, restaurant.TotalReviews)
	assert.InDelta(t, 4.0, restaurant.AverageRating, 1e-9)
}

func TestReview_RejectsInvalidRatings(t *testing.T) {
	f := newReviewFixture()
	order := f.deliveredOrder(t)

	for _, req := range []*models.RecordReviewRequest{
		reviewReq(0, 4, 4),
		reviewReq(4, 6, 4),
		reviewReq(4, 4, -1),
	} {
		_, err := f.svc.RecordReview(context.Background(), order.ID, req)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	}
}

func TestReview_RejectsUndeliveredOrder(t *testing.T) {
	f := newReviewFixture()
	order, err := f.orderFixture.svc.PlaceOrder(context.Background(), placeReq(
		uuid.New(), f.restaurant.ID, models.PaymentMethodCash, "", item(f.burger.ID, 1),
	))
	require.NoError(t, err)

	_, err = f.svc.RecordReview(context.Background(), order.ID, reviewReq(5, 5, 5))
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))

	// The rejected review left the aggregate untouched.
	restaurant, err := f.catalog.GetRestaurant(context.Background(), f.restaurant.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, restaurant.TotalReviews)
	assert.Equal(t, 0.0, restaurant.AverageRating)
}

func TestReview_OncePerOrder(t *testing.T) {
	f := newReviewFixture()
	order := f.deliveredOrder(t)

	_, err := f.svc.RecordReview(context.Background(), order.ID, reviewReq(5, 5, 5))
	require.NoError(t, err)

	_, err = f.svc.RecordReview(context.Background(), order.ID, reviewReq(1, 1, 1))
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	restaurant, err := f.catalog.GetRestaurant(context.Background(), f.restaurant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, restaurant.TotalReviews)
	assert.InDelta(t, 5.0, restaurant.AverageRating, 1e-9)
}

func TestReview_RunningAverage(t *testing.T) {
	f := newReviewFixture()

	for i, overall := range []int{5, 3, 4} {
		order := f.deliveredOrder(t)
		_, err := f.svc.RecordReview(context.Background(), order.ID, reviewReq(overall, overall, overall))
		require.NoError(t, err, "review %d", i)
	}

	restaurant, err := f.catalog.GetRestaurant(context.Background(), f.restaurant.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, restaurant.TotalReviews)
	assert.InDelta(t, 4.0, restaurant.AverageRating, 1e-9) // (5+3+4)/3
}
