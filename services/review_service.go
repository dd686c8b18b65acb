package services

import (
	"context"
	"errors"
	"time"

	apperrors "delivery-core/common/errors"
	"delivery-core/common/locks"
	"delivery-core/models"
	"delivery-core/repository"
	aws_pkg "delivery-core/pkg/aws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReviewService records one review per delivered order and is the only
// writer of a restaurant's average_rating / total_reviews, recomputed as a
// running average under the restaurant lock.
type ReviewService interface {
	RecordReview(ctx context.Context, orderID uuid.UUID, req *models.RecordReviewRequest) (*models.Review, error)
}

type reviewServiceImpl struct {
	reviewRepo  repository.ReviewRepository
	orderRepo   repository.OrderRepository
	catalogRepo repository.CatalogRepository
	lockMgr     *locks.Manager
	metrics     *aws_pkg.MetricsClient
	logger      *zap.Logger
}

// NewReviewService creates a new ReviewService.
func NewReviewService(
	reviewRepo repository.ReviewRepository,
	orderRepo repository.OrderRepository,
	catalogRepo repository.CatalogRepository,
	lockMgr *locks.Manager,
	metrics *aws_pkg.MetricsClient,
	logger *zap.Logger,
) ReviewService {
	return &reviewServiceImpl{
		reviewRepo:  reviewRepo,
		orderRepo:   orderRepo,
		catalogRepo: catalogRepo,
		lockMgr:     lockMgr,
		metrics:     metrics,
		logger:      logger,
	}
}

// RecordReview validates eligibility and applies review plus rating
// recompute as one atomic unit.
func (s *reviewServiceImpl) RecordReview(ctx context.Context, orderID uuid.UUID, req *models.RecordReviewRequest) (*models.Review, error) {
	for _, rating := range []int{req.FoodRating, req.DeliveryRating, req.OverallRating} {
		if rating < 1 || rating > 5 {
			return nil, apperrors.Validationf("ratings must be between 1 and 5")
		}
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundf("order %s not found", orderID)
		}
		return nil, apperrors.Internal("failed to fetch order", err)
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, apperrors.InvalidTransitionf("order %s is %s, only delivered orders can be reviewed", orderID, order.Status)
	}
	if _, err := s.reviewRepo.FindByOrderID(ctx, orderID); err == nil {
		return nil, apperrors.Validationf("order %s already has a review", orderID)
	}

	var review *models.Review
	err = locks.Retry(ctx, retryAttempts, retryBackoff, apperrors.Retryable, func() error {
		release, err := s.lockMgr.Acquire(ctx, locks.RestaurantKey(order.RestaurantID.String()))
		if err != nil {
			return apperrors.ConcurrencyConflict("restaurant busy: "+order.RestaurantID.String(), err)
		}
		defer release()

		restaurant, err := s.catalogRepo.GetRestaurant(ctx, order.RestaurantID)
		if err != nil {
			return apperrors.Internal("failed to load restaurant", err)
		}

		newTotal := restaurant.TotalReviews + 1
		newAverage := (restaurant.AverageRating*float64(restaurant.TotalReviews) + float64(req.OverallRating)) / float64(newTotal)

		candidate := &models.Review{
			ID:             uuid.New(),
			OrderID:        orderID,
			CustomerID:     order.CustomerID,
			RestaurantID:   order.RestaurantID,
			FoodRating:     req.FoodRating,
			DeliveryRating: req.DeliveryRating,
			OverallRating:  req.OverallRating,
			Comment:        req.Comment,
		}
		if err := s.reviewRepo.CreateWithRating(ctx, candidate, newAverage, newTotal); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.Validationf("order %s already has a review", orderID)
			}
			return apperrors.Internal("failed to record review", err)
		}
		review = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil && s.metrics.IsEnabled() {
		go func() {
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.metrics.RecordCount(mctx, aws_pkg.MetricReviewsRecorded, map[string]string{"Service": "delivery-core"})
		}()
	}
	s.logger.Info("review recorded",
		zap.String("order_id", orderID.String()),
		zap.String("restaurant_id", order.RestaurantID.String()),
		zap.Int("overall_rating", req.OverallRating),
	)
	return review, nil
}
