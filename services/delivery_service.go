package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "delivery-core/common/errors"
	"delivery-core/common/locks"
	"delivery-core/kafka"
	"delivery-core/models"
	"delivery-core/repository"
	aws_pkg "delivery-core/pkg/aws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryService manages the assignment of delivery workers to confirmed
// orders and the monotonic advance of the tracking status. Advancing a
// delivery to delivered is what moves the order itself to delivered.
type DeliveryService interface {
	Assign(ctx context.Context, orderID, workerID uuid.UUID) (*models.DeliveryTracking, error)
	Advance(ctx context.Context, trackingID uuid.UUID, target models.DeliveryStatus, lat, lng *float64) (*models.DeliveryTracking, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.DeliveryTracking, error)
}

type deliveryServiceImpl struct {
	deliveryRepo repository.DeliveryRepository
	orderRepo    repository.OrderRepository
	orderSvc     OrderService
	producer     kafka.ProducerAPI
	lockMgr      *locks.Manager
	metrics      *aws_pkg.MetricsClient
	logger       *zap.Logger
}

// NewDeliveryService creates a new DeliveryService.
func NewDeliveryService(
	deliveryRepo repository.DeliveryRepository,
	orderRepo repository.OrderRepository,
	orderSvc OrderService,
	producer kafka.ProducerAPI,
	lockMgr *locks.Manager,
	metrics *aws_pkg.MetricsClient,
	logger *zap.Logger,
) DeliveryService {
	return &deliveryServiceImpl{
		deliveryRepo: deliveryRepo,
		orderRepo:    orderRepo,
		orderSvc:     orderSvc,
		producer:     producer,
		lockMgr:      lockMgr,
		metrics:      metrics,
		logger:       logger,
	}
}

// Assign creates the tracking row for an order once the restaurant has
// confirmed it. An order carries at most one active assignment.
func (s *deliveryServiceImpl) Assign(ctx context.Context, orderID, workerID uuid.UUID) (*models.DeliveryTracking, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundf("order %s not found", orderID)
		}
		return nil, apperrors.Internal("failed to fetch order", err)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, apperrors.InvalidTransitionf("order %s is cancelled", orderID)
	}
	rank, _ := order.Status.Rank()
	confirmedRank, _ := models.OrderStatusConfirmed.Rank()
	if rank < confirmedRank {
		return nil, apperrors.InvalidTransitionf("order %s must be confirmed before a delivery is assigned, currently %s", orderID, order.Status)
	}

	if existing, err := s.deliveryRepo.FindByOrderID(ctx, orderID); err == nil {
		return nil, apperrors.InvalidTransitionf("order %s already has an active delivery %s", orderID, existing.ID)
	}

	tracking := &models.DeliveryTracking{
		ID:       uuid.New(),
		OrderID:  orderID,
		WorkerID: workerID,
		Status:   models.DeliveryStatusAssigned,
	}
	if err := s.deliveryRepo.Create(ctx, tracking); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.InvalidTransitionf("order %s already has an active delivery", orderID)
		}
		s.logger.Error("failed to create delivery tracking", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, apperrors.Internal("failed to assign delivery", err)
	}
	if err := s.orderRepo.AssignWorker(ctx, orderID, workerID); err != nil {
		s.logger.Error("failed to stamp worker on order", zap.String("order_id", orderID.String()), zap.Error(err))
	}

	s.recordMetric(aws_pkg.MetricDeliveriesAssigned)
	s.publishUpdate(ctx, tracking)
	s.logger.Info("delivery assigned",
		zap.String("order_id", orderID.String()),
		zap.String("worker_id", workerID.String()),
	)
	return tracking, nil
}

// Advance moves a delivery exactly one step along
// assigned → picked_up → on_the_way → delivered, recording the worker's
// location. Reaching delivered drives the order's own delivered transition.
func (s *deliveryServiceImpl) Advance(ctx context.Context, trackingID uuid.UUID, target models.DeliveryStatus, lat, lng *float64) (*models.DeliveryTracking, error) {
	targetRank, ok := target.Rank()
	if !ok {
		return nil, apperrors.Validationf("unknown delivery status %q", target)
	}

	var result *models.DeliveryTracking
	err := locks.Retry(ctx, retryAttempts, retryBackoff, apperrors.Retryable, func() error {
		release, err := s.lockMgr.Acquire(ctx, locks.DeliveryKey(trackingID.String()))
		if err != nil {
			return apperrors.ConcurrencyConflict("delivery busy: "+trackingID.String(), err)
		}
		defer release()

		tracking, err := s.deliveryRepo.FindByID(ctx, trackingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFoundf("delivery %s not found", trackingID)
			}
			return apperrors.Internal("failed to fetch delivery", err)
		}
		fromRank, _ := tracking.Status.Rank()
		if targetRank != fromRank+1 {
			return apperrors.InvalidTransitionf("cannot move delivery %s from %s to %s", trackingID, tracking.Status, target)
		}

		// The order transition carries the real side effects; run it first
		// so a rejected order state leaves the tracking untouched.
		if target == models.DeliveryStatusDelivered {
			if _, err := s.orderSvc.Transition(ctx, tracking.OrderID, models.OrderStatusDelivered); err != nil {
				return err
			}
		}

		applied, err := s.deliveryRepo.AdvanceStatus(ctx, trackingID, tracking.Status, target, lat, lng)
		if err != nil {
			return apperrors.Internal("failed to advance delivery", err)
		}
		if !applied {
			return apperrors.ConcurrencyConflict("delivery "+trackingID.String()+" changed concurrently", nil)
		}

		tracking.Status = target
		tracking.Latitude = lat
		tracking.Longitude = lng
		result = tracking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, result)
	s.logger.Info("delivery advanced",
		zap.String("tracking_id", trackingID.String()),
		zap.String("status", string(target)),
	)
	return result, nil
}

// GetByOrderID retrieves the active tracking row for an order.
func (s *deliveryServiceImpl) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.DeliveryTracking, error) {
	tracking, err := s.deliveryRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundf("no delivery tracked for order %s", orderID)
		}
		return nil, apperrors.Internal("failed to fetch delivery", err)
	}
	return tracking, nil
}

func (s *deliveryServiceImpl) publishUpdate(ctx context.Context, tracking *models.DeliveryTracking) {
	if s.producer == nil {
		return
	}
	event := models.DeliveryUpdateEvent{
		EventType: "delivery_update",
		OrderID:   tracking.OrderID.String(),
		WorkerID:  tracking.WorkerID.String(),
		Status:    tracking.Status,
		Latitude:  tracking.Latitude,
		Longitude: tracking.Longitude,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal delivery event", zap.Error(err))
		return
	}
	if err := s.producer.Publish(ctx, tracking.OrderID.String(), data); err != nil {
		s.logger.Error("failed to publish delivery event", zap.Error(err))
	}
}

func (s *deliveryServiceImpl) recordMetric(name string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	go func() {
		mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(mctx, name, map[string]string{"Service": "delivery-core"})
	}()
}
