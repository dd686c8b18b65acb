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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// estimatedDeliveryWindow is stamped on the order when the restaurant
// confirms it.
const estimatedDeliveryWindow = 45 * time.Minute

// OrderService drives the order state machine:
// pending → confirmed → preparing → ready → out_for_delivery → delivered,
// with cancelled reachable while the order is still pending, confirmed or
// preparing. Wallet orders are debited when the restaurant confirms, so
// committed funds exist before preparation starts; cancellation after that
// point issues a compensating refund.
type OrderService interface {
	PlaceOrder(ctx context.Context, req *models.PlaceOrderRequest) (*models.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, target models.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, page, limit int) (*OrderListResponse, error)
}

// OrderListResponse is a page of orders with pagination meta.
type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

// MetaData describes a result page.
type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

type orderServiceImpl struct {
	orderRepo   repository.OrderRepository
	catalogRepo repository.CatalogRepository
	walletSvc   WalletService
	promoSvc    PromotionService
	producer    kafka.ProducerAPI
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	lockMgr     *locks.Manager
	metrics     *aws_pkg.MetricsClient
	logger      *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo repository.OrderRepository,
	catalogRepo repository.CatalogRepository,
	walletSvc WalletService,
	promoSvc PromotionService,
	producer kafka.ProducerAPI,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	lockMgr *locks.Manager,
	metrics *aws_pkg.MetricsClient,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		orderRepo:   orderRepo,
		catalogRepo: catalogRepo,
		walletSvc:   walletSvc,
		promoSvc:    promoSvc,
		producer:    producer,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		lockMgr:     lockMgr,
		metrics:     metrics,
		logger:      logger,
	}
}

// PlaceOrder validates items against the current catalog, applies at most
// one promotion, and persists the order with its item price snapshots.
// final_amount = total_amount + delivery_fee - discount_amount holds by
// construction.
func (s *orderServiceImpl) PlaceOrder(ctx context.Context, req *models.PlaceOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.Validationf("at least one item is required")
	}

	restaurant, err := s.catalogRepo.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Validationf("restaurant %s not found", req.RestaurantID)
		}
		return nil, apperrors.Internal("failed to fetch restaurant", err)
	}
	if !restaurant.IsActive {
		return nil, apperrors.Validationf("restaurant %s is not accepting orders", req.RestaurantID)
	}

	orderItems := make([]models.OrderItem, 0, len(req.Items))
	totalAmount := decimal.Zero
	cheapestItem := decimal.Zero

	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, apperrors.Validationf("quantity must be positive for item %s", it.MenuItemID)
		}

		menuItem, err := s.catalogRepo.GetMenuItem(ctx, it.MenuItemID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.Validationf("menu item %s not found", it.MenuItemID)
			}
			return nil, apperrors.Internal("failed to fetch menu item", err)
		}
		if menuItem.RestaurantID != req.RestaurantID {
			return nil, apperrors.Validationf("menu item %s does not belong to restaurant %s", it.MenuItemID, req.RestaurantID)
		}
		if !menuItem.IsAvailable {
			return nil, apperrors.Validationf("menu item %s is unavailable", it.MenuItemID)
		}

		lineTotal := menuItem.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		orderItems = append(orderItems, models.OrderItem{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			UnitPrice:  menuItem.Price,
			TotalPrice: lineTotal,
		})
		totalAmount = totalAmount.Add(lineTotal)
		if cheapestItem.Sign() == 0 || menuItem.Price.LessThan(cheapestItem) {
			cheapestItem = menuItem.Price
		}
	}

	discount := decimal.Zero
	var promotionID *uuid.UUID
	if req.PromoCode != "" {
		validated, err := s.promoSvc.Validate(ctx, &models.ValidatePromotionRequest{
			Code:              req.PromoCode,
			OrderSubtotal:     totalAmount,
			CheapestItemPrice: cheapestItem,
		}, time.Now())
		if err != nil {
			return nil, err
		}
		if err := s.promoSvc.Redeem(ctx, validated.PromotionID); err != nil {
			return nil, err
		}
		discount = validated.DiscountAmount
		promotionID = &validated.PromotionID
	}

	order := &models.Order{
		ID:             uuid.New(),
		OrderNumber:    "ORD-" + time.Now().Format("20060102-150405") + "-" + uuid.New().String()[:8],
		CustomerID:     req.CustomerID,
		RestaurantID:   req.RestaurantID,
		PromotionID:    promotionID,
		Status:         models.OrderStatusPending,
		PaymentMethod:  req.PaymentMethod,
		TotalAmount:    totalAmount,
		DeliveryFee:    restaurant.DeliveryFee,
		DiscountAmount: discount,
		FinalAmount:    totalAmount.Add(restaurant.DeliveryFee).Sub(discount),
		OrderItems:     orderItems,
	}
	for i := range order.OrderItems {
		order.OrderItems[i].OrderID = order.ID
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		// Give the redemption slot back; the order it paid for never landed.
		if promotionID != nil {
			if relErr := s.promoSvc.Release(ctx, *promotionID); relErr != nil {
				s.logger.Error("failed to release redemption slot after create failure",
					zap.String("promotion_id", promotionID.String()), zap.Error(relErr))
			}
		}
		s.logger.Error("failed to persist order", zap.String("order_number", order.OrderNumber), zap.Error(err))
		return nil, apperrors.Internal("failed to create order", err)
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("final_amount", order.FinalAmount.String()),
	)
	s.recordMetric(aws_pkg.MetricOrdersPlaced)
	s.publishEvent(ctx, order.ID.String(), models.OrderPlacedEvent{
		EventType:    "order_placed",
		OrderID:      order.ID.String(),
		OrderNumber:  order.OrderNumber,
		CustomerID:   order.CustomerID.String(),
		RestaurantID: order.RestaurantID.String(),
		FinalAmount:  order.FinalAmount,
		Timestamp:    time.Now(),
	})

	return order, nil
}

// Transition advances an order exactly one step along the forward path.
// Confirming a wallet order debits the customer's wallet first; reaching
// delivered stamps delivered_at.
func (s *orderServiceImpl) Transition(ctx context.Context, orderID uuid.UUID, target models.OrderStatus) (*models.Order, error) {
	if target == models.OrderStatusCancelled {
		return nil, apperrors.InvalidTransitionf("use cancel to cancel an order")
	}
	targetRank, ok := target.Rank()
	if !ok {
		return nil, apperrors.Validationf("unknown order status %q", target)
	}

	var result *models.Order
	err := locks.Retry(ctx, retryAttempts, retryBackoff, apperrors.Retryable, func() error {
		release, err := s.lockMgr.Acquire(ctx, locks.OrderKey(orderID.String()))
		if err != nil {
			return apperrors.ConcurrencyConflict("order busy: "+orderID.String(), err)
		}
		defer release()

		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFoundf("order %s not found", orderID)
			}
			return apperrors.Internal("failed to fetch order", err)
		}
		if order.Status.Terminal() {
			return apperrors.InvalidTransitionf("order %s is already %s", orderID, order.Status)
		}
		fromRank, _ := order.Status.Rank()
		if targetRank != fromRank+1 {
			return apperrors.InvalidTransitionf("cannot move order %s from %s to %s", orderID, order.Status, target)
		}

		// Debit-on-confirm: the restaurant must see committed funds before
		// it starts preparing.
		debited := false
		if target == models.OrderStatusConfirmed && order.PaymentMethod == models.PaymentMethodWallet {
			if _, err := s.walletSvc.Debit(ctx, order.CustomerID, order.FinalAmount, "payment for order "+order.OrderNumber, &order.ID); err != nil {
				return err
			}
			debited = true
		}

		extra := map[string]interface{}{}
		now := time.Now()
		switch target {
		case models.OrderStatusConfirmed:
			extra["estimated_at"] = now.Add(estimatedDeliveryWindow)
		case models.OrderStatusDelivered:
			extra["delivered_at"] = now
		}

		applied, err := s.orderRepo.TransitionStatus(ctx, orderID, order.Status, target, extra)
		if err == nil && !applied {
			err = apperrors.ConcurrencyConflict("order "+orderID.String()+" changed concurrently", nil)
		}
		if err != nil {
			// The debit landed but the status did not: reverse it so the
			// order stays in its prior state with a net-zero ledger.
			if debited {
				if _, refundErr := s.walletSvc.Refund(ctx, order.CustomerID, order.FinalAmount, order.ID); refundErr != nil {
					s.logger.Error("failed to reverse debit after transition failure",
						zap.String("order_id", orderID.String()), zap.Error(refundErr))
				}
			}
			if apperrors.KindOf(err) == apperrors.KindConcurrencyConflict {
				return err
			}
			return apperrors.Internal("failed to update order status", err)
		}

		s.publishEvent(ctx, orderID.String(), models.OrderStatusChangedEvent{
			EventType:  "order_status_changed",
			OrderID:    orderID.String(),
			FromStatus: order.Status,
			ToStatus:   target,
			Timestamp:  now,
		})

		order.Status = target
		order.UpdatedAt = now
		if target == models.OrderStatusDelivered {
			order.DeliveredAt = &now
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if target == models.OrderStatusDelivered {
		s.recordMetric(aws_pkg.MetricOrdersDelivered)
	}
	s.logger.Info("order transitioned",
		zap.String("order_id", orderID.String()),
		zap.String("status", string(target)),
	)
	return result, nil
}

// Cancel marks an order cancelled while it is still pending, confirmed or
// preparing, refunding any wallet debit already taken.
func (s *orderServiceImpl) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	var result *models.Order
	err := locks.Retry(ctx, retryAttempts, retryBackoff, apperrors.Retryable, func() error {
		release, err := s.lockMgr.Acquire(ctx, locks.OrderKey(orderID.String()))
		if err != nil {
			return apperrors.ConcurrencyConflict("order busy: "+orderID.String(), err)
		}
		defer release()

		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFoundf("order %s not found", orderID)
			}
			return apperrors.Internal("failed to fetch order", err)
		}
		switch order.Status {
		case models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusPreparing:
		default:
			return apperrors.InvalidTransitionf("order %s cannot be cancelled while %s", orderID, order.Status)
		}

		// A wallet order confirmed or later has been debited; compensate
		// before flipping the status.
		refunded := false
		fromRank, _ := order.Status.Rank()
		confirmedRank, _ := models.OrderStatusConfirmed.Rank()
		if order.PaymentMethod == models.PaymentMethodWallet && fromRank >= confirmedRank {
			if _, err := s.walletSvc.Refund(ctx, order.CustomerID, order.FinalAmount, order.ID); err != nil {
				return err
			}
			refunded = true
		}

		applied, err := s.orderRepo.TransitionStatus(ctx, orderID, order.Status, models.OrderStatusCancelled, map[string]interface{}{
			"cancel_reason": reason,
		})
		if err == nil && !applied {
			err = apperrors.ConcurrencyConflict("order "+orderID.String()+" changed concurrently", nil)
		}
		if err != nil {
			// The refund landed but the cancel did not: append the reversal
			// so the ledger nets to its prior value.
			if refunded {
				if _, debitErr := s.walletSvc.Debit(ctx, order.CustomerID, order.FinalAmount, "reversal of refund for order "+order.OrderNumber, &order.ID); debitErr != nil {
					s.logger.Error("failed to reverse refund after cancel failure",
						zap.String("order_id", orderID.String()), zap.Error(debitErr))
				}
			}
			if apperrors.KindOf(err) == apperrors.KindConcurrencyConflict {
				return err
			}
			return apperrors.Internal("failed to cancel order", err)
		}

		s.publishEvent(ctx, orderID.String(), models.OrderStatusChangedEvent{
			EventType:  "order_status_changed",
			OrderID:    orderID.String(),
			FromStatus: order.Status,
			ToStatus:   models.OrderStatusCancelled,
			Reason:     reason,
			Timestamp:  time.Now(),
		})

		order.Status = models.OrderStatusCancelled
		order.CancelReason = &reason
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordMetric(aws_pkg.MetricOrdersCancelled)
	s.logger.Info("order cancelled",
		zap.String("order_id", orderID.String()),
		zap.String("reason", reason),
	)
	return result, nil
}

// GetOrder retrieves one order with its items.
func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundf("order %s not found", orderID)
		}
		return nil, apperrors.Internal("failed to fetch order", err)
	}
	return order, nil
}

// ListCustomerOrders retrieves paginated orders for a customer.
func (s *orderServiceImpl) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, page, limit int) (*OrderListResponse, error) {
	orders, total, err := s.orderRepo.FindByCustomerID(ctx, customerID, page, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch orders", err)
	}

	return &OrderListResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}, nil
}

// publishEvent sends the event to Kafka and mirrors it to SNS, both
// best-effort: a committed state change is never rolled back because a
// broker was unreachable.
func (s *orderServiceImpl) publishEvent(ctx context.Context, key string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal order event", zap.Error(err))
		return
	}

	if s.producer != nil {
		if err := s.producer.Publish(ctx, key, data); err != nil {
			s.logger.Error("failed to publish order event to kafka", zap.String("key", key), zap.Error(err))
		}
	}
	if s.snsClient != nil && s.snsTopicArn != "" {
		if err := s.snsClient.Publish(ctx, s.snsTopicArn, data); err != nil {
			s.logger.Error("failed to publish order event to sns", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *orderServiceImpl) recordMetric(name string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	go func() {
		mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(mctx, name, map[string]string{"Service": "delivery-core"})
	}()
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
