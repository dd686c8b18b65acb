package controllers

import (
	"net/http"
	"strconv"

	apperrors "delivery-core/common/errors"
	"delivery-core/common/logger"
	"delivery-core/models"
	"delivery-core/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderController handles HTTP requests for order operations.
type OrderController struct {
	orderService services.OrderService
}

// NewOrderController creates a new OrderController.
func NewOrderController(orderService services.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// PlaceOrder handles POST /orders.
func (oc *OrderController) PlaceOrder(ctx *gin.Context) {
	var req models.PlaceOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, err := oc.orderService.PlaceOrder(ctx.Request.Context(), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"order": order})
}

// TransitionOrder handles PATCH /orders/:id/status.
func (oc *OrderController) TransitionOrder(ctx *gin.Context) {
	orderID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	var req models.TransitionOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, err := oc.orderService.Transition(ctx.Request.Context(), orderID, req.Status)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder handles POST /orders/:id/cancel.
func (oc *OrderController) CancelOrder(ctx *gin.Context) {
	orderID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	var req models.CancelOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, err := oc.orderService.Cancel(ctx.Request.Context(), orderID, req.Reason)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// GetOrder handles GET /orders/:id.
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	orderID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	order, err := oc.orderService.GetOrder(ctx.Request.Context(), orderID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// ListCustomerOrders handles GET /customers/:id/orders.
func (oc *OrderController) ListCustomerOrders(ctx *gin.Context) {
	customerID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}
	page, limit := parsePaginationParams(ctx)

	resp, err := oc.orderService.ListCustomerOrders(ctx.Request.Context(), customerID, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

// respondError maps a service error onto its HTTP status. Internal errors
// are logged with the request id before the response goes out.
func respondError(ctx *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "request failed", err,
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
		)
	}
	ctx.JSON(status, gin.H{
		"error": err.Error(),
		"kind":  apperrors.KindOf(err),
	})
}

// parseUUIDParam reads a UUID path param, writing a 400 on failure.
func parseUUIDParam(ctx *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format"})
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 10

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "10")); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}

	return pageInt, limitInt
}
