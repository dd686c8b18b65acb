package controllers

import (
	"net/http"

	"delivery-core/models"
	"delivery-core/services"

	"github.com/gin-gonic/gin"
)

// DeliveryController handles HTTP requests for delivery tracking.
type DeliveryController struct {
	deliveryService services.DeliveryService
}

// NewDeliveryController creates a new DeliveryController.
func NewDeliveryController(deliveryService services.DeliveryService) *DeliveryController {
	return &DeliveryController{deliveryService: deliveryService}
}

// AssignDelivery handles POST /deliveries.
func (dc *DeliveryController) AssignDelivery(ctx *gin.Context) {
	var req models.AssignDeliveryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	tracking, err := dc.deliveryService.Assign(ctx.Request.Context(), req.OrderID, req.WorkerID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"tracking": tracking})
}

// AdvanceDelivery handles PATCH /deliveries/:id/status.
func (dc *DeliveryController) AdvanceDelivery(ctx *gin.Context) {
	trackingID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	var req models.AdvanceDeliveryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	tracking, err := dc.deliveryService.Advance(ctx.Request.Context(), trackingID, req.Status, req.Latitude, req.Longitude)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tracking": tracking})
}

// GetDeliveryByOrder handles GET /orders/:id/delivery.
func (dc *DeliveryController) GetDeliveryByOrder(ctx *gin.Context) {
	orderID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	tracking, err := dc.deliveryService.GetByOrderID(ctx.Request.Context(), orderID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tracking": tracking})
}
