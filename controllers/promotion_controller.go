package controllers

import (
	"net/http"
	"time"

	"delivery-core/models"
	"delivery-core/services"

	"github.com/gin-gonic/gin"
)

// PromotionController handles HTTP requests for promotion operations.
type PromotionController struct {
	promotionService services.PromotionService
}

// NewPromotionController creates a new PromotionController.
func NewPromotionController(promotionService services.PromotionService) *PromotionController {
	return &PromotionController{promotionService: promotionService}
}

// CreatePromotion handles POST /promotions.
func (pc *PromotionController) CreatePromotion(ctx *gin.Context) {
	var req models.CreatePromotionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	promo, err := pc.promotionService.CreatePromotion(ctx.Request.Context(), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"promotion": promo})
}

// ValidatePromotion handles POST /promotions/validate.
func (pc *PromotionController) ValidatePromotion(ctx *gin.Context) {
	var req models.ValidatePromotionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, err := pc.promotionService.Validate(ctx.Request.Context(), &req, time.Now())
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

// RedeemPromotion handles POST /promotions/:id/redeem.
func (pc *PromotionController) RedeemPromotion(ctx *gin.Context) {
	promoID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	if err := pc.promotionService.Redeem(ctx.Request.Context(), promoID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Promotion redeemed"})
}

// DeactivatePromotion handles DELETE /promotions/:code.
func (pc *PromotionController) DeactivatePromotion(ctx *gin.Context) {
	code := ctx.Param("code")
	if code == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Promotion code is required"})
		return
	}

	if err := pc.promotionService.Deactivate(ctx.Request.Context(), code); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Promotion deactivated"})
}
