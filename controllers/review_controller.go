package controllers

import (
	"net/http"

	"delivery-core/models"
	"delivery-core/services"

	"github.com/gin-gonic/gin"
)

// ReviewController handles HTTP requests for order reviews.
type ReviewController struct {
	reviewService services.ReviewService
}

// NewReviewController creates a new ReviewController.
func NewReviewController(reviewService services.ReviewService) *ReviewController {
	return &ReviewController{reviewService: reviewService}
}

// RecordReview handles POST /orders/:id/review.
func (rc *ReviewController) RecordReview(ctx *gin.Context) {
	orderID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	var req models.RecordReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	review, err := rc.reviewService.RecordReview(ctx.Request.Context(), orderID, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"review": review})
}
