package controllers

import (
	"net/http"

	"delivery-core/models"
	"delivery-core/services"

	"github.com/gin-gonic/gin"
)

// WalletController handles HTTP requests for wallet ledger operations.
type WalletController struct {
	walletService services.WalletService
}

// NewWalletController creates a new WalletController.
func NewWalletController(walletService services.WalletService) *WalletController {
	return &WalletController{walletService: walletService}
}

// Credit handles POST /wallets/:id/credit.
func (wc *WalletController) Credit(ctx *gin.Context) {
	userID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	var req models.CreditWalletRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	txn, err := wc.walletService.Credit(ctx.Request.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

// Debit handles POST /wallets/:id/debit.
func (wc *WalletController) Debit(ctx *gin.Context) {
	userID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	var req models.DebitWalletRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	txn, err := wc.walletService.Debit(ctx.Request.Context(), userID, req.Amount, req.Reason, nil)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

// Refund handles POST /wallets/:id/refund.
func (wc *WalletController) Refund(ctx *gin.Context) {
	userID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	var req models.RefundWalletRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	txn, err := wc.walletService.Refund(ctx.Request.Context(), userID, req.Amount, req.OrderID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

// GetBalance handles GET /wallets/:id/balance.
func (wc *WalletController) GetBalance(ctx *gin.Context) {
	userID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	balance, err := wc.walletService.GetBalance(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": balance})
}

// ListTransactions handles GET /wallets/:id/transactions.
func (wc *WalletController) ListTransactions(ctx *gin.Context) {
	userID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}
	page, limit := parsePaginationParams(ctx)

	txns, total, err := wc.walletService.ListTransactions(ctx.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// Reconcile handles GET /wallets/:id/reconcile.
func (wc *WalletController) Reconcile(ctx *gin.Context) {
	userID, ok := parseUUIDParam(ctx, "id")
	if !ok {
		return
	}

	result, err := wc.walletService.Reconcile(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	status := http.StatusOK
	if !result.Consistent {
		status = http.StatusConflict
	}
	ctx.JSON(status, result)
}
