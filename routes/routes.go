package routes

import (
	"delivery-core/controllers"

	"github.com/gin-gonic/gin"
)

// Register sets up all engine routes on the router.
func Register(
	r *gin.Engine,
	oc *controllers.OrderController,
	wc *controllers.WalletController,
	pc *controllers.PromotionController,
	dc *controllers.DeliveryController,
	rc *controllers.ReviewController,
) {
	orders := r.Group("/orders")
	orders.POST("", oc.PlaceOrder)
	orders.GET("/:id", oc.GetOrder)
	orders.PATCH("/:id/status", oc.TransitionOrder)
	orders.POST("/:id/cancel", oc.CancelOrder)
	orders.GET("/:id/delivery", dc.GetDeliveryByOrder)
	orders.POST("/:id/review", rc.RecordReview)

	r.GET("/customers/:id/orders", oc.ListCustomerOrders)

	wallets := r.Group("/wallets")
	wallets.POST("/:id/credit", wc.Credit)
	wallets.POST("/:id/debit", wc.Debit)
	wallets.POST("/:id/refund", wc.Refund)
	wallets.GET("/:id/balance", wc.GetBalance)
	wallets.GET("/:id/transactions", wc.ListTransactions)
	wallets.GET("/:id/reconcile", wc.Reconcile)

	promotions := r.Group("/promotions")
	promotions.POST("", pc.CreatePromotion)
	promotions.POST("/validate", pc.ValidatePromotion)
	promotions.POST("/:id/redeem", pc.RedeemPromotion)
	promotions.DELETE("/:code", pc.DeactivatePromotion)

	deliveries := r.Group("/deliveries")
	deliveries.POST("", dc.AssignDelivery)
	deliveries.PATCH("/:id/status", dc.AdvanceDelivery)
}
