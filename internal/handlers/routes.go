package handlers

import (
	"github.com/gin-gonic/gin"

	"tripmate/internal/middleware"
)

// Register подключает все API роуты. auth проверяет токен пользователя;
// колбэки шлюза идут без него.
func (h *Handlers) Register(router gin.IRouter, auth gin.HandlerFunc) {
	api := router.Group("/api")

	// Колбэки платежного шлюза (form-encoded, без авторизации)
	callbacks := api.Group("/payments")
	{
		callbacks.POST("/success", h.PaymentSuccess)
		callbacks.POST("/fail", h.PaymentFail)
		callbacks.POST("/cancel", h.PaymentCancel)
		callbacks.POST("/ipn", h.PaymentIPN)
	}

	authed := api.Group("", auth)
	{
		plans := authed.Group("/plans")
		{
			plans.POST("", h.CreatePlan)
			plans.GET("", h.SearchPlans)
			plans.GET("/mine", h.ListMyPlans)
			plans.GET("/:id", h.GetPlan)
			plans.PUT("/:id", h.UpdatePlan)
			plans.DELETE("/:id", h.DeletePlan)
			plans.POST("/:id/interest", h.ExpressInterest)
			plans.DELETE("/:id/interest", h.WithdrawInterest)
			plans.POST("/:id/agree", h.AgreeToPlan)
			plans.POST("/:id/pay", h.PayForPlan)
		}

		trips := authed.Group("/trips")
		{
			trips.GET("", h.ListTrips)
			trips.GET("/:id", h.GetTrip)
			trips.POST("/:id/join", h.JoinTrip)
			trips.POST("/:id/leave", h.LeaveTrip)
			trips.POST("/:id/pay", h.PayForTrip)
			trips.GET("/:id/refund", h.RefundStatus)
			trips.POST("/:id/refund", h.RequestRefund)
		}

		authed.GET("/payments/history", h.PaymentHistory)

		admin := authed.Group("/admin", middleware.RequireStaff())
		{
			admin.POST("/plans/:id/finalize", h.FinalizePlan)
			admin.POST("/plans/:id/reject", h.RejectPlan)
			admin.POST("/sweep", h.RunSweep)
			admin.GET("/payments/:tran_id", h.QueryPayment)
		}
	}
}
