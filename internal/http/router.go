package api

import (
	stdhttp "net/http"

	intconfig "ferrybook/internal/config"
	"ferrybook/internal/domain"
	h "ferrybook/internal/http/handlers"
	"ferrybook/internal/http/middleware"
	"ferrybook/internal/services"
	"ferrybook/internal/utils"

	"github.com/gin-gonic/gin"
)

func NewRouter(env intconfig.Env, svc *services.Services) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.LogWarn("", "http", "trusted_proxies", err.Error())
	}

	r.OPTIONS("/*path", func(c *gin.Context) { c.AbortWithStatus(stdhttp.StatusNoContent) })

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	a := h.API{Svc: svc}
	staff := middleware.RequireRoles(domain.RoleEmployee, domain.RoleAdmin)

	public := r.Group("/api")
	public.GET("/health", h.Health)
	public.GET("/routes", h.Routes)

	api := r.Group("/api", middleware.Auth(env.JWTSecret))
	{
		// Bookings
		bookings := api.Group("/bookings")
		bookings.POST("", a.CreateBooking)
		bookings.GET("", a.ListBookings)
		bookings.POST("/expire-payments", middleware.RequireRoles(domain.RoleAdmin), a.ExpireOverduePayments)
		bookings.GET("/:id", a.GetBooking)
		bookings.POST("/:id/request-payment", a.RequestPayment)
		bookings.POST("/:id/cancel", a.CancelBooking)
		bookings.POST("/:id/refund-request", a.RequestRefund)
		bookings.POST("/:id/complete", staff, a.CompleteBooking)
		bookings.POST("/:id/reject", staff, a.RejectBooking)
		bookings.GET("/:id/payments", a.BookingPayments)
		bookings.POST("/:id/payments", a.PayBooking)
		bookings.GET("/:id/approval", a.BookingApproval)
		bookings.GET("/:id/eticket", a.ETicket)

		// Payments
		payments := api.Group("/payments")
		payments.GET("/by-number/:number", a.GetPaymentByNumber)
		payments.GET("/:id", a.GetPayment)
		payments.POST("/:id/cancel", a.CancelPayment)
		payments.POST("/:id/refund", staff, a.RefundPayment)
		payments.GET("/:id/receipt", a.RefundReceipt)

		// Approvals
		approvals := api.Group("/approvals", staff)
		approvals.GET("", a.ListApprovals)
		approvals.GET("/overdue", a.OverdueApprovals)
		approvals.GET("/active", a.ActiveApprovals)
		approvals.GET("/stats", a.ApprovalStatistics)
		approvals.POST("/notify-overdue", a.NotifyOverdue)
		approvals.GET("/:id", a.GetApproval)
		approvals.POST("/:id/start-review", a.StartReview)
		approvals.POST("/:id/approve", a.ApproveApproval)
		approvals.POST("/:id/reject", a.RejectApproval)

		// Ferries
		api.GET("/ferries/:id/utilization", a.FerryUtilization)
	}

	h.SetRouter(r)
	return r
}
