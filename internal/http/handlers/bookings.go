package handlers

import (
	"errors"
	"net/http"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
	"ferrybook/internal/http/middleware"
	"ferrybook/internal/services"
	"ferrybook/internal/utils"

	"github.com/gin-gonic/gin"
)

// API exposes the workflow services over HTTP.
type API struct {
	Svc *services.Services
}

type createBookingRequest struct {
	CustomerID     string    `json:"customer_id"`
	RouteID        string    `json:"route_id" binding:"required"`
	FerryID        string    `json:"ferry_id" binding:"required"`
	DepartureTime  time.Time `json:"departure_time" binding:"required"`
	VehicleCount   int       `json:"vehicle_count"`
	PassengerCount int       `json:"passenger_count"`
	TotalAmount    int64     `json:"total_amount" binding:"required"`
	Currency       string    `json:"currency"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// CreateBooking runs intake and admission. A capacity denial answers 422 and
// still returns the rejected booking.
func (a API) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	actor := middleware.ActorFrom(c)
	customer := domain.ActorID(utils.TrimOrEmpty(req.CustomerID))
	if customer == "" || actor.Role == domain.RoleCustomer {
		customer = actor.Actor
	}

	b, err := a.Svc.Book(c.Request.Context(), services.CreateBookingInput{
		CustomerID:     customer,
		RouteID:        req.RouteID,
		FerryID:        req.FerryID,
		DepartureTime:  req.DepartureTime,
		VehicleCount:   req.VehicleCount,
		PassengerCount: req.PassengerCount,
		TotalAmount:    req.TotalAmount,
		Currency:       req.Currency,
	})
	if err != nil {
		var ce *domain.CapacityExceededError
		if b != nil && errors.As(err, &ce) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":      err.Error(),
				"code":       "capacity_exceeded",
				"booking":    b,
				"details":    capacityDetails(ce),
				"request_id": middleware.GetRequestID(c),
			})
			return
		}
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (a API) GetBooking(c *gin.Context) {
	b, err := a.Svc.Bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (a API) ListBookings(c *gin.Context) {
	status := models.BookingStatus(utils.NormalizeCode(c.Query("status")))
	if status == "" {
		RespondError(c, http.StatusBadRequest, "status query parameter is required", nil)
		return
	}
	list, err := a.Svc.Bookings.ListByStatus(c.Request.Context(), status)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list, "count": len(list)})
}

func (a API) RequestPayment(c *gin.Context) {
	b, err := a.Svc.Bookings.RequestPayment(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c).Actor)
	respondBooking(c, b, err)
}

func (a API) CancelBooking(c *gin.Context) {
	var req reasonRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	b, err := a.Svc.Bookings.Cancel(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c).Actor, req.Reason)
	respondBooking(c, b, err)
}

func (a API) RejectBooking(c *gin.Context) {
	var req reasonRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	b, err := a.Svc.Bookings.Reject(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c).Actor, req.Reason)
	respondBooking(c, b, err)
}

func (a API) CompleteBooking(c *gin.Context) {
	b, err := a.Svc.Bookings.Complete(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c).Actor)
	respondBooking(c, b, err)
}

func (a API) RequestRefund(c *gin.Context) {
	var req reasonRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	b, err := a.Svc.Bookings.RequestRefund(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c).Actor, req.Reason)
	respondBooking(c, b, err)
}

func (a API) ExpireOverduePayments(c *gin.Context) {
	expired, err := a.Svc.Bookings.ExpireOverduePayments(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	utils.LogEvent(middleware.GetRequestID(c), "booking", "expire_payments", "triggered over http")
	c.JSON(http.StatusOK, gin.H{"expired": expired, "count": len(expired)})
}

func (a API) BookingApproval(c *gin.Context) {
	ap, err := a.Svc.Approvals.GetByBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, ap)
}

func (a API) ETicket(c *gin.Context) {
	docs := a.Svc.Docs
	docs.RequestID = middleware.GetRequestID(c)
	data, filename, err := docs.GenerateETicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sendPDF(c, data, filename)
}

func respondBooking(c *gin.Context, b *models.Booking, err error) {
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
