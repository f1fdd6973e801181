package handlers

import (
	"net/http"

	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
	"ferrybook/internal/http/middleware"
	"ferrybook/internal/utils"

	"github.com/gin-gonic/gin"
)

type paymentRequest struct {
	// Amount in minor units; zero pays the booking total.
	Amount        int64  `json:"amount"`
	AmountDecimal string `json:"amount_decimal"`
	Method        string `json:"method" binding:"required"`
}

type refundRequest struct {
	Reason string `json:"reason"`
	// Amount in minor units; zero refunds everything refundable.
	Amount        int64  `json:"amount"`
	AmountDecimal string `json:"amount_decimal"`
}

// resolveAmount accepts minor units or a decimal string such as "450000.00".
func resolveAmount(minor int64, decimal string) (int64, error) {
	if decimal = utils.TrimOrEmpty(decimal); decimal == "" {
		return minor, nil
	}
	v, err := utils.ParseMinor(decimal)
	if err != nil {
		return 0, domain.ValidationError{Field: "amount_decimal", Msg: err.Error()}
	}
	return v, nil
}

// PayBooking runs one payment attempt. A declined attempt is still a 201 with
// the FAILED payment in the body.
func (a API) PayBooking(c *gin.Context) {
	var req paymentRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	amount, err := resolveAmount(req.Amount, req.AmountDecimal)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	actor := middleware.ActorFrom(c).Actor
	method := models.PaymentMethod(utils.NormalizeCode(req.Method))

	var p *models.Payment
	if amount == 0 {
		p, err = a.Svc.Payments.SimulatePayment(c.Request.Context(), c.Param("id"), method, actor)
	} else {
		p, err = a.Svc.Payments.ProcessPayment(c.Request.Context(), c.Param("id"), amount, method, actor)
	}
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a API) BookingPayments(c *gin.Context) {
	list, err := a.Svc.Payments.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list, "count": len(list)})
}

func (a API) GetPayment(c *gin.Context) {
	p, err := a.Svc.Payments.Lookup(c.Request.Context(), c.Param("id"))
	respondPayment(c, p, err)
}

func (a API) GetPaymentByNumber(c *gin.Context) {
	p, err := a.Svc.Payments.LookupByNumber(c.Request.Context(), c.Param("number"))
	respondPayment(c, p, err)
}

func (a API) RefundPayment(c *gin.Context) {
	var req refundRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	amount, err := resolveAmount(req.Amount, req.AmountDecimal)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	actor := middleware.ActorFrom(c).Actor
	var p *models.Payment
	if amount > 0 {
		p, err = a.Svc.Payments.RefundPartial(c.Request.Context(), c.Param("id"), amount, req.Reason, actor)
	} else {
		p, err = a.Svc.Payments.Refund(c.Request.Context(), c.Param("id"), req.Reason, actor)
	}
	respondPayment(c, p, err)
}

func (a API) CancelPayment(c *gin.Context) {
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	p, err := a.Svc.Payments.CancelPending(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c).Actor, req.Reason)
	respondPayment(c, p, err)
}

func (a API) RefundReceipt(c *gin.Context) {
	docs := a.Svc.Docs
	docs.RequestID = middleware.GetRequestID(c)
	data, filename, err := docs.GenerateRefundReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sendPDF(c, data, filename)
}

func respondPayment(c *gin.Context, p *models.Payment, err error) {
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
