package handlers

import (
	"net/http"
	"time"

	"ferrybook/internal/domain/models"
	"ferrybook/internal/http/middleware"
	"ferrybook/internal/utils"

	"github.com/gin-gonic/gin"
)

type decisionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

type approvalView struct {
	*models.Approval
	Overdue          bool  `json:"overdue"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

func (a API) ListApprovals(c *gin.Context) {
	status := models.ApprovalStatus(utils.NormalizeCode(c.DefaultQuery("status", string(models.ApprovalInReview))))
	list, err := a.Svc.Approvals.ListByStatus(c.Request.Context(), status)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approvals": list, "count": len(list)})
}

func (a API) OverdueApprovals(c *gin.Context) {
	list, err := a.Svc.Approvals.Overdue(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approvals": list, "count": len(list)})
}

func (a API) ActiveApprovals(c *gin.Context) {
	list, err := a.Svc.Approvals.ActiveInWindow(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approvals": list, "count": len(list)})
}

func (a API) ApprovalStatistics(c *gin.Context) {
	stats, err := a.Svc.Approvals.Statistics(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	counts, err := a.Svc.Approvals.CountByStatus(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statistics": stats, "by_status": counts})
}

func (a API) NotifyOverdue(c *gin.Context) {
	list, err := a.Svc.Approvals.NotifyOverdue(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notified": len(list)})
}

func (a API) GetApproval(c *gin.Context) {
	ap, err := a.Svc.Approvals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	remaining, err := a.Svc.Approvals.RemainingReviewTime(c.Request.Context(), ap.ID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, approvalView{
		Approval:         ap,
		Overdue:          ap.Status == models.ApprovalInReview && remaining == 0,
		RemainingSeconds: int64(remaining / time.Second),
	})
}

func (a API) StartReview(c *gin.Context) {
	ap, err := a.Svc.Approvals.StartReview(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c).Actor)
	respondApproval(c, ap, err)
}

func (a API) ApproveApproval(c *gin.Context) {
	var req decisionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	ap, err := a.Svc.Approvals.Approve(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c).Actor, req.Notes)
	respondApproval(c, ap, err)
}

func (a API) RejectApproval(c *gin.Context) {
	var req decisionRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = req.Notes
	}
	ap, err := a.Svc.Approvals.Reject(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c).Actor, reason)
	respondApproval(c, ap, err)
}

func respondApproval(c *gin.Context, ap *models.Approval, err error) {
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, ap)
}
