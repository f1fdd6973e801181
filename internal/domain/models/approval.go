package models

import (
	"time"

	"ferrybook/internal/domain"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalInReview ApprovalStatus = "IN_REVIEW"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

var approvalTransitions = map[ApprovalStatus][]ApprovalStatus{
	ApprovalPending:  {ApprovalInReview, ApprovalRejected},
	ApprovalInReview: {ApprovalApproved, ApprovalRejected},
	ApprovalApproved: {},
	ApprovalRejected: {},
}

var AllApprovalStatuses = []ApprovalStatus{
	ApprovalPending, ApprovalInReview, ApprovalApproved, ApprovalRejected,
}

func (s ApprovalStatus) IsValid() bool {
	_, ok := approvalTransitions[s]
	return ok
}

func (s ApprovalStatus) IsTerminal() bool {
	return len(approvalTransitions[s]) == 0
}

func (s ApprovalStatus) CanTransitionTo(to ApprovalStatus) bool {
	for _, t := range approvalTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Approval is the single review record attached to a booking.
type Approval struct {
	ID              string         `json:"id"`
	BookingID       string         `json:"booking_id"`
	Status          ApprovalStatus `json:"status"`
	ReviewStartedAt *time.Time     `json:"review_started_at,omitempty"`
	ReviewDeadline  *time.Time     `json:"review_deadline,omitempty"`
	ReviewerID      domain.ActorID `json:"reviewer_id,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	DecidedAt       *time.Time     `json:"decided_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (a *Approval) Clone() *Approval {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// TransitionTo moves the approval forward; terminal statuses never change.
func (a *Approval) TransitionTo(to ApprovalStatus, at time.Time) error {
	if !a.Status.CanTransitionTo(to) {
		rule := "approval must be " + string(requiredApprovalSource(to))
		if a.Status.IsTerminal() {
			rule = "approval already decided"
		}
		return &domain.InvalidTransitionError{
			Entity: "approval",
			ID:     a.ID,
			From:   string(a.Status),
			To:     string(to),
			Rule:   rule,
		}
	}
	a.Status = to
	a.UpdatedAt = at
	return nil
}

func requiredApprovalSource(to ApprovalStatus) ApprovalStatus {
	if to == ApprovalInReview {
		return ApprovalPending
	}
	return ApprovalInReview
}

// IsOverdue is true while the review is open and now is past the deadline.
func (a *Approval) IsOverdue(now time.Time) bool {
	return a.Status == ApprovalInReview && a.ReviewDeadline != nil && now.After(*a.ReviewDeadline)
}

// IsActiveInWindow is true while the review is open and the deadline has not passed.
func (a *Approval) IsActiveInWindow(now time.Time) bool {
	return a.Status == ApprovalInReview && a.ReviewDeadline != nil && !now.After(*a.ReviewDeadline)
}

// RemainingReviewTime is zero once the deadline has passed or the review is closed.
func (a *Approval) RemainingReviewTime(now time.Time) time.Duration {
	if a.Status != ApprovalInReview || a.ReviewDeadline == nil {
		return 0
	}
	if d := a.ReviewDeadline.Sub(now); d > 0 {
		return d
	}
	return 0
}
