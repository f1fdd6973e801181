package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ferrybook/internal/clock"
	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
	"ferrybook/internal/repositories"
	"ferrybook/internal/utils"
)

// ApprovalService runs the review attached to each booking. Decisions drive
// the booking transition in the same unit of work as the approval write.
type ApprovalService struct {
	store    repositories.Store
	clock    clock.Clock
	notifier Notifier
	cfg      Config
	locks    *utils.KeyedMutex
}

// ApprovalStatistics is a point-in-time snapshot, computed on every call.
type ApprovalStatistics struct {
	Total    int       `json:"total"`
	Pending  int       `json:"pending"`
	InReview int       `json:"in_review"`
	Approved int       `json:"approved"`
	Rejected int       `json:"rejected"`
	Overdue  int       `json:"overdue"`
	AsOf     time.Time `json:"as_of"`
}

// CreateApproval opens the single PENDING approval for a booking. A second
// call for the same booking fails with *domain.DuplicateResourceError.
func (s *ApprovalService) CreateApproval(ctx context.Context, bookingID string) (*models.Approval, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	a := &models.Approval{
		ID:        utils.NewID(),
		BookingID: b.ID,
		Status:    models.ApprovalPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateApproval(ctx, a); err != nil {
		return nil, err
	}
	utils.LogEvent("", "approval", "create", fmt.Sprintf("approval_id=%s booking_id=%s", a.ID, b.ID))
	return a, nil
}

func (s *ApprovalService) Get(ctx context.Context, id string) (*models.Approval, error) {
	return s.store.GetApproval(ctx, id)
}

func (s *ApprovalService) GetByBooking(ctx context.Context, bookingID string) (*models.Approval, error) {
	return s.store.GetApprovalByBooking(ctx, bookingID)
}

// StartReview moves a PENDING approval to IN_REVIEW and its PAID booking to
// IN_REVIEW. The deadline is the start time plus the review window.
func (s *ApprovalService) StartReview(ctx context.Context, approvalID string, actor domain.ActorID) (*models.Approval, error) {
	a, err := s.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(a.BookingID)
	defer unlock()
	return s.startReviewLocked(ctx, approvalID, actor)
}

// StartReviewForBooking is StartReview addressed by booking. The approval is
// created first when the booking does not have one yet.
func (s *ApprovalService) StartReviewForBooking(ctx context.Context, bookingID string, actor domain.ActorID) (*models.Approval, error) {
	unlock := s.locks.Lock(bookingID)
	defer unlock()
	return s.startReviewForBookingLocked(ctx, bookingID, actor)
}

func (s *ApprovalService) startReviewForBookingLocked(ctx context.Context, bookingID string, actor domain.ActorID) (*models.Approval, error) {
	a, err := s.store.GetApprovalByBooking(ctx, bookingID)
	if domain.IsNotFound(err) {
		a, err = s.CreateApproval(ctx, bookingID)
		if domain.IsDuplicate(err) {
			a, err = s.store.GetApprovalByBooking(ctx, bookingID)
		}
	}
	if err != nil {
		return nil, err
	}
	return s.startReviewLocked(ctx, a.ID, actor)
}

func (s *ApprovalService) startReviewLocked(ctx context.Context, approvalID string, actor domain.ActorID) (*models.Approval, error) {
	a, err := s.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetBooking(ctx, a.BookingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	approvalFrom, bookingFrom := a.Status, b.Status
	if err := a.TransitionTo(models.ApprovalInReview, now); err != nil {
		return nil, err
	}
	if err := b.TransitionTo(models.BookingInReview, actor, "review started", now); err != nil {
		return nil, err
	}
	deadline := now.Add(s.cfg.ReviewWindow)
	a.ReviewStartedAt = &now
	a.ReviewDeadline = &deadline

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateApproval(ctx, a, approvalFrom); err != nil {
			return err
		}
		return s.store.UpdateBooking(ctx, b, bookingFrom)
	})
	if err != nil {
		return nil, err
	}

	utils.LogEvent("", "approval", "start_review",
		fmt.Sprintf("approval_id=%s booking_id=%s deadline=%s", a.ID, b.ID, utils.FormatDateTime(deadline)))
	s.notifier.Notify(ctx, Event{
		Type:      EventReviewRequired,
		BookingID: b.ID,
		Actor:     actor,
		At:        now,
		Detail:    "deadline " + deadline.Format(time.RFC3339),
	})
	s.notifier.Notify(ctx, Event{
		Type:      EventBookingStatusChanged,
		BookingID: b.ID,
		From:      string(bookingFrom),
		To:        string(b.Status),
		Actor:     actor,
		At:        now,
	})
	return a, nil
}

// Approve grants an IN_REVIEW approval and moves the booking to IN_PROGRESS.
// An overdue review can still be approved.
func (s *ApprovalService) Approve(ctx context.Context, approvalID string, approver domain.ActorID, notes string) (*models.Approval, error) {
	return s.decide(ctx, approvalID, approver, notes, models.ApprovalApproved, models.BookingInProgress)
}

// Reject declines an IN_REVIEW approval and moves the booking to REJECTED.
func (s *ApprovalService) Reject(ctx context.Context, approvalID string, rejector domain.ActorID, reason string) (*models.Approval, error) {
	if utils.NormalizeSpace(reason) == "" {
		return nil, domain.ValidationError{Field: "reason", Msg: "required"}
	}
	return s.decide(ctx, approvalID, rejector, reason, models.ApprovalRejected, models.BookingRejected)
}

func (s *ApprovalService) decide(ctx context.Context, approvalID string, reviewer domain.ActorID, notes string,
	to models.ApprovalStatus, bookingTo models.BookingStatus) (*models.Approval, error) {
	if strings.TrimSpace(string(reviewer)) == "" {
		return nil, domain.ValidationError{Field: "reviewer_id", Msg: "required"}
	}
	notes = utils.NormalizeSpace(notes)

	a, err := s.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(a.BookingID)
	defer unlock()

	if a, err = s.store.GetApproval(ctx, approvalID); err != nil {
		return nil, err
	}
	b, err := s.store.GetBooking(ctx, a.BookingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	overdue := a.IsOverdue(now)
	approvalFrom, bookingFrom := a.Status, b.Status
	if a.Status == models.ApprovalPending {
		// A PENDING approval is only rejected by the booking leaving the flow.
		return nil, &domain.InvalidTransitionError{
			Entity: "approval",
			ID:     a.ID,
			From:   string(a.Status),
			To:     string(to),
			Rule:   "approval must be IN_REVIEW",
		}
	}
	if err := a.TransitionTo(to, now); err != nil {
		return nil, err
	}
	if err := b.TransitionTo(bookingTo, reviewer, notes, now); err != nil {
		return nil, err
	}
	a.ReviewerID = reviewer
	a.Notes = appendNote(a.Notes, notes)
	a.DecidedAt = &now
	if to == models.ApprovalRejected {
		b.RejectionReason = notes
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateApproval(ctx, a, approvalFrom); err != nil {
			return err
		}
		return s.store.UpdateBooking(ctx, b, bookingFrom)
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("approval_id=%s booking_id=%s decision=%s by=%s", a.ID, b.ID, to, reviewer)
	if overdue {
		msg += " after deadline"
	}
	utils.LogEvent("", "approval", "decide", msg)
	s.notifier.Notify(ctx, Event{
		Type:      EventBookingStatusChanged,
		BookingID: b.ID,
		From:      string(bookingFrom),
		To:        string(b.Status),
		Actor:     reviewer,
		At:        now,
		Detail:    notes,
	})
	return a, nil
}

func (s *ApprovalService) ListByStatus(ctx context.Context, status models.ApprovalStatus) ([]*models.Approval, error) {
	if !status.IsValid() {
		return nil, domain.ValidationError{Field: "status", Msg: "unknown approval status " + string(status)}
	}
	return s.store.ListApprovalsByStatus(ctx, status)
}

// Overdue lists reviews still IN_REVIEW whose deadline has passed.
func (s *ApprovalService) Overdue(ctx context.Context) ([]*models.Approval, error) {
	return s.filterInReview(ctx, func(a *models.Approval, now time.Time) bool { return a.IsOverdue(now) })
}

// ActiveInWindow lists reviews still IN_REVIEW whose deadline has not passed.
func (s *ApprovalService) ActiveInWindow(ctx context.Context) ([]*models.Approval, error) {
	return s.filterInReview(ctx, func(a *models.Approval, now time.Time) bool { return a.IsActiveInWindow(now) })
}

func (s *ApprovalService) filterInReview(ctx context.Context, keep func(a *models.Approval, now time.Time) bool) ([]*models.Approval, error) {
	list, err := s.store.ListApprovalsByStatus(ctx, models.ApprovalInReview)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]*models.Approval, 0, len(list))
	for _, a := range list {
		if keep(a, now) {
			out = append(out, a)
		}
	}
	return out, nil
}

// CountByStatus reports every approval status, including those with zero records.
func (s *ApprovalService) CountByStatus(ctx context.Context) (map[models.ApprovalStatus]int, error) {
	list, err := s.store.ListApprovals(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[models.ApprovalStatus]int, len(models.AllApprovalStatuses))
	for _, st := range models.AllApprovalStatuses {
		counts[st] = 0
	}
	for _, a := range list {
		counts[a.Status]++
	}
	return counts, nil
}

func (s *ApprovalService) Statistics(ctx context.Context) (ApprovalStatistics, error) {
	list, err := s.store.ListApprovals(ctx)
	if err != nil {
		return ApprovalStatistics{}, err
	}
	now := s.clock.Now()
	st := ApprovalStatistics{Total: len(list), AsOf: now}
	for _, a := range list {
		switch a.Status {
		case models.ApprovalPending:
			st.Pending++
		case models.ApprovalInReview:
			st.InReview++
			if a.IsOverdue(now) {
				st.Overdue++
			}
		case models.ApprovalApproved:
			st.Approved++
		case models.ApprovalRejected:
			st.Rejected++
		}
	}
	return st, nil
}

// RemainingReviewTime is zero for closed or overdue reviews.
func (s *ApprovalService) RemainingReviewTime(ctx context.Context, approvalID string) (time.Duration, error) {
	a, err := s.store.GetApproval(ctx, approvalID)
	if err != nil {
		return 0, err
	}
	return a.RemainingReviewTime(s.clock.Now()), nil
}

// NotifyOverdue emits an escalation event for every overdue review. It is
// meant to be polled by an external scheduler.
func (s *ApprovalService) NotifyOverdue(ctx context.Context) ([]*models.Approval, error) {
	overdue, err := s.Overdue(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for _, a := range overdue {
		s.notifier.Notify(ctx, Event{
			Type:      EventApprovalOverdue,
			BookingID: a.BookingID,
			Actor:     domain.SystemActor,
			At:        now,
			Detail:    fmt.Sprintf("approval %s overdue since %s", a.ID, a.ReviewDeadline.Format(time.RFC3339)),
		})
	}
	if len(overdue) > 0 {
		utils.LogWarn("", "approval", "overdue", fmt.Sprintf("count=%d", len(overdue)))
	}
	return overdue, nil
}
