package services

import (
	"context"
	"testing"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateApproval_DuplicateForBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.Bookings.Create(ctx, bookingInput(1, 1))
	require.NoError(t, err)

	first, err := f.svc.Approvals.CreateApproval(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, first.Status)

	_, err = f.svc.Approvals.CreateApproval(ctx, b.ID)
	assert.True(t, domain.IsDuplicate(err))

	all, err := f.store.ListApprovals(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateApproval_UnknownBooking(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Approvals.CreateApproval(context.Background(), "nope")
	assert.True(t, domain.IsNotFound(err))
}

func TestStartReview_SetsDeadline(t *testing.T) {
	f := newFixture(t)
	_, a := f.inReview(t)

	assert.Equal(t, models.ApprovalInReview, a.Status)
	require.NotNil(t, a.ReviewStartedAt)
	require.NotNil(t, a.ReviewDeadline)
	assert.Equal(t, testStart, *a.ReviewStartedAt)
	assert.Equal(t, testStart.Add(30*time.Minute), *a.ReviewDeadline)
	assert.Len(t, f.events.ofType(EventReviewRequired), 1)
}

func TestStartReview_RequiresPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, a := f.inReview(t)

	_, err := f.svc.Approvals.StartReview(ctx, a.ID, "emp-1")
	var ite *domain.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, "approval", ite.Entity)
	assert.Equal(t, "IN_REVIEW", ite.From)
}

func TestStartReview_RequiresPaidBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmed(t)
	a, err := f.svc.Approvals.GetByBooking(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.svc.Approvals.StartReview(ctx, a.ID, "emp-1")
	var ite *domain.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, "booking", ite.Entity)

	got, err := f.svc.Approvals.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, got.Status)
}

func TestApproveReject_RequireInReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmed(t)
	a, err := f.svc.Approvals.GetByBooking(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.svc.Approvals.Approve(ctx, a.ID, "emp-1", "")
	assert.True(t, domain.IsInvalidTransition(err))
	_, err = f.svc.Approvals.Reject(ctx, a.ID, "emp-1", "no")
	assert.True(t, domain.IsInvalidTransition(err))
}

func TestDecide_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, a := f.inReview(t)

	_, err := f.svc.Approvals.Approve(ctx, a.ID, "", "ok")
	assert.True(t, domain.IsValidation(err))
	_, err = f.svc.Approvals.Reject(ctx, a.ID, "emp-1", "")
	assert.True(t, domain.IsValidation(err))
	_, err = f.svc.Approvals.Approve(ctx, "missing", "emp-1", "")
	assert.True(t, domain.IsNotFound(err))
}

func TestOverdueReviewCanStillBeApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, a := f.inReview(t)

	f.clock.Advance(30 * time.Minute)
	overdue, err := f.svc.Approvals.Overdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue, "deadline itself is still inside the window")
	active, err := f.svc.Approvals.ActiveInWindow(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	f.clock.Advance(time.Minute)
	overdue, err = f.svc.Approvals.Overdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, a.ID, overdue[0].ID)
	active, err = f.svc.Approvals.ActiveInWindow(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	decided, err := f.svc.Approvals.Approve(ctx, a.ID, "emp-1", "late but fine")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, decided.Status)
	assert.Equal(t, domain.ActorID("emp-1"), decided.ReviewerID)
	assert.Equal(t, testStart.Add(31*time.Minute), *decided.DecidedAt)

	b, err = f.svc.Bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingInProgress, b.Status)

	overdue, err = f.svc.Approvals.Overdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestReject_MovesBookingToRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, a := f.inReview(t)

	decided, err := f.svc.Approvals.Reject(ctx, a.ID, "emp-1", "vehicle exceeds deck height")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, decided.Status)
	assert.Equal(t, "vehicle exceeds deck height", decided.Notes)

	b, err = f.svc.Bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingRejected, b.Status)
	assert.Equal(t, "vehicle exceeds deck height", b.RejectionReason)

	_, err = f.svc.Approvals.Approve(ctx, a.ID, "emp-2", "")
	assert.True(t, domain.IsInvalidTransition(err))
}

func TestStatisticsAndCounts(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ReviewWindow = 10 * time.Minute })
	f.store.SeedFerry(models.Ferry{ID: "ferry-1", CapacityVehicles: 20, CapacityPassengers: 100, Status: models.FerryActive})
	ctx := context.Background()

	f.confirmed(t)
	_, approved := f.inReview(t)
	_, err := f.svc.Approvals.Approve(ctx, approved.ID, "emp-1", "")
	require.NoError(t, err)
	_, rejected := f.inReview(t)
	_, err = f.svc.Approvals.Reject(ctx, rejected.ID, "emp-1", "no")
	require.NoError(t, err)
	_, late := f.inReview(t)
	f.clock.Advance(11 * time.Minute)
	_, fresh := f.inReview(t)

	stats, err := f.svc.Approvals.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, ApprovalStatistics{
		Total:    5,
		Pending:  1,
		InReview: 2,
		Approved: 1,
		Rejected: 1,
		Overdue:  1,
		AsOf:     testStart.Add(11 * time.Minute),
	}, stats)

	counts, err := f.svc.Approvals.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.ApprovalStatus]int{
		models.ApprovalPending:  1,
		models.ApprovalInReview: 2,
		models.ApprovalApproved: 1,
		models.ApprovalRejected: 1,
	}, counts)

	remaining, err := f.svc.Approvals.RemainingReviewTime(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, remaining)
	remaining, err = f.svc.Approvals.RemainingReviewTime(ctx, late.ID)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	notified, err := f.svc.Approvals.NotifyOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, notified, 1)
	assert.Equal(t, late.ID, notified[0].ID)
	assert.Len(t, f.events.ofType(EventApprovalOverdue), 1)

	inReview, err := f.svc.Approvals.ListByStatus(ctx, models.ApprovalInReview)
	require.NoError(t, err)
	assert.Len(t, inReview, 2)
	_, err = f.svc.Approvals.ListByStatus(ctx, "DONE")
	assert.True(t, domain.IsValidation(err))
}

func TestAutoStartReviewAfterPayment(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.AutoStartReview = true })
	ctx := context.Background()
	b := f.confirmed(t)

	_, err := f.svc.Payments.SimulatePayment(ctx, b.ID, models.MethodEWallet, "cust-1")
	require.NoError(t, err)

	b, err = f.svc.Bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingInReview, b.Status)
	a, err := f.svc.Approvals.GetByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalInReview, a.Status)
	assert.Equal(t, domain.SystemActor, b.History[len(b.History)-1].Actor)
}
