package models

import (
	"testing"
	"time"

	"ferrybook/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingTransitionTable(t *testing.T) {
	allowed := map[BookingStatus][]BookingStatus{
		BookingPending:           {BookingConfirmed, BookingRejected},
		BookingConfirmed:         {BookingWaitingForPayment, BookingCancelled},
		BookingWaitingForPayment: {BookingPaid, BookingCancelled},
		BookingPaid:              {BookingInReview, BookingCancelled, BookingInRefund},
		BookingInReview:          {BookingInProgress, BookingRejected, BookingCancelled},
		BookingInProgress:        {BookingCompleted, BookingInRefund},
		BookingInRefund:          {BookingRefunded},
	}
	for _, from := range AllBookingStatuses {
		for _, to := range AllBookingStatuses {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)

			err := ValidateBookingTransition("b-1", from, to)
			if want {
				assert.NoError(t, err)
				continue
			}
			var ite *domain.InvalidTransitionError
			if assert.ErrorAs(t, err, &ite) {
				assert.Equal(t, string(from), ite.From)
				assert.Equal(t, string(to), ite.To)
				assert.NotEmpty(t, ite.Rule)
			}
		}
	}
}

func TestBookingTerminalStatuses(t *testing.T) {
	for _, s := range AllBookingStatuses {
		switch s {
		case BookingCompleted, BookingRejected, BookingCancelled, BookingRefunded:
			assert.True(t, s.IsTerminal(), s)
		default:
			assert.False(t, s.IsTerminal(), s)
		}
	}
	assert.False(t, BookingStatus("LOST").IsValid())
}

func TestHoldsCapacityMatchesCommittedSet(t *testing.T) {
	held := 0
	for _, s := range AllBookingStatuses {
		if s.HoldsCapacity() {
			held++
			assert.Contains(t, CapacityCommittedStatuses, s)
		}
	}
	assert.Equal(t, len(CapacityCommittedStatuses), held)
}

func TestBookingTransitionStampsOnce(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	b := &Booking{ID: "b-1", Status: BookingPending}

	require.NoError(t, b.TransitionTo(BookingConfirmed, "cust-1", "", t0))
	require.NotNil(t, b.ConfirmedAt)
	assert.Equal(t, t0, *b.ConfirmedAt)
	assert.Equal(t, t0, b.UpdatedAt)

	err := b.TransitionTo(BookingCompleted, "cust-1", "", t0.Add(time.Hour))
	assert.True(t, domain.IsInvalidTransition(err))
	assert.Equal(t, BookingConfirmed, b.Status)
	assert.Len(t, b.History, 1)

	require.NoError(t, b.TransitionTo(BookingCancelled, "cust-1", "bye", t0.Add(2*time.Hour)))
	assert.Equal(t, StatusChange{At: t0.Add(2 * time.Hour), From: BookingConfirmed, To: BookingCancelled, Actor: "cust-1", Note: "bye"}, b.History[1])
}

func TestBookingCloneDoesNotAliasHistory(t *testing.T) {
	b := &Booking{ID: "b-1", Status: BookingPending}
	require.NoError(t, b.TransitionTo(BookingConfirmed, "", "", time.Now()))
	c := b.Clone()
	c.History[0].Note = "changed"
	assert.Empty(t, b.History[0].Note)
	assert.Equal(t, "2025-03-01", DateKey(time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)))
}

func TestApprovalTransitionsAndWindow(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(30 * time.Minute)
	a := &Approval{ID: "a-1", Status: ApprovalPending}

	err := a.TransitionTo(ApprovalApproved, start)
	var ite *domain.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, "approval must be IN_REVIEW", ite.Rule)

	require.NoError(t, a.TransitionTo(ApprovalInReview, start))
	a.ReviewStartedAt, a.ReviewDeadline = &start, &deadline

	assert.True(t, a.IsActiveInWindow(deadline))
	assert.False(t, a.IsOverdue(deadline))
	assert.True(t, a.IsOverdue(deadline.Add(time.Second)))
	assert.Equal(t, 10*time.Minute, a.RemainingReviewTime(start.Add(20*time.Minute)))
	assert.Zero(t, a.RemainingReviewTime(deadline.Add(time.Minute)))

	require.NoError(t, a.TransitionTo(ApprovalRejected, start.Add(time.Hour)))
	assert.False(t, a.IsOverdue(deadline.Add(time.Hour)))
	err = a.TransitionTo(ApprovalApproved, start.Add(2*time.Hour))
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, "approval already decided", ite.Rule)
}

func TestPaymentRefundRules(t *testing.T) {
	p := &Payment{ID: "p-1", Amount: 10000, Status: PaymentProcessing}
	assert.False(t, p.CanBeRefunded())
	assert.Zero(t, p.RefundableAmount())

	require.NoError(t, p.TransitionTo(PaymentCompleted, time.Now()))
	assert.True(t, p.CanBeRefunded())
	assert.Equal(t, int64(10000), p.RefundableAmount())

	p.AppendNote("first")
	p.AppendNote("")
	p.AppendNote("second")
	assert.Equal(t, "first | second", p.Notes)

	require.NoError(t, p.TransitionTo(PaymentPartiallyRefunded, time.Now()))
	p.RefundAmount = 4000
	assert.False(t, p.CanBeRefunded())
	assert.Equal(t, int64(6000), p.RefundableAmount())
	assert.True(t, domain.IsInvalidTransition(p.TransitionTo(PaymentRefunded, time.Now())))

	assert.True(t, MethodEWallet.IsValid())
	assert.False(t, PaymentMethod("CHEQUE").IsValid())
}

func TestTravelDatePrefersStoredDay(t *testing.T) {
	b := &Booking{DepartureTime: time.Date(2025, 2, 28, 22, 0, 0, 0, time.UTC)}
	assert.Equal(t, "2025-02-28", b.TravelDate())
	b.TravelDay = "2025-03-01"
	assert.Equal(t, "2025-03-01", b.TravelDate())
}
