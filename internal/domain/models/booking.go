package models

import (
	"time"

	"ferrybook/internal/domain"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending           BookingStatus = "PENDING"
	BookingConfirmed         BookingStatus = "CONFIRMED"
	BookingRejected          BookingStatus = "REJECTED"
	BookingWaitingForPayment BookingStatus = "WAITING_FOR_PAYMENT"
	BookingPaid              BookingStatus = "PAID"
	BookingInReview          BookingStatus = "IN_REVIEW"
	BookingInProgress        BookingStatus = "IN_PROGRESS"
	BookingCompleted         BookingStatus = "COMPLETED"
	BookingCancelled         BookingStatus = "CANCELLED"
	BookingRefunded          BookingStatus = "REFUNDED"
	BookingInRefund          BookingStatus = "IN_REFUND"
)

type bookingRule struct {
	to   BookingStatus
	rule string
}

// bookingTransitions is the complete transition table. Any pair missing here
// is rejected.
var bookingTransitions = map[BookingStatus][]bookingRule{
	BookingPending: {
		{BookingConfirmed, "capacity admitted"},
		{BookingRejected, "capacity denied or business rule failure"},
	},
	BookingConfirmed: {
		{BookingWaitingForPayment, "payment requested"},
		{BookingCancelled, "explicit cancellation"},
	},
	BookingWaitingForPayment: {
		{BookingPaid, "completed payment covers total"},
		{BookingCancelled, "payment deadline elapsed or customer cancelled"},
	},
	BookingPaid: {
		{BookingInReview, "review started"},
		{BookingCancelled, "explicit cancellation"},
		{BookingInRefund, "refund requested"},
	},
	BookingInReview: {
		{BookingInProgress, "approval granted"},
		{BookingRejected, "approval rejected"},
		{BookingCancelled, "explicit cancellation"},
	},
	BookingInProgress: {
		{BookingCompleted, "arrival confirmed"},
		{BookingInRefund, "refund requested"},
	},
	BookingInRefund: {
		{BookingRefunded, "refund completed"},
	},
	BookingCompleted: {},
	BookingRejected:  {},
	BookingCancelled: {},
	BookingRefunded:  {},
}

// AllBookingStatuses lists every state in declaration order.
var AllBookingStatuses = []BookingStatus{
	BookingPending, BookingConfirmed, BookingRejected, BookingWaitingForPayment,
	BookingPaid, BookingInReview, BookingInProgress, BookingCompleted,
	BookingCancelled, BookingRefunded, BookingInRefund,
}

func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// HoldsCapacity reports whether a booking in this status counts against ferry capacity.
func (s BookingStatus) HoldsCapacity() bool {
	switch s {
	case BookingConfirmed, BookingWaitingForPayment, BookingPaid, BookingInReview, BookingInProgress:
		return true
	}
	return false
}

// CapacityCommittedStatuses are the statuses summed by the capacity ledger.
var CapacityCommittedStatuses = []BookingStatus{
	BookingConfirmed, BookingWaitingForPayment, BookingPaid, BookingInReview, BookingInProgress,
}

func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, r := range bookingTransitions[s] {
		if r.to == to {
			return true
		}
	}
	return false
}

// ValidateBookingTransition returns an InvalidTransitionError when from→to is
// not in the table.
func ValidateBookingTransition(id string, from, to BookingStatus) error {
	if from.CanTransitionTo(to) {
		return nil
	}
	rule := "transition not permitted"
	switch {
	case !from.IsValid():
		rule = "unknown current status"
	case from.IsTerminal():
		rule = "booking is in a terminal status"
	}
	return &domain.InvalidTransitionError{
		Entity: "booking",
		ID:     id,
		From:   string(from),
		To:     string(to),
		Rule:   rule,
	}
}

// StatusChange is one append-only audit entry.
type StatusChange struct {
	At    time.Time      `json:"at"`
	From  BookingStatus  `json:"from"`
	To    BookingStatus  `json:"to"`
	Actor domain.ActorID `json:"actor,omitempty"`
	Note  string         `json:"note,omitempty"`
}

// Booking is the aggregate root of a reservation attempt.
type Booking struct {
	ID             string         `json:"id"`
	BookingNumber  string         `json:"booking_number"`
	CustomerID     domain.ActorID `json:"customer_id"`
	RouteID        string         `json:"route_id"`
	FerryID        string         `json:"ferry_id"`
	DepartureTime  time.Time      `json:"departure_time"`
	TravelDay      string         `json:"travel_date"`
	VehicleCount   int            `json:"vehicle_count"`
	PassengerCount int            `json:"passenger_count"`
	TotalAmount    int64          `json:"total_amount"`
	Currency       string         `json:"currency"`
	Status         BookingStatus  `json:"status"`

	CreatedAt          time.Time  `json:"created_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	PaymentRequestedAt *time.Time `json:"payment_requested_at,omitempty"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	ReviewStartedAt    *time.Time `json:"review_started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	RejectedAt         *time.Time `json:"rejected_at,omitempty"`
	RefundRequestedAt  *time.Time `json:"refund_requested_at,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`

	CancellationReason string         `json:"cancellation_reason,omitempty"`
	CancelledBy        domain.ActorID `json:"cancelled_by,omitempty"`
	RejectionReason    string         `json:"rejection_reason,omitempty"`
	RefundReason       string         `json:"refund_reason,omitempty"`
	RefundedBy         domain.ActorID `json:"refunded_by,omitempty"`
	RefundAmount       int64          `json:"refund_amount,omitempty"`

	History []StatusChange `json:"history"`
}

// TravelDate is the calendar day used as the capacity ledger key. It is the
// departure day in the zone the departure was given in, fixed at creation.
func (b *Booking) TravelDate() string {
	if b.TravelDay != "" {
		return b.TravelDay
	}
	return DateKey(b.DepartureTime)
}

// DateKey normalizes a time to the YYYY-MM-DD capacity key.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Clone returns a deep copy so stored records are never aliased by callers.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.History = append([]StatusChange(nil), b.History...)
	return &c
}

// TransitionTo validates and applies a status change, stamping the audit
// timestamp that belongs to the target status. Stamps already set are kept.
func (b *Booking) TransitionTo(to BookingStatus, actor domain.ActorID, note string, at time.Time) error {
	if err := ValidateBookingTransition(b.ID, b.Status, to); err != nil {
		return err
	}
	from := b.Status
	b.Status = to
	b.UpdatedAt = at

	stamp := func(p **time.Time) {
		if *p == nil {
			t := at
			*p = &t
		}
	}
	switch to {
	case BookingConfirmed:
		stamp(&b.ConfirmedAt)
	case BookingWaitingForPayment:
		stamp(&b.PaymentRequestedAt)
	case BookingPaid:
		stamp(&b.PaidAt)
	case BookingInReview:
		stamp(&b.ReviewStartedAt)
	case BookingCompleted:
		stamp(&b.CompletedAt)
	case BookingCancelled:
		stamp(&b.CancelledAt)
	case BookingRejected:
		stamp(&b.RejectedAt)
	case BookingInRefund:
		stamp(&b.RefundRequestedAt)
	case BookingRefunded:
		stamp(&b.RefundedAt)
	}

	b.History = append(b.History, StatusChange{At: at, From: from, To: to, Actor: actor, Note: note})
	return nil
}
