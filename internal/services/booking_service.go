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

// BookingService owns the booking lifecycle. Transitions on one booking are
// linearized by a per-booking lock shared with the approval and payment
// services; every write is a compare-and-set on the status read under it.
type BookingService struct {
	store    repositories.Store
	ledger   *CapacityLedger
	clock    clock.Clock
	notifier Notifier
	cfg      Config
	locks    *utils.KeyedMutex
}

// CreateBookingInput is the intake payload for a reservation attempt.
type CreateBookingInput struct {
	CustomerID     domain.ActorID `json:"customer_id"`
	RouteID        string         `json:"route_id"`
	FerryID        string         `json:"ferry_id"`
	DepartureTime  time.Time      `json:"departure_time"`
	VehicleCount   int            `json:"vehicle_count"`
	PassengerCount int            `json:"passenger_count"`
	TotalAmount    int64          `json:"total_amount"`
	Currency       string         `json:"currency"`
}

func (in CreateBookingInput) validate() error {
	if strings.TrimSpace(string(in.CustomerID)) == "" {
		return domain.ValidationError{Field: "customer_id", Msg: "required"}
	}
	if strings.TrimSpace(in.RouteID) == "" {
		return domain.ValidationError{Field: "route_id", Msg: "required"}
	}
	if strings.TrimSpace(in.FerryID) == "" {
		return domain.ValidationError{Field: "ferry_id", Msg: "required"}
	}
	if in.DepartureTime.IsZero() {
		return domain.ValidationError{Field: "departure_time", Msg: "required"}
	}
	if err := validateDeltas(in.VehicleCount, in.PassengerCount); err != nil {
		return err
	}
	if in.VehicleCount == 0 && in.PassengerCount == 0 {
		return domain.ValidationError{Field: "passenger_count", Msg: "at least one vehicle or passenger is required"}
	}
	if in.TotalAmount <= 0 {
		return domain.ValidationError{Field: "total_amount", Msg: "must be positive"}
	}
	return nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *BookingService) ListByStatus(ctx context.Context, status models.BookingStatus) ([]*models.Booking, error) {
	if !status.IsValid() {
		return nil, domain.ValidationError{Field: "status", Msg: "unknown booking status " + string(status)}
	}
	return s.store.ListBookingsByStatus(ctx, status)
}

// Create stores a new PENDING booking. Capacity is not touched until Confirm.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetFerry(ctx, in.FerryID); err != nil {
		return nil, err
	}
	currency := utils.NormalizeCode(in.Currency)
	if currency == "" {
		currency = s.cfg.Currency
	}
	now := s.clock.Now()
	b := &models.Booking{
		ID:             utils.NewID(),
		BookingNumber:  utils.NewReference("BK", now),
		CustomerID:     in.CustomerID,
		RouteID:        strings.TrimSpace(in.RouteID),
		FerryID:        strings.TrimSpace(in.FerryID),
		DepartureTime:  in.DepartureTime.UTC(),
		TravelDay:      models.DateKey(in.DepartureTime),
		VehicleCount:   in.VehicleCount,
		PassengerCount: in.PassengerCount,
		TotalAmount:    in.TotalAmount,
		Currency:       currency,
		Status:         models.BookingPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		History:        []models.StatusChange{},
	}
	err := insertWithFreshReference(
		func() error { return s.store.CreateBooking(ctx, b) },
		func() { b.BookingNumber = utils.NewReference("BK", now) },
	)
	if err != nil {
		return nil, err
	}
	utils.LogEvent("", "booking", "create", fmt.Sprintf("booking_id=%s number=%s ferry=%s date=%s", b.ID, b.BookingNumber, b.FerryID, b.TravelDate()))
	s.notifier.Notify(ctx, Event{
		Type:      EventBookingCreated,
		BookingID: b.ID,
		To:        string(b.Status),
		Actor:     b.CustomerID,
		At:        now,
	})
	return b, nil
}

// Confirm runs capacity admission for a PENDING booking. When admission is
// denied the booking is moved to REJECTED and the denial is returned along
// with the rejected booking.
func (s *BookingService) Confirm(ctx context.Context, id string, actor domain.ActorID) (*models.Booking, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	from := b.Status
	admitErr := s.ledger.AdmitBooking(ctx, b, actor)
	if admitErr == nil {
		utils.LogEvent("", "booking", "confirm", "booking_id="+b.ID)
		s.emitStatus(ctx, b, from, actor)
		return b, nil
	}
	if !domain.IsCapacityExceeded(admitErr) && !domain.IsValidation(admitErr) {
		return nil, admitErr
	}

	rejected, err := s.applyLocked(ctx, id, models.BookingRejected, actor, admitErr.Error(), func(b *models.Booking) error {
		b.RejectionReason = admitErr.Error()
		return nil
	})
	if err != nil {
		return nil, err
	}
	utils.LogWarn("", "booking", "confirm", fmt.Sprintf("booking_id=%s rejected: %v", id, admitErr))
	return rejected, admitErr
}

// Reject records a business-rule rejection of a PENDING booking. Bookings in
// review are rejected through the approval workflow instead.
func (s *BookingService) Reject(ctx context.Context, id string, actor domain.ActorID, reason string) (*models.Booking, error) {
	reason = utils.NormalizeSpace(reason)
	if reason == "" {
		return nil, domain.ValidationError{Field: "reason", Msg: "required"}
	}
	return s.transition(ctx, id, models.BookingRejected, actor, reason, func(b *models.Booking) error {
		if from := b.History[len(b.History)-1].From; from != models.BookingPending {
			return &domain.InvalidTransitionError{
				Entity: "booking",
				ID:     b.ID,
				From:   string(from),
				To:     string(models.BookingRejected),
				Rule:   "bookings in review are rejected through their approval",
			}
		}
		b.RejectionReason = reason
		return nil
	})
}

func (s *BookingService) RequestPayment(ctx context.Context, id string, actor domain.ActorID) (*models.Booking, error) {
	return s.transition(ctx, id, models.BookingWaitingForPayment, actor, "payment requested", nil)
}

// MarkPaid moves a booking to PAID given one of its COMPLETED payments that
// covers the total amount.
func (s *BookingService) MarkPaid(ctx context.Context, id, paymentID string, actor domain.ActorID) (*models.Booking, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return s.markPaidLocked(ctx, id, p, actor)
}

func (s *BookingService) markPaidLocked(ctx context.Context, id string, p *models.Payment, actor domain.ActorID) (*models.Booking, error) {
	return s.applyLocked(ctx, id, models.BookingPaid, actor, "payment "+p.PaymentNumber, func(b *models.Booking) error {
		return paymentCovers(b, p)
	})
}

func paymentCovers(b *models.Booking, p *models.Payment) error {
	switch {
	case p.BookingID != b.ID:
		return domain.ValidationError{Field: "payment_id", Msg: "payment belongs to another booking"}
	case p.Status != models.PaymentCompleted:
		return &domain.InvalidTransitionError{
			Entity: "booking",
			ID:     b.ID,
			From:   string(models.BookingWaitingForPayment),
			To:     string(models.BookingPaid),
			Rule:   "payment " + p.PaymentNumber + " is " + string(p.Status) + ", not COMPLETED",
		}
	case p.Amount < b.TotalAmount:
		return domain.ValidationError{
			Field: "amount",
			Msg:   fmt.Sprintf("payment %s does not cover total %s", utils.FormatMinor(p.Amount), utils.FormatMinor(b.TotalAmount)),
		}
	}
	return nil
}

// Complete records arrival for a booking IN_PROGRESS.
func (s *BookingService) Complete(ctx context.Context, id string, actor domain.ActorID) (*models.Booking, error) {
	return s.transition(ctx, id, models.BookingCompleted, actor, "arrival confirmed", nil)
}

// Cancel applies an explicit cancellation. An open review on the booking is
// closed as REJECTED in the same unit of work.
func (s *BookingService) Cancel(ctx context.Context, id string, actor domain.ActorID, reason string) (*models.Booking, error) {
	reason = utils.NormalizeSpace(reason)
	if reason == "" {
		return nil, domain.ValidationError{Field: "reason", Msg: "required"}
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.cancelLocked(ctx, id, actor, reason)
}

func (s *BookingService) cancelLocked(ctx context.Context, id string, actor domain.ActorID, reason string) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	from := b.Status
	now := s.clock.Now()
	if err := b.TransitionTo(models.BookingCancelled, actor, reason, now); err != nil {
		return nil, err
	}
	b.CancellationReason = reason
	b.CancelledBy = actor

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateBooking(ctx, b, from); err != nil {
			return err
		}
		return closeOpenApproval(ctx, s.store, id, actor, "booking cancelled", reason, now)
	})
	if err != nil {
		return nil, err
	}
	utils.LogEvent("", "booking", "cancel", fmt.Sprintf("booking_id=%s from=%s by=%s", id, from, actor))
	s.emitStatus(ctx, b, from, actor)
	return b, nil
}

// closeOpenApproval rejects the booking's approval if it is still PENDING or
// IN_REVIEW. A booking without an approval is left alone.
func closeOpenApproval(ctx context.Context, store repositories.Store, bookingID string, actor domain.ActorID, event, reason string, now time.Time) error {
	a, err := store.GetApprovalByBooking(ctx, bookingID)
	if domain.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if a.Status.IsTerminal() {
		return nil
	}
	expected := a.Status
	if expected == models.ApprovalPending {
		event += " before review"
	}
	if err := a.TransitionTo(models.ApprovalRejected, now); err != nil {
		return err
	}
	a.ReviewerID = actor
	a.Notes = appendNote(a.Notes, event+": "+reason)
	if a.DecidedAt == nil {
		t := now
		a.DecidedAt = &t
	}
	return store.UpdateApproval(ctx, a, expected)
}

// RequestRefund moves a PAID or IN_PROGRESS booking to IN_REFUND. The refund
// itself is applied by the payment service.
func (s *BookingService) RequestRefund(ctx context.Context, id string, actor domain.ActorID, reason string) (*models.Booking, error) {
	reason = utils.NormalizeSpace(reason)
	if reason == "" {
		return nil, domain.ValidationError{Field: "reason", Msg: "required"}
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	from := b.Status
	now := s.clock.Now()
	if err := b.TransitionTo(models.BookingInRefund, actor, reason, now); err != nil {
		return nil, err
	}
	b.RefundReason = reason
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateBooking(ctx, b, from); err != nil {
			return err
		}
		return closeOpenApproval(ctx, s.store, id, actor, "refund requested", reason, now)
	})
	if err != nil {
		return nil, err
	}
	utils.LogEvent("", "booking", "transition", fmt.Sprintf("booking_id=%s %s->%s", b.ID, from, b.Status))
	s.emitStatus(ctx, b, from, actor)
	return b, nil
}

// ExpireOverduePayments cancels WAITING_FOR_PAYMENT bookings whose payment
// request is older than the payment deadline. Bookings that moved on in the
// meantime are skipped.
func (s *BookingService) ExpireOverduePayments(ctx context.Context) ([]*models.Booking, error) {
	waiting, err := s.store.ListBookingsByStatus(ctx, models.BookingWaitingForPayment)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	expired := make([]*models.Booking, 0)
	for _, b := range waiting {
		requested := b.UpdatedAt
		if b.PaymentRequestedAt != nil {
			requested = *b.PaymentRequestedAt
		}
		if !now.After(requested.Add(s.cfg.PaymentDeadline)) {
			continue
		}
		cancelled, err := s.expireOne(ctx, b.ID)
		if domain.IsInvalidTransition(err) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired = append(expired, cancelled)
	}
	if len(expired) > 0 {
		utils.LogEvent("", "booking", "expire_payments", fmt.Sprintf("expired=%d", len(expired)))
	}
	return expired, nil
}

func (s *BookingService) expireOne(ctx context.Context, id string) (*models.Booking, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BookingWaitingForPayment {
		return nil, models.ValidateBookingTransition(b.ID, b.Status, models.BookingWaitingForPayment)
	}
	return s.cancelLocked(ctx, id, domain.SystemActor, "payment deadline elapsed")
}

// transition locks the booking and applies a single status change.
func (s *BookingService) transition(ctx context.Context, id string, to models.BookingStatus, actor domain.ActorID, note string, mutate func(b *models.Booking) error) (*models.Booking, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.applyLocked(ctx, id, to, actor, note, mutate)
}

// applyLocked loads the booking, transitions it, lets mutate adjust fields or
// veto, and writes it back expecting the status it was read with. The caller
// holds the booking lock.
func (s *BookingService) applyLocked(ctx context.Context, id string, to models.BookingStatus, actor domain.ActorID, note string, mutate func(b *models.Booking) error) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	from := b.Status
	if err := b.TransitionTo(to, actor, note, s.clock.Now()); err != nil {
		return nil, err
	}
	if mutate != nil {
		if err := mutate(b); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateBooking(ctx, b, from); err != nil {
		return nil, err
	}
	utils.LogEvent("", "booking", "transition", fmt.Sprintf("booking_id=%s %s->%s", b.ID, from, to))
	s.emitStatus(ctx, b, from, actor)
	return b, nil
}

func (s *BookingService) emitStatus(ctx context.Context, b *models.Booking, from models.BookingStatus, actor domain.ActorID) {
	s.notifier.Notify(ctx, Event{
		Type:      EventBookingStatusChanged,
		BookingID: b.ID,
		From:      string(from),
		To:        string(b.Status),
		Actor:     actor,
		At:        b.UpdatedAt,
	})
}

func appendNote(existing, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + " | " + note
}
