package services

import (
	"context"
	"fmt"
	"strings"

	"ferrybook/internal/clock"
	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
	"ferrybook/internal/repositories"
	"ferrybook/internal/utils"
)

// PaymentService runs payment attempts and refunds for bookings. The gateway
// wait happens outside the booking lock; the outcome is committed against the
// booking state observed after the wait.
type PaymentService struct {
	store     repositories.Store
	bookings  *BookingService
	approvals *ApprovalService
	gateway   Gateway
	clock     clock.Clock
	notifier  Notifier
	cfg       Config
	locks     *utils.KeyedMutex
}

// ProcessPayment runs one payment attempt. A CONFIRMED booking is moved to
// WAITING_FOR_PAYMENT first. A gateway decline is recorded on the returned
// FAILED payment and is not an error; the caller may retry with a new attempt.
func (s *PaymentService) ProcessPayment(ctx context.Context, bookingID string, amount int64, method models.PaymentMethod, actor domain.ActorID) (*models.Payment, error) {
	if amount <= 0 {
		return nil, domain.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	if !method.IsValid() {
		return nil, domain.ValidationError{Field: "method", Msg: "unsupported payment method " + string(method)}
	}

	p, err := s.openAttempt(ctx, bookingID, amount, method, actor)
	if err != nil {
		return nil, err
	}

	wait := s.gateway.Latency()
	if s.cfg.MaxGatewayLatency > 0 && wait > s.cfg.MaxGatewayLatency {
		wait = s.cfg.MaxGatewayLatency
	}
	if err := sleepCtx(ctx, wait); err != nil {
		// The caller is gone; record the abandoned attempt regardless.
		cancelled, cerr := s.abandonAttempt(context.WithoutCancel(ctx), p, "processing interrupted: "+err.Error())
		if cerr != nil {
			utils.LogWarn("", "payment", "process", fmt.Sprintf("payment_id=%s cancel after interrupt: %v", p.ID, cerr))
			return p, err
		}
		return cancelled, err
	}
	outcome := s.gateway.Decide(s.cfg.PaymentSuccessRate)
	return s.settleAttempt(ctx, p, outcome, actor)
}

// SimulatePayment pays the booking's full total through the gateway.
func (s *PaymentService) SimulatePayment(ctx context.Context, bookingID string, method models.PaymentMethod, actor domain.ActorID) (*models.Payment, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return s.ProcessPayment(ctx, bookingID, b.TotalAmount, method, actor)
}

func (s *PaymentService) openAttempt(ctx context.Context, bookingID string, amount int64, method models.PaymentMethod, actor domain.ActorID) (*models.Payment, error) {
	unlock := s.locks.Lock(bookingID)
	defer unlock()

	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == models.BookingConfirmed {
		if b, err = s.bookings.applyLocked(ctx, bookingID, models.BookingWaitingForPayment, actor, "payment requested", nil); err != nil {
			return nil, err
		}
	}
	if b.Status != models.BookingWaitingForPayment {
		return nil, &domain.InvalidTransitionError{
			Entity: "booking",
			ID:     b.ID,
			From:   string(b.Status),
			To:     string(models.BookingPaid),
			Rule:   "booking is not awaiting payment",
		}
	}

	now := s.clock.Now()
	p := &models.Payment{
		ID:            utils.NewID(),
		PaymentNumber: utils.NewReference("PAY", now),
		BookingID:     bookingID,
		Amount:        amount,
		Method:        method,
		Status:        models.PaymentPending,
		ProcessedBy:   actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = insertWithFreshReference(
		func() error { return s.store.CreatePayment(ctx, p) },
		func() { p.PaymentNumber = utils.NewReference("PAY", now) },
	)
	if err != nil {
		return nil, err
	}
	if err := p.TransitionTo(models.PaymentProcessing, now); err != nil {
		return nil, err
	}
	if err := s.store.UpdatePayment(ctx, p, models.PaymentPending); err != nil {
		return nil, err
	}
	utils.LogEvent("", "payment", "process",
		fmt.Sprintf("payment_id=%s number=%s booking_id=%s amount=%s", p.ID, p.PaymentNumber, bookingID, utils.FormatMoney(b.Currency, amount)))
	return p, nil
}

func (s *PaymentService) abandonAttempt(ctx context.Context, p *models.Payment, reason string) (*models.Payment, error) {
	unlock := s.locks.Lock(p.BookingID)
	defer unlock()

	cur, err := s.store.GetPayment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	from := cur.Status
	if err := cur.TransitionTo(models.PaymentCancelled, s.clock.Now()); err != nil {
		return nil, err
	}
	cur.FailureReason = reason
	if err := s.store.UpdatePayment(ctx, cur, from); err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *PaymentService) settleAttempt(ctx context.Context, p *models.Payment, outcome GatewayOutcome, actor domain.ActorID) (*models.Payment, error) {
	unlock := s.locks.Lock(p.BookingID)
	defer unlock()

	cur, err := s.store.GetPayment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if cur.Status != models.PaymentProcessing {
		return cur, &domain.InvalidTransitionError{
			Entity: "payment",
			ID:     cur.ID,
			From:   string(cur.Status),
			To:     string(models.PaymentCompleted),
			Rule:   "payment is no longer processing",
		}
	}
	b, err := s.store.GetBooking(ctx, cur.BookingID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	if !outcome.Approved {
		if err := cur.TransitionTo(models.PaymentFailed, now); err != nil {
			return nil, err
		}
		cur.FailureReason = outcome.Reason
		cur.GatewayResponse = domain.ErrSimulatedGatewayFailure.Error() + ": " + outcome.Reason
		if err := s.store.UpdatePayment(ctx, cur, models.PaymentProcessing); err != nil {
			return nil, err
		}
		utils.LogWarn("", "payment", "process", fmt.Sprintf("payment_id=%s failed: %s", cur.ID, outcome.Reason))
		s.notifier.Notify(ctx, Event{
			Type:      EventPaymentFailed,
			BookingID: b.ID,
			Actor:     actor,
			At:        now,
			Detail:    cur.PaymentNumber + ": " + outcome.Reason,
		})
		return cur, nil
	}

	if b.Status != models.BookingWaitingForPayment {
		if err := cur.TransitionTo(models.PaymentCancelled, now); err != nil {
			return nil, err
		}
		cur.GatewayResponse = outcome.Reason
		cur.FailureReason = "booking is " + string(b.Status)
		if err := s.store.UpdatePayment(ctx, cur, models.PaymentProcessing); err != nil {
			return nil, err
		}
		return cur, &domain.InvalidTransitionError{
			Entity: "booking",
			ID:     b.ID,
			From:   string(b.Status),
			To:     string(models.BookingPaid),
			Rule:   "booking changed while payment was processing",
		}
	}

	if err := cur.TransitionTo(models.PaymentCompleted, now); err != nil {
		return nil, err
	}
	cur.TransactionID = utils.NewReference("TXN", now)
	cur.GatewayResponse = outcome.Reason
	cur.PaidAt = &now

	covers := cur.Amount >= b.TotalAmount
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdatePayment(ctx, cur, models.PaymentProcessing); err != nil {
			return err
		}
		if !covers {
			return nil
		}
		if err := b.TransitionTo(models.BookingPaid, actor, "payment "+cur.PaymentNumber, now); err != nil {
			return err
		}
		return s.store.UpdateBooking(ctx, b, models.BookingWaitingForPayment)
	})
	if err != nil {
		return nil, err
	}

	utils.LogEvent("", "payment", "process", fmt.Sprintf("payment_id=%s completed txn=%s", cur.ID, cur.TransactionID))
	s.notifier.Notify(ctx, Event{
		Type:      EventPaymentConfirmed,
		BookingID: b.ID,
		Actor:     actor,
		At:        now,
		Detail:    cur.PaymentNumber + " " + utils.FormatMoney(b.Currency, cur.Amount),
	})
	if !covers {
		return cur, nil
	}
	s.bookings.emitStatus(ctx, b, models.BookingWaitingForPayment, actor)

	if s.cfg.AutoStartReview {
		if _, err := s.approvals.startReviewForBookingLocked(ctx, b.ID, domain.SystemActor); err != nil {
			utils.LogWarn("", "payment", "start_review", fmt.Sprintf("booking_id=%s: %v", b.ID, err))
		}
	}
	return cur, nil
}

// Refund returns the full refundable amount of a COMPLETED payment. Refunding
// the payment that covered the total moves a live booking through IN_REFUND
// to REFUNDED. Any other refund, including one for a CANCELLED or REJECTED
// booking, only changes the payment and the booking's refunded amount.
func (s *PaymentService) Refund(ctx context.Context, paymentID, reason string, actor domain.ActorID) (*models.Payment, error) {
	return s.refund(ctx, paymentID, 0, reason, actor)
}

// RefundPartial returns part of a COMPLETED payment; the payment ends
// PARTIALLY_REFUNDED and cannot be refunded again.
func (s *PaymentService) RefundPartial(ctx context.Context, paymentID string, amount int64, reason string, actor domain.ActorID) (*models.Payment, error) {
	if amount <= 0 {
		return nil, domain.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	return s.refund(ctx, paymentID, amount, reason, actor)
}

func (s *PaymentService) refund(ctx context.Context, paymentID string, amount int64, reason string, actor domain.ActorID) (*models.Payment, error) {
	reason = utils.NormalizeSpace(reason)
	if reason == "" {
		return nil, domain.ValidationError{Field: "reason", Msg: "required"}
	}
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(p.BookingID)
	defer unlock()

	if p, err = s.store.GetPayment(ctx, paymentID); err != nil {
		return nil, err
	}
	if !p.CanBeRefunded() {
		return nil, &domain.RefundNotAllowedError{
			PaymentID: p.ID,
			Status:    string(p.Status),
			Reason:    "only COMPLETED payments can be refunded",
		}
	}
	refundable := p.RefundableAmount()
	if amount == 0 {
		amount = refundable
	}
	if amount > refundable {
		return nil, &domain.RefundNotAllowedError{
			PaymentID: p.ID,
			Status:    string(p.Status),
			Reason:    fmt.Sprintf("refund %s exceeds refundable %s", utils.FormatMinor(amount), utils.FormatMinor(refundable)),
		}
	}

	b, err := s.store.GetBooking(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	original := b.Status

	// Only the payment that covered the total settles the booking. Other
	// attempts, and payments of bookings already closed, are refunded on
	// the payment record alone.
	settles := p.Amount >= b.TotalAmount && !original.IsTerminal()
	var requested *models.Booking
	if settles {
		if original != models.BookingInRefund {
			if err := b.TransitionTo(models.BookingInRefund, actor, reason, now); err != nil {
				return nil, err
			}
			b.RefundReason = reason
			requested = b.Clone()
		}
		if err := b.TransitionTo(models.BookingRefunded, actor, "refund "+p.PaymentNumber, now); err != nil {
			return nil, err
		}
	}
	b.RefundAmount += amount
	b.RefundedBy = actor
	b.UpdatedAt = now
	if b.RefundReason == "" {
		b.RefundReason = reason
	}

	payFrom := p.Status
	to := models.PaymentRefunded
	if amount < refundable {
		to = models.PaymentPartiallyRefunded
	}
	if err := p.TransitionTo(to, now); err != nil {
		return nil, err
	}
	p.RefundAmount += amount
	p.RefundedAt = &now
	p.ProcessedBy = actor
	p.AppendNote("Refund: " + reason)

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdatePayment(ctx, p, payFrom); err != nil {
			return err
		}
		expected := original
		if requested != nil {
			if err := s.store.UpdateBooking(ctx, requested, original); err != nil {
				return err
			}
			expected = models.BookingInRefund
		}
		if err := s.store.UpdateBooking(ctx, b, expected); err != nil {
			return err
		}
		if !settles {
			return nil
		}
		return closeOpenApproval(ctx, s.store, b.ID, actor, "booking refunded", reason, now)
	})
	if err != nil {
		return nil, err
	}

	utils.LogEvent("", "payment", "refund",
		fmt.Sprintf("payment_id=%s booking_id=%s amount=%s status=%s booking=%s",
			p.ID, b.ID, utils.FormatMoney(b.Currency, amount), p.Status, b.Status))
	if requested != nil {
		s.bookings.emitStatus(ctx, requested, original, actor)
	}
	if settles {
		s.bookings.emitStatus(ctx, b, models.BookingInRefund, actor)
	}
	return p, nil
}

// CancelPending cancels an attempt that has not settled yet. An in-flight
// ProcessPayment for it then fails with InvalidTransitionError.
func (s *PaymentService) CancelPending(ctx context.Context, paymentID string, actor domain.ActorID, reason string) (*models.Payment, error) {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	reason = utils.NormalizeSpace(reason)
	if reason == "" {
		reason = "cancelled by " + string(actor)
	}
	cancelled, err := s.abandonAttempt(ctx, p, reason)
	if err != nil {
		return nil, err
	}
	utils.LogEvent("", "payment", "cancel", fmt.Sprintf("payment_id=%s by=%s", paymentID, actor))
	return cancelled, nil
}

// History lists every attempt for a booking, oldest first.
func (s *PaymentService) History(ctx context.Context, bookingID string) ([]*models.Payment, error) {
	if _, err := s.store.GetBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.store.ListPaymentsByBooking(ctx, bookingID)
}

func (s *PaymentService) Lookup(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.store.GetPayment(ctx, paymentID)
}

func (s *PaymentService) LookupByNumber(ctx context.Context, number string) (*models.Payment, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return nil, domain.ValidationError{Field: "payment_number", Msg: "required"}
	}
	return s.store.GetPaymentByNumber(ctx, number)
}
