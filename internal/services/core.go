// Package services implements the reservation workflow: capacity admission,
// the booking lifecycle, approval review and payment orchestration.
package services

import (
	"context"
	"fmt"
	"time"

	"ferrybook/internal/clock"
	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
	"ferrybook/internal/repositories"
	"ferrybook/internal/utils"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Store    repositories.Store
	Clock    clock.Clock
	Gateway  Gateway
	Notifier Notifier
	Config   Config
}

// referenceAttempts bounds how often a create is retried after its generated
// booking or payment number collided with an existing one.
const referenceAttempts = 3

// insertWithFreshReference runs create, and on a duplicate number calls renew
// and tries again.
func insertWithFreshReference(create func() error, renew func()) error {
	var err error
	for i := 0; i < referenceAttempts; i++ {
		if i > 0 {
			renew()
		}
		if err = create(); !domain.IsDuplicate(err) {
			return err
		}
	}
	return err
}

// Services bundles the workflow services around one store and one booking
// lock table.
type Services struct {
	Ledger    *CapacityLedger
	Bookings  *BookingService
	Approvals *ApprovalService
	Payments  *PaymentService
	Docs      DocsService
}

func New(d Deps) *Services {
	cfg := d.Config.withDefaults()
	clk := d.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = NopNotifier()
	}
	gateway := d.Gateway
	if gateway == nil {
		gateway = NewRandomGateway(100*time.Millisecond, cfg.MaxGatewayLatency, time.Now().UnixNano())
	}
	locks := utils.NewKeyedMutex()

	ledger := NewCapacityLedger(d.Store, clk)
	bookings := &BookingService{
		store:    d.Store,
		ledger:   ledger,
		clock:    clk,
		notifier: notifier,
		cfg:      cfg,
		locks:    locks,
	}
	approvals := &ApprovalService{
		store:    d.Store,
		clock:    clk,
		notifier: notifier,
		cfg:      cfg,
		locks:    locks,
	}
	payments := &PaymentService{
		store:     d.Store,
		bookings:  bookings,
		approvals: approvals,
		gateway:   gateway,
		clock:     clk,
		notifier:  notifier,
		cfg:       cfg,
		locks:     locks,
	}
	return &Services{
		Ledger:    ledger,
		Bookings:  bookings,
		Approvals: approvals,
		Payments:  payments,
		Docs:      DocsService{Store: d.Store},
	}
}

// Book is the intake path: create the booking, run admission, and open the
// approval record for a confirmed booking. A capacity denial returns the
// REJECTED booking together with the *domain.CapacityExceededError.
func (s *Services) Book(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	b, err := s.Bookings.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	confirmed, err := s.Bookings.Confirm(ctx, b.ID, in.CustomerID)
	if err != nil {
		return confirmed, err
	}
	if _, err := s.Approvals.CreateApproval(ctx, confirmed.ID); err != nil && !domain.IsDuplicate(err) {
		return confirmed, fmt.Errorf("open approval for booking %s: %w", confirmed.ID, err)
	}
	return confirmed, nil
}
