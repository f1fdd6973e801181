// Package repositories provides storage for bookings, approvals, payments
// and the ferry capacity figures the ledger reads.
package repositories

import (
	"context"

	"ferrybook/internal/domain/models"
)

type FerryRepository interface {
	GetFerry(ctx context.Context, id string) (models.Ferry, error)
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	// UpdateBooking writes b only if the stored status still equals expected.
	UpdateBooking(ctx context.Context, b *models.Booking, expected models.BookingStatus) error
	ListBookingsByStatus(ctx context.Context, status models.BookingStatus) ([]*models.Booking, error)
	// CommittedLoad sums vehicles and passengers of capacity-holding bookings
	// for a ferry on a YYYY-MM-DD date.
	CommittedLoad(ctx context.Context, ferryID, date string) (vehicles, passengers int, err error)
}

type ApprovalRepository interface {
	// CreateApproval fails with DuplicateResourceError when the booking already has one.
	CreateApproval(ctx context.Context, a *models.Approval) error
	GetApproval(ctx context.Context, id string) (*models.Approval, error)
	GetApprovalByBooking(ctx context.Context, bookingID string) (*models.Approval, error)
	UpdateApproval(ctx context.Context, a *models.Approval, expected models.ApprovalStatus) error
	ListApprovals(ctx context.Context) ([]*models.Approval, error)
	ListApprovalsByStatus(ctx context.Context, status models.ApprovalStatus) ([]*models.Approval, error)
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByNumber(ctx context.Context, number string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment, expected models.PaymentStatus) error
	ListPaymentsByBooking(ctx context.Context, bookingID string) ([]*models.Payment, error)
}

// Store is the full persistence contract consumed by the services.
type Store interface {
	FerryRepository
	BookingRepository
	ApprovalRepository
	PaymentRepository

	// WithTx runs fn so that all writes inside it commit or roll back together.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// WithCapacityLock runs fn inside WithTx while holding the exclusive
	// admission lock for (ferryID, date).
	WithCapacityLock(ctx context.Context, ferryID, date string, fn func(ctx context.Context) error) error
}
