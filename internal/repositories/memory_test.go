package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var departure = time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

func newBooking(id string, status models.BookingStatus, vehicles, passengers int) *models.Booking {
	return &models.Booking{
		ID:             id,
		BookingNumber:  "BK-" + id,
		CustomerID:     "cust-1",
		FerryID:        "ferry-1",
		DepartureTime:  departure,
		VehicleCount:   vehicles,
		PassengerCount: passengers,
		TotalAmount:    10000,
		Currency:       "IDR",
		Status:         status,
		CreatedAt:      departure.Add(-48 * time.Hour),
	}
}

func TestMemoryStore_BookingRoundTripIsCopied(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	b := newBooking("b1", models.BookingPending, 1, 2)
	require.NoError(t, s.CreateBooking(ctx, b))

	b.Status = models.BookingCancelled
	got, err := s.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, got.Status, "store must not alias caller's record")
}

func TestMemoryStore_DuplicateBookingNumber(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateBooking(ctx, newBooking("b1", models.BookingPending, 1, 1)))

	clash := newBooking("b2", models.BookingPending, 1, 1)
	clash.BookingNumber = "BK-b1"
	err := s.CreateBooking(ctx, clash)
	assert.True(t, domain.IsDuplicate(err))
}

func TestMemoryStore_GetBookingNotFound(t *testing.T) {
	_, err := NewMemoryStore().GetBooking(context.Background(), "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestMemoryStore_UpdateBookingCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateBooking(ctx, newBooking("b1", models.BookingConfirmed, 1, 1)))

	next := newBooking("b1", models.BookingWaitingForPayment, 1, 1)
	require.NoError(t, s.UpdateBooking(ctx, next, models.BookingConfirmed))

	stale := newBooking("b1", models.BookingCancelled, 1, 1)
	err := s.UpdateBooking(ctx, stale, models.BookingConfirmed)
	assert.True(t, domain.IsInvalidTransition(err))

	got, _ := s.GetBooking(ctx, "b1")
	assert.Equal(t, models.BookingWaitingForPayment, got.Status)
}

func TestMemoryStore_CommittedLoadCountsOnlyHoldingStatuses(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i, st := range models.AllBookingStatuses {
		b := newBooking(string(rune('a'+i)), st, 1, 3)
		require.NoError(t, s.CreateBooking(ctx, b))
	}
	other := newBooking("z", models.BookingConfirmed, 5, 5)
	other.DepartureTime = departure.AddDate(0, 0, 1)
	require.NoError(t, s.CreateBooking(ctx, other))

	vehicles, passengers, err := s.CommittedLoad(ctx, "ferry-1", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, len(models.CapacityCommittedStatuses), vehicles)
	assert.Equal(t, 3*len(models.CapacityCommittedStatuses), passengers)
}

func TestMemoryStore_ApprovalDuplicatePerBooking(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateApproval(ctx, &models.Approval{ID: "a1", BookingID: "b1", Status: models.ApprovalPending}))
	err := s.CreateApproval(ctx, &models.Approval{ID: "a2", BookingID: "b1", Status: models.ApprovalPending})
	assert.True(t, domain.IsDuplicate(err))

	list, err := s.ListApprovals(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryStore_PaymentsByBookingSorted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreatePayment(ctx, &models.Payment{ID: "p2", PaymentNumber: "PAY-2", BookingID: "b1", CreatedAt: t0.Add(time.Minute)}))
	require.NoError(t, s.CreatePayment(ctx, &models.Payment{ID: "p1", PaymentNumber: "PAY-1", BookingID: "b1", CreatedAt: t0}))
	require.NoError(t, s.CreatePayment(ctx, &models.Payment{ID: "p3", PaymentNumber: "PAY-3", BookingID: "b2", CreatedAt: t0}))

	list, err := s.ListPaymentsByBooking(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].ID)
	assert.Equal(t, "p2", list[1].ID)

	byNumber, err := s.GetPaymentByNumber(ctx, "PAY-3")
	require.NoError(t, err)
	assert.Equal(t, "p3", byNumber.ID)
}

func TestMemoryStore_CapacityLockSerializesSameKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	inside := 0
	maxInside := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithCapacityLock(ctx, "ferry-1", "2025-06-01", func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}
