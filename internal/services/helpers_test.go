package services

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ferrybook/internal/clock"
	"ferrybook/internal/domain/models"
	"ferrybook/internal/repositories"
	"ferrybook/internal/utils"

	"github.com/stretchr/testify/require"
)

var (
	testStart     = time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC)
	testDeparture = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
)

func init() {
	utils.Logger().SetOutput(io.Discard)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// toggleGateway answers instantly with whatever approve is set to.
type toggleGateway struct {
	approve atomic.Bool
}

func (g *toggleGateway) Latency() time.Duration { return 0 }

func (g *toggleGateway) Decide(float64) GatewayOutcome {
	if g.approve.Load() {
		return GatewayOutcome{Approved: true, Reason: "Approved"}
	}
	return GatewayOutcome{Reason: "Card declined by issuer"}
}

type fixture struct {
	store   *repositories.MemoryStore
	clock   *clock.Manual
	events  *recordingNotifier
	gateway *toggleGateway
	svc     *Services
}

func newFixture(t *testing.T, configure ...func(*Config)) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	store.SeedFerry(models.Ferry{
		ID:                 "ferry-1",
		Name:               "KMP Nusa Jaya",
		CapacityVehicles:   2,
		CapacityPassengers: 10,
		Status:             models.FerryActive,
	})
	cfg := DefaultConfig()
	cfg.AutoStartReview = false
	cfg.MaxGatewayLatency = 0
	for _, fn := range configure {
		fn(&cfg)
	}
	f := &fixture{
		store:   store,
		clock:   clock.NewManual(testStart),
		events:  &recordingNotifier{},
		gateway: &toggleGateway{},
	}
	f.gateway.approve.Store(true)
	f.svc = New(Deps{Store: store, Clock: f.clock, Gateway: f.gateway, Notifier: f.events, Config: cfg})
	return f
}

func bookingInput(vehicles, passengers int) CreateBookingInput {
	return CreateBookingInput{
		CustomerID:     "cust-1",
		RouteID:        "MRK-BKH",
		FerryID:        "ferry-1",
		DepartureTime:  testDeparture,
		VehicleCount:   vehicles,
		PassengerCount: passengers,
		TotalAmount:    45000000,
		Currency:       "idr",
	}
}

func (f *fixture) confirmed(t *testing.T) *models.Booking {
	t.Helper()
	b, err := f.svc.Book(context.Background(), bookingInput(1, 4))
	require.NoError(t, err)
	require.Equal(t, models.BookingConfirmed, b.Status)
	return b
}

func (f *fixture) paid(t *testing.T) (*models.Booking, *models.Payment) {
	t.Helper()
	b := f.confirmed(t)
	p, err := f.svc.Payments.SimulatePayment(context.Background(), b.ID, models.MethodBankTransfer, "cust-1")
	require.NoError(t, err)
	require.Equal(t, models.PaymentCompleted, p.Status)
	b, err = f.svc.Bookings.Get(context.Background(), b.ID)
	require.NoError(t, err)
	return b, p
}

func (f *fixture) inReview(t *testing.T) (*models.Booking, *models.Approval) {
	t.Helper()
	b, _ := f.paid(t)
	a, err := f.svc.Approvals.StartReviewForBooking(context.Background(), b.ID, "emp-1")
	require.NoError(t, err)
	b, err = f.svc.Bookings.Get(context.Background(), b.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingInReview, b.Status)
	return b, a
}
