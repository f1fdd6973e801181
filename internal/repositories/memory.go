package repositories

import (
	"context"
	"sort"
	"sync"

	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
	"ferrybook/internal/utils"
)

// MemoryStore is an in-memory implementation of Store. Records are copied in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	ferries   map[string]models.Ferry
	bookings  map[string]*models.Booking
	approvals map[string]*models.Approval
	payments  map[string]*models.Payment

	capacity *utils.KeyedMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ferries:   make(map[string]models.Ferry),
		bookings:  make(map[string]*models.Booking),
		approvals: make(map[string]*models.Approval),
		payments:  make(map[string]*models.Payment),
		capacity:  utils.NewKeyedMutex(),
	}
}

// SeedFerry registers a ferry. Ferry administration lives outside this
// service, so this is only used for development and tests.
func (s *MemoryStore) SeedFerry(f models.Ferry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ferries[f.ID] = f
}

func (s *MemoryStore) GetFerry(_ context.Context, id string) (models.Ferry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.ferries[id]
	if !ok {
		return models.Ferry{}, domain.NotFoundError{Resource: "ferry", ID: id}
	}
	return f, nil
}

func (s *MemoryStore) CreateBooking(_ context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bookings[b.ID]; exists {
		return &domain.DuplicateResourceError{Resource: "booking", Key: b.ID}
	}
	for _, existing := range s.bookings {
		if existing.BookingNumber == b.BookingNumber {
			return &domain.DuplicateResourceError{Resource: "booking", Key: b.BookingNumber}
		}
	}
	s.bookings[b.ID] = b.Clone()
	return nil
}

func (s *MemoryStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "booking", ID: id}
	}
	return b.Clone(), nil
}

func (s *MemoryStore) UpdateBooking(_ context.Context, b *models.Booking, expected models.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bookings[b.ID]
	if !ok {
		return domain.NotFoundError{Resource: "booking", ID: b.ID}
	}
	if cur.Status != expected {
		return &domain.InvalidTransitionError{
			Entity: "booking",
			ID:     b.ID,
			From:   string(cur.Status),
			To:     string(b.Status),
			Rule:   "booking status changed concurrently, expected " + string(expected),
		}
	}
	s.bookings[b.ID] = b.Clone()
	return nil
}

func (s *MemoryStore) ListBookingsByStatus(_ context.Context, status models.BookingStatus) ([]*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Booking, 0)
	for _, b := range s.bookings {
		if b.Status == status {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CommittedLoad(_ context.Context, ferryID, date string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var vehicles, passengers int
	for _, b := range s.bookings {
		if b.FerryID != ferryID || b.TravelDate() != date || !b.Status.HoldsCapacity() {
			continue
		}
		vehicles += b.VehicleCount
		passengers += b.PassengerCount
	}
	return vehicles, passengers, nil
}

func (s *MemoryStore) CreateApproval(_ context.Context, a *models.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.approvals {
		if existing.BookingID == a.BookingID {
			return &domain.DuplicateResourceError{Resource: "approval", Key: "booking " + a.BookingID}
		}
	}
	s.approvals[a.ID] = a.Clone()
	return nil
}

func (s *MemoryStore) GetApproval(_ context.Context, id string) (*models.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.approvals[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "approval", ID: id}
	}
	return a.Clone(), nil
}

func (s *MemoryStore) GetApprovalByBooking(_ context.Context, bookingID string) (*models.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.approvals {
		if a.BookingID == bookingID {
			return a.Clone(), nil
		}
	}
	return nil, domain.NotFoundError{Resource: "approval for booking", ID: bookingID}
}

func (s *MemoryStore) UpdateApproval(_ context.Context, a *models.Approval, expected models.ApprovalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.approvals[a.ID]
	if !ok {
		return domain.NotFoundError{Resource: "approval", ID: a.ID}
	}
	if cur.Status != expected {
		return &domain.InvalidTransitionError{
			Entity: "approval",
			ID:     a.ID,
			From:   string(cur.Status),
			To:     string(a.Status),
			Rule:   "approval status changed concurrently, expected " + string(expected),
		}
	}
	s.approvals[a.ID] = a.Clone()
	return nil
}

func (s *MemoryStore) ListApprovals(_ context.Context) ([]*models.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Approval, 0, len(s.approvals))
	for _, a := range s.approvals {
		out = append(out, a.Clone())
	}
	sortApprovals(out)
	return out, nil
}

func (s *MemoryStore) ListApprovalsByStatus(_ context.Context, status models.ApprovalStatus) ([]*models.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Approval, 0)
	for _, a := range s.approvals {
		if a.Status == status {
			out = append(out, a.Clone())
		}
	}
	sortApprovals(out)
	return out, nil
}

func sortApprovals(list []*models.Approval) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

func (s *MemoryStore) CreatePayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[p.ID]; exists {
		return &domain.DuplicateResourceError{Resource: "payment", Key: p.ID}
	}
	for _, existing := range s.payments {
		if existing.PaymentNumber == p.PaymentNumber {
			return &domain.DuplicateResourceError{Resource: "payment", Key: p.PaymentNumber}
		}
	}
	s.payments[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "payment", ID: id}
	}
	return p.Clone(), nil
}

func (s *MemoryStore) GetPaymentByNumber(_ context.Context, number string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.PaymentNumber == number {
			return p.Clone(), nil
		}
	}
	return nil, domain.NotFoundError{Resource: "payment", ID: number}
}

func (s *MemoryStore) UpdatePayment(_ context.Context, p *models.Payment, expected models.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.payments[p.ID]
	if !ok {
		return domain.NotFoundError{Resource: "payment", ID: p.ID}
	}
	if cur.Status != expected {
		return &domain.InvalidTransitionError{
			Entity: "payment",
			ID:     p.ID,
			From:   string(cur.Status),
			To:     string(p.Status),
			Rule:   "payment status changed concurrently, expected " + string(expected),
		}
	}
	s.payments[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) ListPaymentsByBooking(_ context.Context, bookingID string) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Payment, 0)
	for _, p := range s.payments {
		if p.BookingID == bookingID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].PaymentNumber < out[j].PaymentNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// WithTx runs fn directly; each write is already atomic and callers serialize
// per booking.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *MemoryStore) WithCapacityLock(ctx context.Context, ferryID, date string, fn func(ctx context.Context) error) error {
	unlock := s.capacity.Lock(ferryID + "|" + date)
	defer unlock()
	return fn(ctx)
}
