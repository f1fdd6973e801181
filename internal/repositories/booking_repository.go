package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	intdb "ferrybook/internal/db"
	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
)

const bookingColumns = `id, booking_number, customer_id, route_id, ferry_id, departure_time,
	DATE_FORMAT(travel_date, '%Y-%m-%d'),
	vehicle_count, passenger_count, total_amount, currency, status,
	created_at, confirmed_at, payment_requested_at, paid_at, review_started_at,
	completed_at, cancelled_at, rejected_at, refund_requested_at, refunded_at, updated_at,
	COALESCE(cancellation_reason,''), COALESCE(cancelled_by,''), COALESCE(rejection_reason,''),
	COALESCE(refund_reason,''), COALESCE(refunded_by,''), refund_amount`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var customer, status, cancelledBy, refundedBy string
	var confirmed, payReq, paid, review, completed, cancelled sql.NullTime
	var rejected, refundReq, refunded sql.NullTime
	if err := row.Scan(
		&b.ID, &b.BookingNumber, &customer, &b.RouteID, &b.FerryID, &b.DepartureTime,
		&b.TravelDay,
		&b.VehicleCount, &b.PassengerCount, &b.TotalAmount, &b.Currency, &status,
		&b.CreatedAt, &confirmed, &payReq, &paid, &review,
		&completed, &cancelled, &rejected, &refundReq, &refunded, &b.UpdatedAt,
		&b.CancellationReason, &cancelledBy, &b.RejectionReason,
		&b.RefundReason, &refundedBy, &b.RefundAmount,
	); err != nil {
		return nil, err
	}
	b.CustomerID = domain.ActorID(customer)
	b.Status = models.BookingStatus(status)
	b.CancelledBy = domain.ActorID(cancelledBy)
	b.RefundedBy = domain.ActorID(refundedBy)
	b.DepartureTime = b.DepartureTime.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	b.ConfirmedAt = intdb.TimePtr(confirmed)
	b.PaymentRequestedAt = intdb.TimePtr(payReq)
	b.PaidAt = intdb.TimePtr(paid)
	b.ReviewStartedAt = intdb.TimePtr(review)
	b.CompletedAt = intdb.TimePtr(completed)
	b.CancelledAt = intdb.TimePtr(cancelled)
	b.RejectedAt = intdb.TimePtr(rejected)
	b.RefundRequestedAt = intdb.TimePtr(refundReq)
	b.RefundedAt = intdb.TimePtr(refunded)
	return &b, nil
}

func (s *MySQLStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		_, err := s.conn(ctx).ExecContext(ctx, `
			INSERT INTO bookings (
				id, booking_number, customer_id, route_id, ferry_id, departure_time, travel_date,
				vehicle_count, passenger_count, total_amount, currency, status, created_at, updated_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			b.ID, b.BookingNumber, string(b.CustomerID), b.RouteID, b.FerryID, b.DepartureTime, b.TravelDate(),
			b.VehicleCount, b.PassengerCount, b.TotalAmount, b.Currency, string(b.Status), b.CreatedAt, b.UpdatedAt,
		)
		if err != nil {
			if intdb.IsDuplicateKey(err) {
				return &domain.DuplicateResourceError{Resource: "booking", Key: b.BookingNumber}
			}
			return domain.InternalError{Msg: "insert booking", Err: err}
		}
		for _, h := range b.History {
			if err := s.insertHistory(ctx, b.ID, h); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *MySQLStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? LIMIT 1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError{Resource: "booking", ID: id, Err: err}
		}
		return nil, domain.InternalError{Msg: "load booking", Err: err}
	}
	history, err := s.loadHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	b.History = history
	return b, nil
}

// UpdateBooking is a compare-and-set on status. The newest history entry is
// appended when the status changed.
func (s *MySQLStore) UpdateBooking(ctx context.Context, b *models.Booking, expected models.BookingStatus) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		res, err := s.conn(ctx).ExecContext(ctx, `
			UPDATE bookings SET
				status=?, confirmed_at=?, payment_requested_at=?, paid_at=?, review_started_at=?,
				completed_at=?, cancelled_at=?, rejected_at=?, refund_requested_at=?, refunded_at=?,
				updated_at=?, cancellation_reason=?, cancelled_by=?, rejection_reason=?,
				refund_reason=?, refunded_by=?, refund_amount=?
			WHERE id=? AND status=?`,
			string(b.Status), intdb.NullTime(b.ConfirmedAt), intdb.NullTime(b.PaymentRequestedAt),
			intdb.NullTime(b.PaidAt), intdb.NullTime(b.ReviewStartedAt), intdb.NullTime(b.CompletedAt),
			intdb.NullTime(b.CancelledAt), intdb.NullTime(b.RejectedAt), intdb.NullTime(b.RefundRequestedAt),
			intdb.NullTime(b.RefundedAt), b.UpdatedAt,
			intdb.NullIfEmpty(b.CancellationReason), intdb.NullIfEmpty(string(b.CancelledBy)),
			intdb.NullIfEmpty(b.RejectionReason), intdb.NullIfEmpty(b.RefundReason),
			intdb.NullIfEmpty(string(b.RefundedBy)), b.RefundAmount,
			b.ID, string(expected),
		)
		if err != nil {
			return domain.InternalError{Msg: "update booking", Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return domain.InternalError{Msg: "update booking", Err: err}
		}
		if n == 0 {
			return s.bookingCASFailure(ctx, b, expected)
		}
		if b.Status != expected && len(b.History) > 0 {
			return s.insertHistory(ctx, b.ID, b.History[len(b.History)-1])
		}
		return nil
	})
}

func (s *MySQLStore) bookingCASFailure(ctx context.Context, b *models.Booking, expected models.BookingStatus) error {
	var current string
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ? LIMIT 1`, b.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: "booking", ID: b.ID, Err: err}
	}
	if err != nil {
		return domain.InternalError{Msg: "update booking", Err: err}
	}
	return &domain.InvalidTransitionError{
		Entity: "booking",
		ID:     b.ID,
		From:   current,
		To:     string(b.Status),
		Rule:   "booking status changed concurrently, expected " + string(expected),
	}
}

func (s *MySQLStore) ListBookingsByStatus(ctx context.Context, status models.BookingStatus) ([]*models.Booking, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = ? ORDER BY created_at`, string(status))
	if err != nil {
		return nil, domain.InternalError{Msg: "list bookings", Err: err}
	}
	defer rows.Close()

	out := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, domain.InternalError{Msg: "scan booking", Err: err}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.InternalError{Msg: "list bookings", Err: err}
	}
	return out, nil
}

func (s *MySQLStore) CommittedLoad(ctx context.Context, ferryID, date string) (int, int, error) {
	var vehicles, passengers int
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(vehicle_count),0), COALESCE(SUM(passenger_count),0)
		FROM bookings
		WHERE ferry_id = ? AND travel_date = ? AND status IN (?,?,?,?,?)`,
		ferryID, date,
		string(models.BookingConfirmed), string(models.BookingWaitingForPayment), string(models.BookingPaid),
		string(models.BookingInReview), string(models.BookingInProgress),
	).Scan(&vehicles, &passengers)
	if err != nil {
		return 0, 0, domain.InternalError{Msg: fmt.Sprintf("committed load %s/%s", ferryID, date), Err: err}
	}
	return vehicles, passengers, nil
}

func (s *MySQLStore) insertHistory(ctx context.Context, bookingID string, h models.StatusChange) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO booking_status_history (booking_id, from_status, to_status, actor, note, changed_at)
		VALUES (?,?,?,?,?,?)`,
		bookingID, string(h.From), string(h.To), intdb.NullIfEmpty(string(h.Actor)), intdb.NullIfEmpty(h.Note), h.At,
	)
	if err != nil {
		return domain.InternalError{Msg: "insert booking history", Err: err}
	}
	return nil
}

func (s *MySQLStore) loadHistory(ctx context.Context, bookingID string) ([]models.StatusChange, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT from_status, to_status, COALESCE(actor,''), COALESCE(note,''), changed_at
		FROM booking_status_history
		WHERE booking_id = ?
		ORDER BY id`, bookingID)
	if err != nil {
		return nil, domain.InternalError{Msg: "load booking history", Err: err}
	}
	defer rows.Close()

	out := make([]models.StatusChange, 0)
	for rows.Next() {
		var h models.StatusChange
		var from, to, actor string
		if err := rows.Scan(&from, &to, &actor, &h.Note, &h.At); err != nil {
			return nil, domain.InternalError{Msg: "scan booking history", Err: err}
		}
		h.From = models.BookingStatus(from)
		h.To = models.BookingStatus(to)
		h.Actor = domain.ActorID(actor)
		h.At = h.At.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}
