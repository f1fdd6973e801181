package repositories

import (
	"context"
	"database/sql"
	"errors"

	intdb "ferrybook/internal/db"
	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
)

const paymentColumns = `id, payment_number, booking_id, amount, method, status,
	COALESCE(transaction_id,''), COALESCE(gateway_response,''), COALESCE(failure_reason,''),
	refund_amount, refunded_at, paid_at, COALESCE(notes,''), COALESCE(processed_by,''),
	created_at, updated_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	var method, status, processedBy string
	var refunded, paid sql.NullTime
	if err := row.Scan(&p.ID, &p.PaymentNumber, &p.BookingID, &p.Amount, &method, &status,
		&p.TransactionID, &p.GatewayResponse, &p.FailureReason,
		&p.RefundAmount, &refunded, &paid, &p.Notes, &processedBy,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Method = models.PaymentMethod(method)
	p.Status = models.PaymentStatus(status)
	p.ProcessedBy = domain.ActorID(processedBy)
	p.RefundedAt = intdb.TimePtr(refunded)
	p.PaidAt = intdb.TimePtr(paid)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *MySQLStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO payments (id, payment_number, booking_id, amount, method, status,
			transaction_id, gateway_response, failure_reason, refund_amount, refunded_at, paid_at,
			notes, processed_by, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.PaymentNumber, p.BookingID, p.Amount, string(p.Method), string(p.Status),
		intdb.NullIfEmpty(p.TransactionID), intdb.NullIfEmpty(p.GatewayResponse), intdb.NullIfEmpty(p.FailureReason),
		p.RefundAmount, intdb.NullTime(p.RefundedAt), intdb.NullTime(p.PaidAt),
		intdb.NullIfEmpty(p.Notes), intdb.NullIfEmpty(string(p.ProcessedBy)), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return &domain.DuplicateResourceError{Resource: "payment", Key: p.PaymentNumber}
		}
		return domain.InternalError{Msg: "insert payment", Err: err}
	}
	return nil
}

func (s *MySQLStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return s.getPaymentBy(ctx, "id", id)
}

func (s *MySQLStore) GetPaymentByNumber(ctx context.Context, number string) (*models.Payment, error) {
	return s.getPaymentBy(ctx, "payment_number", number)
}

func (s *MySQLStore) getPaymentBy(ctx context.Context, column, value string) (*models.Payment, error) {
	p, err := scanPayment(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE `+column+` = ? LIMIT 1`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError{Resource: "payment", ID: value, Err: err}
		}
		return nil, domain.InternalError{Msg: "load payment", Err: err}
	}
	return p, nil
}

func (s *MySQLStore) UpdatePayment(ctx context.Context, p *models.Payment, expected models.PaymentStatus) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE payments SET status=?, transaction_id=?, gateway_response=?, failure_reason=?,
			refund_amount=?, refunded_at=?, paid_at=?, notes=?, processed_by=?, updated_at=?
		WHERE id=? AND status=?`,
		string(p.Status), intdb.NullIfEmpty(p.TransactionID), intdb.NullIfEmpty(p.GatewayResponse),
		intdb.NullIfEmpty(p.FailureReason), p.RefundAmount, intdb.NullTime(p.RefundedAt), intdb.NullTime(p.PaidAt),
		intdb.NullIfEmpty(p.Notes), intdb.NullIfEmpty(string(p.ProcessedBy)), p.UpdatedAt,
		p.ID, string(expected),
	)
	if err != nil {
		return domain.InternalError{Msg: "update payment", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.InternalError{Msg: "update payment", Err: err}
	}
	if n > 0 {
		return nil
	}

	var current string
	err = s.conn(ctx).QueryRowContext(ctx, `SELECT status FROM payments WHERE id = ? LIMIT 1`, p.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: "payment", ID: p.ID, Err: err}
	}
	if err != nil {
		return domain.InternalError{Msg: "update payment", Err: err}
	}
	return &domain.InvalidTransitionError{
		Entity: "payment",
		ID:     p.ID,
		From:   current,
		To:     string(p.Status),
		Rule:   "payment status changed concurrently, expected " + string(expected),
	}
}

func (s *MySQLStore) ListPaymentsByBooking(ctx context.Context, bookingID string) ([]*models.Payment, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = ? ORDER BY created_at, payment_number`, bookingID)
	if err != nil {
		return nil, domain.InternalError{Msg: "list payments", Err: err}
	}
	defer rows.Close()

	out := make([]*models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domain.InternalError{Msg: "scan payment", Err: err}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.InternalError{Msg: "list payments", Err: err}
	}
	return out, nil
}
