package repositories

import (
	"context"
	"database/sql"
	"errors"

	intdb "ferrybook/internal/db"
	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
)

const approvalColumns = `id, booking_id, status, review_started_at, review_deadline,
	COALESCE(reviewer_id,''), COALESCE(notes,''), decided_at, created_at, updated_at`

func scanApproval(row rowScanner) (*models.Approval, error) {
	var a models.Approval
	var status, reviewer string
	var started, deadline, decided sql.NullTime
	if err := row.Scan(&a.ID, &a.BookingID, &status, &started, &deadline,
		&reviewer, &a.Notes, &decided, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = models.ApprovalStatus(status)
	a.ReviewerID = domain.ActorID(reviewer)
	a.ReviewStartedAt = intdb.TimePtr(started)
	a.ReviewDeadline = intdb.TimePtr(deadline)
	a.DecidedAt = intdb.TimePtr(decided)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// CreateApproval relies on the unique booking_id key to reject a second approval.
func (s *MySQLStore) CreateApproval(ctx context.Context, a *models.Approval) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO approvals (id, booking_id, status, review_started_at, review_deadline,
			reviewer_id, notes, decided_at, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.BookingID, string(a.Status), intdb.NullTime(a.ReviewStartedAt), intdb.NullTime(a.ReviewDeadline),
		intdb.NullIfEmpty(string(a.ReviewerID)), intdb.NullIfEmpty(a.Notes), intdb.NullTime(a.DecidedAt),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return &domain.DuplicateResourceError{Resource: "approval", Key: "booking " + a.BookingID}
		}
		return domain.InternalError{Msg: "insert approval", Err: err}
	}
	return nil
}

func (s *MySQLStore) GetApproval(ctx context.Context, id string) (*models.Approval, error) {
	a, err := scanApproval(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE id = ? LIMIT 1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError{Resource: "approval", ID: id, Err: err}
		}
		return nil, domain.InternalError{Msg: "load approval", Err: err}
	}
	return a, nil
}

func (s *MySQLStore) GetApprovalByBooking(ctx context.Context, bookingID string) (*models.Approval, error) {
	a, err := scanApproval(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE booking_id = ? LIMIT 1`, bookingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError{Resource: "approval for booking", ID: bookingID, Err: err}
		}
		return nil, domain.InternalError{Msg: "load approval", Err: err}
	}
	return a, nil
}

func (s *MySQLStore) UpdateApproval(ctx context.Context, a *models.Approval, expected models.ApprovalStatus) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE approvals SET status=?, review_started_at=?, review_deadline=?, reviewer_id=?,
			notes=?, decided_at=?, updated_at=?
		WHERE id=? AND status=?`,
		string(a.Status), intdb.NullTime(a.ReviewStartedAt), intdb.NullTime(a.ReviewDeadline),
		intdb.NullIfEmpty(string(a.ReviewerID)), intdb.NullIfEmpty(a.Notes), intdb.NullTime(a.DecidedAt),
		a.UpdatedAt, a.ID, string(expected),
	)
	if err != nil {
		return domain.InternalError{Msg: "update approval", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.InternalError{Msg: "update approval", Err: err}
	}
	if n > 0 {
		return nil
	}

	var current string
	err = s.conn(ctx).QueryRowContext(ctx, `SELECT status FROM approvals WHERE id = ? LIMIT 1`, a.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: "approval", ID: a.ID, Err: err}
	}
	if err != nil {
		return domain.InternalError{Msg: "update approval", Err: err}
	}
	return &domain.InvalidTransitionError{
		Entity: "approval",
		ID:     a.ID,
		From:   current,
		To:     string(a.Status),
		Rule:   "approval status changed concurrently, expected " + string(expected),
	}
}

func (s *MySQLStore) ListApprovals(ctx context.Context) ([]*models.Approval, error) {
	return s.queryApprovals(ctx, `SELECT `+approvalColumns+` FROM approvals ORDER BY created_at, id`)
}

func (s *MySQLStore) ListApprovalsByStatus(ctx context.Context, status models.ApprovalStatus) ([]*models.Approval, error) {
	return s.queryApprovals(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE status = ? ORDER BY created_at, id`, string(status))
}

func (s *MySQLStore) queryApprovals(ctx context.Context, query string, args ...any) ([]*models.Approval, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.InternalError{Msg: "list approvals", Err: err}
	}
	defer rows.Close()

	out := make([]*models.Approval, 0)
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, domain.InternalError{Msg: "scan approval", Err: err}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.InternalError{Msg: "list approvals", Err: err}
	}
	return out, nil
}
