package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	intdb "ferrybook/internal/db"
	"ferrybook/internal/utils"
)

// MySQLStore implements Store on MySQL. Transactions travel in the context so
// repository calls made inside WithTx join the open transaction.
type MySQLStore struct {
	DB *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{DB: db}
}

func (s *MySQLStore) conn(ctx context.Context) intdb.Execer {
	return intdb.Conn(ctx, s.DB)
}

func (s *MySQLStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return intdb.WithTx(ctx, s.DB, fn)
}

// WithCapacityLock upserts the (ferry, date) row in capacity_locks, which
// takes an exclusive row lock held until the transaction ends. Different
// ferries or dates lock different rows.
func (s *MySQLStore) WithCapacityLock(ctx context.Context, ferryID, date string, fn func(ctx context.Context) error) error {
	return s.WithTx(ctx, func(txCtx context.Context) error {
		_, err := s.conn(txCtx).ExecContext(txCtx, `
			INSERT INTO capacity_locks (ferry_id, travel_date, locked_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE locked_at = VALUES(locked_at)`,
			ferryID, date, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("acquire capacity lock %s/%s: %w", ferryID, date, err)
		}
		return fn(txCtx)
	})
}

var schemaDDL = []struct {
	table string
	ddl   string
}{
	{"ferries", `
CREATE TABLE IF NOT EXISTS ferries (
	id VARCHAR(64) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	capacity_vehicles INT NOT NULL,
	capacity_passengers INT NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE'
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"bookings", `
CREATE TABLE IF NOT EXISTS bookings (
	id VARCHAR(64) PRIMARY KEY,
	booking_number VARCHAR(64) NOT NULL,
	customer_id VARCHAR(64) NOT NULL,
	route_id VARCHAR(64) NOT NULL,
	ferry_id VARCHAR(64) NOT NULL,
	departure_time DATETIME NOT NULL,
	travel_date DATE NOT NULL,
	vehicle_count INT NOT NULL DEFAULT 0,
	passenger_count INT NOT NULL DEFAULT 0,
	total_amount BIGINT NOT NULL,
	currency CHAR(3) NOT NULL,
	status VARCHAR(32) NOT NULL,
	created_at DATETIME(3) NOT NULL,
	confirmed_at DATETIME(3) NULL,
	payment_requested_at DATETIME(3) NULL,
	paid_at DATETIME(3) NULL,
	review_started_at DATETIME(3) NULL,
	completed_at DATETIME(3) NULL,
	cancelled_at DATETIME(3) NULL,
	rejected_at DATETIME(3) NULL,
	refund_requested_at DATETIME(3) NULL,
	refunded_at DATETIME(3) NULL,
	updated_at DATETIME(3) NOT NULL,
	cancellation_reason VARCHAR(500) NULL,
	cancelled_by VARCHAR(64) NULL,
	rejection_reason VARCHAR(500) NULL,
	refund_reason VARCHAR(500) NULL,
	refunded_by VARCHAR(64) NULL,
	refund_amount BIGINT NOT NULL DEFAULT 0,
	UNIQUE KEY uniq_booking_number (booking_number),
	KEY idx_capacity (ferry_id, travel_date, status),
	KEY idx_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"booking_status_history", `
CREATE TABLE IF NOT EXISTS booking_status_history (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	booking_id VARCHAR(64) NOT NULL,
	from_status VARCHAR(32) NOT NULL,
	to_status VARCHAR(32) NOT NULL,
	actor VARCHAR(64) NULL,
	note VARCHAR(500) NULL,
	changed_at DATETIME(3) NOT NULL,
	KEY idx_booking (booking_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"approvals", `
CREATE TABLE IF NOT EXISTS approvals (
	id VARCHAR(64) PRIMARY KEY,
	booking_id VARCHAR(64) NOT NULL,
	status VARCHAR(20) NOT NULL,
	review_started_at DATETIME(3) NULL,
	review_deadline DATETIME(3) NULL,
	reviewer_id VARCHAR(64) NULL,
	notes TEXT NULL,
	decided_at DATETIME(3) NULL,
	created_at DATETIME(3) NOT NULL,
	updated_at DATETIME(3) NOT NULL,
	UNIQUE KEY uniq_approval_booking (booking_id),
	KEY idx_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"payments", `
CREATE TABLE IF NOT EXISTS payments (
	id VARCHAR(64) PRIMARY KEY,
	payment_number VARCHAR(64) NOT NULL,
	booking_id VARCHAR(64) NOT NULL,
	amount BIGINT NOT NULL,
	method VARCHAR(32) NOT NULL,
	status VARCHAR(32) NOT NULL,
	transaction_id VARCHAR(100) NULL,
	gateway_response VARCHAR(500) NULL,
	failure_reason VARCHAR(500) NULL,
	refund_amount BIGINT NOT NULL DEFAULT 0,
	refunded_at DATETIME(3) NULL,
	paid_at DATETIME(3) NULL,
	notes TEXT NULL,
	processed_by VARCHAR(64) NULL,
	created_at DATETIME(3) NOT NULL,
	updated_at DATETIME(3) NOT NULL,
	UNIQUE KEY uniq_payment_number (payment_number),
	KEY idx_booking (booking_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"capacity_locks", `
CREATE TABLE IF NOT EXISTS capacity_locks (
	ferry_id VARCHAR(64) NOT NULL,
	travel_date DATE NOT NULL,
	locked_at DATETIME(3) NOT NULL,
	PRIMARY KEY (ferry_id, travel_date)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
}

// EnsureSchema creates missing tables.
func (s *MySQLStore) EnsureSchema(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("db not available")
	}
	for _, t := range schemaDDL {
		if intdb.HasTable(ctx, s.DB, t.table) {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.table, err)
		}
		utils.LogEvent("", "schema", "create_table", t.table)
	}
	return nil
}
