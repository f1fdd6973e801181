package repositories

import (
	"context"
	"database/sql"
	"errors"

	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
)

func (s *MySQLStore) GetFerry(ctx context.Context, id string) (models.Ferry, error) {
	var f models.Ferry
	var status string
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, capacity_vehicles, capacity_passengers, status
		FROM ferries
		WHERE id = ? LIMIT 1`, id,
	).Scan(&f.ID, &f.Name, &f.CapacityVehicles, &f.CapacityPassengers, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Ferry{}, domain.NotFoundError{Resource: "ferry", ID: id, Err: err}
		}
		return models.Ferry{}, domain.InternalError{Msg: "load ferry", Err: err}
	}
	f.Status = models.FerryStatus(status)
	return f, nil
}
