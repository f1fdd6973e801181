package services

import (
	"context"
	"fmt"

	"ferrybook/internal/clock"
	"ferrybook/internal/domain"
	"ferrybook/internal/domain/models"
	"ferrybook/internal/repositories"
	"ferrybook/internal/utils"
)

// CapacityLedger admits or denies vehicle and passenger load per ferry and
// travel date. Committed load is derived from capacity-holding bookings; the
// read and the admitting write run under the store's per-(ferry, date) lock.
type CapacityLedger struct {
	store repositories.Store
	clock clock.Clock
}

func NewCapacityLedger(store repositories.Store, clk clock.Clock) *CapacityLedger {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &CapacityLedger{store: store, clock: clk}
}

// Utilization is a read-only snapshot of committed load for availability display.
type Utilization struct {
	FerryID             string  `json:"ferry_id"`
	Date                string  `json:"date"`
	VehiclesUsed        int     `json:"vehicles_used"`
	VehiclesMax         int     `json:"vehicles_max"`
	PassengersUsed      int     `json:"passengers_used"`
	PassengersMax       int     `json:"passengers_max"`
	VehiclePercent      float64 `json:"vehicle_percent"`
	PassengerPercent    float64 `json:"passenger_percent"`
	VehiclesAvailable   int     `json:"vehicles_available"`
	PassengersAvailable int     `json:"passengers_available"`
}

// Admit evaluates whether vehicleDelta/passengerDelta would fit on the ferry
// for date without writing anything. A denial is a *domain.CapacityExceededError.
func (l *CapacityLedger) Admit(ctx context.Context, ferryID, date string, vehicleDelta, passengerDelta int) error {
	if err := validateDeltas(vehicleDelta, passengerDelta); err != nil {
		return err
	}
	if _, err := utils.ParseDate(date); err != nil {
		return domain.ValidationError{Field: "date", Msg: "must be YYYY-MM-DD", Err: err}
	}
	return l.store.WithCapacityLock(ctx, ferryID, date, func(ctx context.Context) error {
		return l.evaluate(ctx, ferryID, date, vehicleDelta, passengerDelta)
	})
}

// AdmitBooking confirms a PENDING booking when its load fits. The check and
// the CONFIRMED write happen under one capacity lock. On denial the booking is
// left PENDING and the denial is returned; the caller records the rejection.
func (l *CapacityLedger) AdmitBooking(ctx context.Context, b *models.Booking, actor domain.ActorID) error {
	if err := models.ValidateBookingTransition(b.ID, b.Status, models.BookingConfirmed); err != nil {
		return err
	}
	date := b.TravelDate()
	return l.store.WithCapacityLock(ctx, b.FerryID, date, func(ctx context.Context) error {
		if err := l.evaluate(ctx, b.FerryID, date, b.VehicleCount, b.PassengerCount); err != nil {
			return err
		}
		expected := b.Status
		if err := b.TransitionTo(models.BookingConfirmed, actor, "capacity admitted", l.clock.Now()); err != nil {
			return err
		}
		return l.store.UpdateBooking(ctx, b, expected)
	})
}

func (l *CapacityLedger) evaluate(ctx context.Context, ferryID, date string, vehicleDelta, passengerDelta int) error {
	ferry, err := l.store.GetFerry(ctx, ferryID)
	if err != nil {
		return err
	}
	if !ferry.IsOperational() {
		return domain.ValidationError{Field: "ferry_id", Msg: fmt.Sprintf("ferry %s is %s", ferry.ID, ferry.Status)}
	}
	vehicles, passengers, err := l.store.CommittedLoad(ctx, ferryID, date)
	if err != nil {
		return err
	}
	if vehicleDelta > 0 && vehicles+vehicleDelta > ferry.CapacityVehicles {
		return &domain.CapacityExceededError{
			FerryID:   ferryID,
			Date:      date,
			Dimension: domain.DimensionVehicle,
			Current:   vehicles,
			Max:       ferry.CapacityVehicles,
			Requested: vehicleDelta,
		}
	}
	if passengerDelta > 0 && passengers+passengerDelta > ferry.CapacityPassengers {
		return &domain.CapacityExceededError{
			FerryID:   ferryID,
			Date:      date,
			Dimension: domain.DimensionPassenger,
			Current:   passengers,
			Max:       ferry.CapacityPassengers,
			Requested: passengerDelta,
		}
	}
	return nil
}

// Utilization reads committed load without taking the admission lock.
func (l *CapacityLedger) Utilization(ctx context.Context, ferryID, date string) (Utilization, error) {
	if _, err := utils.ParseDate(date); err != nil {
		return Utilization{}, domain.ValidationError{Field: "date", Msg: "must be YYYY-MM-DD", Err: err}
	}
	ferry, err := l.store.GetFerry(ctx, ferryID)
	if err != nil {
		return Utilization{}, err
	}
	vehicles, passengers, err := l.store.CommittedLoad(ctx, ferryID, date)
	if err != nil {
		return Utilization{}, err
	}
	return Utilization{
		FerryID:             ferryID,
		Date:                date,
		VehiclesUsed:        vehicles,
		VehiclesMax:         ferry.CapacityVehicles,
		PassengersUsed:      passengers,
		PassengersMax:       ferry.CapacityPassengers,
		VehiclePercent:      percent(vehicles, ferry.CapacityVehicles),
		PassengerPercent:    percent(passengers, ferry.CapacityPassengers),
		VehiclesAvailable:   available(vehicles, ferry.CapacityVehicles),
		PassengersAvailable: available(passengers, ferry.CapacityPassengers),
	}, nil
}

func validateDeltas(vehicles, passengers int) error {
	if vehicles < 0 {
		return domain.ValidationError{Field: "vehicle_count", Msg: "must not be negative"}
	}
	if passengers < 0 {
		return domain.ValidationError{Field: "passenger_count", Msg: "must not be negative"}
	}
	return nil
}

func percent(used, max int) float64 {
	if max <= 0 {
		return 0
	}
	return float64(used) * 100 / float64(max)
}

func available(used, max int) int {
	if used >= max {
		return 0
	}
	return max - used
}
