package models

// FerryStatus is the operating status of a ferry.
type FerryStatus string

const (
	FerryActive      FerryStatus = "ACTIVE"
	FerryMaintenance FerryStatus = "MAINTENANCE"
	FerryInactive    FerryStatus = "INACTIVE"
)

// Ferry carries the capacity figures the ledger validates against.
type Ferry struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	CapacityVehicles   int         `json:"capacity_vehicles"`
	CapacityPassengers int         `json:"capacity_passengers"`
	Status             FerryStatus `json:"status"`
}

func (f Ferry) IsOperational() bool {
	return f.Status == FerryActive
}
