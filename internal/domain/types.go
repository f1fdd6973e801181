package domain

// ActorID identifies a customer, employee or system process. It carries no
// behavior beyond identity.
type ActorID string

// SystemActor is used for transitions triggered by the core itself.
const SystemActor ActorID = "system"

// Role values understood by the HTTP layer.
const (
	RoleCustomer = "customer"
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// RequestContext carries authenticated actor info when available.
type RequestContext struct {
	Actor ActorID `json:"actor"`
	Role  string  `json:"role"`
}
