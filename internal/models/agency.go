package models

import "time"

type Agency struct {
	AgencyID    string    `json:"agency_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	AgencyActive    = "active"
	AgencyInactive  = "inactive"
	AgencySuspended = "suspended"
)

type Interpreter struct {
	InterpreterID string    `json:"interpreter_id"`
	AgencyID      string    `json:"agency_id"`
	UserID        string    `json:"user_id"`
	Skills        []string  `json:"skills"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const (
	InterpreterActive    = "active"
	InterpreterInactive  = "inactive"
	InterpreterSuspended = "suspended"
	InterpreterOnLeave   = "on_leave"
)

type Client struct {
	ClientID         string            `json:"client_id"`
	AgencyID         string            `json:"agency_id"`
	UserID           string            `json:"user_id"`
	OrganizationName string            `json:"organization_name,omitempty"`
	Preferences      map[string]string `json:"preferences,omitempty"`
	Status           string            `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

const (
	ClientActive      = "active"
	ClientInactive    = "inactive"
	ClientSuspended   = "suspended"
	ClientBlacklisted = "blacklisted"
)

// AvailableInterpreter is an availability query result. The slot is the
// requested window itself, not a computed free sub-interval.
type AvailableInterpreter struct {
	InterpreterID string    `json:"interpreter_id"`
	UserID        string    `json:"user_id"`
	Skills        []string  `json:"skills"`
	SlotStart     time.Time `json:"slot_start"`
	SlotEnd       time.Time `json:"slot_end"`
	TimeZone      string    `json:"time_zone"`
}
