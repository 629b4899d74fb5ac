package models

import "time"

type Appointment struct {
	AppointmentID      string     `json:"appointment_id"`
	AgencyID           string     `json:"agency_id"`
	InterpreterID      string     `json:"interpreter_id"`
	ClientID           string     `json:"client_id"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	TimeZone           string     `json:"time_zone"`
	Status             string     `json:"status"`
	Location           *string    `json:"location,omitempty"`
	Language           *string    `json:"language,omitempty"`
	Rate               *float64   `json:"rate,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	RequestID          string     `json:"request_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

const (
	StatusScheduled   = "scheduled"
	StatusConfirmed   = "confirmed"
	StatusInProgress  = "in_progress"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
	StatusRescheduled = "rescheduled"
	StatusNoShow      = "no_show"
)

// Active reports whether the appointment participates in overlap checks.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled && a.Status != StatusCompleted
}

func (a Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}
