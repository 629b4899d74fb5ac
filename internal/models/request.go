package models

import "time"

type InterpreterRequest struct {
	RequestID       string    `json:"request_id"`
	AgencyID        string    `json:"agency_id"`
	RequestorID     string    `json:"requestor_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Language        string    `json:"language"`
	AppointmentType string    `json:"appointment_type"`
	Mode            *string   `json:"mode,omitempty"`
	Description     *string   `json:"description,omitempty"`
	Status          string    `json:"status"`
	AppointmentID   *string   `json:"appointment_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const (
	RequestPending   = "pending"
	RequestApproved  = "approved"
	RequestRejected  = "rejected"
	RequestFulfilled = "fulfilled"
	RequestCancelled = "cancelled"
)

func (r InterpreterRequest) CanBeApproved() bool {
	return r.Status == RequestPending
}

func (r InterpreterRequest) CanBeRejected() bool {
	return r.Status == RequestPending || r.Status == RequestApproved
}

func (r InterpreterRequest) CanBeCancelled() bool {
	return r.Status == RequestPending || r.Status == RequestApproved
}

func (r InterpreterRequest) CanBeFulfilled() bool {
	return r.Status == RequestApproved
}
