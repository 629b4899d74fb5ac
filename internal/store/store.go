package store

import (
	"context"
	"encoding/json"
	"time"

	"tia/booking-service/internal/models"
)

type CreateAgencyInput struct {
	Name        string
	Description string
}

type UpdateAgencyInput struct {
	AgencyID    string
	Name        *string
	Description *string
	Status      *string
}

type CreateInterpreterInput struct {
	AgencyID string
	UserID   string
	Skills   []string
}

type CreateClientInput struct {
	AgencyID         string
	UserID           string
	OrganizationName string
	Preferences      map[string]string
}

type AvailabilityInput struct {
	AgencyID  string
	StartTime time.Time
	EndTime   time.Time
	Skills    []string
	Language  string
}

type BookAppointmentInput struct {
	RequestID     string
	AgencyID      string
	InterpreterID string
	ClientID      string
	StartTime     time.Time
	EndTime       time.Time
	TimeZone      string
	Location      string
	Language      string
	Rate          *float64
	Notes         string
}

type AppointmentActionInput struct {
	RequestID     string
	AgencyID      string
	AppointmentID string
	Reason        string
	OccurredAt    time.Time
}

type RescheduleInput struct {
	RequestID     string
	AgencyID      string
	AppointmentID string
	NewStartTime  time.Time
	NewEndTime    time.Time
	OccurredAt    time.Time
}

type CreateRequestInput struct {
	AgencyID        string
	RequestorID     string
	StartTime       time.Time
	EndTime         time.Time
	Language        string
	AppointmentType string
	Mode            string
	Description     string
}

type RequestStatusInput struct {
	AgencyID      string
	RequestID     string
	NewStatus     string
	AppointmentID string
}

type CreateInvoiceInput struct {
	AgencyID          string
	ClientID          string
	AppointmentID     string
	ExternalInvoiceID string
	DueDate           *time.Time
	Amount            *float64
	Currency          string
	Notes             string
}

type BookingStore interface {
	CreateAgency(ctx context.Context, input CreateAgencyInput) (models.Agency, error)
	UpdateAgency(ctx context.Context, input UpdateAgencyInput) (models.Agency, error)
	GetAgency(ctx context.Context, agencyID string) (models.Agency, error)
	ListAgencies(ctx context.Context) ([]models.Agency, error)
	IsAgencyNameUnique(ctx context.Context, name, excludeAgencyID string) (bool, error)

	CreateInterpreter(ctx context.Context, input CreateInterpreterInput) (models.Interpreter, error)
	CreateClient(ctx context.Context, input CreateClientInput) (models.Client, error)
	FindAvailableInterpreters(ctx context.Context, input AvailabilityInput) ([]models.AvailableInterpreter, error)

	BookAppointment(ctx context.Context, input BookAppointmentInput) (models.Appointment, bool, error)
	GetAppointment(ctx context.Context, agencyID, appointmentID string) (models.Appointment, error)
	ListAppointments(ctx context.Context, agencyID, interpreterID string) ([]models.Appointment, error)
	UpdateAppointmentNotes(ctx context.Context, agencyID, appointmentID, notes string) (models.Appointment, error)
	UpdateAppointmentLocation(ctx context.Context, agencyID, appointmentID, location string) (models.Appointment, error)
	UpdateAppointmentRate(ctx context.Context, agencyID, appointmentID string, rate float64) (models.Appointment, error)
	ConfirmAppointment(ctx context.Context, input AppointmentActionInput) (models.Appointment, bool, error)
	StartAppointment(ctx context.Context, input AppointmentActionInput) (models.Appointment, bool, error)
	CompleteAppointment(ctx context.Context, input AppointmentActionInput) (models.Appointment, bool, error)
	CancelAppointment(ctx context.Context, input AppointmentActionInput) (models.Appointment, bool, error)
	RescheduleAppointment(ctx context.Context, input RescheduleInput) (models.Appointment, bool, error)
	NoShowAppointment(ctx context.Context, input AppointmentActionInput) (models.Appointment, bool, error)
	HasOverlappingAppointments(ctx context.Context, interpreterID string, start, end time.Time) (bool, error)
	ListAppointmentEvents(ctx context.Context, agencyID, appointmentID string) ([]AppointmentEvent, error)
	ListOutboxEvents(ctx context.Context, agencyID string, after time.Time, limit int) ([]OutboxEvent, error)

	CreateRequest(ctx context.Context, input CreateRequestInput) (models.InterpreterRequest, error)
	UpdateRequestStatus(ctx context.Context, input RequestStatusInput) (models.InterpreterRequest, error)
	CancelRequest(ctx context.Context, agencyID, requestID string) (models.InterpreterRequest, error)
	GetRequest(ctx context.Context, agencyID, requestID string) (models.InterpreterRequest, error)
	ListRequests(ctx context.Context, agencyID, status string) ([]models.InterpreterRequest, error)

	CreateInvoice(ctx context.Context, input CreateInvoiceInput) (models.Invoice, error)
	MarkInvoiceSent(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error)
	MarkInvoicePaid(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error)
	MarkInvoiceOverdue(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error)
	VoidInvoice(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error)
	GetInvoice(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error)
	GetInvoiceByAppointment(ctx context.Context, agencyID, appointmentID string) (models.Invoice, error)

	GetSession(ctx context.Context, sessionID string) (Session, error)
	GetAccess(ctx context.Context, userID string) ([]string, error)
}

type Session struct {
	SessionID string
	UserID    string
	AgencyID  string
	Role      string
	ExpiresAt time.Time
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	AgencyID  string          `json:"agency_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
