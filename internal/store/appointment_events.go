package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"tia/booking-service/internal/models"
)

type AppointmentEvent struct {
	AppointmentID  string          `json:"appointment_id"`
	AppointmentSeq int             `json:"appointment_seq"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      time.Time       `json:"created_at"`
	PrevHash       string          `json:"prev_hash"`
	Hash           string          `json:"hash"`
}

type appointmentEventPayload struct {
	AppointmentID      string     `json:"appointment_id"`
	AgencyID           string     `json:"agency_id"`
	InterpreterID      string     `json:"interpreter_id"`
	ClientID           string     `json:"client_id"`
	Status             string     `json:"status"`
	StartTime          *time.Time `json:"start_time"`
	EndTime            *time.Time `json:"end_time"`
	TimeZone           string     `json:"time_zone"`
	CancellationReason *string    `json:"cancellation_reason"`
	CreatedAt          *time.Time `json:"created_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at"`
	StartedAt          *time.Time `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
}

func ComputeAppointmentEventHash(prevHash, appointmentID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, appointmentID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// RehydrateAppointment folds an event chain back into the appointment's
// latest observable state.
func RehydrateAppointment(events []AppointmentEvent) (models.Appointment, error) {
	var appt models.Appointment
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload appointmentEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Appointment{}, err
		}
		if payload.AppointmentID != "" {
			appt.AppointmentID = payload.AppointmentID
		}
		if payload.AgencyID != "" {
			appt.AgencyID = payload.AgencyID
		}
		if payload.InterpreterID != "" {
			appt.InterpreterID = payload.InterpreterID
		}
		if payload.ClientID != "" {
			appt.ClientID = payload.ClientID
		}
		if payload.Status != "" {
			appt.Status = payload.Status
		}
		if payload.StartTime != nil {
			appt.StartTime = *payload.StartTime
		}
		if payload.EndTime != nil {
			appt.EndTime = *payload.EndTime
		}
		if payload.TimeZone != "" {
			appt.TimeZone = payload.TimeZone
		}
		if payload.CancellationReason != nil {
			appt.CancellationReason = payload.CancellationReason
		}
		if payload.CreatedAt != nil {
			appt.CreatedAt = *payload.CreatedAt
		}
		if payload.ConfirmedAt != nil {
			appt.ConfirmedAt = payload.ConfirmedAt
		}
		if payload.StartedAt != nil {
			appt.StartedAt = payload.StartedAt
		}
		if payload.CompletedAt != nil {
			appt.CompletedAt = payload.CompletedAt
		}
	}
	return appt, nil
}
