package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tia/booking-service/internal/models"
	"tia/booking-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `appointment_id, agency_id, interpreter_id, client_id, start_time, end_time, time_zone,
	status, location, language, rate, notes, cancellation_reason, request_id, created_at, updated_at,
	confirmed_at, started_at, completed_at`

func (s *Store) BookAppointment(ctx context.Context, input store.BookAppointmentInput) (models.Appointment, bool, error) {
	now := time.Now().UTC()
	if err := store.ValidateWindow(input.StartTime, input.EndTime, now); err != nil {
		return models.Appointment{}, false, err
	}
	if err := store.ValidateTimeZone(input.TimeZone); err != nil {
		return models.Appointment{}, false, err
	}
	if input.Rate != nil && *input.Rate < 0 {
		return models.Appointment{}, false, fmt.Errorf("%w: rate cannot be negative", store.ErrValidation)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Appointment{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findAppointmentByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.Appointment{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Appointment{}, false, err
		}
		return existing, false, nil
	}

	if err = ensureAgencyExists(ctx, tx, input.AgencyID); err != nil {
		return models.Appointment{}, false, err
	}
	if err = ensureInterpreterInAgency(ctx, tx, input.AgencyID, input.InterpreterID); err != nil {
		return models.Appointment{}, false, err
	}
	if err = ensureClientInAgency(ctx, tx, input.AgencyID, input.ClientID); err != nil {
		return models.Appointment{}, false, err
	}

	// Serialize check-and-insert per interpreter so two concurrent bookings
	// for overlapping windows cannot both pass the overlap check.
	if err = lockInterpreter(ctx, tx, input.InterpreterID); err != nil {
		return models.Appointment{}, false, err
	}

	overlapping, err := hasOverlap(ctx, tx, input.InterpreterID, input.StartTime, input.EndTime, "")
	if err != nil {
		return models.Appointment{}, false, err
	}
	if overlapping {
		return models.Appointment{}, false, store.ErrOverlap
	}

	var appt models.Appointment
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			appointment_id, request_id, agency_id, interpreter_id, client_id, start_time, end_time,
			time_zone, status, location, language, rate, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING `+appointmentColumns+`
	`, uuid.NewString(), input.RequestID, input.AgencyID, input.InterpreterID, input.ClientID,
		input.StartTime, input.EndTime, input.TimeZone, models.StatusScheduled,
		nullIfEmpty(input.Location), nullIfEmpty(input.Language), input.Rate, nullIfEmpty(input.Notes), now)
	appt, err = scanAppointment(row)
	if err != nil {
		return models.Appointment{}, false, err
	}

	if err = insertAppointmentOutbox(ctx, tx, "appointment.booked", appt); err != nil {
		return models.Appointment{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Appointment{}, false, err
	}
	return appt, true, nil
}

func (s *Store) ConfirmAppointment(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
	return s.updateAppointmentStatus(ctx, input, "confirm", models.StatusConfirmed, "appointment.confirmed", "confirmed_at")
}

func (s *Store) StartAppointment(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
	return s.updateAppointmentStatus(ctx, input, "start", models.StatusInProgress, "appointment.started", "started_at")
}

func (s *Store) CompleteAppointment(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
	return s.updateAppointmentStatus(ctx, input, "complete", models.StatusCompleted, "appointment.completed", "completed_at")
}

func (s *Store) NoShowAppointment(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
	return s.updateAppointmentStatus(ctx, input, "no_show", models.StatusNoShow, "appointment.no_show", "")
}

func (s *Store) CancelAppointment(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
	if err := store.ValidateCancellationReason(input.Reason); err != nil {
		return models.Appointment{}, false, err
	}
	return s.updateAppointmentStatus(ctx, input, "cancel", models.StatusCancelled, "appointment.cancelled", "")
}

func (s *Store) updateAppointmentStatus(ctx context.Context, input store.AppointmentActionInput, action, toStatus, eventType, timestampColumn string) (models.Appointment, bool, error) {
	fromStatuses := store.AllowedFromStatuses(action)
	if len(fromStatuses) == 0 {
		return models.Appointment{}, false, store.ErrInvalidState
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Appointment{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, action, input.RequestID)
	if err != nil {
		return models.Appointment{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Appointment{}, false, err
		}
		if empty {
			return models.Appointment{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	updateQuery := `
		UPDATE appointments
		SET status = $1, updated_at = $2
	`
	args := []interface{}{toStatus, occurredAt}
	argPos := 3

	if timestampColumn != "" {
		updateQuery += fmt.Sprintf(", %s = $%d", timestampColumn, argPos)
		args = append(args, occurredAt)
		argPos++
	}
	if action == "cancel" {
		updateQuery += fmt.Sprintf(", cancellation_reason = $%d", argPos)
		args = append(args, input.Reason)
		argPos++
	}

	updateQuery += fmt.Sprintf(`
		WHERE appointment_id = $%d AND agency_id = $%d AND status = ANY($%d)`, argPos, argPos+1, argPos+2)
	args = append(args, input.AppointmentID, input.AgencyID, fromStatuses)
	argPos += 3

	// Starting is gated on the scheduled window having opened; no-show on
	// the window having fully passed.
	switch action {
	case "start":
		updateQuery += fmt.Sprintf(" AND start_time <= $%d", argPos)
		args = append(args, occurredAt)
	case "no_show":
		updateQuery += fmt.Sprintf(" AND end_time <= $%d", argPos)
		args = append(args, occurredAt)
	}

	updateQuery += " RETURNING " + appointmentColumns

	row := tx.QueryRow(ctx, updateQuery, args...)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_, exists, lookupErr := loadAppointmentStatus(ctx, tx, input.AppointmentID, input.AgencyID)
			if lookupErr != nil {
				err = lookupErr
				return models.Appointment{}, false, err
			}
			if !exists {
				err = store.ErrAppointmentNotFound
				return models.Appointment{}, false, err
			}
			err = store.ErrInvalidState
			return models.Appointment{}, false, err
		}
		return models.Appointment{}, false, err
	}

	if err = insertActionRequest(ctx, tx, action, input.RequestID, input.AgencyID, appt.AppointmentID); err != nil {
		return models.Appointment{}, false, err
	}
	if err = insertAppointmentOutbox(ctx, tx, eventType, appt); err != nil {
		return models.Appointment{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Appointment{}, false, err
	}
	return appt, true, nil
}

func (s *Store) RescheduleAppointment(ctx context.Context, input store.RescheduleInput) (models.Appointment, bool, error) {
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	if err := store.ValidateWindow(input.NewStartTime, input.NewEndTime, occurredAt); err != nil {
		return models.Appointment{}, false, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Appointment{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, "reschedule", input.RequestID)
	if err != nil {
		return models.Appointment{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Appointment{}, false, err
		}
		if empty {
			return models.Appointment{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	var interpreterID, status string
	row := tx.QueryRow(ctx, `
		SELECT interpreter_id, status
		FROM appointments
		WHERE appointment_id = $1 AND agency_id = $2
		FOR UPDATE
	`, input.AppointmentID, input.AgencyID)
	if err = row.Scan(&interpreterID, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Appointment{}, false, store.ErrAppointmentNotFound
		}
		return models.Appointment{}, false, err
	}
	if !store.ValidAppointmentTransition("reschedule", status) {
		return models.Appointment{}, false, store.ErrInvalidState
	}

	// The new window is checked against the interpreter's other active
	// appointments under the same lock booking uses.
	if err = lockInterpreter(ctx, tx, interpreterID); err != nil {
		return models.Appointment{}, false, err
	}
	overlapping, err := hasOverlap(ctx, tx, interpreterID, input.NewStartTime, input.NewEndTime, input.AppointmentID)
	if err != nil {
		return models.Appointment{}, false, err
	}
	if overlapping {
		return models.Appointment{}, false, store.ErrOverlap
	}

	row = tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $1, end_time = $2, status = $3, updated_at = $4
		WHERE appointment_id = $5 AND agency_id = $6
		RETURNING `+appointmentColumns+`
	`, input.NewStartTime, input.NewEndTime, models.StatusRescheduled, occurredAt, input.AppointmentID, input.AgencyID)
	appt, err := scanAppointment(row)
	if err != nil {
		return models.Appointment{}, false, err
	}

	if err = insertActionRequest(ctx, tx, "reschedule", input.RequestID, input.AgencyID, appt.AppointmentID); err != nil {
		return models.Appointment{}, false, err
	}
	if err = insertAppointmentOutbox(ctx, tx, "appointment.rescheduled", appt); err != nil {
		return models.Appointment{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Appointment{}, false, err
	}
	return appt, true, nil
}

func (s *Store) GetAppointment(ctx context.Context, agencyID, appointmentID string) (models.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_id = $1 AND agency_id = $2
	`, appointmentID, agencyID)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Appointment{}, store.ErrAppointmentNotFound
		}
		return models.Appointment{}, err
	}
	return appt, nil
}

func (s *Store) UpdateAppointmentNotes(ctx context.Context, agencyID, appointmentID, notes string) (models.Appointment, error) {
	return s.updateAppointmentField(ctx, agencyID, appointmentID, "notes", strings.TrimSpace(notes))
}

func (s *Store) UpdateAppointmentLocation(ctx context.Context, agencyID, appointmentID, location string) (models.Appointment, error) {
	return s.updateAppointmentField(ctx, agencyID, appointmentID, "location", strings.TrimSpace(location))
}

func (s *Store) UpdateAppointmentRate(ctx context.Context, agencyID, appointmentID string, rate float64) (models.Appointment, error) {
	if rate < 0 {
		return models.Appointment{}, fmt.Errorf("%w: rate cannot be negative", store.ErrValidation)
	}
	return s.updateAppointmentField(ctx, agencyID, appointmentID, "rate", rate)
}

func (s *Store) updateAppointmentField(ctx context.Context, agencyID, appointmentID, column string, value interface{}) (models.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET `+column+` = $1, updated_at = $2
		WHERE appointment_id = $3 AND agency_id = $4
		RETURNING `+appointmentColumns+`
	`, value, time.Now().UTC(), appointmentID, agencyID)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Appointment{}, store.ErrAppointmentNotFound
		}
		return models.Appointment{}, err
	}
	return appt, nil
}

func (s *Store) ListAppointments(ctx context.Context, agencyID, interpreterID string) ([]models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE agency_id = $1
	`
	args := []interface{}{agencyID}
	if interpreterID != "" {
		query += " AND interpreter_id = $2"
		args = append(args, interpreterID)
	}
	query += " ORDER BY start_time ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appointments, nil
}

func (s *Store) HasOverlappingAppointments(ctx context.Context, interpreterID string, start, end time.Time) (bool, error) {
	return hasOverlap(ctx, s.pool, interpreterID, start, end, "")
}

func (s *Store) ListAppointmentEvents(ctx context.Context, agencyID, appointmentID string) ([]store.AppointmentEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.appointment_id, e.appointment_seq, e.type, e.payload, e.created_at, e.prev_hash, e.hash
		FROM appointment_events e
		JOIN appointments a ON a.appointment_id = e.appointment_id
		WHERE a.agency_id = $1 AND e.appointment_id = $2
		ORDER BY e.appointment_seq ASC
	`, agencyID, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.AppointmentEvent
	for rows.Next() {
		var event store.AppointmentEvent
		if err := rows.Scan(&event.AppointmentID, &event.AppointmentSeq, &event.Type, &event.Payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, agencyID string, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_id, agency_id, type, payload_json, created_at
		FROM outbox_events
		WHERE agency_id = $1
	`
	args := []interface{}{agencyID}
	if !after.IsZero() {
		query += " AND created_at > $2 ORDER BY created_at ASC LIMIT $3"
		args = append(args, after, limit)
	} else {
		query += " ORDER BY created_at ASC LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.AgencyID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// hasOverlap applies the half-open interval test against the interpreter's
// non-cancelled, non-completed appointments. excludeID skips the appointment
// being rescheduled.
func hasOverlap(ctx context.Context, q queryRower, interpreterID string, start, end time.Time, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE interpreter_id = $1
				AND status NOT IN ('cancelled', 'completed')
				AND start_time < $3
				AND end_time > $2
	`
	args := []interface{}{interpreterID, start, end}
	if excludeID != "" {
		query += " AND appointment_id <> $4"
		args = append(args, excludeID)
	}
	query += `
		)`

	var exists bool
	row := q.QueryRow(ctx, query, args...)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func lockInterpreter(ctx context.Context, tx pgx.Tx, interpreterID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, interpreterID)
	return err
}

func ensureInterpreterInAgency(ctx context.Context, tx pgx.Tx, agencyID, interpreterID string) error {
	var id string
	row := tx.QueryRow(ctx, `
		SELECT interpreter_id
		FROM interpreters
		WHERE interpreter_id = $1 AND agency_id = $2
	`, interpreterID, agencyID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrInterpreterNotFound
		}
		return err
	}
	return nil
}

func ensureClientInAgency(ctx context.Context, tx pgx.Tx, agencyID, clientID string) error {
	var id string
	row := tx.QueryRow(ctx, `
		SELECT client_id
		FROM clients
		WHERE client_id = $1 AND agency_id = $2
	`, clientID, agencyID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrClientNotFound
		}
		return err
	}
	return nil
}

func findAppointmentByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Appointment, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE request_id = $1
	`, requestID)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Appointment{}, false, nil
		}
		return models.Appointment{}, false, err
	}
	return appt, true, nil
}

func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (models.Appointment, bool, bool, error) {
	var appointmentID sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT appointment_id
		FROM appointment_action_requests
		WHERE request_id = $1 AND action = $2
	`, requestID, action)
	if err := row.Scan(&appointmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Appointment{}, false, false, nil
		}
		return models.Appointment{}, false, false, err
	}

	if !appointmentID.Valid {
		return models.Appointment{}, true, true, nil
	}

	row = tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_id = $1
	`, appointmentID.String)
	appt, err := scanAppointment(row)
	if err != nil {
		return models.Appointment{}, false, false, err
	}
	return appt, true, false, nil
}

func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, agencyID, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_action_requests (request_id, action, agency_id, appointment_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, action, agencyID, nullIfEmpty(appointmentID))
	return err
}

func loadAppointmentStatus(ctx context.Context, tx pgx.Tx, appointmentID, agencyID string) (string, bool, error) {
	var status string
	row := tx.QueryRow(ctx, `
		SELECT status
		FROM appointments
		WHERE appointment_id = $1 AND agency_id = $2
	`, appointmentID, agencyID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return status, true, nil
}

func insertAppointmentOutbox(ctx context.Context, tx pgx.Tx, eventType string, appt models.Appointment) error {
	payload := map[string]interface{}{
		"appointment_id":      appt.AppointmentID,
		"agency_id":           appt.AgencyID,
		"interpreter_id":      appt.InterpreterID,
		"client_id":           appt.ClientID,
		"status":              appt.Status,
		"start_time":          appt.StartTime,
		"end_time":            appt.EndTime,
		"time_zone":           appt.TimeZone,
		"created_at":          appt.CreatedAt,
		"confirmed_at":        appt.ConfirmedAt,
		"started_at":          appt.StartedAt,
		"completed_at":        appt.CompletedAt,
		"cancellation_reason": appt.CancellationReason,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, agency_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), appt.AgencyID, eventType, payloadJSON, time.Now().UTC())
	if err != nil {
		return err
	}
	return insertAppointmentEvent(ctx, tx, appt.AppointmentID, eventType, payloadJSON)
}

func insertAppointmentEvent(ctx context.Context, tx pgx.Tx, appointmentID, eventType string, payload []byte) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, appointmentID); err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT appointment_seq, hash
		FROM appointment_events
		WHERE appointment_id = $1
		ORDER BY appointment_seq DESC
		LIMIT 1
		FOR UPDATE
	`, appointmentID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash.Valid {
		prev = prevHash.String
	}
	createdAt := time.Now().UTC()
	hash := store.ComputeAppointmentEventHash(prev, appointmentID, eventType, payload, createdAt, nextSeq)

	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_events (appointment_id, appointment_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, appointmentID, nextSeq, eventType, payload, createdAt, prev, hash)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (models.Appointment, error) {
	var appt models.Appointment
	var location, language, notes, reason, requestID sql.NullString
	var rate sql.NullFloat64
	var confirmedAt, startedAt, completedAt sql.NullTime
	if err := row.Scan(&appt.AppointmentID, &appt.AgencyID, &appt.InterpreterID, &appt.ClientID,
		&appt.StartTime, &appt.EndTime, &appt.TimeZone, &appt.Status,
		&location, &language, &rate, &notes, &reason, &requestID,
		&appt.CreatedAt, &appt.UpdatedAt, &confirmedAt, &startedAt, &completedAt); err != nil {
		return models.Appointment{}, err
	}
	appt.Location = nullStringPtr(location)
	appt.Language = nullStringPtr(language)
	appt.Rate = nullFloatPtr(rate)
	appt.Notes = nullStringPtr(notes)
	appt.CancellationReason = nullStringPtr(reason)
	if requestID.Valid {
		appt.RequestID = requestID.String
	}
	appt.ConfirmedAt = nullTimePtr(confirmedAt)
	appt.StartedAt = nullTimePtr(startedAt)
	appt.CompletedAt = nullTimePtr(completedAt)
	return appt, nil
}
