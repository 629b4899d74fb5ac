package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tia/booking-service/internal/models"
	"tia/booking-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const requestColumns = `request_id, agency_id, requestor_id, start_time, end_time, language,
	appointment_type, mode, description, status, appointment_id, created_at, updated_at`

const invoiceColumns = `invoice_id, agency_id, client_id, appointment_id, external_invoice_id,
	status, due_date, amount, currency, notes, created_at, updated_at, sent_at, paid_at`

func (s *Store) CreateRequest(ctx context.Context, input store.CreateRequestInput) (models.InterpreterRequest, error) {
	// Requests only need an ordered window. A request filed for a window
	// already underway is still actionable, unlike a booking.
	if !input.StartTime.Before(input.EndTime) {
		return models.InterpreterRequest{}, fmt.Errorf("%w: start time must be before end time", store.ErrValidation)
	}
	if strings.TrimSpace(input.Language) == "" {
		return models.InterpreterRequest{}, fmt.Errorf("%w: language cannot be empty", store.ErrValidation)
	}
	if strings.TrimSpace(input.AppointmentType) == "" {
		return models.InterpreterRequest{}, fmt.Errorf("%w: appointment type cannot be empty", store.ErrValidation)
	}

	if err := ensureAgencyExists(ctx, s.pool, input.AgencyID); err != nil {
		return models.InterpreterRequest{}, err
	}

	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO interpreter_requests (
			request_id, agency_id, requestor_id, start_time, end_time, language,
			appointment_type, mode, description, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING `+requestColumns+`
	`, uuid.NewString(), input.AgencyID, input.RequestorID, input.StartTime, input.EndTime,
		input.Language, input.AppointmentType, nullIfEmpty(input.Mode), nullIfEmpty(input.Description),
		models.RequestPending, now)
	return scanRequest(row)
}

func (s *Store) UpdateRequestStatus(ctx context.Context, input store.RequestStatusInput) (models.InterpreterRequest, error) {
	if !store.KnownRequestStatus(input.NewStatus) {
		return models.InterpreterRequest{}, fmt.Errorf("%w: unknown request status %q", store.ErrValidation, input.NewStatus)
	}
	if input.NewStatus == models.RequestFulfilled && input.AppointmentID == "" {
		return models.InterpreterRequest{}, fmt.Errorf("%w: fulfilling a request requires an appointment id", store.ErrValidation)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.InterpreterRequest{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM interpreter_requests
		WHERE request_id = $1 AND agency_id = $2
		FOR UPDATE
	`, input.RequestID, input.AgencyID)
	current, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrRequestNotFound
		}
		return models.InterpreterRequest{}, err
	}

	if !store.ValidRequestTransition(input.NewStatus, current.Status) {
		err = store.ErrInvalidState
		return models.InterpreterRequest{}, err
	}

	var appointmentID interface{}
	if input.NewStatus == models.RequestFulfilled {
		var exists bool
		existsRow := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE appointment_id = $1 AND agency_id = $2
			)`, input.AppointmentID, input.AgencyID)
		if err = existsRow.Scan(&exists); err != nil {
			return models.InterpreterRequest{}, err
		}
		if !exists {
			err = store.ErrAppointmentNotFound
			return models.InterpreterRequest{}, err
		}
		appointmentID = input.AppointmentID
	}

	row = tx.QueryRow(ctx, `
		UPDATE interpreter_requests
		SET status = $1, appointment_id = COALESCE($2, appointment_id), updated_at = $3
		WHERE request_id = $4 AND agency_id = $5
		RETURNING `+requestColumns+`
	`, input.NewStatus, appointmentID, time.Now().UTC(), input.RequestID, input.AgencyID)
	updated, err := scanRequest(row)
	if err != nil {
		return models.InterpreterRequest{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.InterpreterRequest{}, err
	}
	return updated, nil
}

func (s *Store) CancelRequest(ctx context.Context, agencyID, requestID string) (models.InterpreterRequest, error) {
	return s.UpdateRequestStatus(ctx, store.RequestStatusInput{
		AgencyID:  agencyID,
		RequestID: requestID,
		NewStatus: models.RequestCancelled,
	})
}

func (s *Store) GetRequest(ctx context.Context, agencyID, requestID string) (models.InterpreterRequest, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM interpreter_requests
		WHERE request_id = $1 AND agency_id = $2
	`, requestID, agencyID)
	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.InterpreterRequest{}, store.ErrRequestNotFound
		}
		return models.InterpreterRequest{}, err
	}
	return request, nil
}

func (s *Store) ListRequests(ctx context.Context, agencyID, status string) ([]models.InterpreterRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM interpreter_requests
		WHERE agency_id = $1
	`
	args := []interface{}{agencyID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.InterpreterRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *Store) CreateInvoice(ctx context.Context, input store.CreateInvoiceInput) (models.Invoice, error) {
	if strings.TrimSpace(input.ExternalInvoiceID) == "" {
		return models.Invoice{}, fmt.Errorf("%w: external invoice id cannot be empty", store.ErrValidation)
	}
	if input.Amount != nil && *input.Amount < 0 {
		return models.Invoice{}, fmt.Errorf("%w: amount cannot be negative", store.ErrValidation)
	}

	if _, err := s.GetAppointment(ctx, input.AgencyID, input.AppointmentID); err != nil {
		return models.Invoice{}, err
	}

	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO invoices (
			invoice_id, agency_id, client_id, appointment_id, external_invoice_id,
			status, due_date, amount, currency, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING `+invoiceColumns+`
	`, uuid.NewString(), input.AgencyID, input.ClientID, input.AppointmentID, input.ExternalInvoiceID,
		models.InvoiceDraft, input.DueDate, input.Amount, nullIfEmpty(input.Currency), nullIfEmpty(input.Notes), now)
	invoice, err := scanInvoice(row)
	if err != nil {
		// The unique index on appointment_id is the arbiter when two
		// creations race past the existence check.
		if isUniqueViolation(err) {
			return models.Invoice{}, store.ErrDuplicateInvoice
		}
		return models.Invoice{}, err
	}
	return invoice, nil
}

func (s *Store) MarkInvoiceSent(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
	return s.updateInvoiceStatus(ctx, agencyID, invoiceID, "send", models.InvoiceSent, "sent_at")
}

func (s *Store) MarkInvoicePaid(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
	return s.updateInvoiceStatus(ctx, agencyID, invoiceID, "pay", models.InvoicePaid, "paid_at")
}

func (s *Store) VoidInvoice(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
	return s.updateInvoiceStatus(ctx, agencyID, invoiceID, "void", models.InvoiceVoid, "")
}

// MarkInvoiceOverdue flips a sent invoice past its due date to overdue.
// When the guard does not hold the invoice is returned unchanged rather
// than rejected, so periodic sweeps and manual nudges are both harmless.
func (s *Store) MarkInvoiceOverdue(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
	invoice, err := s.GetInvoice(ctx, agencyID, invoiceID)
	if err != nil {
		return models.Invoice{}, err
	}
	if !invoice.IsOverdue(time.Now().UTC()) {
		return invoice, nil
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE invoices
		SET status = $1, updated_at = $2
		WHERE invoice_id = $3 AND agency_id = $4 AND status = $5
		RETURNING `+invoiceColumns+`
	`, models.InvoiceOverdue, time.Now().UTC(), invoiceID, agencyID, models.InvoiceSent)
	updated, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race with pay or void; report the current state.
			return s.GetInvoice(ctx, agencyID, invoiceID)
		}
		return models.Invoice{}, err
	}
	return updated, nil
}

func (s *Store) updateInvoiceStatus(ctx context.Context, agencyID, invoiceID, action, toStatus, timestampColumn string) (models.Invoice, error) {
	fromStatuses := store.AllowedInvoiceFromStatuses(action)
	if len(fromStatuses) == 0 {
		return models.Invoice{}, store.ErrInvalidState
	}

	now := time.Now().UTC()
	query := `
		UPDATE invoices
		SET status = $1, updated_at = $2
	`
	args := []interface{}{toStatus, now}
	argPos := 3
	if timestampColumn != "" {
		query += fmt.Sprintf(", %s = $%d", timestampColumn, argPos)
		args = append(args, now)
		argPos++
	}
	query += fmt.Sprintf(" WHERE invoice_id = $%d AND agency_id = $%d AND status = ANY($%d) RETURNING ", argPos, argPos+1, argPos+2) + invoiceColumns
	args = append(args, invoiceID, agencyID, fromStatuses)

	row := s.pool.QueryRow(ctx, query, args...)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.GetInvoice(ctx, agencyID, invoiceID); getErr != nil {
				return models.Invoice{}, getErr
			}
			return models.Invoice{}, store.ErrInvalidState
		}
		return models.Invoice{}, err
	}
	return invoice, nil
}

// AutoOverdue sweeps sent invoices whose due date has passed and marks
// them overdue. It is meant to run on a timer and returns the number of
// invoices flipped in this pass.
func (s *Store) AutoOverdue(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()
	rows, err := tx.Query(ctx, `
		SELECT invoice_id
		FROM invoices
		WHERE status = $1 AND due_date IS NOT NULL AND due_date < $2
		ORDER BY due_date ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, models.InvoiceSent, now, batchSize)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		err = tx.Commit(ctx)
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE invoices
		SET status = $1, updated_at = $2
		WHERE invoice_id = ANY($3) AND status = $4
	`, models.InvoiceOverdue, now, ids, models.InvoiceSent)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) GetInvoice(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE invoice_id = $1 AND agency_id = $2
	`, invoiceID, agencyID)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Invoice{}, store.ErrInvoiceNotFound
		}
		return models.Invoice{}, err
	}
	return invoice, nil
}

func (s *Store) GetInvoiceByAppointment(ctx context.Context, agencyID, appointmentID string) (models.Invoice, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE appointment_id = $1 AND agency_id = $2
	`, appointmentID, agencyID)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Invoice{}, store.ErrInvoiceNotFound
		}
		return models.Invoice{}, err
	}
	return invoice, nil
}

func scanRequest(row rowScanner) (models.InterpreterRequest, error) {
	var request models.InterpreterRequest
	var mode, description, appointmentID sql.NullString
	if err := row.Scan(&request.RequestID, &request.AgencyID, &request.RequestorID,
		&request.StartTime, &request.EndTime, &request.Language, &request.AppointmentType,
		&mode, &description, &request.Status, &appointmentID,
		&request.CreatedAt, &request.UpdatedAt); err != nil {
		return models.InterpreterRequest{}, err
	}
	request.Mode = nullStringPtr(mode)
	request.Description = nullStringPtr(description)
	request.AppointmentID = nullStringPtr(appointmentID)
	return request, nil
}

func scanInvoice(row rowScanner) (models.Invoice, error) {
	var invoice models.Invoice
	var currency, notes sql.NullString
	var amount sql.NullFloat64
	var dueDate, sentAt, paidAt sql.NullTime
	if err := row.Scan(&invoice.InvoiceID, &invoice.AgencyID, &invoice.ClientID,
		&invoice.AppointmentID, &invoice.ExternalInvoiceID, &invoice.Status,
		&dueDate, &amount, &currency, &notes,
		&invoice.CreatedAt, &invoice.UpdatedAt, &sentAt, &paidAt); err != nil {
		return models.Invoice{}, err
	}
	invoice.DueDate = nullTimePtr(dueDate)
	invoice.Amount = nullFloatPtr(amount)
	invoice.Currency = nullStringPtr(currency)
	invoice.Notes = nullStringPtr(notes)
	invoice.SentAt = nullTimePtr(sentAt)
	invoice.PaidAt = nullTimePtr(paidAt)
	return invoice, nil
}
