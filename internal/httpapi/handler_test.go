package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tia/booking-service/internal/models"
	"tia/booking-service/internal/store"
)

type fakeStore struct {
	createAgencyFn  func(ctx context.Context, input store.CreateAgencyInput) (models.Agency, error)
	updateAgencyFn  func(ctx context.Context, input store.UpdateAgencyInput) (models.Agency, error)
	getAgencyFn     func(ctx context.Context, agencyID string) (models.Agency, error)
	listAgenciesFn  func(ctx context.Context) ([]models.Agency, error)
	nameUniqueFn    func(ctx context.Context, name, excludeAgencyID string) (bool, error)
	interpreterFn   func(ctx context.Context, input store.CreateInterpreterInput) (models.Interpreter, error)
	clientFn        func(ctx context.Context, input store.CreateClientInput) (models.Client, error)
	availableFn     func(ctx context.Context, input store.AvailabilityInput) ([]models.AvailableInterpreter, error)
	bookFn          func(ctx context.Context, input store.BookAppointmentInput) (models.Appointment, bool, error)
	getApptFn       func(ctx context.Context, agencyID, appointmentID string) (models.Appointment, error)
	listApptFn      func(ctx context.Context, agencyID, interpreterID string) ([]models.Appointment, error)
	updateNotesFn   func(ctx context.Context, agencyID, appointmentID, notes string) (models.Appointment, error)
	updateLocFn     func(ctx context.Context, agencyID, appointmentID, location string) (models.Appointment, error)
	updateRateFn    func(ctx context.Context, agencyID, appointmentID string, rate float64) (models.Appointment, error)
	confirmFn       func(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error)
	startFn         func(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error)
	completeFn      func(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error)
	cancelFn        func(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error)
	rescheduleFn    func(ctx context.Context, input store.RescheduleInput) (models.Appointment, bool, error)
	noShowFn        func(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error)
	overlapFn       func(ctx context.Context, interpreterID string, start, end time.Time) (bool, error)
	apptEventsFn    func(ctx context.Context, agencyID, appointmentID string) ([]store.AppointmentEvent, error)
	outboxFn        func(ctx context.Context, agencyID string, after time.Time, limit int) ([]store.OutboxEvent, error)
	createRequestFn func(ctx context.Context, input store.CreateRequestInput) (models.InterpreterRequest, error)
	requestStatusFn func(ctx context.Context, input store.RequestStatusInput) (models.InterpreterRequest, error)
	cancelRequestFn func(ctx context.Context, agencyID, requestID string) (models.InterpreterRequest, error)
	getRequestFn    func(ctx context.Context, agencyID, requestID string) (models.InterpreterRequest, error)
	listRequestsFn  func(ctx context.Context, agencyID, status string) ([]models.InterpreterRequest, error)
	createInvoiceFn func(ctx context.Context, input store.CreateInvoiceInput) (models.Invoice, error)
	sentFn          func(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error)
	paidFn          func(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error)
	overdueFn       func(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error)
	voidFn          func(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error)
	getInvoiceFn    func(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error)
	invoiceByApptFn func(ctx context.Context, agencyID, appointmentID string) (models.Invoice, error)
	sessionFn       func(ctx context.Context, sessionID string) (store.Session, error)
	accessFn        func(ctx context.Context, userID string) ([]string, error)
}

func (f fakeStore) CreateAgency(ctx context.Context, input store.CreateAgencyInput) (models.Agency, error) {
	if f.createAgencyFn == nil {
		return models.Agency{}, nil
	}
	return f.createAgencyFn(ctx, input)
}

func (f fakeStore) UpdateAgency(ctx context.Context, input store.UpdateAgencyInput) (models.Agency, error) {
	if f.updateAgencyFn == nil {
		return models.Agency{}, nil
	}
	return f.updateAgencyFn(ctx, input)
}

func (f fakeStore) GetAgency(ctx context.Context, agencyID string) (models.Agency, error) {
	if f.getAgencyFn == nil {
		return models.Agency{}, nil
	}
	return f.getAgencyFn(ctx, agencyID)
}

func (f fakeStore) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	if f.listAgenciesFn == nil {
		return nil, nil
	}
	return f.listAgenciesFn(ctx)
}

func (f fakeStore) IsAgencyNameUnique(ctx context.Context, name, excludeAgencyID string) (bool, error) {
	if f.nameUniqueFn == nil {
		return true, nil
	}
	return f.nameUniqueFn(ctx, name, excludeAgencyID)
}

func (f fakeStore) CreateInterpreter(ctx context.Context, input store.CreateInterpreterInput) (models.Interpreter, error) {
	if f.interpreterFn == nil {
		return models.Interpreter{}, nil
	}
	return f.interpreterFn(ctx, input)
}

func (f fakeStore) CreateClient(ctx context.Context, input store.CreateClientInput) (models.Client, error) {
	if f.clientFn == nil {
		return models.Client{}, nil
	}
	return f.clientFn(ctx, input)
}

func (f fakeStore) FindAvailableInterpreters(ctx context.Context, input store.AvailabilityInput) ([]models.AvailableInterpreter, error) {
	if f.availableFn == nil {
		return nil, nil
	}
	return f.availableFn(ctx, input)
}

func (f fakeStore) BookAppointment(ctx context.Context, input store.BookAppointmentInput) (models.Appointment, bool, error) {
	if f.bookFn == nil {
		return models.Appointment{}, false, nil
	}
	return f.bookFn(ctx, input)
}

func (f fakeStore) GetAppointment(ctx context.Context, agencyID, appointmentID string) (models.Appointment, error) {
	if f.getApptFn == nil {
		return models.Appointment{}, nil
	}
	return f.getApptFn(ctx, agencyID, appointmentID)
}

func (f fakeStore) UpdateAppointmentNotes(ctx context.Context, agencyID, appointmentID, notes string) (models.Appointment, error) {
	if f.updateNotesFn == nil {
		return models.Appointment{}, nil
	}
	return f.updateNotesFn(ctx, agencyID, appointmentID, notes)
}

func (f fakeStore) UpdateAppointmentLocation(ctx context.Context, agencyID, appointmentID, location string) (models.Appointment, error) {
	if f.updateLocFn == nil {
		return models.Appointment{}, nil
	}
	return f.updateLocFn(ctx, agencyID, appointmentID, location)
}

func (f fakeStore) UpdateAppointmentRate(ctx context.Context, agencyID, appointmentID string, rate float64) (models.Appointment, error) {
	if f.updateRateFn == nil {
		return models.Appointment{}, nil
	}
	return f.updateRateFn(ctx, agencyID, appointmentID, rate)
}

func (f fakeStore) ListAppointments(ctx context.Context, agencyID, interpreterID string) ([]models.Appointment, error) {
	if f.listApptFn == nil {
		return nil, nil
	}
	return f.listApptFn(ctx, agencyID, interpreterID)
}

func (f fakeStore) ConfirmAppointment(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
	if f.confirmFn == nil {
		return models.Appointment{}, false, nil
	}
	return f.confirmFn(ctx, input)
}

func (f fakeStore) StartAppointment(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
	if f.startFn == nil {
		return models.Appointment{}, false, nil
	}
	return f.startFn(ctx, input)
}

func (f fakeStore) CompleteAppointment(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
	if f.completeFn == nil {
		return models.Appointment{}, false, nil
	}
	return f.completeFn(ctx, input)
}

func (f fakeStore) CancelAppointment(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
	if f.cancelFn == nil {
		return models.Appointment{}, false, nil
	}
	return f.cancelFn(ctx, input)
}

func (f fakeStore) RescheduleAppointment(ctx context.Context, input store.RescheduleInput) (models.Appointment, bool, error) {
	if f.rescheduleFn == nil {
		return models.Appointment{}, false, nil
	}
	return f.rescheduleFn(ctx, input)
}

func (f fakeStore) NoShowAppointment(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
	if f.noShowFn == nil {
		return models.Appointment{}, false, nil
	}
	return f.noShowFn(ctx, input)
}

func (f fakeStore) HasOverlappingAppointments(ctx context.Context, interpreterID string, start, end time.Time) (bool, error) {
	if f.overlapFn == nil {
		return false, nil
	}
	return f.overlapFn(ctx, interpreterID, start, end)
}

func (f fakeStore) ListAppointmentEvents(ctx context.Context, agencyID, appointmentID string) ([]store.AppointmentEvent, error) {
	if f.apptEventsFn == nil {
		return nil, nil
	}
	return f.apptEventsFn(ctx, agencyID, appointmentID)
}

func (f fakeStore) ListOutboxEvents(ctx context.Context, agencyID string, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if f.outboxFn == nil {
		return nil, nil
	}
	return f.outboxFn(ctx, agencyID, after, limit)
}

func (f fakeStore) CreateRequest(ctx context.Context, input store.CreateRequestInput) (models.InterpreterRequest, error) {
	if f.createRequestFn == nil {
		return models.InterpreterRequest{}, nil
	}
	return f.createRequestFn(ctx, input)
}

func (f fakeStore) UpdateRequestStatus(ctx context.Context, input store.RequestStatusInput) (models.InterpreterRequest, error) {
	if f.requestStatusFn == nil {
		return models.InterpreterRequest{}, nil
	}
	return f.requestStatusFn(ctx, input)
}

func (f fakeStore) CancelRequest(ctx context.Context, agencyID, requestID string) (models.InterpreterRequest, error) {
	if f.cancelRequestFn == nil {
		return models.InterpreterRequest{}, nil
	}
	return f.cancelRequestFn(ctx, agencyID, requestID)
}

func (f fakeStore) GetRequest(ctx context.Context, agencyID, requestID string) (models.InterpreterRequest, error) {
	if f.getRequestFn == nil {
		return models.InterpreterRequest{}, nil
	}
	return f.getRequestFn(ctx, agencyID, requestID)
}

func (f fakeStore) ListRequests(ctx context.Context, agencyID, status string) ([]models.InterpreterRequest, error) {
	if f.listRequestsFn == nil {
		return nil, nil
	}
	return f.listRequestsFn(ctx, agencyID, status)
}

func (f fakeStore) CreateInvoice(ctx context.Context, input store.CreateInvoiceInput) (models.Invoice, error) {
	if f.createInvoiceFn == nil {
		return models.Invoice{}, nil
	}
	return f.createInvoiceFn(ctx, input)
}

func (f fakeStore) MarkInvoiceSent(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
	if f.sentFn == nil {
		return models.Invoice{}, nil
	}
	return f.sentFn(ctx, agencyID, invoiceID)
}

func (f fakeStore) MarkInvoicePaid(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
	if f.paidFn == nil {
		return models.Invoice{}, nil
	}
	return f.paidFn(ctx, agencyID, invoiceID)
}

func (f fakeStore) MarkInvoiceOverdue(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
	if f.overdueFn == nil {
		return models.Invoice{}, nil
	}
	return f.overdueFn(ctx, agencyID, invoiceID)
}

func (f fakeStore) VoidInvoice(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
	if f.voidFn == nil {
		return models.Invoice{}, nil
	}
	return f.voidFn(ctx, agencyID, invoiceID)
}

func (f fakeStore) GetInvoice(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
	if f.getInvoiceFn == nil {
		return models.Invoice{}, nil
	}
	return f.getInvoiceFn(ctx, agencyID, invoiceID)
}

func (f fakeStore) GetInvoiceByAppointment(ctx context.Context, agencyID, appointmentID string) (models.Invoice, error) {
	if f.invoiceByApptFn == nil {
		return models.Invoice{}, nil
	}
	return f.invoiceByApptFn(ctx, agencyID, appointmentID)
}

func (f fakeStore) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	if f.sessionFn == nil {
		return store.Session{}, nil
	}
	return f.sessionFn(ctx, sessionID)
}

func (f fakeStore) GetAccess(ctx context.Context, userID string) ([]string, error) {
	if f.accessFn == nil {
		return nil, nil
	}
	return f.accessFn(ctx, userID)
}

const (
	testRequestID     = "11111111-1111-1111-1111-111111111111"
	testAgencyID      = "22222222-2222-2222-2222-222222222222"
	testInterpreterID = "33333333-3333-3333-3333-333333333333"
	testClientID      = "44444444-4444-4444-4444-444444444444"
	testAppointmentID = "55555555-5555-5555-5555-555555555555"
	testInvoiceID     = "66666666-6666-6666-6666-666666666666"
)

func TestBookAppointmentSuccess(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	st := fakeStore{
		bookFn: func(ctx context.Context, input store.BookAppointmentInput) (models.Appointment, bool, error) {
			return models.Appointment{
				AppointmentID: testAppointmentID,
				AgencyID:      input.AgencyID,
				InterpreterID: input.InterpreterID,
				ClientID:      input.ClientID,
				StartTime:     input.StartTime,
				EndTime:       input.EndTime,
				Status:        models.StatusScheduled,
				RequestID:     input.RequestID,
			}, true, nil
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"request_id":     testRequestID,
		"agency_id":      testAgencyID,
		"interpreter_id": testInterpreterID,
		"client_id":      testClientID,
		"start_time":     start.Format(time.RFC3339),
		"end_time":       start.Add(time.Hour).Format(time.RFC3339),
		"time_zone":      "UTC",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}

	var appt models.Appointment
	if err := json.NewDecoder(resp.Body).Decode(&appt); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if appt.AppointmentID == "" || appt.Status != models.StatusScheduled {
		t.Fatalf("unexpected appointment response: %+v", appt)
	}
}

func TestBookAppointmentReplayReturnsOK(t *testing.T) {
	st := fakeStore{
		bookFn: func(ctx context.Context, input store.BookAppointmentInput) (models.Appointment, bool, error) {
			return models.Appointment{AppointmentID: testAppointmentID, Status: models.StatusScheduled}, false, nil
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"request_id":     testRequestID,
		"agency_id":      testAgencyID,
		"interpreter_id": testInterpreterID,
		"client_id":      testClientID,
		"start_time":     "2026-03-02T09:00:00Z",
		"end_time":       "2026-03-02T10:00:00Z",
		"time_zone":      "UTC",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 on replay, got %d", resp.Code)
	}
}

func TestBookAppointmentEmptyTimeZone(t *testing.T) {
	var sawStore bool
	var gotTimeZone string
	st := fakeStore{
		bookFn: func(ctx context.Context, input store.BookAppointmentInput) (models.Appointment, bool, error) {
			sawStore = true
			gotTimeZone = input.TimeZone
			if err := store.ValidateTimeZone(input.TimeZone); err != nil {
				return models.Appointment{}, false, err
			}
			return models.Appointment{}, true, nil
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"request_id":     testRequestID,
		"agency_id":      testAgencyID,
		"interpreter_id": testInterpreterID,
		"client_id":      testClientID,
		"start_time":     "2026-03-02T09:00:00Z",
		"end_time":       "2026-03-02T10:00:00Z",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if !sawStore {
		t.Fatal("expected the booking call to reach the store")
	}
	if gotTimeZone != "" {
		t.Fatalf("expected empty time zone to pass through unchanged, got %q", gotTimeZone)
	}
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "invalid_request" {
		t.Fatalf("expected error code invalid_request, got %s", errResp.Error.Code)
	}
}

func TestBookAppointmentOverlapConflict(t *testing.T) {
	st := fakeStore{
		bookFn: func(ctx context.Context, input store.BookAppointmentInput) (models.Appointment, bool, error) {
			return models.Appointment{}, false, store.ErrOverlap
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"request_id":     testRequestID,
		"agency_id":      testAgencyID,
		"interpreter_id": testInterpreterID,
		"client_id":      testClientID,
		"start_time":     "2026-03-02T09:00:00Z",
		"end_time":       "2026-03-02T10:00:00Z",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "conflicting_appointment" {
		t.Fatalf("expected error code conflicting_appointment, got %s", errResp.Error.Code)
	}
}

func TestBookAppointmentMissingFields(t *testing.T) {
	h := NewHandler(fakeStore{})

	payload := map[string]string{
		"request_id": testRequestID,
		"agency_id":  testAgencyID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCancelAppointmentRequiresReason(t *testing.T) {
	h := NewHandler(fakeStore{})

	payload := map[string]string{
		"request_id": testRequestID,
		"agency_id":  testAgencyID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments/"+testAppointmentID+"/actions/cancel", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestConfirmAppointmentInvalidState(t *testing.T) {
	st := fakeStore{
		confirmFn: func(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
			return models.Appointment{}, false, store.ErrInvalidState
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"request_id": testRequestID,
		"agency_id":  testAgencyID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments/"+testAppointmentID+"/actions/confirm", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "invalid_state" {
		t.Fatalf("expected error code invalid_state, got %s", errResp.Error.Code)
	}
}

func TestRescheduleAppointmentSuccess(t *testing.T) {
	var got store.RescheduleInput
	st := fakeStore{
		rescheduleFn: func(ctx context.Context, input store.RescheduleInput) (models.Appointment, bool, error) {
			got = input
			return models.Appointment{
				AppointmentID: input.AppointmentID,
				Status:        models.StatusRescheduled,
				StartTime:     input.NewStartTime,
				EndTime:       input.NewEndTime,
			}, true, nil
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"request_id":     testRequestID,
		"agency_id":      testAgencyID,
		"new_start_time": "2026-03-03T09:00:00Z",
		"new_end_time":   "2026-03-03T10:00:00Z",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments/"+testAppointmentID+"/actions/reschedule", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if got.AppointmentID != testAppointmentID {
		t.Fatalf("appointment id not forwarded: %+v", got)
	}
}

func TestUpdateAppointmentFields(t *testing.T) {
	var gotNotes, gotLocation string
	var gotRate float64
	st := fakeStore{
		updateNotesFn: func(ctx context.Context, agencyID, appointmentID, notes string) (models.Appointment, error) {
			gotNotes = notes
			return models.Appointment{AppointmentID: appointmentID, Notes: &notes}, nil
		},
		updateLocFn: func(ctx context.Context, agencyID, appointmentID, location string) (models.Appointment, error) {
			gotLocation = location
			return models.Appointment{AppointmentID: appointmentID, Location: &location}, nil
		},
		updateRateFn: func(ctx context.Context, agencyID, appointmentID string, rate float64) (models.Appointment, error) {
			gotRate = rate
			return models.Appointment{AppointmentID: appointmentID, Rate: &rate}, nil
		},
	}
	h := NewHandler(st)

	payload := map[string]interface{}{
		"agency_id": testAgencyID,
		"notes":     "bring contract",
		"location":  "Courtroom 4",
		"rate":      95.5,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPatch, "/api/appointments/"+testAppointmentID, bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if gotNotes != "bring contract" || gotLocation != "Courtroom 4" || gotRate != 95.5 {
		t.Fatalf("expected all fields forwarded, got notes=%q location=%q rate=%v", gotNotes, gotLocation, gotRate)
	}
}

func TestUpdateAppointmentNoFields(t *testing.T) {
	h := NewHandler(fakeStore{})

	payload := map[string]string{"agency_id": testAgencyID}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPatch, "/api/appointments/"+testAppointmentID, bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestUpdateAppointmentNegativeRate(t *testing.T) {
	st := fakeStore{
		updateRateFn: func(ctx context.Context, agencyID, appointmentID string, rate float64) (models.Appointment, error) {
			return models.Appointment{}, fmt.Errorf("%w: rate cannot be negative", store.ErrValidation)
		},
	}
	h := NewHandler(st)

	payload := map[string]interface{}{
		"agency_id": testAgencyID,
		"rate":      -1.0,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPatch, "/api/appointments/"+testAppointmentID, bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestNoShowAppointmentAction(t *testing.T) {
	st := fakeStore{
		noShowFn: func(ctx context.Context, input store.AppointmentActionInput) (models.Appointment, bool, error) {
			return models.Appointment{AppointmentID: input.AppointmentID, Status: models.StatusNoShow}, true, nil
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"request_id": testRequestID,
		"agency_id":  testAgencyID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments/"+testAppointmentID+"/actions/no-show", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}

func TestUnknownAppointmentAction(t *testing.T) {
	h := NewHandler(fakeStore{})

	payload := map[string]string{
		"request_id": testRequestID,
		"agency_id":  testAgencyID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments/"+testAppointmentID+"/actions/archive", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestNameCheck(t *testing.T) {
	st := fakeStore{
		nameUniqueFn: func(ctx context.Context, name, excludeAgencyID string) (bool, error) {
			return name != "Taken Agency", nil
		},
	}
	h := NewHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/agencies/name-check?name=Taken+Agency", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var result nameCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Unique {
		t.Fatalf("expected name to be reported as taken")
	}
}

func TestNameCheckMissingName(t *testing.T) {
	h := NewHandler(fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/agencies/name-check", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCreateAgencyDuplicateName(t *testing.T) {
	st := fakeStore{
		createAgencyFn: func(ctx context.Context, input store.CreateAgencyInput) (models.Agency, error) {
			return models.Agency{}, store.ErrDuplicateAgencyName
		},
	}
	h := NewHandler(st)

	body, _ := json.Marshal(map[string]string{"name": "Lingua Bridge"})
	req := httptest.NewRequest(http.MethodPost, "/api/agencies", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestRequestStatusFulfilledWithoutAppointment(t *testing.T) {
	st := fakeStore{
		requestStatusFn: func(ctx context.Context, input store.RequestStatusInput) (models.InterpreterRequest, error) {
			if input.NewStatus == models.RequestFulfilled && input.AppointmentID == "" {
				return models.InterpreterRequest{}, store.ErrValidation
			}
			return models.InterpreterRequest{RequestID: input.RequestID, Status: input.NewStatus}, nil
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"agency_id":  testAgencyID,
		"new_status": "fulfilled",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/requests/"+testRequestID+"/actions/status", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCancelFulfilledRequestConflict(t *testing.T) {
	st := fakeStore{
		cancelRequestFn: func(ctx context.Context, agencyID, requestID string) (models.InterpreterRequest, error) {
			return models.InterpreterRequest{}, store.ErrInvalidState
		},
	}
	h := NewHandler(st)

	body, _ := json.Marshal(map[string]string{"agency_id": testAgencyID})
	req := httptest.NewRequest(http.MethodPost, "/api/requests/"+testRequestID+"/actions/cancel", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestCreateInvoiceDuplicate(t *testing.T) {
	st := fakeStore{
		createInvoiceFn: func(ctx context.Context, input store.CreateInvoiceInput) (models.Invoice, error) {
			return models.Invoice{}, store.ErrDuplicateInvoice
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"agency_id":           testAgencyID,
		"client_id":           testClientID,
		"appointment_id":      testAppointmentID,
		"external_invoice_id": "INV-2026-0042",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/invoices", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "duplicate_invoice" {
		t.Fatalf("expected error code duplicate_invoice, got %s", errResp.Error.Code)
	}
}

func TestInvoiceSendAction(t *testing.T) {
	st := fakeStore{
		sentFn: func(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
			return models.Invoice{InvoiceID: invoiceID, Status: models.InvoiceSent}, nil
		},
	}
	h := NewHandler(st)

	body, _ := json.Marshal(map[string]string{"agency_id": testAgencyID})
	req := httptest.NewRequest(http.MethodPost, "/api/invoices/"+testInvoiceID+"/actions/send", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var invoice models.Invoice
	if err := json.NewDecoder(resp.Body).Decode(&invoice); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if invoice.Status != models.InvoiceSent {
		t.Fatalf("expected status sent, got %s", invoice.Status)
	}
}

func TestInvoicePayFromDraftConflict(t *testing.T) {
	st := fakeStore{
		paidFn: func(ctx context.Context, agencyID, invoiceID string) (models.Invoice, error) {
			return models.Invoice{}, store.ErrInvalidState
		},
	}
	h := NewHandler(st)

	body, _ := json.Marshal(map[string]string{"agency_id": testAgencyID})
	req := httptest.NewRequest(http.MethodPost, "/api/invoices/"+testInvoiceID+"/actions/pay", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestAvailableInterpreters(t *testing.T) {
	st := fakeStore{
		availableFn: func(ctx context.Context, input store.AvailabilityInput) ([]models.AvailableInterpreter, error) {
			return []models.AvailableInterpreter{{
				InterpreterID: testInterpreterID,
				SlotStart:     input.StartTime,
				SlotEnd:       input.EndTime,
				TimeZone:      "UTC",
			}}, nil
		},
	}
	h := NewHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/interpreters/available?agency_id="+testAgencyID+"&start=2026-03-02T09:00:00Z&end=2026-03-02T10:00:00Z&skills=asl,medical", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var slots []models.AvailableInterpreter
	if err := json.NewDecoder(resp.Body).Decode(&slots); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(slots) != 1 || slots[0].InterpreterID != testInterpreterID {
		t.Fatalf("unexpected slots: %+v", slots)
	}
}

func TestAvailableInterpretersReversedWindow(t *testing.T) {
	h := NewHandler(fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/interpreters/available?agency_id="+testAgencyID+"&start=2026-03-02T10:00:00Z&end=2026-03-02T09:00:00Z", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestListEvents(t *testing.T) {
	st := fakeStore{
		outboxFn: func(ctx context.Context, agencyID string, after time.Time, limit int) ([]store.OutboxEvent, error) {
			return []store.OutboxEvent{{EventID: "e1", AgencyID: agencyID, Type: "appointment.booked"}}, nil
		},
	}
	h := NewHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/events?agency_id="+testAgencyID, nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}

func TestAuthMiddlewareRejectsMissingSession(t *testing.T) {
	h := NewHandler(fakeStore{})
	wrapped := AuthMiddleware(fakeStore{sessionFn: func(ctx context.Context, sessionID string) (store.Session, error) {
		return store.Session{}, store.ErrSessionNotFound
	}}, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/appointments?agency_id="+testAgencyID, nil)
	resp := httptest.NewRecorder()
	wrapped.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestAuthMiddlewareExpiredSession(t *testing.T) {
	h := NewHandler(fakeStore{})
	wrapped := AuthMiddleware(fakeStore{sessionFn: func(ctx context.Context, sessionID string) (store.Session, error) {
		return store.Session{}, fmt.Errorf("lookup %s: %w", sessionID, store.ErrSessionNotFound)
	}}, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/appointments?agency_id="+testAgencyID, nil)
	req.Header.Set("Authorization", "Bearer stale-session")
	resp := httptest.NewRecorder()
	wrapped.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "unauthorized" {
		t.Fatalf("expected error code unauthorized, got %s", errResp.Error.Code)
	}
}

func TestAuthMiddlewareScopesAgency(t *testing.T) {
	otherAgency := "77777777-7777-7777-7777-777777777777"
	backing := fakeStore{
		sessionFn: func(ctx context.Context, sessionID string) (store.Session, error) {
			return store.Session{SessionID: sessionID, UserID: "u1", AgencyID: otherAgency}, nil
		},
		accessFn: func(ctx context.Context, userID string) ([]string, error) {
			return []string{otherAgency}, nil
		},
	}
	h := NewHandler(backing)
	wrapped := AuthMiddleware(backing, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/appointments?agency_id="+testAgencyID, nil)
	req.Header.Set("Authorization", "Bearer session-1")
	resp := httptest.NewRecorder()
	wrapped.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func TestHealthzPublic(t *testing.T) {
	h := NewHandler(fakeStore{})
	wrapped := AuthMiddleware(fakeStore{}, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	wrapped.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}
