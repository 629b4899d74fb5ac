package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tia/booking-service/internal/models"
	"tia/booking-service/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	store store.BookingStore
}

type createAgencyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateAgencyRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type createInterpreterRequest struct {
	AgencyID string   `json:"agency_id"`
	UserID   string   `json:"user_id"`
	Skills   []string `json:"skills"`
}

type createClientRequest struct {
	AgencyID         string            `json:"agency_id"`
	UserID           string            `json:"user_id"`
	OrganizationName string            `json:"organization_name"`
	Preferences      map[string]string `json:"preferences"`
}

type bookAppointmentRequest struct {
	RequestID     string   `json:"request_id"`
	AgencyID      string   `json:"agency_id"`
	InterpreterID string   `json:"interpreter_id"`
	ClientID      string   `json:"client_id"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	TimeZone      string   `json:"time_zone"`
	Location      string   `json:"location"`
	Language      string   `json:"language"`
	Rate          *float64 `json:"rate"`
	Notes         string   `json:"notes"`
}

type updateAppointmentRequest struct {
	AgencyID string   `json:"agency_id"`
	Notes    *string  `json:"notes"`
	Location *string  `json:"location"`
	Rate     *float64 `json:"rate"`
}

type appointmentActionRequest struct {
	RequestID string `json:"request_id"`
	AgencyID  string `json:"agency_id"`
	Reason    string `json:"reason"`
}

type rescheduleRequest struct {
	RequestID    string `json:"request_id"`
	AgencyID     string `json:"agency_id"`
	NewStartTime string `json:"new_start_time"`
	NewEndTime   string `json:"new_end_time"`
}

type createInterpreterRequestRequest struct {
	AgencyID        string `json:"agency_id"`
	RequestorID     string `json:"requestor_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Language        string `json:"language"`
	AppointmentType string `json:"appointment_type"`
	Mode            string `json:"mode"`
	Description     string `json:"description"`
}

type requestStatusRequest struct {
	AgencyID      string `json:"agency_id"`
	NewStatus     string `json:"new_status"`
	AppointmentID string `json:"appointment_id"`
}

type createInvoiceRequest struct {
	AgencyID          string   `json:"agency_id"`
	ClientID          string   `json:"client_id"`
	AppointmentID     string   `json:"appointment_id"`
	ExternalInvoiceID string   `json:"external_invoice_id"`
	DueDate           string   `json:"due_date"`
	Amount            *float64 `json:"amount"`
	Currency          string   `json:"currency"`
	Notes             string   `json:"notes"`
}

type invoiceActionRequest struct {
	AgencyID string `json:"agency_id"`
}

type nameCheckResponse struct {
	Name   string `json:"name"`
	Unique bool   `json:"unique"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(store store.BookingStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/agencies", h.handleAgencies)
	mux.HandleFunc("/api/agencies/name-check", h.handleNameCheck)
	mux.HandleFunc("/api/agencies/", h.handleAgencyByID)
	mux.HandleFunc("/api/interpreters", h.handleInterpreters)
	mux.HandleFunc("/api/interpreters/available", h.handleAvailableInterpreters)
	mux.HandleFunc("/api/clients", h.handleClients)
	mux.HandleFunc("/api/appointments", h.handleAppointments)
	mux.HandleFunc("/api/appointments/", h.handleAppointmentSubtree)
	mux.HandleFunc("/api/requests", h.handleRequests)
	mux.HandleFunc("/api/requests/", h.handleRequestSubtree)
	mux.HandleFunc("/api/invoices", h.handleInvoices)
	mux.HandleFunc("/api/invoices/", h.handleInvoiceSubtree)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleAgencies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateAgency(w, r)
	case http.MethodGet:
		agencies, err := h.store.ListAgencies(r.Context())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, agencies)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateAgency(w http.ResponseWriter, r *http.Request) {
	var req createAgencyRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	agency, err := h.store.CreateAgency(r.Context(), store.CreateAgencyInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, agency)
}

func (h *Handler) handleAgencyByID(w http.ResponseWriter, r *http.Request) {
	agencyID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/agencies/"), "/")
	if !isValidUUID(agencyID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		agency, err := h.store.GetAgency(r.Context(), agencyID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, agency)
	case http.MethodPatch:
		if !requireAgency(w, r, agencyID) {
			return
		}
		var req updateAgencyRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		agency, err := h.store.UpdateAgency(r.Context(), store.UpdateAgencyInput{
			AgencyID:    agencyID,
			Name:        req.Name,
			Description: req.Description,
			Status:      req.Status,
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, agency)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleNameCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	excludeID := strings.TrimSpace(r.URL.Query().Get("exclude_agency_id"))
	if name == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	if excludeID != "" && !isValidUUID(excludeID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "exclude_agency_id must be a UUID when provided")
		return
	}

	unique, err := h.store.IsAgencyNameUnique(r.Context(), name, excludeID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, nameCheckResponse{Name: name, Unique: unique})
}

func (h *Handler) handleInterpreters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createInterpreterRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.AgencyID = strings.TrimSpace(req.AgencyID)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.AgencyID == "" || req.UserID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id and user_id are required")
		return
	}
	if !isValidUUID(req.AgencyID) || !isValidUUID(req.UserID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id and user_id must be UUIDs")
		return
	}
	if !requireAgency(w, r, req.AgencyID) {
		return
	}

	interpreter, err := h.store.CreateInterpreter(r.Context(), store.CreateInterpreterInput{
		AgencyID: req.AgencyID,
		UserID:   req.UserID,
		Skills:   req.Skills,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, interpreter)
}

func (h *Handler) handleAvailableInterpreters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	agencyID := strings.TrimSpace(query.Get("agency_id"))
	if !isValidUUID(agencyID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
		return
	}
	if !requireAgency(w, r, agencyID) {
		return
	}

	start, ok := parseTimeParam(w, query.Get("start"), "start")
	if !ok {
		return
	}
	end, ok := parseTimeParam(w, query.Get("end"), "end")
	if !ok {
		return
	}
	if !start.Before(end) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "start must be before end")
		return
	}

	var skills []string
	if raw := strings.TrimSpace(query.Get("skills")); raw != "" {
		for _, skill := range strings.Split(raw, ",") {
			if skill = strings.TrimSpace(skill); skill != "" {
				skills = append(skills, skill)
			}
		}
	}

	interpreters, err := h.store.FindAvailableInterpreters(r.Context(), store.AvailabilityInput{
		AgencyID:  agencyID,
		StartTime: start,
		EndTime:   end,
		Skills:    skills,
		Language:  strings.TrimSpace(query.Get("language")),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, interpreters)
}

func (h *Handler) handleClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createClientRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.AgencyID = strings.TrimSpace(req.AgencyID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.OrganizationName = strings.TrimSpace(req.OrganizationName)
	if req.AgencyID == "" || req.UserID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id and user_id are required")
		return
	}
	if !isValidUUID(req.AgencyID) || !isValidUUID(req.UserID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id and user_id must be UUIDs")
		return
	}
	if !requireAgency(w, r, req.AgencyID) {
		return
	}

	client, err := h.store.CreateClient(r.Context(), store.CreateClientInput{
		AgencyID:         req.AgencyID,
		UserID:           req.UserID,
		OrganizationName: req.OrganizationName,
		Preferences:      req.Preferences,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (h *Handler) handleAppointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleBookAppointment(w, r)
	case http.MethodGet:
		agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
		interpreterID := strings.TrimSpace(r.URL.Query().Get("interpreter_id"))
		if !isValidUUID(agencyID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
			return
		}
		if interpreterID != "" && !isValidUUID(interpreterID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "interpreter_id must be a UUID when provided")
			return
		}
		if !requireAgency(w, r, agencyID) {
			return
		}
		appointments, err := h.store.ListAppointments(r.Context(), agencyID, interpreterID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, appointments)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookAppointmentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.AgencyID = strings.TrimSpace(req.AgencyID)
	req.InterpreterID = strings.TrimSpace(req.InterpreterID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.TimeZone = strings.TrimSpace(req.TimeZone)

	if req.RequestID == "" || req.AgencyID == "" || req.InterpreterID == "" || req.ClientID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, agency_id, interpreter_id, and client_id are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.AgencyID) || !isValidUUID(req.InterpreterID) || !isValidUUID(req.ClientID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, agency_id, interpreter_id, and client_id must be UUIDs")
		return
	}
	if !requireAgency(w, r, req.AgencyID) {
		return
	}

	start, ok := parseTimeField(w, req.RequestID, req.StartTime, "start_time")
	if !ok {
		return
	}
	end, ok := parseTimeField(w, req.RequestID, req.EndTime, "end_time")
	if !ok {
		return
	}
	appointment, created, err := h.store.BookAppointment(r.Context(), store.BookAppointmentInput{
		RequestID:     req.RequestID,
		AgencyID:      req.AgencyID,
		InterpreterID: req.InterpreterID,
		ClientID:      req.ClientID,
		StartTime:     start,
		EndTime:       end,
		TimeZone:      req.TimeZone,
		Location:      strings.TrimSpace(req.Location),
		Language:      strings.TrimSpace(req.Language),
		Rate:          req.Rate,
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	if created {
		writeJSON(w, http.StatusCreated, appointment)
		return
	}
	writeJSON(w, http.StatusOK, appointment)
}

func (h *Handler) handleAppointmentSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/appointments/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	appointmentID := parts[0]
	if !isValidUUID(appointmentID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "appointment_id must be a UUID")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodPatch:
		h.handleUpdateAppointment(w, r, appointmentID)
	case len(parts) == 1:
		h.handleGetAppointment(w, r, appointmentID)
	case len(parts) == 2 && parts[1] == "events":
		h.handleAppointmentEvents(w, r, appointmentID)
	case len(parts) == 3 && parts[1] == "actions":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleAppointmentAction(w, r, appointmentID, parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetAppointment(w http.ResponseWriter, r *http.Request, appointmentID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
	if !isValidUUID(agencyID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
		return
	}
	if !requireAgency(w, r, agencyID) {
		return
	}

	appointment, err := h.store.GetAppointment(r.Context(), agencyID, appointmentID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, appointment)
}

func (h *Handler) handleUpdateAppointment(w http.ResponseWriter, r *http.Request, appointmentID string) {
	var req updateAppointmentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.AgencyID = strings.TrimSpace(req.AgencyID)
	if !isValidUUID(req.AgencyID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
		return
	}
	if req.Notes == nil && req.Location == nil && req.Rate == nil {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "at least one of notes, location, or rate is required")
		return
	}
	if !requireAgency(w, r, req.AgencyID) {
		return
	}

	var appointment models.Appointment
	var err error
	if req.Notes != nil {
		appointment, err = h.store.UpdateAppointmentNotes(r.Context(), req.AgencyID, appointmentID, *req.Notes)
	}
	if err == nil && req.Location != nil {
		appointment, err = h.store.UpdateAppointmentLocation(r.Context(), req.AgencyID, appointmentID, *req.Location)
	}
	if err == nil && req.Rate != nil {
		appointment, err = h.store.UpdateAppointmentRate(r.Context(), req.AgencyID, appointmentID, *req.Rate)
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, appointment)
}

func (h *Handler) handleAppointmentEvents(w http.ResponseWriter, r *http.Request, appointmentID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
	if !isValidUUID(agencyID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
		return
	}
	if !requireAgency(w, r, agencyID) {
		return
	}

	events, err := h.store.ListAppointmentEvents(r.Context(), agencyID, appointmentID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleAppointmentAction(w http.ResponseWriter, r *http.Request, appointmentID, action string) {
	if action == "reschedule" {
		h.handleReschedule(w, r, appointmentID)
		return
	}

	var req appointmentActionRequest
	if !decodeActionRequest(w, r, &req) {
		return
	}
	if !requireAgency(w, r, req.AgencyID) {
		return
	}

	input := store.AppointmentActionInput{
		RequestID:     req.RequestID,
		AgencyID:      req.AgencyID,
		AppointmentID: appointmentID,
		OccurredAt:    time.Now().UTC(),
	}

	var appointment interface{}
	var err error
	switch action {
	case "confirm":
		appointment, _, err = h.store.ConfirmAppointment(r.Context(), input)
	case "start":
		appointment, _, err = h.store.StartAppointment(r.Context(), input)
	case "complete":
		appointment, _, err = h.store.CompleteAppointment(r.Context(), input)
	case "no-show":
		appointment, _, err = h.store.NoShowAppointment(r.Context(), input)
	case "cancel":
		req.Reason = strings.TrimSpace(req.Reason)
		if req.Reason == "" {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "reason is required")
			return
		}
		input.Reason = req.Reason
		appointment, _, err = h.store.CancelAppointment(r.Context(), input)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, appointment)
}

func (h *Handler) handleReschedule(w http.ResponseWriter, r *http.Request, appointmentID string) {
	var req rescheduleRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.AgencyID = strings.TrimSpace(req.AgencyID)
	if req.RequestID == "" || req.AgencyID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and agency_id are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.AgencyID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and agency_id must be UUIDs")
		return
	}
	if !requireAgency(w, r, req.AgencyID) {
		return
	}

	start, ok := parseTimeField(w, req.RequestID, req.NewStartTime, "new_start_time")
	if !ok {
		return
	}
	end, ok := parseTimeField(w, req.RequestID, req.NewEndTime, "new_end_time")
	if !ok {
		return
	}

	appointment, _, err := h.store.RescheduleAppointment(r.Context(), store.RescheduleInput{
		RequestID:     req.RequestID,
		AgencyID:      req.AgencyID,
		AppointmentID: appointmentID,
		NewStartTime:  start,
		NewEndTime:    end,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, appointment)
}

func (h *Handler) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateRequest(w, r)
	case http.MethodGet:
		agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
		if !isValidUUID(agencyID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
			return
		}
		if !requireAgency(w, r, agencyID) {
			return
		}
		requests, err := h.store.ListRequests(r.Context(), agencyID, strings.TrimSpace(r.URL.Query().Get("status")))
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, requests)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req createInterpreterRequestRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.AgencyID = strings.TrimSpace(req.AgencyID)
	req.RequestorID = strings.TrimSpace(req.RequestorID)
	req.Language = strings.TrimSpace(req.Language)
	req.AppointmentType = strings.TrimSpace(req.AppointmentType)
	if req.AgencyID == "" || req.RequestorID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id and requestor_id are required")
		return
	}
	if !isValidUUID(req.AgencyID) || !isValidUUID(req.RequestorID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id and requestor_id must be UUIDs")
		return
	}
	if !requireAgency(w, r, req.AgencyID) {
		return
	}

	start, ok := parseTimeField(w, "", req.StartTime, "start_time")
	if !ok {
		return
	}
	end, ok := parseTimeField(w, "", req.EndTime, "end_time")
	if !ok {
		return
	}

	request, err := h.store.CreateRequest(r.Context(), store.CreateRequestInput{
		AgencyID:        req.AgencyID,
		RequestorID:     req.RequestorID,
		StartTime:       start,
		EndTime:         end,
		Language:        req.Language,
		AppointmentType: req.AppointmentType,
		Mode:            strings.TrimSpace(req.Mode),
		Description:     strings.TrimSpace(req.Description),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (h *Handler) handleRequestSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	requestID := parts[0]
	if !isValidUUID(requestID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
		if !isValidUUID(agencyID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
			return
		}
		if !requireAgency(w, r, agencyID) {
			return
		}
		request, err := h.store.GetRequest(r.Context(), agencyID, requestID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, request)
	case len(parts) == 3 && parts[1] == "actions" && parts[2] == "status":
		h.handleRequestStatus(w, r, requestID)
	case len(parts) == 3 && parts[1] == "actions" && parts[2] == "cancel":
		h.handleRequestCancel(w, r, requestID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRequestStatus(w http.ResponseWriter, r *http.Request, requestID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req requestStatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.AgencyID = strings.TrimSpace(req.AgencyID)
	req.NewStatus = strings.TrimSpace(req.NewStatus)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AgencyID == "" || req.NewStatus == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id and new_status are required")
		return
	}
	if !isValidUUID(req.AgencyID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
		return
	}
	if req.AppointmentID != "" && !isValidUUID(req.AppointmentID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "appointment_id must be a UUID when provided")
		return
	}
	if !requireAgency(w, r, req.AgencyID) {
		return
	}

	request, err := h.store.UpdateRequestStatus(r.Context(), store.RequestStatusInput{
		AgencyID:      req.AgencyID,
		RequestID:     requestID,
		NewStatus:     req.NewStatus,
		AppointmentID: req.AppointmentID,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleRequestCancel(w http.ResponseWriter, r *http.Request, requestID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req invoiceActionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.AgencyID = strings.TrimSpace(req.AgencyID)
	if !isValidUUID(req.AgencyID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
		return
	}
	if !requireAgency(w, r, req.AgencyID) {
		return
	}

	request, err := h.store.CancelRequest(r.Context(), req.AgencyID, requestID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateInvoice(w, r)
	case http.MethodGet:
		agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
		appointmentID := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
		if !isValidUUID(agencyID) || !isValidUUID(appointmentID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id and appointment_id must be UUIDs")
			return
		}
		if !requireAgency(w, r, agencyID) {
			return
		}
		invoice, err := h.store.GetInvoiceByAppointment(r.Context(), agencyID, appointmentID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, invoice)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.AgencyID = strings.TrimSpace(req.AgencyID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.ExternalInvoiceID = strings.TrimSpace(req.ExternalInvoiceID)
	if req.AgencyID == "" || req.ClientID == "" || req.AppointmentID == "" || req.ExternalInvoiceID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id, client_id, appointment_id, and external_invoice_id are required")
		return
	}
	if !isValidUUID(req.AgencyID) || !isValidUUID(req.ClientID) || !isValidUUID(req.AppointmentID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id, client_id, and appointment_id must be UUIDs")
		return
	}
	if !requireAgency(w, r, req.AgencyID) {
		return
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "due_date must be RFC3339 timestamp")
			return
		}
		dueDate = &parsed
	}

	invoice, err := h.store.CreateInvoice(r.Context(), store.CreateInvoiceInput{
		AgencyID:          req.AgencyID,
		ClientID:          req.ClientID,
		AppointmentID:     req.AppointmentID,
		ExternalInvoiceID: req.ExternalInvoiceID,
		DueDate:           dueDate,
		Amount:            req.Amount,
		Currency:          strings.TrimSpace(req.Currency),
		Notes:             strings.TrimSpace(req.Notes),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

func (h *Handler) handleInvoiceSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/invoices/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	invoiceID := parts[0]
	if !isValidUUID(invoiceID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "invoice_id must be a UUID")
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
		if !isValidUUID(agencyID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
			return
		}
		if !requireAgency(w, r, agencyID) {
			return
		}
		invoice, err := h.store.GetInvoice(r.Context(), agencyID, invoiceID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, invoice)
	case len(parts) == 3 && parts[1] == "actions":
		h.handleInvoiceAction(w, r, invoiceID, parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleInvoiceAction(w http.ResponseWriter, r *http.Request, invoiceID, action string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req invoiceActionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.AgencyID = strings.TrimSpace(req.AgencyID)
	if !isValidUUID(req.AgencyID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
		return
	}
	if !requireAgency(w, r, req.AgencyID) {
		return
	}

	var invoice interface{}
	var err error
	switch action {
	case "send":
		invoice, err = h.store.MarkInvoiceSent(r.Context(), req.AgencyID, invoiceID)
	case "pay":
		invoice, err = h.store.MarkInvoicePaid(r.Context(), req.AgencyID, invoiceID)
	case "overdue":
		invoice, err = h.store.MarkInvoiceOverdue(r.Context(), req.AgencyID, invoiceID)
	case "void":
		invoice, err = h.store.VoidInvoice(r.Context(), req.AgencyID, invoiceID)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
	if !isValidUUID(agencyID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "agency_id must be a UUID")
		return
	}
	if !requireAgency(w, r, agencyID) {
		return
	}

	afterRaw := strings.TrimSpace(r.URL.Query().Get("after"))
	var after time.Time
	if afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}

	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListOutboxEvents(r.Context(), agencyID, after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func decodeActionRequest(w http.ResponseWriter, r *http.Request, req *appointmentActionRequest) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.AgencyID = strings.TrimSpace(req.AgencyID)
	if req.RequestID == "" || req.AgencyID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and agency_id are required")
		return false
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.AgencyID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and agency_id must be UUIDs")
		return false
	}
	return true
}

func parseTimeField(w http.ResponseWriter, requestID, value, field string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", field+" is required")
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", field+" must be RFC3339 timestamp")
		return time.Time{}, false
	}
	return parsed, true
}

func parseTimeParam(w http.ResponseWriter, value, field string) (time.Time, bool) {
	return parseTimeField(w, "", value, field)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, store.ErrAgencyNotFound):
		return http.StatusNotFound, "agency_not_found", "agency not found"
	case errors.Is(err, store.ErrInterpreterNotFound):
		return http.StatusNotFound, "interpreter_not_found", "interpreter not found"
	case errors.Is(err, store.ErrClientNotFound):
		return http.StatusNotFound, "client_not_found", "client not found"
	case errors.Is(err, store.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found", "appointment not found"
	case errors.Is(err, store.ErrRequestNotFound):
		return http.StatusNotFound, "request_not_found", "request not found"
	case errors.Is(err, store.ErrInvoiceNotFound):
		return http.StatusNotFound, "invoice_not_found", "invoice not found"
	case errors.Is(err, store.ErrOverlap):
		return http.StatusConflict, "conflicting_appointment", "interpreter has a conflicting appointment"
	case errors.Is(err, store.ErrDuplicateAgencyName):
		return http.StatusConflict, "duplicate_agency_name", "agency name already in use"
	case errors.Is(err, store.ErrDuplicateInvoice):
		return http.StatusConflict, "duplicate_invoice", "appointment already has an invoice"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "current state does not allow this action"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
