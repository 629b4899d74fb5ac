package store

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrAgencyNotFound      = errors.New("agency not found")
	ErrInterpreterNotFound = errors.New("interpreter not found")
	ErrClientNotFound      = errors.New("client not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrRequestNotFound     = errors.New("interpreter request not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrOverlap             = errors.New("interpreter has a conflicting appointment")
	ErrDuplicateAgencyName = errors.New("agency name already in use")
	ErrDuplicateInvoice    = errors.New("appointment already has an invoice")
	ErrInvalidState        = errors.New("state does not allow this action")
	ErrSessionNotFound     = errors.New("session not found")
)
