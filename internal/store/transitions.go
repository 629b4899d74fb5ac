package store

import (
	"fmt"
	"strings"
	"time"

	"tia/booking-service/internal/models"
)

var appointmentTransitions = map[string][]string{
	"confirm":    {models.StatusScheduled},
	"start":      {models.StatusConfirmed},
	"complete":   {models.StatusInProgress},
	"cancel":     {models.StatusScheduled, models.StatusConfirmed, models.StatusInProgress, models.StatusRescheduled},
	"reschedule": {models.StatusScheduled, models.StatusConfirmed, models.StatusInProgress, models.StatusRescheduled},
	"no_show":    {models.StatusScheduled, models.StatusConfirmed},
}

var requestTransitions = map[string][]string{
	models.RequestApproved:  {models.RequestPending},
	models.RequestRejected:  {models.RequestPending, models.RequestApproved},
	models.RequestFulfilled: {models.RequestApproved},
	models.RequestCancelled: {models.RequestPending, models.RequestApproved},
}

var invoiceTransitions = map[string][]string{
	"send":    {models.InvoiceDraft},
	"pay":     {models.InvoiceSent},
	"overdue": {models.InvoiceSent},
	"void":    {models.InvoiceDraft, models.InvoiceSent, models.InvoiceOverdue},
}

func ValidAppointmentTransition(action, fromStatus string) bool {
	return allows(appointmentTransitions, action, fromStatus)
}

func ValidRequestTransition(toStatus, fromStatus string) bool {
	return allows(requestTransitions, toStatus, fromStatus)
}

func ValidInvoiceTransition(action, fromStatus string) bool {
	return allows(invoiceTransitions, action, fromStatus)
}

// AllowedFromStatuses returns the statuses an appointment may be in for
// the given action to apply. The returned slice is a copy.
func AllowedFromStatuses(action string) []string {
	allowed, ok := appointmentTransitions[action]
	if !ok {
		return nil
	}
	out := make([]string, len(allowed))
	copy(out, allowed)
	return out
}

// AllowedInvoiceFromStatuses is AllowedFromStatuses for invoice actions.
func AllowedInvoiceFromStatuses(action string) []string {
	allowed, ok := invoiceTransitions[action]
	if !ok {
		return nil
	}
	out := make([]string, len(allowed))
	copy(out, allowed)
	return out
}

func allows(transitions map[string][]string, key, fromStatus string) bool {
	allowed, ok := transitions[key]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// KnownRequestStatus rejects status values outside the request lifecycle.
func KnownRequestStatus(status string) bool {
	switch status {
	case models.RequestPending, models.RequestApproved, models.RequestRejected,
		models.RequestFulfilled, models.RequestCancelled:
		return true
	default:
		return false
	}
}

// Overlaps applies the half-open interval test: [s1,e1) and [s2,e2)
// share at least one instant iff s1 < e2 and e1 > s2.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// ValidateWindow checks the ordering and past-start rules shared by
// booking, rescheduling, and request intake.
func ValidateWindow(start, end, now time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: start time must be before end time", ErrValidation)
	}
	if start.Before(now) {
		return fmt.Errorf("%w: start time cannot be in the past", ErrValidation)
	}
	return nil
}

func ValidateTimeZone(timeZone string) error {
	if strings.TrimSpace(timeZone) == "" {
		return fmt.Errorf("%w: time zone cannot be empty", ErrValidation)
	}
	return nil
}

func ValidateCancellationReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: cancellation reason is required", ErrValidation)
	}
	return nil
}
