package service

import "fmt"

// Notification texts are generated here so every transition produces the
// same message for the same inputs.  Handlers never build message strings
// themselves.

// defaultDenyReason is substituted into the user-facing denial message
// when the admin supplied no reason.  The stored admin_message stays NULL.
const defaultDenyReason = "No reason provided"

func newRequestMessage(hallName string) string {
	return fmt.Sprintf("New reservation request for %s", hallName)
}

func approvedMessage(hallName string) string {
	return fmt.Sprintf("Your reservation for %s has been approved.", hallName)
}

func deniedMessage(hallName string, reason *string) string {
	r := defaultDenyReason
	if reason != nil && *reason != "" {
		r = *reason
	}
	return fmt.Sprintf("Your reservation for %s has been denied. Reason: %s", hallName, r)
}

// cancelledMessage distinguishes a routine cancellation of a pending
// request from the cancellation of an already committed slot; the latter
// is marked as an alert because it frees time admins believed occupied.
func cancelledMessage(reservationID uint64, hallName string, wasApproved bool) string {
	if wasApproved {
		return fmt.Sprintf("ALERT: Reservation #%d for %s was CANCELLED after being APPROVED", reservationID, hallName)
	}
	return fmt.Sprintf("Reservation #%d for %s has been cancelled by the user", reservationID, hallName)
}

func feedbackMessage(reservationID uint64) string {
	return fmt.Sprintf("New feedback received for reservation #%d", reservationID)
}
