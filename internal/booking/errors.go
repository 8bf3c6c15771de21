package booking

import "errors"

// ErrUnauthenticated is returned when a booking is submitted without a logged-in user.
var ErrUnauthenticated = errors.New("booking: not authenticated")

// Messages shown for each rejected field.
const (
	MsgEmptyCart    = "Please add at least one test to your booking."
	MsgLoginFirst   = "Please log in to book tests."
	MsgNameTooShort = "Full name must be at least 3 characters."
	MsgInvalidPhone = "Please enter a valid 10-digit Indian mobile number."
	MsgMissingDate  = "Please select a date."
	MsgPastDate     = "Please select today or a future date."
	MsgMissingSlot  = "Please select a time slot."
	MsgSlotTaken    = "Selected time slot is not available."
)

// ValidationError rejects one field of a submission. Only the first failing
// rule is reported.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
