package event

import "fmt"

// Rejection codes surfaced to producers. Deterministic: the same input is
// rejected with the same code until the producer fixes it.
const (
	CodeUnknownEventType       = "UNKNOWN_EVENT_TYPE"
	CodeSchemaValidationFailed = "SCHEMA_VALIDATION_FAILED"
	CodeMissingTargetID        = "MISSING_TARGET_ID"
	CodeInvalidZone            = "INVALID_ZONE"
	CodeMissingUpdateData      = "MISSING_UPDATE_DATA"
	CodeMissingSessionAuth     = "MISSING_SESSION_AUTH"
	CodeMissingUserID          = "MISSING_USER_ID"
	CodeInvalidSystemSource    = "INVALID_SYSTEM_SOURCE"
)

// RejectionError describes why an event was refused by the validator.
type RejectionError struct {
	Code    string
	Message string
	// Details carries field-level findings for schema failures.
	Details map[string]string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Reject builds a rejection without field details.
func Reject(code, message string) *RejectionError {
	return &RejectionError{Code: code, Message: message}
}
