package models

// ErrorType classifies user-visible API failures.
type ErrorType string

const (
	ErrorTypeInvalidRequest        ErrorType = "invalid_request_error"
	ErrorTypeNotFound              ErrorType = "not_found"
	ErrorTypeToolInvocationBlocked ErrorType = "tool_invocation_blocked"
	ErrorTypeConfiguration         ErrorType = "configuration_error"
	ErrorTypeAPI                   ErrorType = "api_error"
)

// APIError is the wire-level error envelope: {"error":{"message","type"}}.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

// APIErrorBody carries the surfaced reason and its classification.
type APIErrorBody struct {
	Message string    `json:"message"`
	Type    ErrorType `json:"type"`
}

// NewAPIError builds the envelope for a message and type.
func NewAPIError(typ ErrorType, message string) *APIError {
	return &APIError{Error: APIErrorBody{Message: message, Type: typ}}
}
