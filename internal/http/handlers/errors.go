package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, so
// values never change once published.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	ErrCodeInvalidCaseNumber   = "invalid_case_number"
	ErrCodeCaseNotFound        = "case_not_found"
	ErrCodeRegistryUnavailable = "registry_unavailable" // retryable
	ErrCodeStorageUnavailable  = "storage_unavailable"  // retryable
	ErrCodeValidation          = "validation_failed"
	ErrCodeInvalidCode         = "invalid_verification_code"
	ErrCodeNotRegistered       = "not_registered"
)
