package errors

const (
	HttpInternalError        = "internal_error"
	HttpInvalidFilterError   = "invalid_filter"
	HttpInvalidRequestError  = "invalid_request"
	HttpDatasetNotFoundError = "dataset_not_found"
	HttpDataUnavailableError = "data_unavailable"
)

// ErrorResponse is the error response body for all API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
