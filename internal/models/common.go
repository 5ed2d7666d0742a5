package models

// ErrorDetail is the structured error shape every service method returns
// alongside its result. Code is an application-level error code; Data
// carries optional context such as the affected file or operation.
type ErrorDetail struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse wraps an ErrorDetail for HTTP error bodies.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
