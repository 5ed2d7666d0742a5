package errors

import (
	"fmt"
	"net/http"
	"time"

	"batch-edit-engine/internal/models"
)

// JSON-RPC error codes (JSON-RPC 2.0 specification).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application-specific error codes.
const (
	// CodeFileSystemError covers file-system failures; the error data
	// carries a "type" field distinguishing not-found, permission, etc.
	CodeFileSystemError = -32001
	// CodeOperationLockFailed means the batch lock could not be acquired.
	CodeOperationLockFailed = -32002
	// CodeFileTooLarge means a file exceeds the configured size limit.
	CodeFileTooLarge = -32003
	// CodeHistoryNotFound means the requested history entry does not exist.
	CodeHistoryNotFound = -32004
)

// NewErrorDetail creates a new ErrorDetail.
func NewErrorDetail(code int, message string, data interface{}) *models.ErrorDetail {
	return &models.ErrorDetail{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// NewParseError creates an ErrorDetail for JSON parsing errors.
func NewParseError(details string) *models.ErrorDetail {
	return NewErrorDetail(CodeParseError, "Parse error", map[string]interface{}{"details": details})
}

// NewInvalidRequestError creates an ErrorDetail for invalid request objects.
func NewInvalidRequestError(details string) *models.ErrorDetail {
	return NewErrorDetail(CodeInvalidRequest, "Invalid Request", map[string]interface{}{"details": details})
}

// NewMethodNotFoundError creates an ErrorDetail when a method is not found.
func NewMethodNotFoundError(methodName string) *models.ErrorDetail {
	return NewErrorDetail(CodeMethodNotFound, "Method not found", map[string]interface{}{"method": methodName})
}

// NewInvalidParamsError creates an ErrorDetail for invalid method parameters.
func NewInvalidParamsError(summary string, paramIssues map[string]interface{}) *models.ErrorDetail {
	message := "Invalid params"
	if summary != "" {
		message = summary
	}
	data := map[string]interface{}{"details": message}
	if paramIssues != nil {
		data["param_issues"] = paramIssues
	}
	return NewErrorDetail(CodeInvalidParams, message, data)
}

// NewInternalError creates an ErrorDetail for unexpected server errors.
func NewInternalError(details string) *models.ErrorDetail {
	return NewErrorDetail(CodeInternalError, "Internal error", map[string]interface{}{"details": details})
}

// NewFileSystemError creates a generic file system ErrorDetail.
func NewFileSystemError(filename, operation, details string) *models.ErrorDetail {
	return NewErrorDetail(CodeFileSystemError, "File system error", map[string]interface{}{
		"filename":  filename,
		"operation": operation,
		"details":   details,
	})
}

// NewFileNotFoundError creates an ErrorDetail for missing files.
func NewFileNotFoundError(filename, operation string) *models.ErrorDetail {
	return NewErrorDetail(CodeFileSystemError, fmt.Sprintf("File '%s' not found", filename), map[string]interface{}{
		"filename":  filename,
		"operation": operation,
		"type":      "file_not_found",
	})
}

// NewPermissionDeniedError creates an ErrorDetail for permission failures.
func NewPermissionDeniedError(filename, operation string) *models.ErrorDetail {
	return NewErrorDetail(CodeFileSystemError, fmt.Sprintf("Permission denied for file '%s'", filename), map[string]interface{}{
		"filename":  filename,
		"operation": operation,
		"type":      "permission_denied",
	})
}

// NewFileTooLargeError creates an ErrorDetail for files over the size limit.
func NewFileTooLargeError(filename string, size int64, maxSizeMB int) *models.ErrorDetail {
	return NewErrorDetail(CodeFileTooLarge,
		fmt.Sprintf("File '%s' exceeds maximum allowed size of %d MB", filename, maxSizeMB),
		map[string]interface{}{
			"filename":    filename,
			"size":        size,
			"max_size_mb": maxSizeMB,
			"type":        "file_too_large",
		})
}

// NewOperationLockFailedError creates an ErrorDetail for lock acquisition failures.
func NewOperationLockFailedError(operation, details string) *models.ErrorDetail {
	return NewErrorDetail(CodeOperationLockFailed,
		fmt.Sprintf("Could not acquire lock for operation '%s'", operation),
		map[string]interface{}{
			"operation": operation,
			"details":   details,
		})
}

// NewStaleContentError creates an ErrorDetail for a batch aborted because a
// file changed externally between resolution and application.
func NewStaleContentError(details string) *models.ErrorDetail {
	return NewErrorDetail(CodeFileSystemError,
		"Batch aborted: file content changed since resolution",
		map[string]interface{}{
			"details": details,
			"type":    "stale_content",
		})
}

// NewHistoryNotFoundError creates an ErrorDetail for a missing history entry.
func NewHistoryNotFoundError(entryID string) *models.ErrorDetail {
	return NewErrorDetail(CodeHistoryNotFound,
		fmt.Sprintf("History entry '%s' not found", entryID),
		map[string]interface{}{
			"entry_id": entryID,
			"type":     "history_not_found",
		})
}

// DefaultSeverity maps a failure kind to its reporting severity.
func DefaultSeverity(kind models.FailureKind) models.Severity {
	switch kind {
	case models.FailureFileNotFound, models.FailurePermissionDenied:
		return models.SeverityCritical
	case models.FailureContentMismatch, models.FailureEncodingError:
		return models.SeverityHigh
	case models.FailureLineRangeError, models.FailureSyntaxError:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// NewEditFailure builds a per-descriptor failure with its default severity.
func NewEditFailure(kind models.FailureKind, message, suggestion string) *models.EditFailure {
	return &models.EditFailure{
		Kind:       kind,
		Severity:   DefaultSeverity(kind),
		Message:    message,
		Suggestion: suggestion,
	}
}

// ToErrorResponse converts an ErrorDetail to an HTTP models.ErrorResponse.
func ToErrorResponse(errDetail *models.ErrorDetail) *models.ErrorResponse {
	if errDetail == nil {
		return nil
	}
	return &models.ErrorResponse{Error: *errDetail}
}

// ToJSONRPCError converts an ErrorDetail to a models.JSONRPCError, mapping
// the Data field onto the structured JSONRPCErrorData.
func ToJSONRPCError(errDetail *models.ErrorDetail) *models.JSONRPCError {
	if errDetail == nil {
		return nil
	}
	rpcErr := &models.JSONRPCError{
		Code:    errDetail.Code,
		Message: errDetail.Message,
	}
	if errDetail.Data == nil {
		return rpcErr
	}
	data := &models.JSONRPCErrorData{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if dataMap, ok := errDetail.Data.(map[string]interface{}); ok {
		if v, ok := dataMap["filename"].(string); ok {
			data.Filename = v
		}
		if v, ok := dataMap["operation"].(string); ok {
			data.Operation = v
		}
		if v, ok := dataMap["details"].(string); ok {
			data.Details = v
		}
	} else {
		data.Details = fmt.Sprintf("%v", errDetail.Data)
	}
	rpcErr.Data = data
	return rpcErr
}

// MapErrorToHTTPStatus maps an internal error code to an HTTP status code.
// CodeFileSystemError is disambiguated through the "type" field of the
// error data.
func MapErrorToHTTPStatus(errorCode int, errDetail *models.ErrorDetail) int {
	switch errorCode {
	case CodeParseError, CodeInvalidRequest, CodeInvalidParams:
		return http.StatusBadRequest
	case CodeMethodNotFound:
		return http.StatusNotFound
	case CodeInternalError:
		return http.StatusInternalServerError
	case CodeFileSystemError:
		if errDetail != nil {
			if dataMap, ok := errDetail.Data.(map[string]interface{}); ok {
				switch dataMap["type"] {
				case "file_not_found":
					return http.StatusNotFound
				case "permission_denied":
					return http.StatusForbidden
				case "stale_content":
					return http.StatusConflict
				}
			}
		}
		return http.StatusInternalServerError
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeOperationLockFailed:
		return http.StatusConflict
	case CodeHistoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
