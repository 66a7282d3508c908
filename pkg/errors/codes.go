package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes follow the "<MODULE>_<NNN>" convention.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Sentinel codes that do not belong to any module.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeStorageError       ErrorCode = "COMMON_017"
	ErrCodeMessagingError     ErrorCode = "COMMON_018"
)

// PPI Pipeline Error Codes
const (
	ErrCodeResolution            ErrorCode = "PPI_001"
	ErrCodeSequenceNotFound      ErrorCode = "PPI_002"
	ErrCodeEmbeddingCompute      ErrorCode = "PPI_003"
	ErrCodeEmbeddingDimMismatch  ErrorCode = "PPI_004"
	ErrCodeInsufficientData      ErrorCode = "PPI_005"
	ErrCodeLabelConflict         ErrorCode = "PPI_006"
	ErrCodeModelLoad             ErrorCode = "PPI_007"
	ErrCodeModelUnavailable      ErrorCode = "PPI_008"
	ErrCodeInsufficientInput     ErrorCode = "PPI_009"
	ErrCodeTrainingFailed        ErrorCode = "PPI_010"
	ErrCodeInvalidRunTransition  ErrorCode = "PPI_011"
	ErrCodeArchitectureMismatch  ErrorCode = "PPI_012"
	ErrCodePairSourceUnavailable ErrorCode = "PPI_013"
)

// Data Source Error Codes
const (
	ErrCodeDataSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeDataSourceRateLimited ErrorCode = "SRC_002"
	ErrCodeDataSourceParseError  ErrorCode = "SRC_004"
)

// Aliases kept for call sites that read better with the short form.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeDatabase     = ErrCodeDatabaseError
	CodeCache        = ErrCodeCacheError
	CodeStorage      = ErrCodeStorageError
	CodeMessaging    = ErrCodeMessagingError
)

// ErrCodeInvalidParam is the code InvalidParam produces.
const ErrCodeInvalidParam = ErrCodeBadRequest

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessagingError:     http.StatusInternalServerError,

	ErrCodeResolution:            http.StatusBadGateway,
	ErrCodeSequenceNotFound:      http.StatusNotFound,
	ErrCodeEmbeddingCompute:      http.StatusUnprocessableEntity,
	ErrCodeEmbeddingDimMismatch:  http.StatusInternalServerError,
	ErrCodeInsufficientData:      http.StatusUnprocessableEntity,
	ErrCodeLabelConflict:         http.StatusConflict,
	ErrCodeModelLoad:             http.StatusServiceUnavailable,
	ErrCodeModelUnavailable:      http.StatusServiceUnavailable,
	ErrCodeInsufficientInput:     http.StatusUnprocessableEntity,
	ErrCodeTrainingFailed:        http.StatusInternalServerError,
	ErrCodeInvalidRunTransition:  http.StatusConflict,
	ErrCodeArchitectureMismatch:  http.StatusConflict,
	ErrCodePairSourceUnavailable: http.StatusServiceUnavailable,

	ErrCodeDataSourceUnavailable: http.StatusServiceUnavailable,
	ErrCodeDataSourceRateLimited: http.StatusTooManyRequests,
	ErrCodeDataSourceParseError:  http.StatusBadGateway,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "authentication required",
	ErrCodeForbidden:          "permission denied",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessagingError:     "messaging error",

	ErrCodeResolution:            "sequence resolution failed",
	ErrCodeSequenceNotFound:      "sequence not found",
	ErrCodeEmbeddingCompute:      "embedding could not be computed",
	ErrCodeEmbeddingDimMismatch:  "embedding dimension mismatch",
	ErrCodeInsufficientData:      "insufficient data",
	ErrCodeLabelConflict:         "pair labeled both positive and negative",
	ErrCodeModelLoad:             "model could not be loaded",
	ErrCodeModelUnavailable:      "no model loaded",
	ErrCodeInsufficientInput:     "insufficient input for prediction",
	ErrCodeTrainingFailed:        "training run failed",
	ErrCodeInvalidRunTransition:  "invalid training run transition",
	ErrCodeArchitectureMismatch:  "model architecture mismatch",
	ErrCodePairSourceUnavailable: "pair source unavailable",

	ErrCodeDataSourceUnavailable: "data source unavailable",
	ErrCodeDataSourceRateLimited: "data source rate limited",
	ErrCodeDataSourceParseError:  "failed to parse data source response",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
