// Package errors provides structured error handling for docfind.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and document errors
//   - 3XX: Network and server errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

import "net/http"

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal means the process cannot continue.
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO and document errors (200-299)
	ErrCodeFileNotFound     = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission   = "ERR_202_FILE_PERMISSION"
	ErrCodeFileUnstable     = "ERR_203_FILE_UNSTABLE"
	ErrCodeFileTooLarge     = "ERR_204_FILE_TOO_LARGE"
	ErrCodeStoreFailed      = "ERR_205_STORE_FAILED"
	ErrCodeFileCorrupt      = "ERR_206_FILE_CORRUPT"
	ErrCodeExtractionFailed = "ERR_207_EXTRACTION_FAILED"
	ErrCodeDocumentNotFound = "ERR_208_DOCUMENT_NOT_FOUND"
	ErrCodeInstanceLocked   = "ERR_209_INSTANCE_LOCKED"
	ErrCodeFDLimitLow       = "ERR_210_FD_LIMIT_LOW"
	ErrCodeDiskSpaceLow     = "ERR_211_DISK_SPACE_LOW"

	// Network errors (300-399)
	ErrCodeListenFailed   = "ERR_301_LISTEN_FAILED"
	ErrCodeRequestTimeout = "ERR_302_REQUEST_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeMissingDocument = "ERR_402_MISSING_DOCUMENT_ID"
	ErrCodeInvalidQuery    = "ERR_403_INVALID_QUERY"
	ErrCodeQueryEmpty      = "ERR_404_QUERY_EMPTY"
	ErrCodeQueryTooLong    = "ERR_405_QUERY_TOO_LONG"
	ErrCodeInvalidPath     = "ERR_406_INVALID_PATH"
	ErrCodeUnsupportedType = "ERR_407_UNSUPPORTED_TYPE"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	// "ERR_" prefix plus at least one digit
	if len(code) < 5 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeInstanceLocked, ErrCodeListenFailed:
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports whether an error code represents a transient condition.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeFileUnstable, ErrCodeRequestTimeout:
		return true
	default:
		return false
	}
}

// httpStatusFromCode maps an error code to the HTTP status the API answers with.
func httpStatusFromCode(code string) int {
	switch code {
	case ErrCodeDocumentNotFound, ErrCodeFileNotFound:
		return http.StatusNotFound
	case ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeExtractionFailed, ErrCodeFileCorrupt:
		return http.StatusUnprocessableEntity
	case ErrCodeRequestTimeout:
		return http.StatusGatewayTimeout
	}
	if categoryFromCode(code) == CategoryValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
