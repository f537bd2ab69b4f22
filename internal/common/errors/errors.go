// Package errors provides standardized error handling for workers, BPMN integration and the
// HTTP façade.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Reservation flow
	ErrCodeIntentParsingFailed  ErrorCode = "INTENT_PARSING_FAILED"
	ErrCodeIntentAPITimeout     ErrorCode = "INTENT_API_TIMEOUT"
	ErrCodePlacesSearchFailed   ErrorCode = "PLACES_SEARCH_FAILED"
	ErrCodePlacesTimeout        ErrorCode = "PLACES_TIMEOUT"
	ErrCodeCallPlacementFailed  ErrorCode = "CALL_PLACEMENT_FAILED"
	ErrCodeBookingRecordFailed  ErrorCode = "BOOKING_RECORD_FAILED"
	ErrCodeNotificationSendFail ErrorCode = "NOTIFICATION_SEND_FAILED"

	// AI / retrieval
	ErrCodeLLMTimeout            ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMSynthesisFailed    ErrorCode = "LLM_SYNTHESIS_FAILED"
	ErrCodeLLMRateLimited        ErrorCode = "LLM_RATE_LIMITED"
	ErrCodeWebSearchTimeout      ErrorCode = "WEB_SEARCH_TIMEOUT"
	ErrCodeDocumentParseFailed   ErrorCode = "DOCUMENT_PARSE_FAILED"
	ErrCodeUnsupportedFormat     ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeTranscriptionFailed   ErrorCode = "TRANSCRIPTION_FAILED"
	ErrCodeSearchQueryFailed     ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeElasticsearchConnFail ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"

	// News / state
	ErrCodeNewsSyncFailed     ErrorCode = "NEWS_SYNC_FAILED"
	ErrCodeNewsFetchFailed    ErrorCode = "NEWS_FETCH_FAILED"
	ErrCodeStateWriteFailed   ErrorCode = "STATE_WRITE_FAILED"
	ErrCodeDatabaseConnFailed ErrorCode = "DATABASE_CONNECTION_FAILED"

	// Workflow engine
	ErrCodeZeebeUnavailable     ErrorCode = "ZEEBE_UNAVAILABLE"
	ErrCodeZeebeCommandRejected ErrorCode = "ZEEBE_COMMAND_REJECTED"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// As extracts a *StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func NewIntentParsingFailedError(err error) *StandardError {
	return newError(ErrCodeIntentParsingFailed, "Failed to parse reservation intent", detailsOf(err), true)
}

func NewIntentAPITimeoutError() *StandardError {
	return newError(ErrCodeIntentAPITimeout, "Intent model call timed out", "", true)
}

func NewPlacesSearchFailedError(err error) *StandardError {
	return newError(ErrCodePlacesSearchFailed, "Places search failed", detailsOf(err), true)
}

func NewPlacesTimeoutError() *StandardError {
	return newError(ErrCodePlacesTimeout, "Places search timed out", "", true)
}

func NewCallPlacementFailedError(err error) *StandardError {
	return newError(ErrCodeCallPlacementFailed, "Failed to place reservation call", detailsOf(err), true)
}

func NewBookingRecordFailedError(err error) *StandardError {
	return newError(ErrCodeBookingRecordFailed, "Failed to record booking", detailsOf(err), true)
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFail, "Notification send failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, detailsOf(err)), true)
}

func NewLLMTimeoutError() *StandardError {
	return newError(ErrCodeLLMTimeout, "Language model call timed out", "", true)
}

func NewLLMSynthesisFailedError(err error) *StandardError {
	return newError(ErrCodeLLMSynthesisFailed, "Language model call failed", detailsOf(err), true)
}

func NewLLMRateLimitedError(err error) *StandardError {
	return newError(ErrCodeLLMRateLimited, "Language model quota or rate limit reached", detailsOf(err), true)
}

func NewWebSearchTimeoutError() *StandardError {
	return newError(ErrCodeWebSearchTimeout, "Web search timed out", "", true)
}

func NewDocumentParseFailedError(kind string, err error) *StandardError {
	return newError(ErrCodeDocumentParseFailed, fmt.Sprintf("Failed to parse %s", kind), detailsOf(err), false)
}

func NewUnsupportedFormatError(ext string) *StandardError {
	return newError(ErrCodeUnsupportedFormat, "Unsupported file format", fmt.Sprintf("extension: %q", ext), false)
}

func NewTranscriptionFailedError(err error) *StandardError {
	return newError(ErrCodeTranscriptionFailed, "Transcription failed", detailsOf(err), true)
}

// NewSearchQueryFailedError creates a retryable search error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query failed",
		fmt.Sprintf("index: %s, error: %s", index, detailsOf(err)), true)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnFail, "Elasticsearch connection error", detailsOf(err), true)
}

func NewNewsSyncFailedError(err error) *StandardError {
	return newError(ErrCodeNewsSyncFailed, "Energy news sync failed", detailsOf(err), true)
}

func NewNewsFetchFailedError(err error) *StandardError {
	return newError(ErrCodeNewsFetchFailed, "Energy news fetch failed", detailsOf(err), true)
}

func NewStateWriteFailedError(err error) *StandardError {
	return newError(ErrCodeStateWriteFailed, "Failed to write state file", detailsOf(err), true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnFailed, "Database connection error", detailsOf(err), true)
}

func NewZeebeUnavailableError(err error) *StandardError {
	return newError(ErrCodeZeebeUnavailable, "Workflow engine unavailable", detailsOf(err), true).
		WithMetadata("service", "zeebe")
}

// NewZeebeCommandRejectedError is for commands the broker refused; retrying them does not help.
func NewZeebeCommandRejectedError(err error) *StandardError {
	return newError(ErrCodeZeebeCommandRejected, "Workflow engine rejected the command", detailsOf(err), false).
		WithMetadata("service", "zeebe")
}

// NewValidationError creates a non-retryable input validation error.
func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Validation failed", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeIntentParsingFailed,
		ErrCodePlacesSearchFailed,
		ErrCodeCallPlacementFailed,
		ErrCodeBookingRecordFailed,
		ErrCodeNotificationSendFail,
		ErrCodeLLMSynthesisFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeElasticsearchConnFail,
		ErrCodeNewsSyncFailed,
		ErrCodeNewsFetchFailed,
		ErrCodeDatabaseConnFailed,
		ErrCodeZeebeUnavailable:
		return 3

	case ErrCodeIntentAPITimeout,
		ErrCodePlacesTimeout,
		ErrCodeWebSearchTimeout,
		ErrCodeTranscriptionFailed,
		ErrCodeLLMRateLimited:
		return 2

	case ErrCodeLLMTimeout, ErrCodeStateWriteFailed:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda. BPMN codes are
// identical to the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INTENT"), strings.HasPrefix(codeStr, "LLM"):
		return "AI"
	case strings.HasPrefix(codeStr, "PLACES"), strings.HasPrefix(codeStr, "CALL"),
		strings.HasPrefix(codeStr, "BOOKING"):
		return "RESERVATION"
	case strings.Contains(codeStr, "SEARCH"), strings.HasPrefix(codeStr, "ELASTICSEARCH"):
		return "SEARCH"
	case strings.HasPrefix(codeStr, "DOCUMENT"), strings.HasPrefix(codeStr, "TRANSCRIPTION"),
		strings.HasPrefix(codeStr, "UNSUPPORTED"):
		return "DOCUMENT"
	case strings.HasPrefix(codeStr, "NEWS"):
		return "NEWS"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "DATABASE"), strings.HasPrefix(codeStr, "STATE"):
		return "STORAGE"
	case strings.HasPrefix(codeStr, "ZEEBE"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code to the status the HTTP façade answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeUnsupportedFormat, ErrCodeDocumentParseFailed:
		return http.StatusBadRequest
	case ErrCodeIntentAPITimeout, ErrCodePlacesTimeout, ErrCodeLLMTimeout, ErrCodeWebSearchTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeLLMRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeIntentParsingFailed, ErrCodePlacesSearchFailed, ErrCodeLLMSynthesisFailed,
		ErrCodeNewsFetchFailed, ErrCodeTranscriptionFailed, ErrCodeZeebeCommandRejected:
		return http.StatusBadGateway
	case ErrCodeZeebeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
