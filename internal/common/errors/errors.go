package errors

import (
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeFDATransport ErrorCode = "FDA_TRANSPORT_ERROR"
	ErrCodeFDAUpstream  ErrorCode = "FDA_UPSTREAM_ERROR"

	ErrCodeDocumentSearchFailed  ErrorCode = "DOCUMENT_SEARCH_FAILED"
	ErrCodeDocumentSearchTimeout ErrorCode = "DOCUMENT_SEARCH_TIMEOUT"

	ErrCodeWebSearchTimeout ErrorCode = "WEB_SEARCH_TIMEOUT"
	ErrCodeWebSearchFailed  ErrorCode = "WEB_SEARCH_FAILED"

	ErrCodeLLMTimeout         ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMSynthesisFailed ErrorCode = "LLM_SYNTHESIS_FAILED"

	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeAuditWriteFailed   ErrorCode = "AUDIT_WRITE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Job input failed validation", details, false)
}

func NewFDATransportError(err error) *StandardError {
	return newError(ErrCodeFDATransport, "openFDA unreachable", err.Error(), true)
}

func NewFDAUpstreamError(statusCode int, err error) *StandardError {
	e := newError(ErrCodeFDAUpstream, "openFDA returned an error status", err.Error(), statusCode >= 500)
	e.Metadata = map[string]interface{}{"statusCode": statusCode}
	return e
}

func NewDocumentSearchFailedError(err error) *StandardError {
	return newError(ErrCodeDocumentSearchFailed, "Document search failed", err.Error(), true)
}

func NewDocumentSearchTimeoutError() *StandardError {
	return newError(ErrCodeDocumentSearchTimeout, "Document search timeout", "search exceeded its time budget", true)
}

func NewWebSearchTimeoutError() *StandardError {
	return newError(ErrCodeWebSearchTimeout, "Web search API timeout", "search call exceeded timeout", false)
}

func NewWebSearchFailedError(err error) *StandardError {
	return newError(ErrCodeWebSearchFailed, "Web search failed", err.Error(), false)
}

func NewLLMTimeoutError() *StandardError {
	return newError(ErrCodeLLMTimeout, "Completion timeout", "completion call exceeded timeout", true)
}

func NewLLMSynthesisFailedError(err error) *StandardError {
	return newError(ErrCodeLLMSynthesisFailed, "Completion API error", err.Error(), true)
}

func NewSessionStoreFailedError(err error) *StandardError {
	return newError(ErrCodeSessionStoreFailed, "Conversation history unavailable", err.Error(), true)
}

func NewAuditWriteFailedError(err error) *StandardError {
	return newError(ErrCodeAuditWriteFailed, "Turn audit write failed", err.Error(), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// BPMNErrorMapping holds codes whose BPMN error name differs from the code itself.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeFDATransport:          "REGULATORY_SOURCE_UNAVAILABLE",
	ErrCodeFDAUpstream:           "REGULATORY_SOURCE_ERROR",
	ErrCodeDocumentSearchTimeout: "DOCUMENT_SEARCH_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeFDATransport,
		ErrCodeFDAUpstream,
		ErrCodeDocumentSearchFailed,
		ErrCodeLLMSynthesisFailed,
		ErrCodeSessionStoreFailed,
		ErrCodeAuditWriteFailed:
		return 3

	case ErrCodeDocumentSearchTimeout:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

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
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "FDA"):
		return "REGULATORY"
	case strings.HasPrefix(codeStr, "DOCUMENT"):
		return "DOCUMENTS"
	case strings.HasPrefix(codeStr, "WEB"):
		return "WEB"
	case strings.HasPrefix(codeStr, "LLM"):
		return "AI"
	case strings.HasPrefix(codeStr, "SESSION") || strings.HasPrefix(codeStr, "AUDIT"):
		return "STORAGE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
