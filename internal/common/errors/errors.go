// Package errors provides the render failure taxonomy and BPMN error integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Failure Categories
// ==========================

// Category is the closed set of render failure categories. Every failure the
// workers observe, whatever its source, is reduced to exactly one of these.
type Category string

const (
	CategoryTemplate Category = "TEMPLATE_ERROR"
	CategoryAsset    Category = "ASSET_ERROR"
	CategoryTimeout  Category = "TIMEOUT_ERROR"
	CategoryQuota    Category = "QUOTA_ERROR"
	CategoryNetwork  Category = "NETWORK_ERROR"
	CategoryUnknown  Category = "UNKNOWN_ERROR"

	// CategoryNone marks outcomes that did not fail. It is not a failure
	// category and is never Valid.
	CategoryNone Category = "NONE"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryTemplate,
	CategoryAsset,
	CategoryTimeout,
	CategoryQuota,
	CategoryNetwork,
	CategoryUnknown,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTemplate, CategoryAsset, CategoryTimeout, CategoryQuota, CategoryNetwork, CategoryUnknown:
		return true
	}
	return false
}

// Transient reports whether failures of this category are retried locally
// before being surfaced.
func (c Category) Transient() bool {
	switch c {
	case CategoryAsset, CategoryTimeout, CategoryNetwork, CategoryUnknown:
		return true
	case CategoryTemplate, CategoryQuota:
		return false
	}
	return false
}

// ParseCategory maps a configuration key such as "quota", "QuotaError" or
// "QUOTA_ERROR" to its category.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.TrimSuffix(strings.TrimSuffix(key, "_error"), "error")
	switch key {
	case "template":
		return CategoryTemplate, true
	case "asset":
		return CategoryAsset, true
	case "timeout":
		return CategoryTimeout, true
	case "quota":
		return CategoryQuota, true
	case "network":
		return CategoryNetwork, true
	case "unknown":
		return CategoryUnknown, true
	}
	return "", false
}

// ==========================
// 2. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeRecordNotFound     ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeRecordStoreFailed  ErrorCode = "RECORD_STORE_FAILED"
	ErrCodeRecordNotReady     ErrorCode = "RECORD_NOT_READY"
	ErrCodeCompositionFailed  ErrorCode = "COMPOSITION_FAILED"
	ErrCodePlanInvalid        ErrorCode = "PLAN_INVALID"
	ErrCodeRenderFailed       ErrorCode = "RENDER_FAILED"
	ErrCodeRenderTimedOut     ErrorCode = "RENDER_TIMED_OUT"
	ErrCodeRenderInFlight     ErrorCode = "RENDER_IN_FLIGHT"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeEscalationFailed   ErrorCode = "ESCALATION_FAILED"
	ErrCodeAuditIndexFailed   ErrorCode = "AUDIT_INDEX_FAILED"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Category  Category               `json:"category,omitempty"`
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

// ==========================
// 3. BPMN Error Integration
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
// 4. Error Constructors
// ==========================

// NewRecordNotFoundError creates a non-retryable error for an unknown record id.
func NewRecordNotFoundError(recordID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "Content record not found",
		Details:   fmt.Sprintf("recordId: %s", recordID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordStoreFailedError creates a retryable record store error.
func NewRecordStoreFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordStoreFailed,
		Category:  CategoryNetwork,
		Message:   fmt.Sprintf("Record store %s failed", op),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordNotReadyError creates a non-retryable readiness failure.
func NewRecordNotReadyError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotReady,
		Message:   "Record is not ready for rendering",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompositionFailedError creates a non-retryable timing plan error.
func NewCompositionFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompositionFailed,
		Category:  CategoryAsset,
		Message:   "Timing plan could not be composed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlanInvalidError creates a template error for a payload rejected before submission.
func NewPlanInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePlanInvalid,
		Category:  CategoryTemplate,
		Message:   "Render payload failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRenderFailedError creates the terminal error for a render that exhausted its budget.
func NewRenderFailedError(category Category, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRenderFailed,
		Category:  category,
		Message:   "Render job failed",
		Details:   reason,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRenderTimedOutError creates the terminal error for a render past its ceiling.
func NewRenderTimedOutError(reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRenderTimedOut,
		Category:  CategoryTimeout,
		Message:   "Render job timed out",
		Details:   reason,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRenderInFlightError creates a retryable error for a record already being rendered.
func NewRenderInFlightError(recordID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRenderInFlight,
		Message:   "Render already in flight for record",
		Details:   fmt.Sprintf("recordId: %s", recordID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEscalationFailedError wraps a failed operator notification.
func NewEscalationFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEscalationFailed,
		Category:  CategoryNetwork,
		Message:   fmt.Sprintf("Escalation via %s failed", channel),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuditIndexFailedError wraps a failed outcome index write.
func NewAuditIndexFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditIndexFailed,
		Category:  CategoryNetwork,
		Message:   "Outcome audit index write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable job input error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid job input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeServiceUnavailable,
		Category:  CategoryNetwork,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Category:  CategoryTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the Zeebe job retry count for infrastructure failures.
// Render failures carry their own per-category budget and are never retried
// by the engine once surfaced.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRecordStoreFailed,
		ErrCodeServiceUnavailable:
		return 3

	case ErrCodeRenderInFlight,
		"TIMEOUT_ERROR":
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if stdErr.Category != "" {
		vars["errorCategory"] = string(stdErr.Category)
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

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}
