package models

import "github.com/starlitlog/dr-web-engine/query"

// HTTP-only error codes, for failures that never reach the evaluator.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorDetailFromErr converts any error into an API-facing ErrorDetail. A
// *query.EvalError keeps its own code verbatim (ErrUnknownKey,
// ErrTargetNotFound, ErrActionTimeout, ...); anything else becomes a plain
// internal error so the wire response never leaks unstructured Go errors.
func ErrorDetailFromErr(err error) *ErrorDetail {
	if ee, ok := err.(*query.EvalError); ok {
		return &ErrorDetail{Code: ee.Code, Message: ee.Message}
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
