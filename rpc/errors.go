package rpc

import (
	"errors"
	"fmt"
	"net/http"

	"creditledger/native/credit"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Ledger error codes. Clients map them back onto the credit engine errors
// with ErrorForCode.
const (
	CodeUnauthorized  = -32001
	CodePaused        = -32002
	CodeUnavailable   = -32003
	CodeNotFound      = -32004
	CodeAlreadyExists = -32009
	CodeInvalidState  = -32010
	CodeOverpayment   = -32011
	CodePlanClosed    = -32012
)

// ModuleError is the transport rendition of an engine failure.
type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidParams(format string, args ...interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

type errorMapping struct {
	target error
	status int
	code   int
	kind   string
}

var errorMappings = []errorMapping{
	{credit.ErrUnauthorized, http.StatusForbidden, CodeUnauthorized, "Unauthorized"},
	{credit.ErrPaused, http.StatusServiceUnavailable, CodePaused, "Paused"},
	{credit.ErrNotFound, http.StatusNotFound, CodeNotFound, "NotFound"},
	{credit.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists, "AlreadyExists"},
	{credit.ErrInvalidArgument, http.StatusBadRequest, codeInvalidParams, "InvalidArgument"},
	{credit.ErrInvalidState, http.StatusConflict, CodeInvalidState, "InvalidState"},
	{credit.ErrOverpayment, http.StatusUnprocessableEntity, CodeOverpayment, "Overpayment"},
	{credit.ErrPlanClosed, http.StatusConflict, CodePlanClosed, "PlanClosed"},
	{credit.ErrStorageUnavailable, http.StatusServiceUnavailable, CodeUnavailable, "StorageUnavailable"},
}

// wrapError maps engine errors onto JSON-RPC codes and HTTP statuses.
func wrapError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	var moduleErr *ModuleError
	if errors.As(err, &moduleErr) {
		return moduleErr
	}
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			data := map[string]interface{}{"kind": mapping.kind}
			if mapping.code == CodeUnavailable {
				data["retryable"] = true
			}
			return &ModuleError{HTTPStatus: mapping.status, Code: mapping.code, Message: err.Error(), Data: data}
		}
	}
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
}

// ErrorForCode returns the engine error identified by a JSON-RPC error code,
// or nil for codes outside the ledger taxonomy.
func ErrorForCode(code int) error {
	if code == codeInvalidParams {
		return credit.ErrInvalidArgument
	}
	for _, mapping := range errorMappings {
		if mapping.code == code {
			return mapping.target
		}
	}
	return nil
}
