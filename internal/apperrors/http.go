package apperrors

import (
	"errors"
	"net/http"
)

// Result codes returned to the agent.
const (
	ResultOK    = 0
	ResultError = -1
)

// ResultCode maps an error to the integer result of a remote call.
func ResultCode(err error) int {
	if err == nil {
		return ResultOK
	}
	return ResultError
}

// HTTPStatus maps an error to the appropriate HTTP status code. Internal errors are
// classified first so a cause that is itself classified cannot downgrade them.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError
	case errors.Is(err, ErrProtocol):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPolicy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
