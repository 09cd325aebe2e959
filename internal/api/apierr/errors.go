package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/racecoord/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Codes that have no domain counterpart
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeInternalError  = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

var statusByCode = map[model.ErrorCode]int{
	model.CodeInvalidPlayer:       http.StatusBadRequest,
	model.CodeInvalidRoomCode:     http.StatusBadRequest,
	model.CodeInvalidResult:       http.StatusBadRequest,
	model.CodeInvalidAdvancement:  http.StatusBadRequest,
	model.CodePlayerNotFound:      http.StatusNotFound,
	model.CodeRoomNotFound:        http.StatusNotFound,
	model.CodePlayerNotConnected:  http.StatusConflict,
	model.CodePlayerAlreadyInRoom: http.StatusConflict,
	model.CodePlayerNotInRoom:     http.StatusConflict,
	model.CodeRoomMatchActive:     http.StatusConflict,
	model.CodeMatchAlreadyActive:  http.StatusConflict,
	model.CodePendingMatchMissing: http.StatusConflict,
	model.CodeEmptyRoom:           http.StatusConflict,
	model.CodeNoActiveMatch:       http.StatusConflict,
	model.CodePlayerNotRunning:    http.StatusConflict,
	model.CodeInvalidTransition:   http.StatusConflict,
	model.CodeReadyCheckNotActive: http.StatusConflict,
	model.CodeNotRoomLeader:       http.StatusForbidden,
	model.CodeRoomCodeExhausted:   http.StatusServiceUnavailable,
	model.CodeTargetPoolEmpty:     http.StatusServiceUnavailable,
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError. Integrity failures and
// anything without a domain code are reported as internal errors.
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var de *model.Error
	if errors.As(err, &de) {
		if status, ok := statusByCode[de.Code]; ok {
			return &httpError{status, APIError{string(de.Code), de.Message}}
		}
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
