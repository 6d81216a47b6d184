// Package api holds the JSON envelope and error mapping of the status API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/witsync/internal/domain"
)

// SuccessResponse is the envelope of every 2xx body and of failed sync runs.
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse carries the message and, for domain errors, their code.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var codeStatus = map[string]int{
	domain.ErrCodeValidation:  http.StatusBadRequest,
	domain.ErrCodeNotFound:    http.StatusNotFound,
	domain.ErrCodeUnavailable: http.StatusBadGateway,
	domain.ErrCodeUnsupported: http.StatusNotImplemented,
}

// JSON writes v with the given status. A nil v writes headers only.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps err to a status. A running sync is a conflict
// rather than an upstream outage; errors without a domain code are 500.
func DomainErrorToHTTP(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		if status, ok := codeStatus[domainErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// HandleError writes err as an ErrorResponse with its mapped status.
func HandleError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
	}
	JSON(w, DomainErrorToHTTP(err), resp)
}
