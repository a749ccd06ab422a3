// Package web carries the shared HTTP plumbing: the response envelope,
// bearer token resolution, and CORS.
package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	apperrors "github.com/Lordhacker756/vortex-api/internal/platform/errors"
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Status    string     `json:"status"`
	Message   string     `json:"message,omitempty"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorBody is the client-facing error payload: a stable machine-readable
// code plus a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a success envelope.
func WriteJSON(w http.ResponseWriter, statusCode int, message string, data any) {
	writeEnvelope(w, statusCode, Response{
		Status:    "success",
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// WriteError maps a domain error onto the envelope and its HTTP status.
//
// Domain errors surface their code and message; anything else is logged
// with full detail and reported to the client as a generic failure so
// driver internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	message := "something went wrong"
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	if code == apperrors.CodeUnknown {
		log.Printf("request failed: %v", err)
		message = "something went wrong"
	}
	writeEnvelope(w, code.HTTPStatus(), Response{
		Status:    "error",
		Error:     &ErrorBody{Code: string(code), Message: message},
		Timestamp: time.Now().UTC(),
	})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
