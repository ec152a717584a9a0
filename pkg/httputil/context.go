package httputil

import (
	"encoding/json"
	"net/http"
)

// ContextKey is the type for values this package stores in a request context.
type ContextKey string

const (
	RequestIDCtxKey ContextKey = "RequestID"
	CallerCtxKey    ContextKey = "Caller"
	BasicAuthCtxKey ContextKey = "BasicAuth"
	ExecutorCtxKey  ContextKey = "Executor"
)

// Caller holds the authenticated identity attached to a request. The CRUD
// handlers treat it as opaque: they require its presence but never interpret
// it beyond the subject string.
type Caller struct {
	Subject string         `json:"subject"`
	Claims  map[string]any `json:"claims,omitempty"`
}

// CallerFrom extracts the authenticated caller from the request context.
func CallerFrom(r *http.Request) (*Caller, bool) {
	caller, ok := r.Context().Value(CallerCtxKey).(*Caller)
	if !ok || caller == nil {
		return nil, false
	}
	return caller, true
}

// BindOrError decodes the JSON body of r into dst, responding with
// 400 Bad Request if decoding fails.
func BindOrError(r *http.Request, w http.ResponseWriter, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return err
	}
	return nil
}

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Text writes a plain text response with the given status code.
func Text(w http.ResponseWriter, statusCode int, text string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(text)); err != nil {
		http.Error(w, "Failed to write response", http.StatusInternalServerError)
	}
}

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Error sends a JSON response with an error code and message.
func Error(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	errorResponse := ErrorResponse{
		Code:    statusCode,
		Message: message,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
