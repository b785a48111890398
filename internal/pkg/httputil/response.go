package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/pkg/logger"
)

// maxBodyBytes bounds request bodies accepted by Decode.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("json encode failed", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Message writes a 200 response whose body is a JSON string.
func Message(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusOK, msg)
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// InternalError writes a 500 error. Logs the real error but returns a
// generic message to the client.
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal server error")
}

// FromError writes the response for a service error using its
// classification. Client errors are logged at debug without detail.
func FromError(w http.ResponseWriter, err error) {
	status := errs.StatusCode(err)
	if status == http.StatusInternalServerError {
		InternalError(w, err)
		return
	}
	logger.Debug("request rejected", "status", status, "reason", err.Error())
	Error(w, status, errs.PublicMessage(err))
}

// Redirect answers with a Location header and no body.
func Redirect(w http.ResponseWriter, status int, location string) {
	w.Header().Set("Location", location)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 response if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if err == io.EOF {
			BadRequest(w, "request body is required")
			return false
		}
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
