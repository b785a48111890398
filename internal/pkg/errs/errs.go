// Package errs classifies failures so the HTTP layer can map them to status
// codes without knowing which service produced them.
package errs

import (
	"fmt"
	"net/http"
	"strings"

	cr "github.com/cockroachdb/errors"
)

// Classification marks. Service sentinels are marked with one of these.
var (
	ErrValidation = cr.New("validation failed")
	ErrNotFound   = cr.New("not found")
	ErrForbidden  = cr.New("forbidden")
	ErrConflict   = cr.New("conflict")
	ErrTransient  = cr.New("store unavailable")
)

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func New(msg string) error {
	return cr.New(msg)
}

func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}

func Is(err, reference error) bool {
	return cr.Is(err, reference)
}

func As(err error, target interface{}) bool {
	return cr.As(err, target)
}

// Validation returns a new error marked as a client input failure.
func Validation(msg string) error {
	return cr.Mark(cr.New(msg), ErrValidation)
}

func Validationf(format string, args ...interface{}) error {
	return cr.Mark(cr.Newf(format, args...), ErrValidation)
}

// Transient marks a backing store failure. Callers may retry.
func Transient(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Mark(cr.Wrap(err, msg), ErrTransient)
}

// StatusCode maps a classified error to its HTTP status. Unclassified
// errors are treated as 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case cr.Is(err, ErrValidation):
		return http.StatusBadRequest
	case cr.Is(err, ErrForbidden):
		return http.StatusForbidden
	case cr.Is(err, ErrNotFound):
		return http.StatusNotFound
	case cr.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to return to a caller. Classified errors
// expose their message; everything else collapses to a generic one.
func PublicMessage(err error) string {
	if StatusCode(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	s := fmt.Sprintf("%+v", err)
	lines := strings.Split(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
