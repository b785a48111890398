package errs

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	notFound := Mark(New("subscriber not found"), ErrNotFound)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("email is required"), http.StatusBadRequest},
		{"wrapped not found", Wrap(notFound, "load subscriber"), http.StatusNotFound},
		{"forbidden", Mark(New("expired token"), ErrForbidden), http.StatusForbidden},
		{"conflict", Mark(New("broadcast in progress"), ErrConflict), http.StatusConflict},
		{"transient", Transient(New("throttled"), "put item"), http.StatusInternalServerError},
		{"plain", New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "email is required", PublicMessage(Validation("email is required")))
	assert.Equal(t, "internal server error", PublicMessage(New("dynamodb: connection reset")))
}

func TestMark_NilUsesMark(t *testing.T) {
	assert.Equal(t, ErrConflict, Mark(nil, ErrConflict))
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))
	assert.NoError(t, Transient(nil, "ignored"))
}
