package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{InvalidTransition("no path"), http.StatusPreconditionFailed},
		{PreconditionFailed("not ready"), http.StatusPreconditionFailed},
		{Conflict("out of stock"), http.StatusConflict},
		{ExternalCall("upstream down", nil), http.StatusBadGateway},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "for %v", tt.err)
	}
}

func TestFromHTTPStatus_RoundTrip(t *testing.T) {
	for _, kind := range []Kind{
		KindValidation,
		KindNotFound,
		KindConflict,
		KindPreconditionFailed,
	} {
		status := HTTPStatus(New(kind, "msg"))
		got := FromHTTPStatus(status, "msg")
		assert.Equal(t, status, HTTPStatus(got), "status for kind %v must survive the round trip", kind)
	}
}

func TestKindOf_WrappedError(t *testing.T) {
	inner := NotFound("order 7 not found")
	wrapped := Wrap(KindExternalCall, "call failed", inner)

	assert.Equal(t, KindExternalCall, KindOf(wrapped))
	assert.True(t, IsKind(errors.Unwrap(wrapped), KindNotFound))
}
