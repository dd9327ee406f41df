package apperr

import "net/http"

// HTTPStatus maps an error classification to the HTTP status the transport
// layer responds with. Mirrors the mapping used by our HTTP clients in the
// opposite direction.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case KindConflict:
		return http.StatusConflict
	case KindExternalCall:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus is the inverse mapping, used by inter-service clients to
// rebuild a typed error from a downstream response.
func FromHTTPStatus(status int, msg string) *Error {
	switch status {
	case http.StatusBadRequest:
		return New(KindValidation, msg)
	case http.StatusNotFound:
		return New(KindNotFound, msg)
	case http.StatusPreconditionFailed:
		return New(KindPreconditionFailed, msg)
	case http.StatusConflict:
		return New(KindConflict, msg)
	default:
		return New(KindInternal, msg)
	}
}
