package apperr

import "net/http"

// HTTPStatus maps an error to the response status handlers should return.
// Unclassified errors fall through to 500.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsAuthorization(err):
		return http.StatusForbidden
	case IsConflict(err):
		return http.StatusConflict
	case IsGateway(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
