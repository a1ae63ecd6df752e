package http

import (
	"net/http"

	"gatecheck/entities"
)

// statusForReason maps a rejection reason to its HTTP status. Accepted
// outcomes never reach this.
func statusForReason(reason string) int {
	switch reason {
	case entities.ReasonUntrustedToken:
		return http.StatusUnauthorized
	case entities.ReasonNotFound:
		return http.StatusNotFound
	case entities.ReasonForbidden:
		return http.StatusForbidden
	case entities.ReasonAlreadyUsed, entities.ReasonConflict, entities.ReasonCancelled, entities.ReasonTransferred:
		return http.StatusConflict
	case entities.ReasonTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
