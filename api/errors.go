package api

import (
	"errors"
	"net/http"

	"github.com/warp/cantina/canteen"
	"github.com/warp/cantina/config"
)

// =============================================================================
// ERROR -> STATUS MAPPING
// =============================================================================

// workflowStatus maps a sale, cancel or recharge failure to an HTTP status.
// Input errors are always 400. In legacy mode everything else is 500, which
// is what existing point-of-sale clients expect; strict mode tells the
// failure classes apart.
func (h *Handler) workflowStatus(err error) int {
	if canteen.IsClientError(err) {
		return http.StatusBadRequest
	}
	if h.statusMode != config.StatusModeStrict {
		return http.StatusInternalServerError
	}
	switch {
	case canteen.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, canteen.ErrAlreadyCancelled),
		errors.Is(err, canteen.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, canteen.ErrLimitExceeded),
		errors.Is(err, canteen.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// resourceStatus maps student, product and report failures. These always
// used specific codes.
func resourceStatus(err error) int {
	switch {
	case canteen.IsClientError(err):
		return http.StatusBadRequest
	case canteen.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, canteen.ErrDuplicateCode):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the text shown to the operator. Domain errors carry
// their own message; store failures get fallback.
func publicMessage(err error, fallback string) string {
	if canteen.IsDomainError(err) {
		return err.Error()
	}
	return fallback
}
