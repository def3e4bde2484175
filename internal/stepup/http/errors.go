package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/stepauth/stepauth/internal/stepup/service"
	"github.com/stepauth/stepauth/internal/stepup/store"
	"github.com/stepauth/stepauth/pkg/httpx"
	"github.com/stepauth/stepauth/pkg/mfasdk"
)

// writeServiceError maps service-layer failures onto the wire. Provider
// and transport failures become 502s so callers can tell "you got it
// wrong" from "the vendor is down".
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	var invalidCode *service.InvalidCodeError
	var providerErr *mfasdk.ProviderError

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials",
			"Username or password is incorrect")

	case errors.Is(err, service.ErrLoginNotFound):
		httpx.WriteError(w, http.StatusNotFound, "login_not_found",
			"No login in progress for this ID; it may have expired")

	case errors.Is(err, service.ErrTamperDetected):
		httpx.WriteError(w, http.StatusForbidden, "login_aborted",
			"The login did not match the acting user and has been aborted")

	case errors.Is(err, service.ErrAttemptsExhausted):
		httpx.WriteError(w, http.StatusForbidden, "attempts_exhausted",
			"Too many failed attempts; start the login again")

	case errors.Is(err, service.ErrChallengeDenied):
		httpx.WriteError(w, http.StatusForbidden, "challenge_denied",
			"The challenge was denied or could not be completed")

	case errors.Is(err, service.ErrWrongPhase):
		httpx.WriteError(w, http.StatusConflict, "wrong_phase",
			"This operation does not match the login's current step")

	case errors.Is(err, service.ErrMFANotConfigured):
		httpx.WriteError(w, http.StatusForbidden, "mfa_not_configured",
			"Multi-factor authentication is required but not set up for this account")

	case errors.Is(err, service.ErrMethodNotEligible):
		httpx.WriteError(w, http.StatusBadRequest, "method_not_eligible",
			"The selected method is not available for this account")

	case errors.Is(err, service.ErrPhoneRequired):
		httpx.WriteError(w, http.StatusBadRequest, "phone_required",
			"The selected method requires a phone number")

	case errors.Is(err, service.ErrUserLimitExceeded):
		httpx.WriteError(w, http.StatusBadGateway, "user_limit_exceeded",
			"The provider's licensed user limit has been reached")

	case errors.As(err, &invalidCode):
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":              "invalid_code",
			"error_description":  "The submitted code was not accepted",
			"attempts_remaining": invalidCode.AttemptsRemaining,
		})

	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Resource not found")

	case mfasdk.IsTransport(err):
		log.Error("provider unreachable", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "provider_unreachable",
			"The authentication provider could not be reached")

	case errors.As(err, &providerErr):
		log.Error("provider error", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "provider_error",
			"The authentication provider rejected the request")

	default:
		log.Error("internal error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"An internal error occurred")
	}
}
