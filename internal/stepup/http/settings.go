package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stepauth/stepauth/internal/stepup/domain"
	"github.com/stepauth/stepauth/internal/stepup/service"
	"github.com/stepauth/stepauth/pkg/httpx"
	"github.com/stepauth/stepauth/pkg/slogx"
)

// SettingsHandler exposes the gateway policy configuration to operators.
type SettingsHandler struct {
	SettingsService *service.SettingsService
}

// HandleGet handles GET /v1/admin/settings. The backdoor secret is
// redacted; only its presence is reported.
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	settings, err := h.SettingsService.Get(ctx)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	if settings.BackdoorSecret != "" {
		settings.BackdoorSecret = "********"
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, settings)
}

// HandlePut handles PUT /v1/admin/settings. The whole document is
// replaced; there is no patch semantics.
func (h *SettingsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var settings domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.SettingsService.Save(ctx, settings); err != nil {
		if errors.Is(err, service.ErrInvalidSettings) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_settings", err.Error())
			return
		}
		writeServiceError(w, log, err)
		return
	}

	log.Info("settings updated", "admin_id", ctx.Value(CtxKeyUserID))
	w.WriteHeader(http.StatusNoContent)
}
