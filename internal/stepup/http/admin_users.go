package http

import (
	"net/http"

	"github.com/stepauth/stepauth/internal/stepup/service"
	"github.com/stepauth/stepauth/pkg/httpx"
	"github.com/stepauth/stepauth/pkg/slogx"
)

// AdminUsersHandler covers per-user MFA administration.
type AdminUsersHandler struct {
	AdminService *service.Admin
}

// HandleGet handles GET /v1/admin/users/{uid}/mfa.
func (h *AdminUsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	status, err := h.AdminService.GetMFAStatus(ctx, r.PathValue("uid"))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, status)
}

// HandleReset handles DELETE /v1/admin/users/{uid}/mfa.
func (h *AdminUsersHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := h.AdminService.ResetMFA(ctx, r.PathValue("uid")); err != nil {
		writeServiceError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEnable handles POST /v1/admin/users/{uid}/mfa/enable.
func (h *AdminUsersHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// HandleDisable handles POST /v1/admin/users/{uid}/mfa/disable.
func (h *AdminUsersHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *AdminUsersHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := h.AdminService.SetMFAEnabled(ctx, r.PathValue("uid"), enabled); err != nil {
		writeServiceError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LicenseHandler reports the provider's plan and user-capacity counters.
type LicenseHandler struct {
	AdminService *service.Admin
}

// HandleGet handles GET /v1/admin/license.
func (h *LicenseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	license, err := h.AdminService.License(ctx)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, license)
}
