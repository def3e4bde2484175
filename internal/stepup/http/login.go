package http

import (
	"encoding/json"
	"net/http"

	"github.com/stepauth/stepauth/internal/stepup/domain"
	"github.com/stepauth/stepauth/internal/stepup/service"
	"github.com/stepauth/stepauth/pkg/httpx"
	"github.com/stepauth/stepauth/pkg/mfasdk"
	"github.com/stepauth/stepauth/pkg/slogx"
)

// destCookie carries a post-login destination across the challenge
// round-trip, the same way a destination query parameter would on a
// single-shot login.
const destCookie = "stepauth_dest"

// LoginHandler drives the login state machine over HTTP.
type LoginHandler struct {
	Orchestrator *service.Orchestrator
}

type beginLoginRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	BackdoorSecret string `json:"backdoor_secret,omitempty"`
	RememberDevice bool   `json:"remember_device,omitempty"`
	Destination    string `json:"destination,omitempty"`
}

type verifyRequest struct {
	UserID  string            `json:"user_id"`
	Code    string            `json:"code,omitempty"`
	Answers map[string]string `json:"answers,omitempty"`
}

type enrollSelectRequest struct {
	UserID string `json:"user_id"`
	Method string `json:"method"`
	Phone  string `json:"phone,omitempty"`
}

type enrollConfirmRequest struct {
	UserID  string                  `json:"user_id"`
	Code    string                  `json:"code,omitempty"`
	Answers []mfasdk.QuestionAnswer `json:"answers,omitempty"`
}

type loginResponse struct {
	Status            string          `json:"status"`
	LoginID           string          `json:"login_id,omitempty"`
	Method            domain.Method   `json:"method,omitempty"`
	QRCode            string          `json:"qr_code,omitempty"`
	Secret            string          `json:"secret,omitempty"`
	Questions         []string        `json:"questions,omitempty"`
	AttemptsRemaining int             `json:"attempts_remaining,omitempty"`
	EligibleMethods   []domain.Method `json:"eligible_methods,omitempty"`
	Token             string          `json:"token,omitempty"`
	RedirectTo        string          `json:"redirect_to,omitempty"`
}

func toLoginResponse(res *service.LoginResult) loginResponse {
	return loginResponse{
		Status:            string(res.Outcome),
		LoginID:           res.LoginID,
		Method:            res.Method,
		QRCode:            res.QRCode,
		Secret:            res.Secret,
		Questions:         res.Questions,
		AttemptsRemaining: res.AttemptsRemaining,
		EligibleMethods:   res.EligibleMethods,
		Token:             res.Token,
		RedirectTo:        res.RedirectTo,
	}
}

// writeLoginResult renders any orchestrator result and, on a finalized
// login, clears the destination cookie it may have consumed.
func writeLoginResult(w http.ResponseWriter, res *service.LoginResult) {
	if res.Outcome == service.OutcomeFinalized {
		http.SetCookie(w, &http.Cookie{
			Name:     destCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res))
}

// HandleBegin handles POST /v1/login.
func (h *LoginHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req beginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	// The destination cookie loses to an explicit destination in the body.
	destination := req.Destination
	if destination == "" {
		if c, err := r.Cookie(destCookie); err == nil {
			destination = c.Value
		}
	}

	res, err := h.Orchestrator.BeginLogin(ctx, service.BeginLoginRequest{
		Username:       req.Username,
		Password:       req.Password,
		BackdoorSecret: req.BackdoorSecret,
		RememberDevice: req.RememberDevice,
		RedirectHint:   destination,
		Device: service.DeviceInfo{
			UserAgent: r.UserAgent(),
			ClientIP:  httpx.ClientIP(r),
		},
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeLoginResult(w, res)
}

// HandleVerify handles POST /v1/login/{login_id}/verify.
func (h *LoginHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	loginID := r.PathValue("login_id")

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	res, err := h.Orchestrator.VerifyChallenge(ctx, loginID, req.UserID, req.Code, req.Answers)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeLoginResult(w, res)
}

// HandlePoll handles GET /v1/login/{login_id}/poll.
func (h *LoginHandler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	res, err := h.Orchestrator.PollChallenge(ctx, r.PathValue("login_id"), r.URL.Query().Get("user_id"))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeLoginResult(w, res)
}

// HandleEnrollSelect handles POST /v1/login/{login_id}/enroll.
func (h *LoginHandler) HandleEnrollSelect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	loginID := r.PathValue("login_id")

	var req enrollSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Method == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "method is required")
		return
	}

	res, err := h.Orchestrator.SelectEnrollMethod(ctx, loginID, req.UserID, domain.Method(req.Method), req.Phone)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeLoginResult(w, res)
}

// HandleEnrollConfirm handles POST /v1/login/{login_id}/enroll/confirm.
func (h *LoginHandler) HandleEnrollConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	loginID := r.PathValue("login_id")

	var req enrollConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	res, err := h.Orchestrator.ConfirmEnrollment(ctx, loginID, req.UserID, req.Code, req.Answers)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeLoginResult(w, res)
}

// HandleCancel handles DELETE /v1/login/{login_id}.
func (h *LoginHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	err := h.Orchestrator.CancelLogin(ctx, r.PathValue("login_id"), r.URL.Query().Get("user_id"))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
