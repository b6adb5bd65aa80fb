package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/diagnosis/puffit/internal/http/middleware"
	"github.com/diagnosis/puffit/internal/http/response"
	"github.com/diagnosis/puffit/internal/service"
	"github.com/diagnosis/puffit/pkg/config"
	"github.com/diagnosis/puffit/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/go-querystring/query"
)

// Same text for new and repeated registrations so responses do not reveal
// whether an email is already pending.
const registrationMessage = "Registration received. Please check your email to verify your account."

const (
	verifyErrMissing = "missing_token"
	verifyErrInvalid = "invalid_or_expired"
	verifyErrServer  = "server"
)

type AuthHandler struct {
	registration service.RegistrationService
	verification service.VerificationService
	auth         service.AuthService
	accounts     service.AccountService
	session      middleware.Session
	limit        func(http.Handler) http.Handler
	config       *config.Config
}

// NewAuthHandler wires the account routes. limit guards register and login;
// nil disables rate limiting.
func NewAuthHandler(
	registration service.RegistrationService,
	verification service.VerificationService,
	auth service.AuthService,
	accounts service.AccountService,
	session middleware.Session,
	limit func(http.Handler) http.Handler,
	config *config.Config,
) *AuthHandler {
	if limit == nil {
		limit = passthrough
	}
	return &AuthHandler{
		registration: registration,
		verification: verification,
		auth:         auth,
		accounts:     accounts,
		session:      session,
		limit:        limit,
		config:       config,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(h.limit).Post("/register", h.register)
	r.Get("/verify-email", h.verifyEmail)
	r.With(h.limit).Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.With(h.session.Require).Get("/me", h.me)
	r.With(h.session.Require).Delete("/profile", h.deleteProfile)
	return r
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.registration.Register(r.Context(), &req); err != nil {
		response.FromError(w, r, err, h.config.IsDev())
		return
	}

	response.WriteJSON(w, http.StatusOK, response.MessageResponse{Message: registrationMessage})
}

type verifyErrorQuery struct {
	Error string `url:"error"`
}

func (h *AuthHandler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	_, err := h.verification.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err == nil {
		http.Redirect(w, r, h.config.App.BaseURL+"/auth/verify-success", http.StatusSeeOther)
		return
	}

	code := verifyErrServer
	switch {
	case errors.Is(err, domain.ErrMissingToken):
		code = verifyErrMissing
	case errors.Is(err, domain.ErrInvalidToken):
		code = verifyErrInvalid
	default:
		logger.ErrorContext(r.Context(), "Email verification failed", "error", err)
	}
	http.Redirect(w, r, h.verifyErrorURL(code), http.StatusSeeOther)
}

func (h *AuthHandler) verifyErrorURL(code string) string {
	v, err := query.Values(verifyErrorQuery{Error: code})
	if err != nil {
		v = url.Values{"error": {code}}
	}
	return h.config.App.BaseURL + "/auth/verify-email?" + v.Encode()
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		response.FromError(w, r, err, h.config.IsDev())
		return
	}

	http.SetCookie(w, h.sessionCookie(resp.AccessToken, int(h.config.Auth.SessionTTL.Seconds())))
	response.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))
	response.WriteJSON(w, http.StatusOK, response.MessageResponse{Message: "Logged out"})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.GetUser(r.Context(), middleware.UserID(r))
	if err != nil {
		response.FromError(w, r, err, h.config.IsDev())
		return
	}
	response.WriteJSON(w, http.StatusOK, user.ToUserInfo())
}

func (h *AuthHandler) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAccount(r.Context(), middleware.UserID(r)); err != nil {
		response.FromError(w, r, err, h.config.IsDev())
		return
	}
	http.SetCookie(w, h.sessionCookie("", -1))
	response.WriteJSON(w, http.StatusOK, response.MessageResponse{Message: "Account deleted"})
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.config.Auth.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.Auth.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
