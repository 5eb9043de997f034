package http

import (
	"net/http"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
	"github.com/fernwehlabs/lifelog/internal/auth/idp"
	"github.com/fernwehlabs/lifelog/internal/auth/service"
	"github.com/fernwehlabs/lifelog/pkg/httpx"
	"github.com/fernwehlabs/lifelog/pkg/slogx"
)

// AuthHandler handles registration, login, and session teardown.
type AuthHandler struct {
	AuthService  *service.AuthService
	TokenService *service.TokenService
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type registerResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HandleRegister handles POST /auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	user, err := h.AuthService.Register(ctx, idp.Registration{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		CreatedAt: user.CreatedAt,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles POST /auth/login. The response is either a token pair
// or an MFA challenge, distinguished by the mfa_required field.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	result, err := h.AuthService.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	switch res := result.(type) {
	case domain.LoginTokens:
		httpx.WriteJSON(w, http.StatusOK, res.Tokens)
	case domain.LoginMFARequired:
		httpx.WriteJSON(w, http.StatusOK, res.Challenge)
	default:
		slogx.FromContext(ctx).Error("unknown login result type")
		httpx.WriteError(ctx, w, http.StatusInternalServerError, "SERVER_ERROR",
			"Something went wrong. Try again later.")
	}
}

type mfaLoginRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// HandleMFALogin handles POST /auth/mfa/verify, completing a pending login
// challenge. The code field carries either a TOTP or a backup code; the
// service works out which.
func (h *AuthHandler) HandleMFALogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req mfaLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	tokens, err := h.AuthService.VerifyMFALogin(ctx, req.MFAToken, req.Code)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokens)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// HandleRefresh handles POST /auth/refresh. Only a new access token is
// returned; the refresh token is not rotated.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	tokens, err := h.TokenService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokens)
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// HandleLogout handles POST /auth/logout, revoking the presented refresh
// token. Idempotent: revoking an already-revoked token succeeds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	if err := h.AuthService.Logout(ctx, req.RefreshToken); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// HandleChangePassword handles POST /auth/password for the authenticated
// user. All refresh tokens are revoked on success.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	if err := h.AuthService.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll handles POST /auth/logout-all for the authenticated user.
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	if err := h.AuthService.LogoutAll(ctx, userID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
