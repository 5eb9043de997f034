package http

import (
	"errors"
	"net/http"

	"github.com/fernwehlabs/lifelog/internal/auth/service"
	"github.com/fernwehlabs/lifelog/pkg/httpx"
)

// MFAHandler handles MFA enrollment and management for authenticated users.
type MFAHandler struct {
	MFAService *service.MFAService
}

type totpEnrollResponse struct {
	Secret      string   `json:"secret"`
	QRCode      string   `json:"qr_code"`
	Issuer      string   `json:"issuer"`
	Account     string   `json:"account"`
	BackupCodes []string `json:"backup_codes"`
	Message     string   `json:"message"`
}

// HandleSetup handles POST /auth/mfa/setup. Generates a TOTP secret,
// provisioning URL, and the backup codes (shown exactly once); MFA stays
// disabled until a code is verified.
func (h *MFAHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	enroll, err := h.MFAService.EnrollTOTP(ctx, userID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, totpEnrollResponse{
		Secret:      enroll.Secret,
		QRCode:      enroll.QRCode,
		Issuer:      enroll.Issuer,
		Account:     enroll.Account,
		BackupCodes: enroll.BackupCodes,
		Message:     "Store these backup codes securely. They will not be shown again.",
	})
}

type totpVerifyRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type mfaEnabledResponse struct {
	MFAEnabled bool `json:"mfa_enabled"`
}

type backupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
	Message     string   `json:"message"`
}

// HandleVerifySetup handles POST /auth/mfa/verify-setup. A valid code flips
// MFA on; the backup codes were already handed out at setup.
func (h *MFAHandler) HandleVerifySetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	var req totpVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	if err := h.MFAService.VerifyTOTP(ctx, userID, req.Code); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mfaEnabledResponse{MFAEnabled: true})
}

type mfaDisableRequest struct {
	Password string `json:"password" validate:"required"`
}

// HandleDisable handles POST /auth/mfa/disable. Requires the account password
// and revokes all refresh tokens on success. A wrong password is a 400 here,
// not a 401: the bearer token already authenticated the caller.
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	var req mfaDisableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	if err := h.MFAService.Disable(ctx, userID, req.Password); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(ctx, w, http.StatusBadRequest, "INVALID_CREDENTIALS",
				"Password confirmation failed.")
			return
		}
		writeServiceError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus handles GET /auth/mfa.
func (h *MFAHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	status, err := h.MFAService.Status(ctx, userID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, status)
}

type regenerateBackupCodesRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// HandleRegenerateBackupCodes handles POST /auth/mfa/backup-codes. All
// previous codes stop working immediately.
func (h *MFAHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	var req regenerateBackupCodesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	codes, err := h.MFAService.RegenerateBackupCodes(ctx, userID, req.Code)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, backupCodesResponse{
		BackupCodes: codes,
		Message:     "Store these backup codes securely. They will not be shown again.",
	})
}
