package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fernwehlabs/lifelog/internal/auth/service"
	"github.com/fernwehlabs/lifelog/pkg/httpx"
	"github.com/fernwehlabs/lifelog/pkg/slogx"
)

// writeServiceError maps service sentinels onto the wire error taxonomy.
// Anything unmapped is a server error; the details stay in the logs.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var weak *service.WeakPasswordError
	if errors.As(err, &weak) {
		msgs := make([]string, 0, len(weak.Problems))
		for _, p := range weak.Problems {
			msgs = append(msgs, p.Message)
		}
		httpx.WriteError(ctx, w, http.StatusBadRequest, "VALIDATION_ERROR", strings.Join(msgs, "; "))
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "INVALID_CREDENTIALS",
			"Invalid email or password.")
	case errors.Is(err, service.ErrEmailExists):
		httpx.WriteError(ctx, w, http.StatusConflict, "EMAIL_EXISTS",
			"An account with this email already exists.")
	case errors.Is(err, service.ErrAccountLocked):
		httpx.WriteError(ctx, w, http.StatusTooManyRequests, "ACCOUNT_LOCKED",
			"Account temporarily locked due to repeated failed logins. Try again later.")

	case errors.Is(err, service.ErrMFASessionInvalid):
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "INVALID_SESSION",
			"The MFA session is invalid or has expired. Log in again.")
	case errors.Is(err, service.ErrTooManyAttempts):
		httpx.WriteError(ctx, w, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS",
			"Too many failed MFA attempts. Log in again.")
	case errors.Is(err, service.ErrInvalidTOTPCode):
		httpx.WriteError(ctx, w, http.StatusBadRequest, "INVALID_CODE",
			"The provided code is not valid.")

	case errors.Is(err, service.ErrMFANotEnabled):
		httpx.WriteError(ctx, w, http.StatusBadRequest, "MFA_NOT_ENABLED",
			"MFA is not enabled for this account.")
	case errors.Is(err, service.ErrMFAAlreadyEnabled):
		httpx.WriteError(ctx, w, http.StatusConflict, "MFA_ALREADY_ENABLED",
			"MFA is already enabled for this account.")
	case errors.Is(err, service.ErrMFANotEnrolled):
		httpx.WriteError(ctx, w, http.StatusBadRequest, "MFA_NOT_ENROLLED",
			"Start MFA setup before verifying a code.")

	case errors.Is(err, service.ErrInvalidToken):
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "INVALID_TOKEN",
			"The token is not recognised.")
	case errors.Is(err, service.ErrTokenExpired):
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "TOKEN_EXPIRED",
			"The token has expired. Log in again.")
	case errors.Is(err, service.ErrTokenRevoked):
		httpx.WriteError(ctx, w, http.StatusUnauthorized, "TOKEN_REVOKED",
			"The token has been revoked. Log in again.")

	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(ctx, w, http.StatusNotFound, "USER_NOT_FOUND",
			"No such user.")

	default:
		slogx.FromContext(ctx).Error("unhandled service error", "err", err)
		httpx.WriteError(ctx, w, http.StatusInternalServerError, "SERVER_ERROR",
			"Something went wrong. Try again later.")
	}
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, http.StatusBadRequest, "VALIDATION_ERROR", message)
}
