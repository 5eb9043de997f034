package service

import "errors"

// Sentinel errors the HTTP layer maps onto the wire error taxonomy. Keeping
// them here means handlers never need to inspect store or idp internals.
var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailExists        = errors.New("email_exists")
	ErrAccountLocked      = errors.New("account_locked")

	ErrMFARequired       = errors.New("mfa_required")
	ErrMFANotEnabled     = errors.New("mfa_not_enabled")
	ErrMFAAlreadyEnabled = errors.New("mfa_already_enabled")
	ErrMFANotEnrolled    = errors.New("mfa_not_enrolled")
	ErrInvalidTOTPCode   = errors.New("invalid_totp_code")

	ErrMFASessionInvalid = errors.New("mfa_session_invalid")
	ErrTooManyAttempts   = errors.New("too_many_attempts")

	ErrInvalidToken = errors.New("invalid_token")
	ErrTokenExpired = errors.New("token_expired")
	ErrTokenRevoked = errors.New("token_revoked")

	ErrUserNotFound = errors.New("user_not_found")
)
