package domain

import "time"

type User struct {
	ID               string
	Email            string
	EmailVerified    bool
	FirstName        string
	LastName         string
	PasswordHash     string     // argon2 encoded
	MFAEnabled       *time.Time // Timestamp when MFA was enabled (nullable)
	FailedLoginCount int
	LockedUntil      *time.Time // Account locked until this time (nullable)
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DisplayName returns the name to put in tokens and UI.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// IsLocked reports whether the account is locked out at the given time.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// HasMFA reports whether the user has completed MFA enrollment.
func (u *User) HasMFA() bool {
	return u.MFAEnabled != nil
}
