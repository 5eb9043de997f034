package service_test

import (
	"testing"

	"github.com/fernwehlabs/lifelog/internal/auth/service"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		problems int
	}{
		{"valid", "Sup3r-Secret!", 0},
		{"too short", "Ab1!", 1},
		{"missing upper", "lower-case1!", 1},
		{"missing lower", "UPPER-CASE1!", 1},
		{"missing digit", "No-Digits-Here!", 1},
		{"missing special", "NoSpecials123", 1},
		{"empty", "", 5},
		{"unicode symbols count as special", "Pässwörd1€", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := service.ValidatePassword(tt.password)
			assert.Len(t, errs, tt.problems)
		})
	}
}

func TestValidatePasswordAcceptsGenerated(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		upper := rapid.StringMatching(`[A-Z]{1,4}`).Draw(t, "upper")
		lower := rapid.StringMatching(`[a-z]{1,4}`).Draw(t, "lower")
		digit := rapid.StringMatching(`[0-9]{1,4}`).Draw(t, "digit")
		special := rapid.SampledFrom([]string{"!", "@", "#", "$", "%", "-"}).Draw(t, "special")
		filler := rapid.StringMatching(`[a-z]{4,12}`).Draw(t, "filler")

		password := upper + lower + digit + special + filler
		errs := service.ValidatePassword(password)
		assert.Empty(t, errs, "password %q should satisfy the policy", password)
	})
}
