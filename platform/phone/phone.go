// Package phone normalizes phone numbers to E.164 using libphonenumber.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"leadcall_backend/platform/apperr"
)

// DefaultRegion is assumed when a number carries no country prefix.
const DefaultRegion = "NL"

// NormalizeE164 parses raw input and returns the canonical E.164 form.
// Numbers without a leading + are interpreted in the default region.
func NormalizeE164(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apperr.Validation("phone number is required")
	}

	parsed, err := phonenumbers.Parse(trimmed, DefaultRegion)
	if err != nil {
		return "", apperr.Validation("invalid phone number")
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", apperr.Validation("invalid phone number")
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
