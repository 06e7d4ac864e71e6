package services

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// DefaultPhoneRegion is used for numbers written without a country code.
const DefaultPhoneRegion = "IN"

// NormalizePhone parses a phone number and returns it in E.164 form.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid("mobile", "is required")
	}
	if region == "" {
		region = DefaultPhoneRegion
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return "", invalid("mobile", "%q is not a phone number", raw)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", invalid("mobile", "%q is not a valid phone number", raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
