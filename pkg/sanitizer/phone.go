package sanitizer

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

var (
	supportedRegions = []string{
		"US",
		"IL",
	}
)

// NormalizePhone returns the E.164 form of phone when it parses as a valid
// number for one of the supported regions. Otherwise it returns the digits
// (keeping a leading '+') so the validator can still judge the shape.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	if phone == "" {
		return ""
	}

	for _, region := range supportedRegions {
		parsedNumber, err := phonenumbers.Parse(phone, region)
		if err == nil && phonenumbers.IsValidNumber(parsedNumber) {
			return phonenumbers.Format(parsedNumber, phonenumbers.E164)
		}
	}
	return digitsOnly(phone)
}

func digitsOnly(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
