package protocol

import (
	"fmt"
	"strings"
)

// Address is a recipient address in the network's canonical form:
// a digit-only user part followed by a network suffix.
type Address string

// Recognized network suffixes. An input that already carries one of these
// passes through normalization unchanged.
const (
	UserSuffix  = "@s.whatsapp.net"
	GroupSuffix = "@g.us"
)

// DefaultCountryCode replaces the national "0" trunk prefix so that local
// and international forms of the same number map to one canonical address.
const DefaultCountryCode = "62"

// NormalizeAddress converts a caller-supplied recipient into canonical form.
// All non-digit characters are stripped, a leading trunk "0" is replaced by
// the default country code, and the user suffix is appended. An input that
// already carries a recognized suffix passes through unchanged. Returns an
// error if no digits remain after stripping.
func NormalizeAddress(to string) (Address, error) {
	if strings.HasSuffix(to, UserSuffix) || strings.HasSuffix(to, GroupSuffix) {
		return Address(to), nil
	}
	var b strings.Builder
	for _, r := range to {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", fmt.Errorf("recipient %q contains no digits", to)
	}
	if strings.HasPrefix(digits, "0") {
		digits = DefaultCountryCode + digits[1:]
	}
	return Address(digits + UserSuffix), nil
}

func (a Address) String() string {
	return string(a)
}
