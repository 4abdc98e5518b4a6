package cache

import (
	"strconv"
	"strings"
)

// KeyPart normalizes a free-form identifier into a key segment: lowercase,
// with runs of anything outside [a-z0-9.] collapsed to a single dash. The
// normalization keeps segments unambiguous ("Seattle, WA" and "seattle-wa"
// address the same entry) and free of glob metacharacters.
func KeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return b.String()
}

// BasePriceKey builds the key for a base unit price entry.
func BasePriceKey(csiCode, location string) string {
	return KeyPart(csiCode) + ":" + KeyPart(location)
}

// LocationFactorKey builds the key for a location adjustment factor.
func LocationFactorKey(location string) string {
	return KeyPart(location)
}

// EscalationKey builds the key for a quarterly escalation index.
func EscalationKey(quarter string) string {
	return KeyPart(quarter)
}

// FullResultKey builds the key for a fully computed lookup result. Every
// query field participates: two queries that differ in any input, including
// the adjustment flags, must never share a cached result. Empty optional
// fields (quarter, unit) keep a "-" placeholder so segment positions stay
// fixed.
func FullResultKey(csiCode, location, quarter, unit string, quantity float64, includeLocation, includeEscalation bool) string {
	q := KeyPart(quarter)
	if q == "" {
		q = "-"
	}
	u := KeyPart(unit)
	if u == "" {
		u = "-"
	}
	return KeyPart(csiCode) +
		":" + KeyPart(location) +
		":" + q +
		":" + u +
		":" + strconv.FormatFloat(quantity, 'g', -1, 64) +
		":" + flag(includeLocation) +
		":" + flag(includeEscalation)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
