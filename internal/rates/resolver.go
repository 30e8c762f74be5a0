package rates

import "strings"

// Normalize keeps the leading + and digits only.
// "+34 600-000 000" -> "+34600000000".
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveTier maps a destination number to its pricing tier.
//
// Among all table prefixes that are prefixes of the destination, the longest
// one wins. No match resolves to BLOCKED.
//
// Pure function; safe for concurrent use without locking.
func ResolveTier(destination string) Tier {
	clean := Normalize(destination)

	best := ""
	selected := TierBlocked
	for prefix, id := range destinationRates {
		if strings.HasPrefix(clean, prefix) && len(prefix) > len(best) {
			best = prefix
			selected = id
		}
	}
	return tiers[selected]
}

// TierByID returns the tier for a stored tier id, falling back to BLOCKED for
// unknown ids.
func TierByID(id TierID) Tier {
	if t, ok := tiers[id]; ok {
		return t
	}
	return tiers[TierBlocked]
}
