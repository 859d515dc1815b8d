package ivr

import "strings"

// FormatDigits prepares a phone number for text-to-speech: the leading "+" is
// stripped and pauses are inserted between digits so the confirmation is
// readable aloud. Pure string transform, no side effects.
func FormatDigits(phoneNumber string) string {
	phoneNumber = strings.TrimPrefix(phoneNumber, "+")
	digits := strings.Split(phoneNumber, "")
	return strings.Join(digits, "..")
}

// ResolveAssetURL resolves an audio asset reference from config: absolute
// URLs pass through untouched, anything else is served off the runtime
// domain.
func ResolveAssetURL(domain, asset string) string {
	if strings.HasPrefix(asset, "https://") {
		return asset
	}
	return "https://" + domain + "/" + strings.TrimPrefix(asset, "/")
}
