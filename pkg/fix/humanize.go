package fix

import "strings"

// Humanize replaces every separator byte with " | " for diagnostics and
// logs. It is not an inverse of serialization.
func Humanize(data []byte) string {
	return strings.ReplaceAll(string(data), "\x01", " | ")
}
