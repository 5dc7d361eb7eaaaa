package cache

import "strings"

// Key joins parts with ":", e.g. Key("alerts", "42") is "alerts:42".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
