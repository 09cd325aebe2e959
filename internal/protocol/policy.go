package protocol

import "strings"

// IsIgnorableAdvancement reports whether an advancement id should not be
// broadcast. Blank ids and tab roots such as "minecraft:story/root" are
// skipped.
func IsIgnorableAdvancement(raw string) bool {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" {
		return true
	}
	path := id
	if _, after, found := strings.Cut(id, ":"); found {
		path = after
	}
	return path == "root" || strings.HasSuffix(path, "/root")
}
