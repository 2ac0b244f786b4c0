package storage

import "strings"

// sanitizeSearchTerm escapes SQLite LIKE special characters.
// Queries using it must declare ESCAPE '\'.
func sanitizeSearchTerm(term string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\", // Escape backslash first
		"%", "\\%",
		"_", "\\_",
	)
	return replacer.Replace(term)
}
