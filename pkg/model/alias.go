package model

import "strings"

// normalizeAlias case-folds and whitespace-collapses an alias for lookup:
// alias resolution is case-insensitive and whitespace-collapsed.
func normalizeAlias(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// NormalizeAlias exposes normalizeAlias for callers building alias maps
// outside this package (the loader).
func NormalizeAlias(s string) string {
	return normalizeAlias(s)
}
