package board

import "strings"

// NormalizeName folds a column title or label name to the key used for
// name-based matching: surrounding whitespace removed, lower-cased.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
