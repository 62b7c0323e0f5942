package types

import "regexp"

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// IsIdentifier reports whether s can name a dataset or table: a lowercase
// letter followed by lowercase letters, digits or underscores.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}
