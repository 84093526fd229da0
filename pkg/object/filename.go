package object

import "strings"

// ValidFilename enforces spec.md §4.2's filename-validation rule: non-
// empty, no '/' or NUL, and not "." or "..".
func ValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}
