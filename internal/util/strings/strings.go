// Package strings holds small formatting helpers for CLI output.
package strings

import "strconv"

// Pluralize returns word for a count of one and word+"s" otherwise.
// Example: Pluralize("block", 1) returns "block", Pluralize("block", 2) returns "blocks"
func Pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}

// Count formats n with its noun: Count(3, "file") returns "3 files".
func Count(n int, word string) string {
	return strconv.Itoa(n) + " " + Pluralize(word, n)
}
