// Package filter selects local files by glob patterns and search terms.
package filter

import (
	"path/filepath"
	"strings"
)

// Config holds filter configuration.
type Config struct {
	// Include patterns (glob-style) matched against the base name.
	// Empty means include all.
	// Example: []string{"*.png", "*.jpg"}
	Include []string

	// Exclude patterns (glob-style). Takes precedence over Include. A pattern
	// containing a slash is matched against the whole path and may use **.
	// Example: []string{"*.psd", "**/drafts/**"}
	Exclude []string

	// Search terms (case-insensitive substring match on the base name).
	// A file must match ALL search terms to be included.
	Search []string
}

// IsEmpty reports whether the filter lets everything through.
func (c Config) IsEmpty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Search) == 0
}

// Apply returns the paths that pass the filter, in their original order.
func Apply(paths []string, config Config) []string {
	if config.IsEmpty() {
		return paths
	}
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if Matches(p, config) {
			kept = append(kept, p)
		}
	}
	return kept
}

// Matches checks a single path against the filter.
func Matches(path string, config Config) bool {
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)

	// 1. Exclude patterns first (highest priority)
	for _, pattern := range config.Exclude {
		if strings.Contains(pattern, "/") {
			if matchPathPattern(slashed, filepath.ToSlash(pattern)) {
				return false
			}
			continue
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}

	// 2. Include patterns
	if len(config.Include) > 0 {
		included := false
		for _, pattern := range config.Include {
			if matched, _ := filepath.Match(pattern, base); matched {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	// 3. Search terms
	lower := strings.ToLower(base)
	for _, term := range config.Search {
		if !strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// matchPathPattern matches a slash-separated path against a pattern.
// Supports standard glob patterns plus ** for recursive directory matching.
func matchPathPattern(path, pattern string) bool {
	if strings.Contains(pattern, "**") {
		return matchDoubleStarPattern(path, pattern)
	}
	matched, err := filepath.Match(pattern, path)
	return err == nil && matched
}

// matchDoubleStarPattern handles ** glob patterns for multi-directory matching.
// Examples:
//   - "**/cover.png" matches "cover.png", "a/cover.png", "a/b/c/cover.png"
//   - "exports/**" matches "exports/anything", "exports/a/b/file.zip"
//   - "**/drafts/**" matches any path with a drafts directory
func matchDoubleStarPattern(path, pattern string) bool {
	if pattern == "**" {
		return true
	}

	parts := strings.Split(path, "/")

	// Leading **/: try the rest of the pattern at every depth.
	if strings.HasPrefix(pattern, "**/") {
		rest := pattern[3:]
		for i := range parts {
			if matchPathPattern(strings.Join(parts[i:], "/"), rest) {
				return true
			}
		}
		return false
	}

	// Trailing /**: the prefix must match a leading run of directories.
	if strings.HasSuffix(pattern, "/**") {
		prefix := pattern[:len(pattern)-3]
		for i := 1; i < len(parts); i++ {
			if matchPathPattern(strings.Join(parts[:i], "/"), prefix) {
				return true
			}
		}
		return false
	}

	// ** in the middle: prefix and suffix with any directories between.
	if i := strings.Index(pattern, "/**/"); i != -1 {
		prefix, suffix := pattern[:i], pattern[i+4:]
		for j := 1; j < len(parts); j++ {
			if !matchPathPattern(strings.Join(parts[:j], "/"), prefix) {
				continue
			}
			for k := j; k < len(parts); k++ {
				if matchPathPattern(strings.Join(parts[k:], "/"), suffix) {
					return true
				}
			}
		}
		return false
	}

	// Fallback: treat ** as * (match any single segment)
	matched, _ := filepath.Match(strings.ReplaceAll(pattern, "**", "*"), path)
	return matched
}

// ParsePatternList parses a comma-separated list of patterns into a slice.
// Example: "*.png,*.jpg" -> []string{"*.png", "*.jpg"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
