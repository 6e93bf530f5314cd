package cache

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher selects keys for bulk invalidation.
type Matcher interface {
	Match(key string) bool
	String() string
}

type substringMatcher string

func (m substringMatcher) Match(key string) bool { return strings.Contains(key, string(m)) }
func (m substringMatcher) String() string        { return string(m) }

// Substring matches every key containing s.
func Substring(s string) Matcher {
	return substringMatcher(s)
}

type regexpMatcher struct {
	re *regexp.Regexp
}

func (m regexpMatcher) Match(key string) bool { return m.re.MatchString(key) }
func (m regexpMatcher) String() string        { return m.re.String() }

// Regexp compiles expr into a Matcher.
func Regexp(expr string) (Matcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cache pattern %q: %w", expr, err)
	}
	return regexpMatcher{re: re}, nil
}

// MustRegexp is like Regexp but panics on an invalid expression.
// Intended for package-level pattern variables.
func MustRegexp(expr string) Matcher {
	m, err := Regexp(expr)
	if err != nil {
		panic(err)
	}
	return m
}
