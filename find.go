package dynflag

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPattern reports a selector that failed to compile. No state
// is mutated when it is returned.
var ErrInvalidPattern = errors.New("dynflag: invalid pattern")

// compilePattern compiles pattern as a POSIX extended regular
// expression, implicitly anchored at the first character of the flag
// name. The end is never anchored implicitly; callers append $ when they
// want an exact match.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if !strings.HasPrefix(pattern, "^") {
		pattern = "^" + pattern
	}
	re, err := regexp.CompilePOSIX(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, nil
}

// compileKindPattern is compilePattern for kind-scoped selectors, where
// an empty pattern means the whole kind and compiles to nil.
func compileKindPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return compilePattern(pattern)
}

// findLocked returns the records whose full name matches re, in
// registration order. Caller holds r.mu.
func (r *Registry) findLocked(re *regexp.Regexp) []*record {
	var out []*record
	for _, rec := range r.records {
		if re.MatchString(rec.name) {
			out = append(out, rec)
		}
	}
	return out
}

// findKindLocked iterates only the sub-table for kind; a nil re selects
// every record in it. Caller holds r.mu.
func (r *Registry) findKindLocked(kind string, re *regexp.Regexp) []*record {
	var out []*record
	for _, rec := range r.kinds[kind] {
		if re == nil || re.MatchString(rec.name) {
			out = append(out, rec)
		}
	}
	return out
}
