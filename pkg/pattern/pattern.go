// Package pattern implements the pure path-filtering predicates consulted by
// the dispatcher and by the bundled handlers in pkg/handler. It does not
// implement a configuration surface (flag parsing, YAML, etc.) — that is an
// external collaborator's job; this package only answers "does this path
// match?".
package pattern

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Matcher evaluates a path against an allow list and a deny list of glob
// patterns. A path matches iff it matches at least one allow pattern and no
// deny pattern.
type Matcher struct {
	allow         []string
	deny          []string
	caseSensitive bool
}

// New constructs a Matcher from glob patterns (doublestar syntax, so "**"
// matches across directory separators). caseSensitive controls whether
// matching folds case; it must be applied uniformly, so passing allow/deny
// lists that were prepared under different case-sensitivity assumptions is
// the caller's responsibility to avoid — New itself only validates that
// every individual pattern compiles.
func New(allow, deny []string, caseSensitive bool) (*Matcher, error) {
	for _, p := range allow {
		if !doublestar.ValidatePattern(normalizeCase(p, caseSensitive)) {
			return nil, errors.Errorf("invalid allow pattern: %q", p)
		}
	}
	for _, p := range deny {
		if !doublestar.ValidatePattern(normalizeCase(p, caseSensitive)) {
			return nil, errors.Errorf("invalid deny pattern: %q", p)
		}
	}
	return &Matcher{allow: allow, deny: deny, caseSensitive: caseSensitive}, nil
}

// NewFromSettings validates and constructs a Matcher from independently
// specified allow/deny case-sensitivity settings. Callers sometimes assemble
// the allow and deny lists from different configuration sources (e.g. a
// case-sensitive deny list layered on top of a case-insensitive allow list
// inherited from a parent configuration); rather than silently picking one of
// the two booleans, NewFromSettings treats a mismatch as a configuration
// error so the inconsistency surfaces at construction time instead of as
// subtly wrong matching behavior later.
func NewFromSettings(allow []string, allowCaseSensitive bool, deny []string, denyCaseSensitive bool) (*Matcher, error) {
	if allowCaseSensitive != denyCaseSensitive {
		return nil, errors.New("inconsistent case-sensitivity settings between allow and deny patterns")
	}
	return New(allow, deny, allowCaseSensitive)
}

func normalizeCase(p string, caseSensitive bool) string {
	if caseSensitive {
		return p
	}
	return strings.ToLower(p)
}

// Matches reports whether path matches at least one allow pattern and no deny
// pattern. An empty allow list is treated as "match everything."
func (m *Matcher) Matches(path string) bool {
	return Matches(path, m.allow, m.deny, m.caseSensitive)
}

// Filter returns the subset of paths that match m.
func (m *Matcher) Filter(paths []string) []string {
	return Filter(paths, m.allow, m.deny, m.caseSensitive)
}

// Matches is the stateless form of Matcher.Matches, matching spec.md's
// matches(path, allow, deny, case_sensitive) contract directly.
func Matches(path string, allow, deny []string, caseSensitive bool) bool {
	candidate := normalizeCase(path, caseSensitive)

	// A pattern not starting with "/" is also tried against every trailing
	// run of path components, so "*.go" matches "/tmp/a.go".
	match := func(p string) bool {
		p = normalizeCase(p, caseSensitive)
		for rest := candidate; ; {
			if ok, _ := doublestar.Match(p, rest); ok {
				return true
			}
			i := strings.IndexByte(rest, '/')
			if i < 0 || strings.HasPrefix(p, "/") {
				return false
			}
			rest = rest[i+1:]
		}
	}

	for _, d := range deny {
		if match(d) {
			return false
		}
	}

	if len(allow) == 0 {
		return true
	}

	for _, a := range allow {
		if match(a) {
			return true
		}
	}
	return false
}

// Filter is the stateless form of Matcher.Filter.
func Filter(paths, allow, deny []string, caseSensitive bool) []string {
	var out []string
	for _, p := range paths {
		if Matches(p, allow, deny, caseSensitive) {
			out = append(out, p)
		}
	}
	return out
}
