package pattern

import "regexp"

// RegexMatcher is the regular-expression equivalent of Matcher: a path
// matches iff it matches at least one compiled allow regexp and no deny
// regexp.
type RegexMatcher struct {
	allow []*regexp.Regexp
	deny  []*regexp.Regexp
}

// NewRegex compiles allow/deny regular expressions. If caseInsensitive is
// true, each pattern is wrapped with the "(?i)" flag.
func NewRegex(allow, deny []string, caseInsensitive bool) (*RegexMatcher, error) {
	compiledAllow, err := compileAll(allow, caseInsensitive)
	if err != nil {
		return nil, err
	}
	compiledDeny, err := compileAll(deny, caseInsensitive)
	if err != nil {
		return nil, err
	}
	return &RegexMatcher{allow: compiledAllow, deny: compiledDeny}, nil
}

func compileAll(patterns []string, caseInsensitive bool) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if caseInsensitive {
			p = "(?i)" + p
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Matches reports whether path matches at least one allow regexp and no deny
// regexp. An empty allow list matches everything.
func (m *RegexMatcher) Matches(path string) bool {
	for _, d := range m.deny {
		if d.MatchString(path) {
			return false
		}
	}
	if len(m.allow) == 0 {
		return true
	}
	for _, a := range m.allow {
		if a.MatchString(path) {
			return true
		}
	}
	return false
}

// Filter returns the subset of paths that match m.
func (m *RegexMatcher) Filter(paths []string) []string {
	var out []string
	for _, p := range paths {
		if m.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}
