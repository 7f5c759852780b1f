package harness

import (
	"fmt"
	"regexp"
	"strings"
)

// TestPath identifies a result scope as the sequence of names leading to it:
// module, then run, then test. A shorter path identifies an enclosing scope,
// so a one-element path names a whole module.
type TestPath []string

func (p TestPath) String() string { return strings.Join(p, "/") }

// RegexFilters selects which result scopes an invocation runs. A path runs
// when it matches at least one MustMatch pattern (or none are defined) and
// matches no MustNotMatch pattern. Exclusion wins over inclusion.
type RegexFilters struct {
	MustMatch    PathPatternList
	MustNotMatch PathPatternList
}

func (r RegexFilters) Match(path TestPath) bool {
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(path, true)) &&
		!r.MustNotMatch.AnyMatch(path, false)
}

// PathPattern is one slash-separated filter expression, compiled into one
// regular expression per path component. Each component is an unanchored
// match against the corresponding component of a TestPath.
type PathPattern []*regexp.Regexp

// Match reports whether the pattern accepts path. With includeParents set, a
// path shorter than the pattern matches if its components do; that keeps an
// enclosing module or run selected when the pattern targets something inside
// it. Without includeParents, a shorter path never matches, which lets an
// exclusion of "mod/run" leave the module itself runnable.
func (p PathPattern) Match(path TestPath, includeParents bool) bool {
	depth := len(p)
	if depth > len(path) {
		if !includeParents {
			return false
		}
		depth = len(path)
	}
	for i := 0; i < depth; i++ {
		if !p[i].MatchString(path[i]) {
			return false
		}
	}
	return true
}

func (p PathPattern) String() string {
	ss := make([]string, 0, len(p))
	for _, c := range p {
		ss = append(ss, c.String())
	}
	return strings.Join(ss, "/")
}

// ParsePathPattern compiles a slash-separated filter expression. Any
// component that is not a valid regular expression fails the whole pattern.
func ParsePathPattern(s string) (PathPattern, error) {
	parts := strings.Split(s, "/")
	ret := make(PathPattern, 0, len(parts))
	for _, part := range parts {
		rx, err := regexp.Compile(part)
		if err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
		ret = append(ret, rx)
	}
	return ret, nil
}

// PathPatternList accumulates patterns from a repeatable command-line flag.
type PathPatternList []PathPattern

func (l PathPatternList) String() string {
	ss := make([]string, 0, len(l))
	for _, p := range l {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (l *PathPatternList) Set(value string) error {
	p, err := ParsePathPattern(value)
	if err != nil {
		return err
	}
	*l = append(*l, p)
	return nil
}

func (l PathPatternList) IsDefined() bool {
	return len(l) != 0
}

func (l PathPatternList) AnyMatch(path TestPath, includeParents bool) bool {
	for _, p := range l {
		if p.Match(path, includeParents) {
			return true
		}
	}
	return false
}

// PrintFilterDescription announces any active filters before the run, so a
// result stream with fewer modules than the configuration declares is not a
// surprise.
func PrintFilterDescription(filters RegexFilters) {
	if !filters.MustMatch.IsDefined() && !filters.MustNotMatch.IsDefined() {
		return
	}
	fmt.Println("Module filters are in effect for this invocation:")
	if filters.MustMatch.IsDefined() {
		fmt.Printf("  running only modules matching %s\n", filters.MustMatch)
	}
	if filters.MustNotMatch.IsDefined() {
		fmt.Printf("  excluding modules matching %s\n", filters.MustNotMatch)
	}
	fmt.Println()
}
