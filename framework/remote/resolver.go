package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ResolvedFile is the outcome of resolving one reference. Owned reports
// whether the resolver fetched the file and the caller must delete it when
// the consuming configuration's lifetime ends; a pre-existing local file is
// never owned and never deleted by the framework.
type ResolvedFile struct {
	Reference string
	Path      string
	Owned     bool
}

// Resolver turns references of one URI scheme into local files. Resolvers
// must be safe for concurrent use; a single Resolve call may block on I/O and
// honors cancellation through ctx, reporting a timeout as RetrievalFailed.
type Resolver interface {
	Scheme() string
	Resolve(ctx context.Context, reference string, destDir string) (ResolvedFile, error)
}

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]+:`)

// SchemeOf returns the URI scheme of a reference, or "" if it has none. A
// single-letter prefix is not treated as a scheme, so Windows-style drive
// paths pass through as plain paths.
func SchemeOf(reference string) string {
	m := schemePattern.FindString(reference)
	if m == "" {
		return ""
	}
	return m[:len(m)-1]
}

// HasScheme reports whether the reference carries a URI scheme.
func HasScheme(reference string) bool { return SchemeOf(reference) != "" }

// ResolverSet dispatches references to the resolver registered for their
// scheme.
type ResolverSet struct {
	byScheme map[string]Resolver
}

func NewResolverSet(resolvers ...Resolver) *ResolverSet {
	s := &ResolverSet{byScheme: make(map[string]Resolver)}
	for _, r := range resolvers {
		s.Register(r)
	}
	return s
}

// Register adds a resolver; each scheme maps to exactly one strategy and
// registering a second resolver for the same scheme panics.
func (s *ResolverSet) Register(r Resolver) {
	if _, ok := s.byScheme[r.Scheme()]; ok {
		panic("resolver registered twice for scheme: " + r.Scheme())
	}
	s.byScheme[r.Scheme()] = r
}

// Schemes returns the registered schemes, unordered.
func (s *ResolverSet) Schemes() []string {
	schemes := make([]string, 0, len(s.byScheme))
	for scheme := range s.byScheme {
		schemes = append(schemes, scheme)
	}
	return schemes
}

// Resolve dispatches the reference to the resolver for its scheme. A
// reference without a scheme, or with a scheme no strategy is registered
// for, fails with UnsupportedScheme.
func (s *ResolverSet) Resolve(ctx context.Context, reference string, destDir string) (ResolvedFile, error) {
	scheme := SchemeOf(reference)
	if scheme == "" {
		return ResolvedFile{}, &ResolutionError{Kind: UnsupportedScheme, Reference: reference}
	}
	r, ok := s.byScheme[scheme]
	if !ok {
		return ResolvedFile{}, &ResolutionError{Kind: UnsupportedScheme, Reference: reference}
	}
	return r.Resolve(ctx, reference, destDir)
}

// fetchToLocal streams a download into destDir atomically: the content is
// written under a temporary name and renamed into place only when fetch
// returns success, so a failed transfer leaves nothing behind. The final name
// starts from baseName and is uniquified with a numeric suffix, so two
// references that happen to share a base name resolve to distinct files.
func fetchToLocal(destDir, baseName string, fetch func(*os.File) error) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(destDir, ".fetch-*")
	if err != nil {
		return "", err
	}
	if err := fetch(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	final, err := unusedPath(destDir, baseName)
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return final, nil
}

// unusedPath picks a path under destDir that no earlier fetch produced:
// baseName itself if free, otherwise "stem-2.ext", "stem-3.ext", and so on.
func unusedPath(destDir, baseName string) (string, error) {
	if baseName == "" {
		baseName = "download"
	}
	ext := filepath.Ext(baseName)
	stem := strings.TrimSuffix(baseName, ext)
	for i := 1; ; i++ {
		name := baseName
		if i > 1 {
			name = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		p := filepath.Join(destDir, name)
		_, err := os.Stat(p)
		if os.IsNotExist(err) {
			return p, nil
		}
		if err != nil {
			return "", err
		}
	}
}
