package remote

import (
	"context"
	"os"
	"strings"
)

// FileScheme is the scheme handled by LocalFileResolver.
const FileScheme = "file"

// LocalFileResolver handles file: references. It performs no copy: the
// reference is stripped of its scheme and checked for existence, and the
// result is never owned since the framework did not create the file.
type LocalFileResolver struct{}

func (LocalFileResolver) Scheme() string { return FileScheme }

func (LocalFileResolver) Resolve(_ context.Context, reference string, _ string) (ResolvedFile, error) {
	path := strings.TrimPrefix(reference, FileScheme+":")
	path = strings.TrimPrefix(path, "//")
	if path == "" {
		return ResolvedFile{}, notFound(reference, nil)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ResolvedFile{}, notFound(reference, err)
		}
		return ResolvedFile{}, retrievalFailed(reference, err)
	}
	return ResolvedFile{Reference: reference, Path: path, Owned: false}, nil
}
