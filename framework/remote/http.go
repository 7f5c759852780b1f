package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
)

// HTTPResolver fetches http: or https: references with a GET request.
type HTTPResolver struct {
	scheme string
	client *http.Client
}

// NewHTTPResolver creates a resolver for the given scheme ("http" or
// "https") using http.DefaultClient.
func NewHTTPResolver(scheme string) *HTTPResolver {
	return &HTTPResolver{scheme: scheme, client: http.DefaultClient}
}

// NewHTTPResolverWithClient creates a resolver with a custom client, for
// instance one with a transport-level timeout.
func NewHTTPResolverWithClient(scheme string, client *http.Client) *HTTPResolver {
	return &HTTPResolver{scheme: scheme, client: client}
}

func (r *HTTPResolver) Scheme() string { return r.scheme }

func (r *HTTPResolver) Resolve(ctx context.Context, reference string, destDir string) (ResolvedFile, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reference, nil)
	if err != nil {
		return ResolvedFile{}, retrievalFailed(reference, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		// A deadline or cancellation surfaces here as a transport error.
		return ResolvedFile{}, retrievalFailed(reference, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return ResolvedFile{}, notFound(reference, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return ResolvedFile{}, retrievalFailed(reference, fmt.Errorf("server returned status %d", resp.StatusCode))
	}
	local, err := fetchToLocal(destDir, baseNameOfURL(reference), func(f *os.File) error {
		_, err := io.Copy(f, resp.Body)
		return err
	})
	if err != nil {
		return ResolvedFile{}, retrievalFailed(reference, err)
	}
	return ResolvedFile{Reference: reference, Path: local, Owned: true}, nil
}

func baseNameOfURL(reference string) string {
	u, err := url.Parse(reference)
	if err != nil || u.Path == "" || u.Path == "/" {
		return ""
	}
	return path.Base(u.Path)
}
