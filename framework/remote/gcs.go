package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSScheme is the scheme handled by GCSResolver.
const GCSScheme = "gs"

// GCSResolver downloads gs://bucket/object references from Google Cloud
// Storage.
type GCSResolver struct {
	client *storage.Client
}

// NewGCSResolver creates a resolver using application default credentials.
func NewGCSResolver(ctx context.Context) (*GCSResolver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Storage client: %w", err)
	}
	return &GCSResolver{client: client}, nil
}

// NewGCSResolverWithClient creates a resolver with a preconfigured client.
func NewGCSResolverWithClient(client *storage.Client) *GCSResolver {
	return &GCSResolver{client: client}
}

func (r *GCSResolver) Scheme() string { return GCSScheme }

func (r *GCSResolver) Resolve(ctx context.Context, reference string, destDir string) (ResolvedFile, error) {
	bucket, object, err := parseGCSReference(reference)
	if err != nil {
		return ResolvedFile{}, retrievalFailed(reference, err)
	}
	rd, err := r.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return ResolvedFile{}, notFound(reference, err)
		}
		return ResolvedFile{}, retrievalFailed(reference, err)
	}
	defer func() { _ = rd.Close() }()
	local, err := fetchToLocal(destDir, path.Base(object), func(f *os.File) error {
		_, err := io.Copy(f, rd)
		return err
	})
	if err != nil {
		return ResolvedFile{}, retrievalFailed(reference, err)
	}
	return ResolvedFile{Reference: reference, Path: local, Owned: true}, nil
}

func parseGCSReference(reference string) (bucket, object string, err error) {
	u, err := url.Parse(reference)
	if err != nil {
		return "", "", err
	}
	bucket = u.Host
	object = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("reference must have the form gs://bucket/object")
	}
	return bucket, object, nil
}
