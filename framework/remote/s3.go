package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// S3Scheme is the scheme handled by S3Resolver.
const S3Scheme = "s3"

// S3Resolver downloads s3://bucket/key references through the S3 download
// manager.
type S3Resolver struct {
	downloader s3manageriface.DownloaderAPI
}

// NewS3Resolver creates a resolver using the given session or other config
// provider for credentials and region.
func NewS3Resolver(p client.ConfigProvider) *S3Resolver {
	return &S3Resolver{downloader: s3manager.NewDownloader(p)}
}

// NewS3ResolverWithDownloader creates a resolver with a custom downloader.
func NewS3ResolverWithDownloader(d s3manageriface.DownloaderAPI) *S3Resolver {
	return &S3Resolver{downloader: d}
}

func (r *S3Resolver) Scheme() string { return S3Scheme }

func (r *S3Resolver) Resolve(ctx context.Context, reference string, destDir string) (ResolvedFile, error) {
	bucket, key, err := parseS3Reference(reference)
	if err != nil {
		return ResolvedFile{}, retrievalFailed(reference, err)
	}
	local, err := fetchToLocal(destDir, path.Base(key), func(f *os.File) error {
		_, err := r.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		if isS3NotFound(err) {
			return ResolvedFile{}, notFound(reference, err)
		}
		return ResolvedFile{}, retrievalFailed(reference, err)
	}
	return ResolvedFile{Reference: reference, Path: local, Owned: true}, nil
}

func parseS3Reference(reference string) (bucket, key string, err error) {
	u, err := url.Parse(reference)
	if err != nil {
		return "", "", err
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("reference must have the form s3://bucket/key")
	}
	return bucket, key, nil
}

func isS3NotFound(err error) bool {
	var ae awserr.Error
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Code() {
	case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
		return true
	}
	return false
}
