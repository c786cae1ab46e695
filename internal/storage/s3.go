// Package storage wraps the S3 object store used for normalised audio
// files, plus CDN URL generation.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

const (
	audioContentType  = "audio/mpeg"
	audioCacheControl = "public, max-age=31536000"
)

// ObjectInfo is the metadata returned by Head
type ObjectInfo struct {
	Size         int64
	LastModified time.Time
	ContentType  string
	Metadata     map[string]string
}

// Client is an S3-backed audio object store
type Client struct {
	s3        *s3.Client
	bucket    string
	cdnDomain string
}

// NewClient builds an S3 client from the default AWS credential chain
func NewClient(ctx context.Context, bucket, region, cdnDomain string) (*Client, error) {
	if bucket == "" {
		return nil, errors.New("storage: bucket not configured")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	return &Client{
		s3:        s3.NewFromConfig(cfg),
		bucket:    bucket,
		cdnDomain: cdnDomain,
	}, nil
}

// KeyExists reports whether an object exists under the key
func (c *Client) KeyExists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("storage: head %s: %w", key, err)
	}
	return true, nil
}

// Upload stores a local file under the key with audio content type and
// long-lived cache control
func (c *Client) Upload(ctx context.Context, localPath, key string, metadata map[string]string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(c.bucket),
		Key:          aws.String(key),
		Body:         f,
		ContentType:  aws.String(audioContentType),
		CacheControl: aws.String(audioCacheControl),
		Metadata:     metadata,
	})
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", key, err)
	}
	return nil
}

// FindByPrefix returns the first object key under the prefix, if any.
// Audio keys carry a uuid suffix, so lookups go through the deterministic
// artist/title prefix.
func (c *Client) FindByPrefix(ctx context.Context, prefix string) (string, bool, error) {
	out, err := c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return "", false, fmt.Errorf("storage: list %s: %w", prefix, err)
	}
	if len(out.Contents) == 0 {
		return "", false, nil
	}
	return *out.Contents[0].Key, true, nil
}

// Head returns object metadata without fetching the body
func (c *Client) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: head %s: %w", key, err)
	}

	info := &ObjectInfo{Metadata: out.Metadata}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	return info, nil
}

// Download fetches an object into a local file
func (c *Client) Download(ctx context.Context, key, localPath string) error {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: get %s: %w", key, err)
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("storage: download %s: %w", key, err)
	}
	return nil
}

// Delete removes an object
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the CDN URL for a key, falling back to the direct S3
// URL when no CDN domain is configured
func (c *Client) PublicURL(key string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", c.cdnDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", c.bucket, key)
}
