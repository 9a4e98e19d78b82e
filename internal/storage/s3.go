// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage makes local media files reachable at public URLs, which
// the Meta Graph API requires for photo and video uploads. Files are either
// copied to an S3-compatible bucket or assumed to be served by the web
// layer under a fixed base URL.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// Host turns a local media file into a URL destinations can fetch.
type Host interface {
	PublicURL(ctx context.Context, localPath string) (string, error)
}

// Client uploads media to the public bucket of an S3-compatible store.
type Client struct {
	s3        *s3.Client
	bucket    string
	endpoint  string
	publicURL string // optional CDN/direct URL for public files
	now       func() time.Time

	mu       sync.Mutex
	uploaded map[string]string // local path → public URL
}

// New creates an S3 storage client configured with path-style addressing
// (required by CEPH/Hetzner/MinIO). Returns (nil, nil) if endpoint or
// credentials are empty, allowing the app to start without storage.
func New(endpoint, region, accessKey, secretKey, bucket, publicURL string) (*Client, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, nil
	}
	if bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}

	endpoint = strings.TrimRight(endpoint, "/")

	s3Client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	})

	return &Client{
		s3:        s3Client,
		bucket:    bucket,
		endpoint:  endpoint,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
		uploaded:  make(map[string]string),
	}, nil
}

// Upload stores an object in the public bucket with a public-read ACL.
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		ACL:           s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// FileURL returns the public URL for a key in the bucket.
// Uses the configured public URL if set, otherwise builds a path-style URL.
func (c *Client) FileURL(key string) string {
	if c.publicURL != "" {
		return c.publicURL + "/" + key
	}
	return c.endpoint + "/" + c.bucket + "/" + key
}

// PublicURL uploads localPath under media/<yyyy>/<mm>/ and returns its URL.
// A path already uploaded by this client is not uploaded again, so several
// destinations sharing one image cost a single transfer.
func (c *Client) PublicURL(ctx context.Context, localPath string) (string, error) {
	c.mu.Lock()
	if u, ok := c.uploaded[localPath]; ok {
		c.mu.Unlock()
		return u, nil
	}
	c.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("storage open: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("storage stat: %w", err)
	}

	key := c.objectKey(localPath)
	if err := c.Upload(ctx, key, ContentType(localPath), f, info.Size()); err != nil {
		return "", err
	}

	u := c.FileURL(key)
	c.mu.Lock()
	c.uploaded[localPath] = u
	c.mu.Unlock()

	slog.Debug("media uploaded to object storage", "path", localPath, "key", key, "size", info.Size())
	return u, nil
}

func (c *Client) objectKey(localPath string) string {
	now := c.now().UTC()
	base := strings.ReplaceAll(filepath.Base(localPath), " ", "-")
	return fmt.Sprintf("media/%04d/%02d/%s-%s", now.Year(), now.Month(), uuid.NewString()[:8], base)
}

// videoTypes covers extensions missing from the mime package's built-in table.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
}

// ContentType guesses a MIME type from the file extension.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
