// Package objects stores the binary payloads behind document metadata rows
// and gates every transfer through the policy engine.
package objects

import (
	"context"
	"io"
)

// Backend is a flat keyed blob store. Keys are the file_path values recorded
// on document rows; the backend itself knows nothing about projects or
// policies.
type Backend interface {
	Put(ctx context.Context, key string, content io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
}

// Config holds object storage backend settings
type Config struct {
	// Backend selects "s3" or "filesystem"
	Backend string

	// Filesystem backend
	RootDir string

	// S3 backend
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}
