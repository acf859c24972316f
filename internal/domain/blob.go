package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver copies journal rows for a day to cold storage.
type Archiver interface {
	ArchiveSignals(ctx context.Context, day time.Time) (int64, error)
	ArchiveTrades(ctx context.Context, day time.Time) (int64, error)
	ArchiveFile(ctx context.Context, localPath, key string) error
}
