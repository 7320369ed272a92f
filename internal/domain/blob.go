package domain

import (
	"context"
	"fmt"
	"io"
	"time"
)

// ActivityArchivePrefix is where archived user_activity days live.
const ActivityArchivePrefix = "archive/user_activity/"

// ActivityArchivePath is the object holding every activity row created before
// the given cutoff, keyed by the cutoff's UTC day:
//
//	archive/user_activity/2026-01-31.jsonl
func ActivityArchivePath(before time.Time) string {
	return fmt.Sprintf("%s%s.jsonl", ActivityArchivePrefix, before.UTC().Format(time.DateOnly))
}

// BlobInfo describes one archive object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// BlobWriter uploads archive objects.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader reads archive objects back. Get returns ErrNotFound for a
// missing path.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver copies activity older than a cutoff to cold storage and returns
// the number of rows written.
type Archiver interface {
	ArchiveActivity(ctx context.Context, before time.Time) (int64, error)
}
