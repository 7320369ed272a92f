package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// ActivitySource lists activity rows older than a cutoff.
type ActivitySource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ActivityRecord, error)
}

// Archiver copies old user_activity rows to JSONL objects. Rows are not
// deleted from the database; pruning is a separate, explicit step.
type Archiver struct {
	writer   domain.BlobWriter
	reader   domain.BlobReader
	activity ActivitySource
	audit    domain.AuditStore
}

var _ domain.Archiver = (*Archiver)(nil)

// NewArchiver creates an Archiver. reader and audit may be nil.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, activity ActivitySource, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, reader: reader, activity: activity, audit: audit}
}

// ArchiveActivity uploads every row created before the cutoff to
// domain.ActivityArchivePath(before) and returns the row count. A cutoff
// already archived is skipped and reports 0.
func (a *Archiver) ArchiveActivity(ctx context.Context, before time.Time) (int64, error) {
	path := domain.ActivityArchivePath(before)

	if a.reader != nil {
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive activity check: %w", err)
		}
		if exists {
			return 0, nil
		}
	}

	recs, err := a.activity.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive activity query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive activity marshal: %w", err)
	}

	if int64(len(buf)) > minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive activity upload: %w", err)
	}

	count := int64(len(recs))
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.user_activity", map[string]any{
			"path":   path,
			"count":  count,
			"before": before.UTC().Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive activity audit log: %w", err)
		}
	}
	return count, nil
}

// marshalJSONL encodes one compact JSON document per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
