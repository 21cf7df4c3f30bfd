package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// Archiver moves aged snapshot and divergence rows to cold storage as JSONL
// files. Each batch is uploaded before its rows are deleted from the hot
// store, so a run that dies between the two steps leaves duplicates in the
// archive rather than holes in the history.
type Archiver struct {
	writer      domain.BlobWriter
	snapshots   domain.SnapshotStore
	divergences domain.DivergenceStore
	batchSize   int
}

// NewArchiver creates an Archiver that uploads through the given writer.
func NewArchiver(writer domain.BlobWriter, snapshots domain.SnapshotStore, divergences domain.DivergenceStore, batchSize int) *Archiver {
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &Archiver{
		writer:      writer,
		snapshots:   snapshots,
		divergences: divergences,
		batchSize:   batchSize,
	}
}

// ArchiveSnapshots drains all probability snapshots captured before the
// cutoff into archive/snapshots/ objects, one per batch, deleting each batch
// from the hot store after its upload succeeds. Returns the number of rows
// archived.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for {
		rows, err := a.snapshots.ListBefore(ctx, before, a.batchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots query: %w", err)
		}
		if len(rows) == 0 {
			return total, nil
		}

		buf, err := marshalJSONL(rows)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
		}

		path := archivePath("snapshots", rows[0].CapturedAt, rows[0].ID)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
		}

		// Rows are listed oldest first, so everything up to and including the
		// last row's timestamp is now safely in the archive.
		boundary := rows[len(rows)-1].CapturedAt.Add(time.Nanosecond)
		if boundary.After(before) {
			boundary = before
		}
		deleted, err := a.snapshots.DeleteBefore(ctx, boundary)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots delete: %w", err)
		}
		total += deleted
		if deleted == 0 {
			return total, nil
		}
	}
}

// ArchiveDivergences drains all divergence rows captured before the cutoff
// into archive/divergences/ objects and returns the number archived.
func (a *Archiver) ArchiveDivergences(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for {
		rows, err := a.divergences.ListBefore(ctx, before, a.batchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive divergences query: %w", err)
		}
		if len(rows) == 0 {
			return total, nil
		}

		buf, err := marshalJSONL(rows)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive divergences marshal: %w", err)
		}

		path := archivePath("divergences", rows[0].CapturedAt, rows[0].ID)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive divergences upload: %w", err)
		}

		boundary := rows[len(rows)-1].CapturedAt.Add(time.Nanosecond)
		if boundary.After(before) {
			boundary = before
		}
		deleted, err := a.divergences.DeleteBefore(ctx, boundary)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive divergences delete: %w", err)
		}
		total += deleted
		if deleted == 0 {
			return total, nil
		}
	}
}

// archivePath builds the S3 key for one archive file, partitioned by the
// year-month of the oldest row and disambiguated by its id:
//
//	archive/snapshots/2025-01/17.jsonl
func archivePath(kind string, oldest time.Time, firstID int64) string {
	return fmt.Sprintf("archive/%s/%s/%d.jsonl", kind, oldest.Format("2006-01"), firstID)
}

// marshalJSONL serialises records as newline-delimited JSON.
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
