package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevenchzhen/prythia/internal/domain"
	"github.com/stevenchzhen/prythia/internal/store/memory"
)

// fakeWriter captures uploaded objects in memory.
type fakeWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{objects: map[string][]byte{}}
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = buf
	return nil
}

func seedSnapshots(t *testing.T, store *memory.SnapshotStore, base time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Append(context.Background(), domain.ProbSnapshot{
			EventID:     "ev1",
			Source:      "polymarket",
			Probability: 0.6,
			Volume:      1000,
			CapturedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}
}

func TestArchiveSnapshots(t *testing.T) {
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	t.Run("uploads then deletes aged rows", func(t *testing.T) {
		snaps := memory.NewSnapshotStore()
		writer := newFakeWriter()
		a := NewArchiver(writer, snaps, memory.NewDivergenceStore(), 100)

		seedSnapshots(t, snaps, base, 5)
		// Two recent rows that must survive.
		seedSnapshots(t, snaps, base.AddDate(0, 2, 0), 2)

		cutoff := base.AddDate(0, 1, 0)
		n, err := a.ArchiveSnapshots(context.Background(), cutoff)
		require.NoError(t, err)
		assert.EqualValues(t, 5, n)
		assert.Len(t, snaps.All(), 2, "recent rows stay in the hot store")

		require.Len(t, writer.objects, 1)
		for path, body := range writer.objects {
			assert.Contains(t, path, "archive/snapshots/2025-11/")
			assert.Equal(t, 5, countJSONLRecords(t, body))
		}
	})

	t.Run("drains in batches", func(t *testing.T) {
		snaps := memory.NewSnapshotStore()
		writer := newFakeWriter()
		a := NewArchiver(writer, snaps, memory.NewDivergenceStore(), 2)

		seedSnapshots(t, snaps, base, 5)

		n, err := a.ArchiveSnapshots(context.Background(), base.AddDate(0, 1, 0))
		require.NoError(t, err)
		assert.EqualValues(t, 5, n)
		assert.Empty(t, snaps.All())
		assert.Len(t, writer.objects, 3, "5 rows at batch size 2 means 3 objects")
	})

	t.Run("upload failure keeps rows", func(t *testing.T) {
		snaps := memory.NewSnapshotStore()
		writer := newFakeWriter()
		writer.err = errors.New("bucket unavailable")
		a := NewArchiver(writer, snaps, memory.NewDivergenceStore(), 100)

		seedSnapshots(t, snaps, base, 3)

		_, err := a.ArchiveSnapshots(context.Background(), base.AddDate(0, 1, 0))
		require.Error(t, err)
		assert.Len(t, snaps.All(), 3, "nothing deleted when the upload fails")
	})

	t.Run("nothing to archive", func(t *testing.T) {
		a := NewArchiver(newFakeWriter(), memory.NewSnapshotStore(), memory.NewDivergenceStore(), 100)
		n, err := a.ArchiveSnapshots(context.Background(), base)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestArchiveDivergences(t *testing.T) {
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	divs := memory.NewDivergenceStore()
	writer := newFakeWriter()
	a := NewArchiver(writer, memory.NewSnapshotStore(), divs, 100)

	for i := 0; i < 3; i++ {
		d := domain.NewDivergence("ev1", "kalshi", 0.55, "polymarket", 0.60,
			base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, divs.Append(context.Background(), d))
	}

	n, err := a.ArchiveDivergences(context.Background(), base.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Empty(t, divs.All())

	require.Len(t, writer.objects, 1)
	for path := range writer.objects {
		assert.Contains(t, path, "archive/divergences/2025-11/")
	}
}

func countJSONLRecords(t *testing.T, body []byte) int {
	t.Helper()
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		n++
	}
	require.NoError(t, sc.Err())
	return n
}
