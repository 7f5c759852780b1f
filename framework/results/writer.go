package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultBaseName is the name of the consolidated record file; segments are
// numbered siblings of it (<base>.0, <base>.1, ...).
const DefaultBaseName = "test-record.jsonl"

// SegmentPath returns the path of segment index under dir.
func SegmentPath(dir, base string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%d", base, index))
}

// SegmentWriter appends records to numbered segment files. Segments are
// strictly append-only and numbered contiguously from 0; rotation closes the
// current segment and opens the next one.
type SegmentWriter struct {
	dir        string
	base       string
	maxRecords int // records per segment before automatic rotation; 0 disables

	f     *os.File
	index int
	count int
	total int
}

// NewSegmentWriter creates segment 0 under dir. A segment file that already
// exists is an error: the stream would no longer be append-only.
func NewSegmentWriter(dir, base string, maxRecordsPerSegment int) (*SegmentWriter, error) {
	if base == "" {
		base = DefaultBaseName
	}
	w := &SegmentWriter{dir: dir, base: base, maxRecords: maxRecordsPerSegment}
	if err := w.openSegment(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *SegmentWriter) openSegment() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return &ReportingError{Kind: SegmentIO, Segment: w.currentPath(), Err: err}
	}
	f, err := os.OpenFile(w.currentPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return &ReportingError{Kind: SegmentIO, Segment: w.currentPath(), Err: err}
	}
	w.f = f
	w.count = 0
	return nil
}

func (w *SegmentWriter) currentPath() string {
	return SegmentPath(w.dir, w.base, w.index)
}

// Append writes one record to the current segment, rotating afterwards if
// the segment reached the configured record boundary.
func (w *SegmentWriter) Append(rec Record) error {
	if w.f == nil {
		return &ReportingError{Kind: SegmentIO, Segment: w.currentPath(), Err: os.ErrClosed}
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return &ReportingError{Kind: SegmentIO, Segment: w.currentPath(), Err: err}
	}
	if _, err := w.f.Write(append(line, '\n')); err != nil {
		return &ReportingError{Kind: SegmentIO, Segment: w.currentPath(), Err: err}
	}
	w.count++
	w.total++
	if w.maxRecords > 0 && w.count >= w.maxRecords {
		return w.Rotate()
	}
	return nil
}

// Rotate closes the current segment and starts the next one. An empty
// current segment is kept open rather than rotated, so rotation boundaries
// never produce empty segments.
func (w *SegmentWriter) Rotate() error {
	if w.f == nil || w.count == 0 {
		return nil
	}
	if err := w.f.Close(); err != nil {
		return &ReportingError{Kind: SegmentIO, Segment: w.currentPath(), Err: err}
	}
	w.index++
	return w.openSegment()
}

// Close closes the current segment. The writer cannot be used afterwards.
func (w *SegmentWriter) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	if err != nil {
		return &ReportingError{Kind: SegmentIO, Segment: w.currentPath(), Err: err}
	}
	return nil
}

// SegmentCount returns the number of segment files created so far.
func (w *SegmentWriter) SegmentCount() int { return w.index + 1 }

// RecordCount returns the total number of records written.
func (w *SegmentWriter) RecordCount() int { return w.total }
