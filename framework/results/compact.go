package results

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// Compact merges the numbered segments under dir, in ascending order, into
// one consolidated file named base, and deletes the segments afterwards.
// The merge is written to a temporary name and renamed into place only once
// every segment has been read and validated in full; any failure before that
// point discards the partial output and leaves every original segment
// untouched, so a compaction failure can never destroy the only copy of the
// results. Returns the consolidated file's path.
func Compact(dir, base string) (string, error) {
	if base == "" {
		base = DefaultBaseName
	}
	final := filepath.Join(dir, base)
	segments, err := listSegments(dir, base)
	if err != nil {
		return "", &ReportingError{Kind: CompactionFailed, Segment: SegmentPath(dir, base, len(segments)), Err: err}
	}
	if len(segments) == 0 {
		return "", &ReportingError{Kind: CompactionFailed, Err: fmt.Errorf("no segments found under %s", dir)}
	}

	tmp := final + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", &ReportingError{Kind: CompactionFailed, Err: err}
	}
	discard := func(segment string, err error) (string, error) {
		_ = out.Close()
		_ = os.Remove(tmp)
		return "", &ReportingError{Kind: CompactionFailed, Segment: segment, Err: err}
	}

	for _, segment := range segments {
		if err := appendSegment(out, segment); err != nil {
			return discard(segment, err)
		}
	}
	if err := out.Sync(); err != nil {
		return discard("", err)
	}
	if err := out.Close(); err != nil {
		return discard("", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", &ReportingError{Kind: CompactionFailed, Err: err}
	}

	// The consolidated file is durable; only now do the segments go away.
	var rmErr error
	for _, segment := range segments {
		if err := os.Remove(segment); err != nil {
			rmErr = multierr.Append(rmErr, err)
		}
	}
	if rmErr != nil {
		return final, &ReportingError{Kind: SegmentIO, Segment: dir, Err: rmErr}
	}
	return final, nil
}

// listSegments returns the contiguous run of segment files starting at 0.
// Only a missing file ends the scan; any other stat failure is an error,
// since treating it as the end could silently truncate the stream.
func listSegments(dir, base string) ([]string, error) {
	var segments []string
	for i := 0; ; i++ {
		p := SegmentPath(dir, base, i)
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return segments, nil
			}
			return segments, err
		}
		segments = append(segments, p)
	}
}

// appendSegment copies one segment's records into out, validating that every
// line parses as a Record. The original line bytes are re-emitted unchanged
// to preserve the stream exactly.
func appendSegment(out *os.File, segment string) error {
	f, err := os.Open(segment)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := out.Write(append(scanner.Bytes(), '\n')); err != nil {
			return err
		}
	}
	return scanner.Err()
}
