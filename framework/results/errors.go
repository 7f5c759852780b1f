package results

import "fmt"

// ReportingErrorKind discriminates reporting failures.
type ReportingErrorKind int

const (
	// InvalidTransition means a lifecycle call arrived in a state that does
	// not allow it; nothing was appended and prior state is intact.
	InvalidTransition ReportingErrorKind = iota
	// SegmentIO means a segment file could not be written or deleted.
	SegmentIO
	// CompactionFailed means segments could not be merged; the original
	// segments are left untouched.
	CompactionFailed
)

func (k ReportingErrorKind) String() string {
	switch k {
	case InvalidTransition:
		return "InvalidTransition"
	case SegmentIO:
		return "SegmentIO"
	case CompactionFailed:
		return "CompactionFailed"
	}
	return fmt.Sprintf("ReportingErrorKind(%d)", int(k))
}

// ReportingError names the offending transition or segment.
type ReportingError struct {
	Kind       ReportingErrorKind
	Transition string // lifecycle call that was rejected
	Segment    string // segment path, for I/O and compaction failures
	Detail     string
	Err        error
}

func (e *ReportingError) Error() string {
	switch e.Kind {
	case InvalidTransition:
		return fmt.Sprintf("invalid transition %s: %s", e.Transition, e.Detail)
	case SegmentIO:
		return fmt.Sprintf("segment %s: %v", e.Segment, e.Err)
	default:
		if e.Segment != "" {
			return fmt.Sprintf("compaction failed on segment %s: %v", e.Segment, e.Err)
		}
		return fmt.Sprintf("compaction failed: %v", e.Err)
	}
}

func (e *ReportingError) Unwrap() error { return e.Err }

func invalidTransition(transition, detail string) error {
	return &ReportingError{Kind: InvalidTransition, Transition: transition, Detail: detail}
}
