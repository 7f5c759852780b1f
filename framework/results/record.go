package results

import "time"

// Status is the explicit outcome recorded on a lifecycle record. The
// externally visible status of a run or module is computed bottom-up at read
// time and may be failed even when its own record carries no failure.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

// RecordKind identifies one lifecycle transition.
type RecordKind string

const (
	KindInvocationStarted RecordKind = "invocation_started"
	KindInvocationEnded   RecordKind = "invocation_ended"
	KindModuleStarted     RecordKind = "module_started"
	KindModuleEnded       RecordKind = "module_ended"
	KindRunStarted        RecordKind = "run_started"
	KindRunFailed         RecordKind = "run_failed"
	KindRunEnded          RecordKind = "run_ended"
	KindTestStarted       RecordKind = "test_started"
	KindTestFailed        RecordKind = "test_failed"
	KindTestEnded         RecordKind = "test_ended"
)

// Record is one entry of the append-only result stream. Each record is
// self-describing: the kind plus the name of the entity it applies to are
// enough to rebuild the invocation tree from the flat sequence.
type Record struct {
	Kind    RecordKind        `json:"kind"`
	Time    time.Time         `json:"time"`
	Name    string            `json:"name,omitempty"`
	Status  Status            `json:"status,omitempty"`
	Message string            `json:"message,omitempty"`
	Metrics map[string]string `json:"metrics,omitempty"`
}
