package results

import (
	"fmt"
	"sync"
	"time"
)

// Listener observes every record appended to the stream. Listeners are
// called after the record is durably queued, in registration order.
type Listener interface {
	OnRecord(rec Record)
}

// ReporterOptions configures one invocation's reporting pipeline.
type ReporterOptions struct {
	// Dir is the directory holding segment files and the consolidated file.
	Dir string

	// BaseName is the consolidated file name; defaults to DefaultBaseName.
	BaseName string

	// MaxRecordsPerSegment sets the automatic rotation boundary; 0 means
	// segments only rotate on explicit Rotate calls.
	MaxRecordsPerSegment int

	// SkipCompaction leaves the numbered segments in place at Finalize
	// instead of merging them.
	SkipCompaction bool

	Listeners []Listener
}

// Progress is a point-in-time snapshot of an invocation, for live status
// reporting.
type Progress struct {
	Invocation     string `json:"invocation"`
	State          string `json:"state"`
	ModulesStarted int    `json:"modulesStarted"`
	RunsStarted    int    `json:"runsStarted"`
	TestsStarted   int    `json:"testsStarted"`
	TestsFailed    int    `json:"testsFailed"`
	OpenTests      int    `json:"openTests"`
}

type scopeState int

const (
	notStarted scopeState = iota
	open
	closed
)

// Reporter consumes lifecycle events for one invocation and appends them to
// the segment stream. Events are expected from a single controlling
// goroutine in causal order; the Reporter validates every transition and
// rejects an out-of-order one with an InvalidTransition error, leaving both
// its state and the stream untouched. All methods are safe for concurrent
// use so that listeners such as a status server can read snapshots.
//
// Open-child policy: ending a run, module, or invocation while a child scope
// is still open is rejected. Callers that need to abandon open scopes can
// use CloseOpenScopes to emit explicit closing records first.
type Reporter struct {
	mu   sync.Mutex
	w    *SegmentWriter
	opts ReporterOptions

	invName     string
	invState    scopeState
	module      string
	moduleOpen  bool
	run         string
	runOpen     bool
	openTests   map[string]bool
	failedTests map[string]bool

	progress Progress
}

func NewReporter(opts ReporterOptions) (*Reporter, error) {
	w, err := NewSegmentWriter(opts.Dir, opts.BaseName, opts.MaxRecordsPerSegment)
	if err != nil {
		return nil, err
	}
	return &Reporter{
		w:           w,
		opts:        opts,
		openTests:   make(map[string]bool),
		failedTests: make(map[string]bool),
	}, nil
}

func (r *Reporter) append(rec Record) error {
	if err := r.w.Append(rec); err != nil {
		return err
	}
	for _, l := range r.opts.Listeners {
		l.OnRecord(rec)
	}
	return nil
}

func (r *Reporter) StartInvocation(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invState != notStarted {
		return invalidTransition("startInvocation", "invocation already started")
	}
	if err := r.append(Record{Kind: KindInvocationStarted, Time: time.Now(), Name: name}); err != nil {
		return err
	}
	r.invName = name
	r.invState = open
	r.progress.Invocation = name
	r.progress.State = "running"
	return nil
}

func (r *Reporter) EndInvocation() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invState != open {
		return invalidTransition("endInvocation", "invocation is not open")
	}
	if r.moduleOpen {
		return invalidTransition("endInvocation", fmt.Sprintf("module %q is still open", r.module))
	}
	if err := r.append(Record{Kind: KindInvocationEnded, Time: time.Now(), Name: r.invName}); err != nil {
		return err
	}
	r.invState = closed
	r.progress.State = "done"
	return nil
}

func (r *Reporter) StartModule(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invState != open {
		return invalidTransition("startModule", "invocation is not open")
	}
	if r.moduleOpen {
		return invalidTransition("startModule", fmt.Sprintf("module %q is still open", r.module))
	}
	if err := r.append(Record{Kind: KindModuleStarted, Time: time.Now(), Name: name}); err != nil {
		return err
	}
	r.module = name
	r.moduleOpen = true
	r.progress.ModulesStarted++
	return nil
}

func (r *Reporter) EndModule() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.moduleOpen {
		return invalidTransition("endModule", "no module is open")
	}
	if r.runOpen {
		return invalidTransition("endModule", fmt.Sprintf("run %q is still open", r.run))
	}
	if err := r.append(Record{Kind: KindModuleEnded, Time: time.Now(), Name: r.module}); err != nil {
		return err
	}
	r.moduleOpen = false
	return nil
}

func (r *Reporter) StartRun(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.moduleOpen {
		return invalidTransition("startRun", "no module is open")
	}
	if r.runOpen {
		return invalidTransition("startRun", fmt.Sprintf("run %q is still open", r.run))
	}
	if err := r.append(Record{Kind: KindRunStarted, Time: time.Now(), Name: name}); err != nil {
		return err
	}
	r.run = name
	r.runOpen = true
	r.progress.RunsStarted++
	return nil
}

// RunFailed records an explicit failure on the current run, independent of
// any individual test outcome.
func (r *Reporter) RunFailed(message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.runOpen {
		return invalidTransition("runFailed", "no run is open")
	}
	return r.append(Record{Kind: KindRunFailed, Time: time.Now(), Name: r.run, Status: StatusFailed, Message: message})
}

func (r *Reporter) EndRun() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.runOpen {
		return invalidTransition("endRun", "no run is open")
	}
	if n := len(r.openTests); n > 0 {
		return invalidTransition("endRun", fmt.Sprintf("%d test(s) still open", n))
	}
	if err := r.append(Record{Kind: KindRunEnded, Time: time.Now(), Name: r.run}); err != nil {
		return err
	}
	r.runOpen = false
	return nil
}

func (r *Reporter) StartTest(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.runOpen {
		return invalidTransition("startTest", "no run is open")
	}
	if r.openTests[name] {
		return invalidTransition("startTest", fmt.Sprintf("test %q is already open", name))
	}
	if err := r.append(Record{Kind: KindTestStarted, Time: time.Now(), Name: name}); err != nil {
		return err
	}
	r.openTests[name] = true
	r.progress.TestsStarted++
	r.progress.OpenTests = len(r.openTests)
	return nil
}

// TestFailed records a failure for an open test. The test still needs
// EndTest; its effective status is failed regardless of the status passed
// there.
func (r *Reporter) TestFailed(name, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.openTests[name] {
		return invalidTransition("testFailed", fmt.Sprintf("test %q is not open", name))
	}
	if err := r.append(Record{Kind: KindTestFailed, Time: time.Now(), Name: name, Status: StatusFailed, Message: message}); err != nil {
		return err
	}
	if !r.failedTests[name] {
		r.failedTests[name] = true
		r.progress.TestsFailed++
	}
	return nil
}

// EndTest closes an open test. An empty status is derived: failed if
// TestFailed was recorded for the test, passed otherwise.
func (r *Reporter) EndTest(name string, status Status, metrics map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.openTests[name] {
		return invalidTransition("endTest", fmt.Sprintf("test %q is not open", name))
	}
	if status == "" {
		if r.failedTests[name] {
			status = StatusFailed
		} else {
			status = StatusPassed
		}
	}
	if err := r.append(Record{Kind: KindTestEnded, Time: time.Now(), Name: name, Status: status, Metrics: metrics}); err != nil {
		return err
	}
	delete(r.openTests, name)
	r.progress.OpenTests = len(r.openTests)
	return nil
}

// CloseOpenScopes emits closing records for every open test and the open run
// of the current module, each with the given status and message. It is the
// explicit alternative to an implicit-close policy: the stream records
// exactly what happened, including the abandonment.
func (r *Reporter) CloseOpenScopes(status Status, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for name := range r.openTests {
		if err := r.append(Record{Kind: KindTestEnded, Time: now, Name: name, Status: status, Message: message}); err != nil {
			return err
		}
		delete(r.openTests, name)
	}
	r.progress.OpenTests = 0
	if r.runOpen {
		if message != "" {
			if err := r.append(Record{Kind: KindRunFailed, Time: now, Name: r.run, Status: StatusFailed, Message: message}); err != nil {
				return err
			}
		}
		if err := r.append(Record{Kind: KindRunEnded, Time: now, Name: r.run}); err != nil {
			return err
		}
		r.runOpen = false
	}
	return nil
}

// OpenRun reports whether a run is currently open.
func (r *Reporter) OpenRun() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runOpen
}

// Rotate forces a segment boundary at the current position.
func (r *Reporter) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Rotate()
}

// Snapshot returns current progress counters.
func (r *Reporter) Snapshot() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.progress
	if p.State == "" {
		p.State = "pending"
	}
	return p
}

// Finalize closes the segment stream and, unless compaction is skipped,
// merges all segments into the consolidated file, returning its path. The
// invocation must not still be open. On a compaction failure the segments
// are left intact and the error is returned; the stream on disk is still
// complete, just not consolidated.
func (r *Reporter) Finalize() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invState == open {
		return "", invalidTransition("finalize", "invocation is still open")
	}
	if err := r.w.Close(); err != nil {
		return "", err
	}
	if r.opts.SkipCompaction {
		return "", nil
	}
	return Compact(r.opts.Dir, r.baseName())
}

func (r *Reporter) baseName() string {
	if r.opts.BaseName != "" {
		return r.opts.BaseName
	}
	return DefaultBaseName
}
