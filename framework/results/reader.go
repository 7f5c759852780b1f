package results

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Invocation is the reconstructed root of one result stream.
type Invocation struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Modules   []*Module
}

type Module struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Runs      []*Run
}

type Run struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	// FailureMessages holds explicit run-level failures, independent of any
	// test outcome.
	FailureMessages []string
	Tests           []*Test
}

type Test struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Status    Status
	// FailureMessages holds messages from failure records seen while the
	// test was open.
	FailureMessages []string
	Metrics         map[string]string
}

// Failed reports whether the test's effective status is a failure: either
// its final status, or any failure recorded while it was open, counts.
func (t *Test) Failed() bool {
	return t.Status == StatusFailed || t.Status == StatusError || len(t.FailureMessages) > 0
}

// Failed aggregates bottom-up: a run failed if it recorded an explicit
// failure or contains any failed test.
func (r *Run) Failed() bool {
	if len(r.FailureMessages) > 0 {
		return true
	}
	for _, t := range r.Tests {
		if t.Failed() {
			return true
		}
	}
	return false
}

// Failed aggregates bottom-up over the module's runs.
func (m *Module) Failed() bool {
	for _, r := range m.Runs {
		if r.Failed() {
			return true
		}
	}
	return false
}

// Failed aggregates bottom-up over the whole invocation.
func (inv *Invocation) Failed() bool {
	for _, m := range inv.Modules {
		if m.Failed() {
			return true
		}
	}
	return false
}

// TestCount returns the total number of tests in the invocation.
func (inv *Invocation) TestCount() int {
	n := 0
	for _, m := range inv.Modules {
		for _, r := range m.Runs {
			n += len(r.Tests)
		}
	}
	return n
}

// FailedTests returns every failed test with its module and run names
// prepended, in stream order.
func (inv *Invocation) FailedTests() []string {
	var ret []string
	for _, m := range inv.Modules {
		for _, r := range m.Runs {
			for _, t := range r.Tests {
				if t.Failed() {
					ret = append(ret, fmt.Sprintf("%s/%s/%s", m.Name, r.Name, t.Name))
				}
			}
		}
	}
	return ret
}

// ReadRecordFile reads an entire record file (consolidated or a single
// segment) as a flat record sequence.
func ReadRecordFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ReadSegments reads the contiguous numbered segments under dir in ascending
// order, as one flat record sequence.
func ReadSegments(dir, base string) ([]Record, error) {
	if base == "" {
		base = DefaultBaseName
	}
	segments, err := listSegments(dir, base)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, segment := range segments {
		recs, err := ReadRecordFile(segment)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

// BuildTree reconstructs the invocation hierarchy from a flat record
// sequence. The sequence must be causally ordered, as produced by a
// Reporter.
func BuildTree(records []Record) (*Invocation, error) {
	var inv *Invocation
	var module *Module
	var run *Run
	openTests := make(map[string]*Test)

	for i, rec := range records {
		bad := func(detail string) error {
			return fmt.Errorf("record %d (%s): %s", i, rec.Kind, detail)
		}
		switch rec.Kind {
		case KindInvocationStarted:
			if inv != nil {
				return nil, bad("invocation already started")
			}
			inv = &Invocation{Name: rec.Name, StartTime: rec.Time}
		case KindInvocationEnded:
			if inv == nil {
				return nil, bad("invocation not started")
			}
			inv.EndTime = rec.Time
		case KindModuleStarted:
			if inv == nil {
				return nil, bad("invocation not started")
			}
			module = &Module{Name: rec.Name, StartTime: rec.Time}
			inv.Modules = append(inv.Modules, module)
		case KindModuleEnded:
			if module == nil {
				return nil, bad("module not started")
			}
			module.EndTime = rec.Time
			module = nil
		case KindRunStarted:
			if module == nil {
				return nil, bad("module not started")
			}
			run = &Run{Name: rec.Name, StartTime: rec.Time}
			module.Runs = append(module.Runs, run)
		case KindRunFailed:
			if run == nil {
				return nil, bad("run not started")
			}
			run.FailureMessages = append(run.FailureMessages, rec.Message)
		case KindRunEnded:
			if run == nil {
				return nil, bad("run not started")
			}
			run.EndTime = rec.Time
			run = nil
		case KindTestStarted:
			if run == nil {
				return nil, bad("run not started")
			}
			t := &Test{Name: rec.Name, StartTime: rec.Time}
			run.Tests = append(run.Tests, t)
			openTests[rec.Name] = t
		case KindTestFailed:
			t := openTests[rec.Name]
			if t == nil {
				return nil, bad(fmt.Sprintf("test %q not open", rec.Name))
			}
			t.FailureMessages = append(t.FailureMessages, rec.Message)
		case KindTestEnded:
			t := openTests[rec.Name]
			if t == nil {
				return nil, bad(fmt.Sprintf("test %q not open", rec.Name))
			}
			t.EndTime = rec.Time
			t.Status = rec.Status
			t.Metrics = rec.Metrics
			delete(openTests, rec.Name)
		default:
			return nil, bad("unknown record kind")
		}
	}
	if inv == nil {
		return nil, fmt.Errorf("record stream contains no invocation")
	}
	return inv, nil
}
