package harness

import (
	"context"
	"fmt"

	"github.com/devicelab/test-harness/framework"
	"github.com/devicelab/test-harness/framework/config"
	"github.com/devicelab/test-harness/framework/remote"
	"github.com/devicelab/test-harness/framework/results"
)

// Recorder is the result-reporting surface a running test sees: runs, tests,
// and failures within the module the harness opened for it.
type Recorder interface {
	StartRun(name string) error
	RunFailed(message string) error
	EndRun() error
	StartTest(name string) error
	TestFailed(name, message string) error
	EndTest(name string, status results.Status, metrics map[string]string) error
}

// Test is a configured test object. Run is called inside an open module scope
// and is responsible for its own run and test scopes; the harness closes
// anything left open if Run returns an error.
type Test interface {
	config.Configurable
	Run(ctx context.Context, rec Recorder, logger framework.Logger) error
}

// Preparer is a configured setup step, run before any test. Cleanup runs
// after all tests, in reverse setup order, for every preparer whose Setup
// was attempted.
type Preparer interface {
	config.Configurable
	Setup(ctx context.Context, logger framework.Logger) error
	Cleanup(ctx context.Context, logger framework.Logger) error
}

// Harness runs one configuration document end to end.
type Harness struct {
	Registry  *config.Registry
	Resolvers *remote.ResolverSet
	WorkDir   string
	Filters   RegexFilters
	Logger    framework.Logger

	InvocationName  string
	ReporterOptions results.ReporterOptions

	// StatusPort, when nonzero, serves live progress over HTTP for the
	// duration of the run.
	StatusPort int
}

// RunResult is the outcome of one invocation.
type RunResult struct {
	Invocation *results.Invocation

	// RecordPath is the consolidated record file, or empty when compaction
	// was skipped.
	RecordPath string
}

// Run builds the configured object graph, runs the preparers and tests, and
// finalizes the result stream. The reconstructed invocation is returned even
// when tests failed; the error covers harness-level failures only.
func (h *Harness) Run(ctx context.Context, cfg *Configuration) (*RunResult, error) {
	logger := h.Logger
	if logger == nil {
		logger = framework.NullLogger()
	}

	records := append(append([]config.ClassOptionsRecord(nil), cfg.Preparers...), cfg.Tests...)
	builder := config.NewBuilder(h.Registry, h.Resolvers, h.WorkDir)
	builder.Logger = logger
	graph, err := builder.Build(ctx, records)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := graph.Teardown(); err != nil {
			logger.Printf("failed to clean up resolved files: %s", err)
		}
	}()

	preparers, tests, err := splitGraph(graph.Objects, cfg)
	if err != nil {
		return nil, err
	}

	reporter, err := results.NewReporter(h.ReporterOptions)
	if err != nil {
		return nil, err
	}
	name := h.InvocationName
	if name == "" {
		name = cfg.Description
	}
	if h.StatusPort != 0 {
		statusServer, err := StartStatusServer(h.StatusPort, reporter, logger)
		if err != nil {
			return nil, err
		}
		defer statusServer.Close()
	}
	if err := reporter.StartInvocation(name); err != nil {
		return nil, err
	}

	prepared, prepErr := h.runPreparers(ctx, reporter, preparers, cfg.Preparers, logger)
	if prepErr == nil {
		h.runTests(ctx, reporter, tests, cfg.Tests, logger)
	}
	h.cleanupPreparers(ctx, preparers, prepared, cfg.Preparers, logger)

	if err := reporter.EndInvocation(); err != nil {
		return nil, err
	}
	finalPath, err := reporter.Finalize()
	if err != nil {
		return nil, err
	}

	inv, err := h.readBack(finalPath)
	if err != nil {
		return nil, err
	}
	return &RunResult{Invocation: inv, RecordPath: finalPath}, nil
}

func splitGraph(objects []config.Configurable, cfg *Configuration) ([]Preparer, []Test, error) {
	preparers := make([]Preparer, 0, len(cfg.Preparers))
	for i, obj := range objects[:len(cfg.Preparers)] {
		p, ok := obj.(Preparer)
		if !ok {
			return nil, nil, fmt.Errorf("class %q is not a target preparer", cfg.Preparers[i].Class)
		}
		preparers = append(preparers, p)
	}
	tests := make([]Test, 0, len(cfg.Tests))
	for i, obj := range objects[len(cfg.Preparers):] {
		t, ok := obj.(Test)
		if !ok {
			return nil, nil, fmt.Errorf("class %q is not a test", cfg.Tests[i].Class)
		}
		tests = append(tests, t)
	}
	return preparers, tests, nil
}

// runPreparers runs each preparer's Setup in order and returns how many were
// reached, including one whose Setup failed, so the caller can run their
// Cleanups once the tests are done. A Setup failure is recorded as a failed
// module so the stream shows why no tests ran.
func (h *Harness) runPreparers(
	ctx context.Context,
	reporter *results.Reporter,
	preparers []Preparer,
	recs []config.ClassOptionsRecord,
	logger framework.Logger,
) (int, error) {
	for i, p := range preparers {
		class := recs[i].Class
		prepLogger := framework.LoggerWithPrefix(logger, fmt.Sprintf("[%s] ", class))
		if err := p.Setup(ctx, prepLogger); err != nil {
			h.recordFailedModule(reporter, class, fmt.Sprintf("setup failed: %s", err))
			return i + 1, err
		}
	}
	return len(preparers), nil
}

// cleanupPreparers runs Cleanup for the first prepared preparers, in reverse
// setup order. Cleanup failures are logged rather than failing the run.
func (h *Harness) cleanupPreparers(
	ctx context.Context,
	preparers []Preparer,
	prepared int,
	recs []config.ClassOptionsRecord,
	logger framework.Logger,
) {
	for i := prepared - 1; i >= 0; i-- {
		class := recs[i].Class
		if err := preparers[i].Cleanup(ctx, framework.LoggerWithPrefix(logger, fmt.Sprintf("[%s] ", class))); err != nil {
			logger.Printf("[%s] cleanup failed: %s", class, err)
		}
	}
}

func (h *Harness) runTests(
	ctx context.Context,
	reporter *results.Reporter,
	tests []Test,
	recs []config.ClassOptionsRecord,
	logger framework.Logger,
) {
	nameCounts := make(map[string]int)
	for i, test := range tests {
		moduleName := recs[i].Class
		nameCounts[moduleName]++
		if n := nameCounts[moduleName]; n > 1 {
			moduleName = fmt.Sprintf("%s#%d", moduleName, n)
		}
		if !h.Filters.Match(TestPath{moduleName}) {
			logger.Printf("skipping module %q (filtered)", moduleName)
			continue
		}
		h.runModule(ctx, reporter, test, moduleName, logger)
	}
}

func (h *Harness) runModule(
	ctx context.Context,
	reporter *results.Reporter,
	test Test,
	moduleName string,
	logger framework.Logger,
) {
	if err := reporter.StartModule(moduleName); err != nil {
		logger.Printf("cannot start module %q: %s", moduleName, err)
		return
	}
	// The test writes to a capturing logger; its output is replayed only when
	// the module failed, so passing modules stay quiet.
	capture := &framework.CapturingLogger{}
	failedBefore := reporter.Snapshot().TestsFailed
	runErr := test.Run(ctx, reporter, capture)
	if runErr != nil {
		if reporter.OpenRun() {
			if err := reporter.CloseOpenScopes(results.StatusError, runErr.Error()); err != nil {
				logger.Printf("cannot close scopes of module %q: %s", moduleName, err)
			}
		} else {
			h.recordFailedRun(reporter, moduleName, runErr.Error(), logger)
		}
	}
	if runErr != nil || reporter.Snapshot().TestsFailed > failedBefore {
		if output := capture.Output(); len(output) > 0 {
			logger.Println(output.ToString(fmt.Sprintf("[%s] ", moduleName)))
		}
	}
	if err := reporter.EndModule(); err != nil {
		logger.Printf("cannot end module %q: %s", moduleName, err)
	}
}

// recordFailedModule records a whole module as one failed run, used when a
// step fails before any test logic could run.
func (h *Harness) recordFailedModule(reporter *results.Reporter, name, message string) {
	logger := h.Logger
	if logger == nil {
		logger = framework.NullLogger()
	}
	if err := reporter.StartModule(name); err != nil {
		logger.Printf("cannot record failure of %q: %s", name, err)
		return
	}
	h.recordFailedRun(reporter, name, message, logger)
	if err := reporter.EndModule(); err != nil {
		logger.Printf("cannot record failure of %q: %s", name, err)
	}
}

func (h *Harness) recordFailedRun(reporter *results.Reporter, name, message string, logger framework.Logger) {
	if err := reporter.StartRun(name); err != nil {
		logger.Printf("cannot record failed run %q: %s", name, err)
		return
	}
	if err := reporter.RunFailed(message); err != nil {
		logger.Printf("cannot record failed run %q: %s", name, err)
	}
	if err := reporter.EndRun(); err != nil {
		logger.Printf("cannot record failed run %q: %s", name, err)
	}
}

func (h *Harness) readBack(finalPath string) (*results.Invocation, error) {
	var recs []results.Record
	var err error
	if finalPath == "" {
		recs, err = results.ReadSegments(h.ReporterOptions.Dir, h.ReporterOptions.BaseName)
	} else {
		recs, err = results.ReadRecordFile(finalPath)
	}
	if err != nil {
		return nil, err
	}
	return results.BuildTree(recs)
}
