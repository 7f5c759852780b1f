package results

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	kinds []RecordKind
}

func (l *recordingListener) OnRecord(rec Record) {
	l.kinds = append(l.kinds, rec.Kind)
}

func newTestReporter(t *testing.T, opts ReporterOptions) *Reporter {
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	r, err := NewReporter(opts)
	require.NoError(t, err)
	return r
}

func TestReporterHappyPath(t *testing.T) {
	listener := &recordingListener{}
	r := newTestReporter(t, ReporterOptions{Listeners: []Listener{listener}})

	require.NoError(t, r.StartInvocation("inv"))
	require.NoError(t, r.StartModule("mod"))
	require.NoError(t, r.StartRun("run"))
	require.NoError(t, r.StartTest("test1"))
	require.NoError(t, r.EndTest("test1", "", map[string]string{"k": "v"}))
	require.NoError(t, r.EndRun())
	require.NoError(t, r.EndModule())
	require.NoError(t, r.EndInvocation())

	final, err := r.Finalize()
	require.NoError(t, err)

	records, err := ReadRecordFile(final)
	require.NoError(t, err)
	inv, err := BuildTree(records)
	require.NoError(t, err)

	assert.Equal(t, "inv", inv.Name)
	require.Len(t, inv.Modules, 1)
	require.Len(t, inv.Modules[0].Runs, 1)
	require.Len(t, inv.Modules[0].Runs[0].Tests, 1)
	test := inv.Modules[0].Runs[0].Tests[0]
	assert.Equal(t, StatusPassed, test.Status) // derived from no failure
	assert.Equal(t, map[string]string{"k": "v"}, test.Metrics)
	assert.False(t, inv.Failed())

	assert.Equal(t, []RecordKind{
		KindInvocationStarted, KindModuleStarted, KindRunStarted,
		KindTestStarted, KindTestEnded,
		KindRunEnded, KindModuleEnded, KindInvocationEnded,
	}, listener.kinds)
}

func TestReporterFailureAggregatesUpward(t *testing.T) {
	r := newTestReporter(t, ReporterOptions{})

	require.NoError(t, r.StartInvocation("inv"))
	require.NoError(t, r.StartModule("mod"))
	require.NoError(t, r.StartRun("run"))
	require.NoError(t, r.StartTest("test1"))
	require.NoError(t, r.TestFailed("test1", "assertion failed"))
	require.NoError(t, r.EndTest("test1", "", nil))
	require.NoError(t, r.EndRun())
	require.NoError(t, r.EndModule())
	require.NoError(t, r.EndInvocation())

	final, err := r.Finalize()
	require.NoError(t, err)
	records, err := ReadRecordFile(final)
	require.NoError(t, err)
	inv, err := BuildTree(records)
	require.NoError(t, err)

	test := inv.Modules[0].Runs[0].Tests[0]
	assert.Equal(t, StatusFailed, test.Status)
	assert.Equal(t, []string{"assertion failed"}, test.FailureMessages)
	assert.True(t, inv.Modules[0].Runs[0].Failed())
	assert.True(t, inv.Modules[0].Failed())
	assert.True(t, inv.Failed())
	assert.Equal(t, []string{"mod/run/test1"}, inv.FailedTests())
}

func TestReporterRunFailureWithoutTestFailures(t *testing.T) {
	r := newTestReporter(t, ReporterOptions{})

	require.NoError(t, r.StartInvocation("inv"))
	require.NoError(t, r.StartModule("mod"))
	require.NoError(t, r.StartRun("run"))
	require.NoError(t, r.RunFailed("device lost"))
	require.NoError(t, r.EndRun())
	require.NoError(t, r.EndModule())
	require.NoError(t, r.EndInvocation())

	final, err := r.Finalize()
	require.NoError(t, err)
	records, err := ReadRecordFile(final)
	require.NoError(t, err)
	inv, err := BuildTree(records)
	require.NoError(t, err)

	run := inv.Modules[0].Runs[0]
	assert.Equal(t, []string{"device lost"}, run.FailureMessages)
	assert.True(t, inv.Failed())
	assert.Empty(t, inv.FailedTests())
}

func TestReporterRejectsInvalidTransitions(t *testing.T) {
	assertInvalid := func(t *testing.T, err error) {
		t.Helper()
		var re *ReportingError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, InvalidTransition, re.Kind)
	}

	t.Run("test before run", func(t *testing.T) {
		r := newTestReporter(t, ReporterOptions{})
		require.NoError(t, r.StartInvocation("inv"))
		require.NoError(t, r.StartModule("mod"))
		assertInvalid(t, r.StartTest("test1"))
	})

	t.Run("run before module", func(t *testing.T) {
		r := newTestReporter(t, ReporterOptions{})
		require.NoError(t, r.StartInvocation("inv"))
		assertInvalid(t, r.StartRun("run"))
	})

	t.Run("double start invocation", func(t *testing.T) {
		r := newTestReporter(t, ReporterOptions{})
		require.NoError(t, r.StartInvocation("inv"))
		assertInvalid(t, r.StartInvocation("inv"))
	})

	t.Run("end test that is not open", func(t *testing.T) {
		r := newTestReporter(t, ReporterOptions{})
		require.NoError(t, r.StartInvocation("inv"))
		require.NoError(t, r.StartModule("mod"))
		require.NoError(t, r.StartRun("run"))
		assertInvalid(t, r.EndTest("ghost", StatusPassed, nil))
	})

	t.Run("end run with open test", func(t *testing.T) {
		r := newTestReporter(t, ReporterOptions{})
		require.NoError(t, r.StartInvocation("inv"))
		require.NoError(t, r.StartModule("mod"))
		require.NoError(t, r.StartRun("run"))
		require.NoError(t, r.StartTest("test1"))
		assertInvalid(t, r.EndRun())
		// the run is still usable after the rejected transition
		require.NoError(t, r.EndTest("test1", StatusPassed, nil))
		require.NoError(t, r.EndRun())
	})

	t.Run("end invocation with open module", func(t *testing.T) {
		r := newTestReporter(t, ReporterOptions{})
		require.NoError(t, r.StartInvocation("inv"))
		require.NoError(t, r.StartModule("mod"))
		assertInvalid(t, r.EndInvocation())
	})

	t.Run("finalize with open invocation", func(t *testing.T) {
		r := newTestReporter(t, ReporterOptions{})
		require.NoError(t, r.StartInvocation("inv"))
		_, err := r.Finalize()
		assertInvalid(t, err)
	})
}

func TestReporterCloseOpenScopes(t *testing.T) {
	r := newTestReporter(t, ReporterOptions{})
	require.NoError(t, r.StartInvocation("inv"))
	require.NoError(t, r.StartModule("mod"))
	require.NoError(t, r.StartRun("run"))
	require.NoError(t, r.StartTest("test1"))

	require.NoError(t, r.CloseOpenScopes(StatusError, "harness gave up"))
	assert.False(t, r.OpenRun())
	require.NoError(t, r.EndModule())
	require.NoError(t, r.EndInvocation())

	final, err := r.Finalize()
	require.NoError(t, err)
	records, err := ReadRecordFile(final)
	require.NoError(t, err)
	inv, err := BuildTree(records)
	require.NoError(t, err)

	run := inv.Modules[0].Runs[0]
	assert.Equal(t, []string{"harness gave up"}, run.FailureMessages)
	require.Len(t, run.Tests, 1)
	assert.Equal(t, StatusError, run.Tests[0].Status)
}

func TestReporterSnapshot(t *testing.T) {
	r := newTestReporter(t, ReporterOptions{})
	assert.Equal(t, "pending", r.Snapshot().State)

	require.NoError(t, r.StartInvocation("inv"))
	require.NoError(t, r.StartModule("mod"))
	require.NoError(t, r.StartRun("run"))
	require.NoError(t, r.StartTest("test1"))
	require.NoError(t, r.TestFailed("test1", "boom"))

	p := r.Snapshot()
	assert.Equal(t, "inv", p.Invocation)
	assert.Equal(t, "running", p.State)
	assert.Equal(t, 1, p.ModulesStarted)
	assert.Equal(t, 1, p.RunsStarted)
	assert.Equal(t, 1, p.TestsStarted)
	assert.Equal(t, 1, p.TestsFailed)
	assert.Equal(t, 1, p.OpenTests)
}

func TestReporterSkipCompactionLeavesSegments(t *testing.T) {
	dir := t.TempDir()
	r := newTestReporter(t, ReporterOptions{Dir: dir, SkipCompaction: true})
	require.NoError(t, r.StartInvocation("inv"))
	require.NoError(t, r.EndInvocation())

	final, err := r.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "", final)

	_, err = os.Stat(SegmentPath(dir, DefaultBaseName, 0))
	assert.NoError(t, err)
}
