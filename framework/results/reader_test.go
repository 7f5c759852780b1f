package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTreeRejectsOrphanRecords(t *testing.T) {
	allParams := []struct {
		desc    string
		records []Record
	}{
		{"module before invocation", []Record{
			{Kind: KindModuleStarted, Name: "mod"},
		}},
		{"run before module", []Record{
			{Kind: KindInvocationStarted, Name: "inv"},
			{Kind: KindRunStarted, Name: "run"},
		}},
		{"test before run", []Record{
			{Kind: KindInvocationStarted, Name: "inv"},
			{Kind: KindModuleStarted, Name: "mod"},
			{Kind: KindTestStarted, Name: "t"},
		}},
		{"test ended without start", []Record{
			{Kind: KindInvocationStarted, Name: "inv"},
			{Kind: KindModuleStarted, Name: "mod"},
			{Kind: KindRunStarted, Name: "run"},
			{Kind: KindTestEnded, Name: "t"},
		}},
		{"double invocation", []Record{
			{Kind: KindInvocationStarted, Name: "inv"},
			{Kind: KindInvocationStarted, Name: "inv2"},
		}},
		{"unknown kind", []Record{
			{Kind: KindInvocationStarted, Name: "inv"},
			{Kind: "bogus"},
		}},
		{"empty stream", nil},
	}
	for _, p := range allParams {
		t.Run(p.desc, func(t *testing.T) {
			_, err := BuildTree(p.records)
			assert.Error(t, err)
		})
	}
}

func TestBuildTreeTimesAndStructure(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{Kind: KindInvocationStarted, Name: "inv", Time: t0},
		{Kind: KindModuleStarted, Name: "mod", Time: t0.Add(time.Second)},
		{Kind: KindRunStarted, Name: "run", Time: t0.Add(2 * time.Second)},
		{Kind: KindTestStarted, Name: "t1", Time: t0.Add(3 * time.Second)},
		{Kind: KindTestEnded, Name: "t1", Status: StatusPassed, Time: t0.Add(4 * time.Second)},
		{Kind: KindRunEnded, Name: "run", Time: t0.Add(5 * time.Second)},
		{Kind: KindModuleEnded, Name: "mod", Time: t0.Add(6 * time.Second)},
		{Kind: KindInvocationEnded, Name: "inv", Time: t0.Add(7 * time.Second)},
	}
	inv, err := BuildTree(records)
	require.NoError(t, err)
	assert.Equal(t, t0, inv.StartTime)
	assert.Equal(t, t0.Add(7*time.Second), inv.EndTime)
	require.Len(t, inv.Modules, 1)
	test := inv.Modules[0].Runs[0].Tests[0]
	assert.Equal(t, time.Second, test.EndTime.Sub(test.StartTime))
	assert.Equal(t, 1, inv.TestCount())
}

func TestBuildTreeInterleavedTests(t *testing.T) {
	records := []Record{
		{Kind: KindInvocationStarted, Name: "inv"},
		{Kind: KindModuleStarted, Name: "mod"},
		{Kind: KindRunStarted, Name: "run"},
		{Kind: KindTestStarted, Name: "a"},
		{Kind: KindTestStarted, Name: "b"},
		{Kind: KindTestFailed, Name: "b", Message: "boom"},
		{Kind: KindTestEnded, Name: "a", Status: StatusPassed},
		{Kind: KindTestEnded, Name: "b", Status: StatusFailed},
		{Kind: KindRunEnded, Name: "run"},
		{Kind: KindModuleEnded, Name: "mod"},
		{Kind: KindInvocationEnded, Name: "inv"},
	}
	inv, err := BuildTree(records)
	require.NoError(t, err)
	run := inv.Modules[0].Runs[0]
	require.Len(t, run.Tests, 2)
	assert.False(t, run.Tests[0].Failed())
	assert.True(t, run.Tests[1].Failed())
	assert.Equal(t, []string{"mod/run/b"}, inv.FailedTests())
}

func TestReadRecordFileReportsLineNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.jsonl")
	content := `{"kind":"invocation_started","name":"inv","time":"2026-08-01T00:00:00Z"}` + "\nnot json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := ReadRecordFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
