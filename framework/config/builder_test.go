package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab/test-harness/framework/remote"
)

type fileConfigurable struct {
	data   string
	extras []string

	opts *OptionSet
}

func (f *fileConfigurable) Options() *OptionSet {
	if f.opts == nil {
		f.opts = NewOptionSet()
		f.opts.FileVar(&f.data, "data", "")
		f.opts.FilesVar(&f.extras, "extra", "")
	}
	return f.opts
}

type fakeResolver struct {
	scheme string
	calls  int
	fail   bool
}

func (r *fakeResolver) Scheme() string { return r.scheme }

func (r *fakeResolver) Resolve(_ context.Context, reference, destDir string) (remote.ResolvedFile, error) {
	r.calls++
	if r.fail {
		return remote.ResolvedFile{}, &remote.ResolutionError{
			Kind: remote.RetrievalFailed, Reference: reference, Err: errors.New("transfer failed"),
		}
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return remote.ResolvedFile{}, err
	}
	p := filepath.Join(destDir, fmt.Sprintf("fetched-%d", r.calls))
	if err := os.WriteFile(p, []byte(reference), 0o644); err != nil {
		return remote.ResolvedFile{}, err
	}
	return remote.ResolvedFile{Reference: reference, Path: p, Owned: true}, nil
}

func builderForTest(t *testing.T, resolvers ...remote.Resolver) (*Builder, *Registry) {
	registry := NewRegistry()
	registry.Register("FakeTest", func() Configurable { return &fakeConfigurable{} })
	registry.Register("FileTest", func() Configurable { return &fileConfigurable{} })
	return NewBuilder(registry, remote.NewResolverSet(resolvers...), t.TempDir()), registry
}

func recordWithOptions(class string, pairs ...[2]string) ClassOptionsRecord {
	rec := ClassOptionsRecord{Class: class}
	for _, p := range pairs {
		rec.Options.add(p[0], p[1])
	}
	return rec
}

func TestBuildConstructsObjectsInRecordOrder(t *testing.T) {
	b, _ := builderForTest(t)
	graph, err := b.Build(context.Background(), []ClassOptionsRecord{
		recordWithOptions("FakeTest", [2]string{"name", "first"}),
		recordWithOptions("FakeTest", [2]string{"name", "second"}, [2]string{"count", "2"}),
	})
	require.NoError(t, err)
	require.Len(t, graph.Objects, 2)
	assert.Equal(t, "first", graph.Objects[0].(*fakeConfigurable).name)
	assert.Equal(t, "second", graph.Objects[1].(*fakeConfigurable).name)
	assert.Equal(t, 2, graph.Objects[1].(*fakeConfigurable).count)
}

func TestBuildUnknownClass(t *testing.T) {
	b, _ := builderForTest(t)
	_, err := b.Build(context.Background(), []ClassOptionsRecord{{Class: "Nope"}})
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrClassNotFound, ce.Kind)
	assert.Equal(t, "Nope", ce.Class)
}

func TestBuildAnnotatesBindErrorsWithClassAndIndex(t *testing.T) {
	b, _ := builderForTest(t)
	_, err := b.Build(context.Background(), []ClassOptionsRecord{
		recordWithOptions("FakeTest", [2]string{"name", "ok"}),
		recordWithOptions("FakeTest", [2]string{"count", "NaN"}),
	})
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrTypeMismatch, ce.Kind)
	assert.Equal(t, "FakeTest", ce.Class)
	assert.Equal(t, 1, ce.Index)
}

func TestBuildResolvesFileOptionsAndTeardownDeletes(t *testing.T) {
	fake := &fakeResolver{scheme: "fake"}
	b, _ := builderForTest(t, fake)
	graph, err := b.Build(context.Background(), []ClassOptionsRecord{
		recordWithOptions("FileTest", [2]string{"data", "fake://bucket/object"}),
	})
	require.NoError(t, err)

	obj := graph.Objects[0].(*fileConfigurable)
	assert.NotEqual(t, "fake://bucket/object", obj.data)
	content, err := os.ReadFile(obj.data)
	require.NoError(t, err)
	assert.Equal(t, "fake://bucket/object", string(content))

	require.NoError(t, graph.Teardown())
	_, statErr := os.Stat(obj.data)
	assert.True(t, os.IsNotExist(statErr))

	// second teardown is a no-op
	require.NoError(t, graph.Teardown())
}

func TestBuildPassesPlainPathsThrough(t *testing.T) {
	b, _ := builderForTest(t)
	graph, err := b.Build(context.Background(), []ClassOptionsRecord{
		recordWithOptions("FileTest", [2]string{"data", "/tmp/already-local"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/already-local", graph.Objects[0].(*fileConfigurable).data)
	assert.Empty(t, graph.ResolvedFiles())
}

func TestBuildDoesNotDeleteUnownedFiles(t *testing.T) {
	local := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(local, []byte("hi"), 0o644))

	b, _ := builderForTest(t, remote.LocalFileResolver{})
	graph, err := b.Build(context.Background(), []ClassOptionsRecord{
		recordWithOptions("FileTest", [2]string{"data", "file://" + local}),
	})
	require.NoError(t, err)
	assert.Equal(t, local, graph.Objects[0].(*fileConfigurable).data)

	require.NoError(t, graph.Teardown())
	_, statErr := os.Stat(local)
	assert.NoError(t, statErr)
}

func TestBuildRollsBackFetchedFilesOnFailure(t *testing.T) {
	fake := &fakeResolver{scheme: "fake"}
	failing := &fakeResolver{scheme: "bad", fail: true}
	b, _ := builderForTest(t, fake, failing)

	_, err := b.Build(context.Background(), []ClassOptionsRecord{
		recordWithOptions("FileTest", [2]string{"data", "fake://a"}),
		recordWithOptions("FileTest", [2]string{"data", "bad://b"}),
	})
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrResolution, ce.Kind)
	var re *remote.ResolutionError
	assert.ErrorAs(t, err, &re)

	// the file fetched for the first record must be gone
	entries, readErr := os.ReadDir(b.WorkDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestBuildMissingLocalFileLeavesNoResidue(t *testing.T) {
	b, _ := builderForTest(t, remote.LocalFileResolver{})
	_, err := b.Build(context.Background(), []ClassOptionsRecord{
		recordWithOptions("FileTest", [2]string{"data", "file:///no/such/file"}),
	})
	var re *remote.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, remote.NotFound, re.Kind)
}

func TestBuildDedupesRepeatedReferences(t *testing.T) {
	fake := &fakeResolver{scheme: "fake"}
	b, _ := builderForTest(t, fake)
	graph, err := b.Build(context.Background(), []ClassOptionsRecord{
		recordWithOptions("FileTest",
			[2]string{"data", "fake://same"},
			[2]string{"extra", "fake://same"},
		),
		recordWithOptions("FileTest", [2]string{"data", "fake://same"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
	assert.Len(t, graph.ResolvedFiles(), 1)

	first := graph.Objects[0].(*fileConfigurable)
	second := graph.Objects[1].(*fileConfigurable)
	assert.Equal(t, first.data, second.data)
	assert.Equal(t, []string{first.data}, first.extras)
	require.NoError(t, graph.Teardown())
}

func TestBuildWithoutDedupeFetchesEachOccurrence(t *testing.T) {
	fake := &fakeResolver{scheme: "fake"}
	b, _ := builderForTest(t, fake)
	b.DedupeRemotes = false
	graph, err := b.Build(context.Background(), []ClassOptionsRecord{
		recordWithOptions("FileTest", [2]string{"data", "fake://same"}),
		recordWithOptions("FileTest", [2]string{"data", "fake://same"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
	assert.Len(t, graph.ResolvedFiles(), 2)
	require.NoError(t, graph.Teardown())
}
