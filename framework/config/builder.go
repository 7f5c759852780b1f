package config

import (
	"context"
	"os"
	"sync"

	"go.uber.org/multierr"

	"github.com/devicelab/test-harness/framework"
	"github.com/devicelab/test-harness/framework/remote"
)

// Builder constructs object graphs from normalized class/options records.
type Builder struct {
	Registry  *Registry
	Resolvers *remote.ResolverSet

	// WorkDir is where fetched remote files are placed.
	WorkDir string

	// DedupeRemotes resolves identical references within one build only once,
	// reusing the local file. NewBuilder enables it; disable it for callers
	// that need a private copy per occurrence.
	DedupeRemotes bool

	Logger framework.Logger
}

func NewBuilder(registry *Registry, resolvers *remote.ResolverSet, workDir string) *Builder {
	return &Builder{
		Registry:      registry,
		Resolvers:     resolvers,
		WorkDir:       workDir,
		DedupeRemotes: true,
		Logger:        framework.NullLogger(),
	}
}

// ConfiguredGraph holds the constructed objects of one build, in record
// order, together with every file the build resolved. The graph exclusively
// owns its fetched files: Teardown is the only place they are deleted.
type ConfiguredGraph struct {
	Objects []Configurable

	resolved []remote.ResolvedFile
	once     sync.Once
}

// ResolvedFiles returns every file resolved during the build, owned or not.
func (g *ConfiguredGraph) ResolvedFiles() []remote.ResolvedFile {
	return append([]remote.ResolvedFile(nil), g.resolved...)
}

// Teardown deletes every owned resolved file. It must be called when the
// graph's lifetime ends; calls after the first are no-ops.
func (g *ConfiguredGraph) Teardown() error {
	var err error
	g.once.Do(func() {
		for _, rf := range g.resolved {
			if !rf.Owned {
				continue
			}
			if rmErr := os.Remove(rf.Path); rmErr != nil && !os.IsNotExist(rmErr) {
				err = multierr.Append(err, rmErr)
			}
		}
	})
	return err
}

// Build instantiates each record's class, binds its options, and resolves
// any file-typed option values carrying a URI scheme, substituting the local
// path. The first failure aborts the build and deletes any files already
// fetched for it, so a failed build leaves no residue on disk.
func (b *Builder) Build(ctx context.Context, records []ClassOptionsRecord) (*ConfiguredGraph, error) {
	g := &ConfiguredGraph{}
	seen := make(map[string]string) // reference -> local path, for deduplication
	for i, rec := range records {
		factory, ok := b.Registry.Lookup(rec.Class)
		if !ok {
			b.rollback(g)
			return nil, &ConfigurationError{Kind: ErrClassNotFound, Class: rec.Class, Index: i}
		}
		obj := factory()
		opts := obj.Options()
		for _, name := range rec.Options.Names() {
			if err := opts.Bind(name, rec.Options.Values(name)); err != nil {
				b.rollback(g)
				if ce, ok := err.(*ConfigurationError); ok {
					ce.Class, ce.Index = rec.Class, i
				}
				return nil, err
			}
		}
		if err := b.resolveFileOptions(ctx, opts, g, seen, rec.Class, i); err != nil {
			b.rollback(g)
			return nil, err
		}
		g.Objects = append(g.Objects, obj)
	}
	return g, nil
}

func (b *Builder) rollback(g *ConfiguredGraph) {
	if err := g.Teardown(); err != nil {
		b.Logger.Printf("failed to clean up after aborted build: %s", err)
	}
}

func (b *Builder) resolveFileOptions(
	ctx context.Context,
	opts *OptionSet,
	g *ConfiguredGraph,
	seen map[string]string,
	class string,
	index int,
) error {
	for _, d := range opts.Descriptors() {
		if d.Kind != KindFile || !d.bound {
			continue
		}
		if d.fileValue != nil {
			local, err := b.resolveReference(ctx, *d.fileValue, g, seen)
			if err != nil {
				return &ConfigurationError{Kind: ErrResolution, Class: class, Index: index, Option: d.Name, Err: err}
			}
			*d.fileValue = local
		}
		if d.fileValues != nil {
			for vi, v := range *d.fileValues {
				local, err := b.resolveReference(ctx, v, g, seen)
				if err != nil {
					return &ConfigurationError{Kind: ErrResolution, Class: class, Index: index, Option: d.Name, Err: err}
				}
				(*d.fileValues)[vi] = local
			}
		}
	}
	return nil
}

// resolveReference resolves one file-option value. Values without a URI
// scheme are plain local paths and pass through untouched.
func (b *Builder) resolveReference(
	ctx context.Context,
	value string,
	g *ConfiguredGraph,
	seen map[string]string,
) (string, error) {
	if !remote.HasScheme(value) {
		return value, nil
	}
	if b.DedupeRemotes {
		if local, ok := seen[value]; ok {
			return local, nil
		}
	}
	rf, err := b.Resolvers.Resolve(ctx, value, b.WorkDir)
	if err != nil {
		return "", err
	}
	b.Logger.Printf("resolved %q to %q", value, rf.Path)
	g.resolved = append(g.resolved, rf)
	seen[value] = rf.Path
	return rf.Path, nil
}
