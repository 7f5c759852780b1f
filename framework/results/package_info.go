// Package results records the test-execution lifecycle (one invocation
// containing modules, runs, and tests) as an append-only sequence of
// self-describing JSON records. Records are written to numbered segment
// files that rotate on a configurable boundary; Finalize merges the segments
// into one canonical record file, deleting them only after the merge is
// durably written. The reader side rebuilds the full tree from a record file
// and computes failure status bottom-up.
package results
