// Package framework contains the low-level infrastructure of the test harness
// that does not depend on what is being tested. The base package contains
// shared types such as Logger; the real machinery is in the subpackages:
//
// config builds runnable object graphs from declarative class/options
// documents, binding named option values onto each object's declared fields.
//
// remote resolves option values that reference remote files (file:, http:,
// s3:, gs:) into local files, tracking which ones the harness owns and must
// delete.
//
// results records the invocation/module/run/test lifecycle as an append-only
// segmented record log, and compacts the segments into one canonical file at
// the end of the invocation.
//
// harness ties the above together: it loads a configuration document, builds
// the object graph, drives each configured test, and reports results.
package framework
