// Package harness ties the framework together: it parses configuration
// documents, builds the configured object graph, runs the configured tests,
// and feeds their lifecycle events into the result stream.
package harness
