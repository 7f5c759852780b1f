package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/devicelab/test-harness/framework/harness"
)

type commandParams struct {
	configPath        string
	outputDir         string
	workDir           string
	filters           harness.RegexFilters
	port              int
	recordsPerSegment int
	skipCompaction    bool
	debug             bool
	jUnitFile         string
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.configPath, "config", "", "path to the configuration document (JSON or YAML)")
	fs.StringVar(&c.outputDir, "output", "results", "directory for result records")
	fs.StringVar(&c.workDir, "workdir", "", "directory for fetched files (default: a temporary directory)")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select modules to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select modules not to run")
	fs.IntVar(&c.port, "port", defaultPort, "port for the live status endpoint; 0 disables it")
	fs.IntVar(&c.recordsPerSegment, "records-per-segment", defaultRecordsPerSegment,
		"rotate the record file after this many records; 0 keeps one segment")
	fs.BoolVar(&c.skipCompaction, "skip-compaction", false, "leave the numbered record segments in place at the end")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging and per-test console output")
	fs.StringVar(&c.jUnitFile, "junit", "", "write JUnit XML output to the specified path")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if c.configPath == "" {
		fmt.Fprintln(os.Stderr, "-config is required")
		fs.Usage()
		return false
	}
	return true
}
