package main

import (
	"context"
	_ "embed" // this is required in order for go:embed to work
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/devicelab/test-harness/framework"
	"github.com/devicelab/test-harness/framework/harness"
	"github.com/devicelab/test-harness/framework/remote"
	"github.com/devicelab/test-harness/framework/results"
)

const defaultPort = 8222
const defaultRecordsPerSegment = 500

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

func main() {
	fmt.Printf("test-harness v%s\n", strings.TrimSpace(versionString))

	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	invocation, err := run(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if invocation.Failed() {
		os.Exit(1)
	}
}

func run(params commandParams) (*results.Invocation, error) {
	ctx := context.Background()

	mainDebugLogger := framework.NullLogger()
	if params.debug {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	cfg, err := harness.LoadConfiguration(params.configPath)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Configuration: %s\n", cfg.Description)
	harness.PrintFilterDescription(params.filters)

	workDir := params.workDir
	if workDir == "" {
		tempDir, err := os.MkdirTemp("", "test-harness-")
		if err != nil {
			return nil, err
		}
		defer func() { _ = os.RemoveAll(tempDir) }()
		workDir = tempDir
	}

	h := &harness.Harness{
		Registry:  harness.NewDefaultRegistry(),
		Resolvers: makeResolvers(ctx, mainDebugLogger),
		WorkDir:   workDir,
		Filters:   params.filters,
		Logger:    mainDebugLogger,
		ReporterOptions: results.ReporterOptions{
			Dir:                  params.outputDir,
			MaxRecordsPerSegment: params.recordsPerSegment,
			SkipCompaction:       params.skipCompaction,
			Listeners:            []results.Listener{results.ConsoleListener{ShowTests: params.debug}},
		},
		StatusPort: params.port,
	}

	result, err := h.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}

	fmt.Println()
	results.PrintSummary(result.Invocation)
	if result.RecordPath != "" {
		fmt.Printf("Results written to %s\n", result.RecordPath)
	} else {
		fmt.Printf("Result segments left under %s\n", params.outputDir)
	}

	if params.jUnitFile != "" {
		if err := results.WriteJUnitFile(params.jUnitFile, result.Invocation); err != nil {
			return nil, fmt.Errorf("error writing JUnit file: %v", err)
		}
	}

	return result.Invocation, nil
}

// makeResolvers registers every reference scheme this build can serve. The
// cloud-backed schemes need ambient credentials; when those are missing the
// scheme is simply left out, and a configuration that uses it fails with an
// unsupported-scheme error.
func makeResolvers(ctx context.Context, logger framework.Logger) *remote.ResolverSet {
	resolvers := remote.NewResolverSet(
		remote.LocalFileResolver{},
		remote.NewHTTPResolver("http"),
		remote.NewHTTPResolver("https"),
	)
	if awsSession, err := session.NewSession(); err == nil {
		resolvers.Register(remote.NewS3Resolver(awsSession))
	} else {
		logger.Printf("s3: references not available: %s", err)
	}
	if gcs, err := remote.NewGCSResolver(ctx); err == nil {
		resolvers.Register(gcs)
	} else {
		logger.Printf("gs: references not available: %s", err)
	}
	return resolvers
}
