package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab/test-harness/framework"
	"github.com/devicelab/test-harness/framework/config"
	"github.com/devicelab/test-harness/framework/results"
)

// ExecCommandTest runs an external command, or a script fetched through the
// file-option resolution machinery, as one test. A nonzero exit status fails
// the test; the command's output and exit code end up in the result stream.
type ExecCommandTest struct {
	command string
	args    []string
	script  string
	env     map[string]string
	workDir string
	timeout time.Duration

	opts *config.OptionSet
}

func (t *ExecCommandTest) Options() *config.OptionSet {
	if t.opts == nil {
		t.opts = config.NewOptionSet()
		t.opts.StringVar(&t.command, "command", "the command to run")
		t.opts.StringsVar(&t.args, "arg", "an argument to pass to the command; may be repeated")
		t.opts.FileVar(&t.script, "script", "a script file to run instead of a command; may be a remote reference")
		t.opts.MapVar(&t.env, "env", "an environment variable to set, as name=value")
		t.opts.StringVar(&t.workDir, "working-dir", "the directory to run in")
		t.opts.DurationVar(&t.timeout, "timeout", "how long to let the command run before killing it")
	}
	return t.opts
}

func (t *ExecCommandTest) Run(ctx context.Context, rec Recorder, logger framework.Logger) error {
	program := t.command
	if t.script != "" {
		if t.command != "" {
			return fmt.Errorf(`"command" and "script" cannot both be set`)
		}
		program = t.script
	}
	if program == "" {
		return fmt.Errorf(`one of "command" or "script" must be set`)
	}
	testName := filepath.Base(program)

	if err := rec.StartRun("exec"); err != nil {
		return err
	}
	if err := rec.StartTest(testName); err != nil {
		return err
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, program, t.args...)
	cmd.Dir = t.workDir
	cmd.Env = os.Environ()
	for k, v := range t.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	status := results.StatusPassed
	exitCode := 0
	if runErr != nil {
		logger.Printf("%s: %s", program, runErr)
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			status = results.StatusFailed
			exitCode = exitErr.ExitCode()
		} else {
			status = results.StatusError
			exitCode = -1
		}
		message := runErr.Error()
		if out := strings.TrimSpace(output.String()); out != "" {
			message += "\n" + out
		}
		if err := rec.TestFailed(testName, message); err != nil {
			return err
		}
	}
	metrics := map[string]string{
		"exit_code":   strconv.Itoa(exitCode),
		"duration_ms": strconv.FormatInt(elapsed.Milliseconds(), 10),
	}
	if err := rec.EndTest(testName, status, metrics); err != nil {
		return err
	}
	return rec.EndRun()
}

// ExecCommandPreparer runs one command during setup and, optionally, another
// during cleanup. A setup command failure fails the invocation's preparation.
type ExecCommandPreparer struct {
	setupCommand   []string
	cleanupCommand []string
	workDir        string
	timeout        time.Duration

	opts *config.OptionSet
}

func (p *ExecCommandPreparer) Options() *config.OptionSet {
	if p.opts == nil {
		p.opts = config.NewOptionSet()
		p.opts.StringsVar(&p.setupCommand, "run-command", "the setup command and its arguments; repeat for each token")
		p.opts.StringsVar(&p.cleanupCommand, "cleanup-command", "the cleanup command and its arguments; repeat for each token")
		p.opts.StringVar(&p.workDir, "working-dir", "the directory to run in")
		p.opts.DurationVar(&p.timeout, "timeout", "how long to let each command run before killing it")
	}
	return p.opts
}

func (p *ExecCommandPreparer) Setup(ctx context.Context, logger framework.Logger) error {
	if len(p.setupCommand) == 0 {
		return fmt.Errorf(`"run-command" must be set`)
	}
	return p.runOne(ctx, p.setupCommand, logger)
}

func (p *ExecCommandPreparer) Cleanup(ctx context.Context, logger framework.Logger) error {
	if len(p.cleanupCommand) == 0 {
		return nil
	}
	return p.runOne(ctx, p.cleanupCommand, logger)
}

func (p *ExecCommandPreparer) runOne(ctx context.Context, command []string, logger framework.Logger) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = p.workDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", command[0], err, strings.TrimSpace(string(out)))
	}
	logger.Printf("ran %s", strings.Join(command, " "))
	return nil
}

// NewDefaultRegistry returns a registry with the built-in classes.
func NewDefaultRegistry() *config.Registry {
	r := config.NewRegistry()
	r.Register("ExecCommand", func() config.Configurable { return &ExecCommandTest{} })
	r.Register("ExecCommandPreparer", func() config.Configurable { return &ExecCommandPreparer{} })
	return r
}
