package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/artpar/coinshelf/internal/cli"
	"github.com/artpar/coinshelf/internal/currency"
)

// CLIResult holds CLI execution results.
type CLIResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CLIRunner executes CLI commands against the harness data directory.
type CLIRunner struct {
	harness *E2EHarness
}

// Run executes a CLI command with the given arguments.
func (r *CLIRunner) Run(args ...string) (*CLIResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.harness.timeout)
	defer cancel()

	start := time.Now()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	full := append(append([]string{}, args...), "--data-dir", r.harness.dataDir)
	if r.harness.configFile != "" {
		full = append(full, "--config", r.harness.configFile)
	}

	cmd := cli.NewRootCommand("test")
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(full)

	err := cmd.ExecuteContext(ctx)

	result := &CLIResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		result.ExitCode = 1
	}

	return result, err
}

// MustRun runs a command and fails the test on error.
func (r *CLIRunner) MustRun(args ...string) *CLIResult {
	r.harness.t.Helper()
	result, err := r.Run(args...)
	if err != nil {
		r.harness.t.Fatalf("coinshelf %v: %v\nstderr: %s", args, err, result.Stderr)
	}
	return result
}

// List runs list --json in mode and decodes the records.
func (r *CLIRunner) List(mode string) []currency.Record {
	r.harness.t.Helper()
	result := r.MustRun("list", "--mode", mode, "--json")

	var records []currency.Record
	if err := json.Unmarshal([]byte(result.Stdout), &records); err != nil {
		r.harness.t.Fatalf("invalid list output: %v\n%s", err, result.Stdout)
	}
	return records
}
