package reopener

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ksysoev/todo-issue-reopener/pkg/core"
	"github.com/ksysoev/todo-issue-reopener/pkg/runner"
	"github.com/ksysoev/todo-issue-reopener/pkg/verifier"
)

const (
	// TodosVersion is the released version of the todos scanner.
	TodosVersion = "v0.13.0"
	// SLSAVerifierVersion is the released version of slsa-verifier.
	SLSAVerifierVersion = "v2.7.0"
	// SLSAVerifierSHA256 is the sha256 digest of slsa-verifier-linux-amd64.
	// See: https://github.com/slsa-framework/slsa-verifier/blob/main/SHA256SUM.md
	SLSAVerifierSHA256 = "499befb675efcca9001afe6e5156891b91e71f9c07ab120a8943979f85cc82e6"
)

// DefaultScanner is the download request for the todos scanner binary.
var DefaultScanner = verifier.Request{
	ArtifactURL:     "https://github.com/ianlewis/todos/releases/download/" + TodosVersion + "/todos-linux-amd64",
	ProvenanceURL:   "https://github.com/ianlewis/todos/releases/download/" + TodosVersion + "/todos-linux-amd64.intoto.jsonl",
	SourceURI:       "github.com/ianlewis/todos",
	SourceTag:       TodosVersion,
	VerifierVersion: SLSAVerifierVersion,
	VerifierDigest:  SLSAVerifierSHA256,
}

// ArtifactVerifier downloads a binary and verifies its provenance.
type ArtifactVerifier interface {
	DownloadAndVerify(ctx context.Context, req verifier.Request) (string, error)
}

// Collector runs the todos scanner over a repository and groups TODOs by the
// issues they reference.
type Collector struct {
	verifier ArtifactVerifier
	runner   runner.Runner
	repo     core.Repository
	logger   core.Logger
	scanner  verifier.Request
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithScanner overrides the todos download request.
func WithScanner(req verifier.Request) CollectorOption {
	return func(c *Collector) {
		c.scanner = req
	}
}

// WithCollectorLogger sets the logger.
func WithCollectorLogger(logger core.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// NewCollector creates a Collector for the given repository.
func NewCollector(v ArtifactVerifier, r runner.Runner, repo core.Repository, opts ...CollectorOption) *Collector {
	c := &Collector{
		verifier: v,
		runner:   r,
		repo:     repo,
		logger:   core.NopLogger(),
		scanner:  DefaultScanner,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect downloads and verifies todos, runs it on wd and returns the issues
// referenced by TODOs, in the order they were first seen.
func (c *Collector) Collect(ctx context.Context, wd string, conf core.Config) ([]core.IssueGroup, error) {
	todosPath, err := c.verifier.DownloadAndVerify(ctx, c.scanner)
	if err != nil {
		return nil, err
	}
	defer os.Remove(todosPath)

	c.logger.Debugf("Setting %s as executable", todosPath)
	if err := os.Chmod(todosPath, 0o700); err != nil {
		return nil, &core.FileError{Path: todosPath, Err: err}
	}

	repoRoot, err := c.repoRoot(ctx, wd)
	if err != nil {
		return nil, err
	}

	rel, err := relPath(repoRoot, wd)
	if err != nil {
		return nil, &core.ScanError{Command: "todos", Err: err}
	}

	c.logger.Debugf("Running todos (%s)", todosPath)

	// Paths are relative to the repository root so that they can be linked in issues.
	res, err := c.runner.Run(ctx, repoRoot, todosPath, "--output=json", rel)
	if err != nil {
		return nil, &core.ScanError{Command: "todos", Err: err}
	}

	c.logger.Debugf("Ran todos (%s)", todosPath)

	// The exit code is 1 if there are TODOs and 0 if there are none. A
	// negative code means todos was killed and its output is incomplete.
	if res.ExitCode < 0 || res.ExitCode > 1 {
		return nil, &core.ScanError{Command: "todos", ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	todos, err := core.ParseTodos(strings.NewReader(res.Stdout))
	if err != nil {
		return nil, &core.ScanError{Command: "todos", Err: err}
	}

	groups := core.GroupByIssue(todos, core.NewMatcher(c.repo, conf, c.logger))

	c.logger.Debugf("Found %d TODOs referencing %d issues", len(todos), len(groups))

	return groups, nil
}

func (c *Collector) repoRoot(ctx context.Context, wd string) (string, error) {
	c.logger.Debugf("Running git to get repository root")

	res, err := c.runner.Run(ctx, wd, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", &core.ScanError{Command: "git", Err: err}
	}

	if res.ExitCode != 0 {
		return "", &core.ScanError{
			Command:  "git",
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Reason:   fmt.Sprintf("is %s in a git checkout?", wd),
		}
	}

	return strings.TrimSpace(res.Stdout), nil
}

// relPath returns wd relative to root, or "." when they are the same directory.
func relPath(root, wd string) (string, error) {
	abs, err := filepath.Abs(wd)
	if err != nil {
		return "", err
	}

	// git reports the root with symlinks resolved.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	if rel == "" {
		rel = "."
	}

	return filepath.ToSlash(rel), nil
}
