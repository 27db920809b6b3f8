package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ksysoev/todo-issue-reopener/pkg/core"
	"github.com/ksysoev/todo-issue-reopener/pkg/github"
	"github.com/ksysoev/todo-issue-reopener/pkg/reopener"
	"github.com/ksysoev/todo-issue-reopener/pkg/runner"
	"github.com/ksysoev/todo-issue-reopener/pkg/verifier"
)

type options struct {
	path       string
	token      string
	repo       string
	sha        string
	configPath string
	dryRun     bool
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "reopen-local",
		Short: "Reopen closed issues that are still referenced by TODOs",
		Long: `Runs the same verified todos scan and issue reconciliation as the
GitHub Action, from a local checkout. Dry run is on by default.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.path, "path", ".", "directory to scan for TODOs")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("GITHUB_TOKEN"), "GitHub token (defaults to $GITHUB_TOKEN)")
	cmd.Flags().StringVar(&opts.repo, "repo", "", "repository in owner/name form")
	cmd.Flags().StringVar(&opts.sha, "sha", "", "commit to link TODOs at (defaults to HEAD)")
	cmd.Flags().StringVar(&opts.configPath, "config", ".todos.yml", "path to the vanity URL configuration")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", true, "only report the issues that would be reopened")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := &slogLogger{l: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}

	owner, name, ok := strings.Cut(opts.repo, "/")
	if !ok || owner == "" || name == "" {
		return fmt.Errorf("--repo %q is not in owner/name form", opts.repo)
	}

	if opts.token == "" {
		return errors.New("--token or $GITHUB_TOKEN is required")
	}

	exec := runner.New()

	sha := opts.sha
	if sha == "" {
		res, err := exec.Run(ctx, opts.path, "git", "rev-parse", "HEAD")
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return &core.ScanError{Command: "git", ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		sha = strings.TrimSpace(res.Stdout)
	}

	repo := core.Repository{Owner: owner, Name: name, SHA: sha}

	conf, err := core.ReadConfig(opts.configPath, logger)
	if err != nil {
		return err
	}

	v := verifier.New(verifier.NewDownloader(), exec, verifier.WithLogger(logger))
	collector := reopener.NewCollector(v, exec, repo, reopener.WithCollectorLogger(logger))
	client := github.NewClient(opts.token, owner, name)

	return reopener.Run(ctx, collector, reopener.New(client, repo, logger), opts.path, conf, opts.dryRun)
}

// slogLogger adapts a *slog.Logger to core.Logger.
type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debugf(msg string, args ...any) {
	s.l.Debug(fmt.Sprintf(msg, args...))
}

func (s *slogLogger) Infof(msg string, args ...any) {
	s.l.Info(fmt.Sprintf(msg, args...))
}

func (s *slogLogger) Warningf(msg string, args ...any) {
	s.l.Warn(fmt.Sprintf(msg, args...))
}
