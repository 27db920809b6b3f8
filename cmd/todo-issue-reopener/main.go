package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sethvargo/go-githubactions"

	"github.com/ksysoev/todo-issue-reopener/pkg/core"
	"github.com/ksysoev/todo-issue-reopener/pkg/github"
	"github.com/ksysoev/todo-issue-reopener/pkg/reopener"
	"github.com/ksysoev/todo-issue-reopener/pkg/runner"
	"github.com/ksysoev/todo-issue-reopener/pkg/verifier"
)

const defaultAPIURL = "https://api.github.com"

func main() {
	// Set up action
	action := githubactions.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, action)
	stop()

	if err != nil {
		action.Fatalf("%v", err)
	}
}

func run(ctx context.Context, action *githubactions.Action) error {
	wd := action.GetInput("path")
	if wd == "" {
		return errors.New("path input is required")
	}

	// Get action inputs - first try action inputs, then fall back to env vars
	token := action.GetInput("token")
	if token == "" {
		token = action.Getenv("GITHUB_TOKEN")
		if token == "" {
			return errors.New("token input is required")
		}
	}

	configPath := action.GetInput("config-path")
	if configPath == "" {
		return errors.New("config-path input is required")
	}

	dryRun := action.GetInput("dry-run") == "true"

	// Get GitHub context
	ghctx, err := action.Context()
	if err != nil {
		return fmt.Errorf("failed to read GitHub context: %w", err)
	}

	owner, name, ok := strings.Cut(ghctx.Repository, "/")
	if !ok {
		return fmt.Errorf("GITHUB_REPOSITORY %q is not in owner/repo form", ghctx.Repository)
	}

	repo := core.Repository{
		Owner:       owner,
		Name:        name,
		SHA:         ghctx.SHA,
		ServerURL:   ghctx.ServerURL,
		Workflow:    ghctx.Workflow,
		WorkflowRef: action.Getenv("GITHUB_WORKFLOW_REF"),
	}

	conf, err := core.ReadConfig(configPath, action)
	if err != nil {
		return err
	}

	var opts []github.Option
	if ghctx.APIURL != "" && ghctx.APIURL != defaultAPIURL {
		u, err := url.Parse(ghctx.APIURL)
		if err != nil {
			return fmt.Errorf("invalid GITHUB_API_URL %q: %w", ghctx.APIURL, err)
		}
		opts = append(opts, github.WithBaseURL(u))
	}

	// Initialize GitHub client
	client := github.NewClient(token, owner, name, opts...)

	exec := runner.New()
	downloader := verifier.NewDownloader(verifier.WithDir(action.Getenv("RUNNER_TEMP")))
	v := verifier.New(downloader, exec, verifier.WithLogger(action))

	collector := reopener.NewCollector(v, exec, repo, reopener.WithCollectorLogger(action))

	action.Infof("Scanning for TODO comments in %s", wd)

	return reopener.Run(ctx, collector, reopener.New(client, repo, action), wd, conf, dryRun)
}
