package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ksysoev/todo-issue-reopener/pkg/core"
)

const defaultMaxRetries = 3

// Client handles interaction with the GitHub issues API
type Client struct {
	client     *github.Client
	owner      string
	repo       string
	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a GitHub Enterprise Server API URL.
func WithBaseURL(u *url.URL) Option {
	return func(c *Client) {
		base := *u
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		c.client.BaseURL = &base
	}
}

// WithRateLimit sets the limiter every API request waits on.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithBackOff sets the retry policy for idempotent requests.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = newBackOff
	}
}

// NewClient creates a new GitHub client for the owner/repo repository
func NewClient(token, owner, repo string, opts ...Option) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	c := &Client{
		client:  github.NewClient(tc),
		owner:   owner,
		repo:    repo,
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), defaultMaxRetries)
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetIssue returns the current state of an issue
func (c *Client) GetIssue(ctx context.Context, number int) (*core.Issue, error) {
	issue, err := retry(ctx, c, func() (*github.Issue, *github.Response, error) {
		return c.client.Issues.Get(ctx, c.owner, c.repo, number)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get issue #%d: %w", number, err)
	}

	return &core.Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		State:  issue.GetState(),
	}, nil
}

// ReopenIssue sets the issue state to open
func (c *Client) ReopenIssue(ctx context.Context, number int) error {
	_, err := retry(ctx, c, func() (*github.Issue, *github.Response, error) {
		return c.client.Issues.Edit(ctx, c.owner, c.repo, number, &github.IssueRequest{
			State: github.String("open"),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to reopen issue #%d: %w", number, err)
	}

	return nil
}

// CreateComment posts a new comment on the issue. Comments aren't idempotent
// so the request is not retried.
func (c *Client) CreateComment(ctx context.Context, number int, body string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to create comment on issue #%d: %w", number, err)
	}

	_, _, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
		Body: &body,
	})
	if err != nil {
		return fmt.Errorf("failed to create comment on issue #%d: %w", number, err)
	}

	return nil
}

// retry runs an idempotent request, retrying transport errors, rate limiting
// and server errors.
func retry[T any](ctx context.Context, c *Client, req func() (T, *github.Response, error)) (T, error) {
	return backoff.RetryWithData(func() (T, error) {
		var zero T
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, backoff.Permanent(err)
		}

		v, resp, err := req()
		if err != nil && !retryable(resp, err) {
			return zero, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithContext(c.newBackOff(), ctx))
}

func retryable(resp *github.Response, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}

	if resp == nil {
		return true
	}

	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}
