package reopener

import (
	"context"
	"fmt"
	"strings"

	"github.com/ksysoev/todo-issue-reopener/pkg/core"
)

// IssueTracker is the subset of the issue tracker API used to reopen issues.
type IssueTracker interface {
	GetIssue(ctx context.Context, number int) (*core.Issue, error)
	ReopenIssue(ctx context.Context, number int) error
	CreateComment(ctx context.Context, number int, body string) error
}

// Reopener reopens closed issues that are still referenced by TODOs.
type Reopener struct {
	tracker IssueTracker
	repo    core.Repository
	logger  core.Logger
}

// New creates a Reopener.
func New(tracker IssueTracker, repo core.Repository, logger core.Logger) *Reopener {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Reopener{
		tracker: tracker,
		repo:    repo,
		logger:  logger,
	}
}

// ReopenIssues reopens each closed issue in groups and comments with the TODOs
// referencing it. Issues that can't be fetched are skipped with a warning;
// failing to reopen or comment aborts the run. In dry-run mode nothing is
// changed.
func (r *Reopener) ReopenIssues(ctx context.Context, groups []core.IssueGroup, dryRun bool) error {
	for _, group := range groups {
		if len(group.Todos) == 0 {
			continue
		}

		issue, err := r.tracker.GetIssue(ctx, group.IssueID)
		if err != nil {
			r.logger.Warningf("error getting issue %d: %v", group.IssueID, err)
			continue
		}

		if issue.IsOpen() {
			continue
		}

		msgPrefix := ""
		if dryRun {
			msgPrefix = "[dry-run] "
		}

		r.logger.Infof("%sReopening %s : %s", msgPrefix, r.repo.IssueURL(group.IssueID), issue.Title)

		if dryRun {
			continue
		}

		if err := r.tracker.ReopenIssue(ctx, group.IssueID); err != nil {
			return err
		}

		if err := r.tracker.CreateComment(ctx, group.IssueID, r.commentBody(group)); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reopener) commentBody(group core.IssueGroup) string {
	var b strings.Builder

	b.WriteString("This issue was reopened by the todo-issue-reopener action")
	if path := r.repo.WorkflowPath(); path != "" {
		fmt.Fprintf(&b, " in the [\"%s\"](%s) GitHub Actions workflow", r.repo.Workflow, r.repo.BlobURL(path))
	}
	b.WriteString(" because there are TODOs referencing this issue:\n")

	for i, todo := range group.Todos {
		fmt.Fprintf(&b, "%d. [%s:%d](%s#L%d): %s\n",
			i+1, todo.Path, todo.Line, r.repo.BlobURL(todo.Path), todo.Line, todo.Message)
	}

	return b.String()
}

// Run collects the issues referenced by TODOs under wd and reopens the closed ones.
func Run(ctx context.Context, c *Collector, r *Reopener, wd string, conf core.Config, dryRun bool) error {
	groups, err := c.Collect(ctx, wd, conf)
	if err != nil {
		return err
	}

	return r.ReopenIssues(ctx, groups, dryRun)
}
