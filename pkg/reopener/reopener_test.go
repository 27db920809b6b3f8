package reopener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sethvargo/go-githubactions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksysoev/todo-issue-reopener/pkg/core"
	"github.com/ksysoev/todo-issue-reopener/pkg/runner"
)

type comment struct {
	number int
	body   string
}

type fakeTracker struct {
	issues     map[int]*core.Issue
	reopenErr  error
	commentErr error

	gets     []int
	reopens  []int
	comments []comment
}

func (f *fakeTracker) GetIssue(_ context.Context, number int) (*core.Issue, error) {
	f.gets = append(f.gets, number)
	issue, ok := f.issues[number]
	if !ok {
		return nil, fmt.Errorf("failed to get issue #%d: 404 Not Found", number)
	}
	return issue, nil
}

func (f *fakeTracker) ReopenIssue(_ context.Context, number int) error {
	f.reopens = append(f.reopens, number)
	return f.reopenErr
}

func (f *fakeTracker) CreateComment(_ context.Context, number int, body string) error {
	f.comments = append(f.comments, comment{number: number, body: body})
	return f.commentErr
}

func newGroup(id int, paths ...string) core.IssueGroup {
	g := core.IssueGroup{IssueID: id}
	for i, p := range paths {
		g.Todos = append(g.Todos, core.TodoRef{
			Path:    p,
			Label:   fmt.Sprint(id),
			Message: "todo " + p,
			Line:    i + 1,
		})
	}
	return g
}

func TestReopenIssuesEmptyGroup(t *testing.T) {
	tracker := &fakeTracker{}

	err := New(tracker, testRepo, nil).ReopenIssues(context.Background(), []core.IssueGroup{{IssueID: 123}}, false)
	require.NoError(t, err)
	assert.Empty(t, tracker.gets)
}

func TestReopenIssuesAlreadyOpen(t *testing.T) {
	tracker := &fakeTracker{issues: map[int]*core.Issue{
		123: {Number: 123, Title: "open issue", State: "open"},
	}}

	err := New(tracker, testRepo, nil).ReopenIssues(context.Background(), []core.IssueGroup{newGroup(123, "a.go")}, false)
	require.NoError(t, err)

	assert.Equal(t, []int{123}, tracker.gets)
	assert.Empty(t, tracker.reopens)
	assert.Empty(t, tracker.comments)
}

func TestReopenIssuesDryRun(t *testing.T) {
	tracker := &fakeTracker{issues: map[int]*core.Issue{
		123: {Number: 123, Title: "closed issue", State: "closed"},
	}}

	var buf bytes.Buffer
	action := githubactions.New(githubactions.WithWriter(&buf))

	err := New(tracker, testRepo, action).ReopenIssues(context.Background(), []core.IssueGroup{newGroup(123, "a.go")}, true)
	require.NoError(t, err)

	assert.Equal(t, []int{123}, tracker.gets)
	assert.Empty(t, tracker.reopens)
	assert.Empty(t, tracker.comments)
	assert.Contains(t, buf.String(), "[dry-run] Reopening https://github.com/owner/repo/issues/123 : closed issue")
}

func TestReopenIssues(t *testing.T) {
	tracker := &fakeTracker{issues: map[int]*core.Issue{
		123: {Number: 123, Title: "closed issue", State: "closed"},
	}}

	var buf bytes.Buffer
	action := githubactions.New(githubactions.WithWriter(&buf))

	err := New(tracker, testRepo, action).ReopenIssues(context.Background(), []core.IssueGroup{newGroup(123, "a.go", "pkg/b.go")}, false)
	require.NoError(t, err)

	assert.Equal(t, []int{123}, tracker.reopens)
	require.Len(t, tracker.comments, 1)
	assert.Equal(t, 123, tracker.comments[0].number)
	assert.Equal(t,
		"This issue was reopened by the todo-issue-reopener action because there are TODOs referencing this issue:\n"+
			"1. [a.go:1](https://github.com/owner/repo/blob/deadbeefdeadbeefdeadbeefdeadbeefdeadbeef/a.go#L1): todo a.go\n"+
			"2. [pkg/b.go:2](https://github.com/owner/repo/blob/deadbeefdeadbeefdeadbeefdeadbeefdeadbeef/pkg/b.go#L2): todo pkg/b.go\n",
		tracker.comments[0].body)
	assert.Contains(t, buf.String(), "Reopening https://github.com/owner/repo/issues/123 : closed issue")
	assert.NotContains(t, buf.String(), "[dry-run]")
}

func TestReopenIssuesWorkflowLink(t *testing.T) {
	tracker := &fakeTracker{issues: map[int]*core.Issue{
		7: {Number: 7, State: "closed"},
	}}

	repo := testRepo
	repo.Workflow = "TODOs"
	repo.WorkflowRef = "owner/repo/.github/workflows/todos.yml@refs/heads/main"

	err := New(tracker, repo, nil).ReopenIssues(context.Background(), []core.IssueGroup{newGroup(7, "main.go")}, false)
	require.NoError(t, err)

	require.Len(t, tracker.comments, 1)
	assert.Equal(t,
		`This issue was reopened by the todo-issue-reopener action in the ["TODOs"](https://github.com/owner/repo/blob/deadbeefdeadbeefdeadbeefdeadbeefdeadbeef/.github/workflows/todos.yml) GitHub Actions workflow because there are TODOs referencing this issue:`+"\n"+
			"1. [main.go:1](https://github.com/owner/repo/blob/deadbeefdeadbeefdeadbeefdeadbeefdeadbeef/main.go#L1): todo main.go\n",
		tracker.comments[0].body)
}

func TestReopenIssuesGetFailureIsolated(t *testing.T) {
	tracker := &fakeTracker{issues: map[int]*core.Issue{
		456: {Number: 456, Title: "closed issue", State: "closed"},
	}}

	var buf bytes.Buffer
	action := githubactions.New(githubactions.WithWriter(&buf))

	groups := []core.IssueGroup{newGroup(123, "a.go"), newGroup(456, "b.go")}

	err := New(tracker, testRepo, action).ReopenIssues(context.Background(), groups, false)
	require.NoError(t, err)

	assert.Equal(t, []int{123, 456}, tracker.gets)
	assert.Equal(t, []int{456}, tracker.reopens)
	require.Len(t, tracker.comments, 1)
	assert.Equal(t, 456, tracker.comments[0].number)
	assert.Contains(t, buf.String(), "::warning::error getting issue 123")
}

func TestReopenIssuesMutationFailureAborts(t *testing.T) {
	tests := []struct {
		name         string
		reopenErr    error
		commentErr   error
		wantComments int
	}{
		{name: "reopen fails", reopenErr: errors.New("403 Forbidden"), wantComments: 0},
		{name: "comment fails", commentErr: errors.New("500 Internal Server Error"), wantComments: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := &fakeTracker{
				issues: map[int]*core.Issue{
					1: {Number: 1, State: "closed"},
					2: {Number: 2, State: "closed"},
				},
				reopenErr:  tt.reopenErr,
				commentErr: tt.commentErr,
			}

			groups := []core.IssueGroup{newGroup(1, "a.go"), newGroup(2, "b.go")}

			err := New(tracker, testRepo, nil).ReopenIssues(context.Background(), groups, false)
			require.Error(t, err)

			assert.Equal(t, []int{1}, tracker.gets, "Expected remaining issues to be skipped")
			assert.Len(t, tracker.comments, tt.wantComments)
		})
	}
}

func TestRunScanFailure(t *testing.T) {
	wd := t.TempDir()
	tracker := &fakeTracker{}
	r := &fakeRunner{
		gitResult:   runner.Result{Stdout: wd + "\n"},
		todosResult: runner.Result{ExitCode: 2, Stderr: "boom"},
	}

	err := Run(context.Background(),
		NewCollector(newFakeTodos(t), r, testRepo),
		New(tracker, testRepo, nil),
		wd, core.Config{}, false)

	var scanErr *core.ScanError
	require.True(t, errors.As(err, &scanErr), "Expected ScanError, got %v", err)
	assert.Empty(t, tracker.gets, "Expected reconciliation not to run")
}

func TestRun(t *testing.T) {
	wd := t.TempDir()
	tracker := &fakeTracker{issues: map[int]*core.Issue{
		123: {Number: 123, State: "closed"},
		456: {Number: 456, State: "open"},
	}}
	r := &fakeRunner{
		gitResult: runner.Result{Stdout: wd + "\n"},
		todosResult: runner.Result{ExitCode: 1, Stdout: `{"path": "a.go", "label": "#123", "line": 4, "message": "fix"}
{"path": "b.go", "label": "456", "line": 9}
`},
	}

	err := Run(context.Background(),
		NewCollector(newFakeTodos(t), r, testRepo),
		New(tracker, testRepo, nil),
		wd, core.Config{}, false)
	require.NoError(t, err)

	assert.Equal(t, []int{123, 456}, tracker.gets)
	assert.Equal(t, []int{123}, tracker.reopens)
	require.Len(t, tracker.comments, 1)
	assert.Contains(t, tracker.comments[0].body, "1. [a.go:4](https://github.com/owner/repo/blob/deadbeefdeadbeefdeadbeefdeadbeefdeadbeef/a.go#L4): fix\n")
}
