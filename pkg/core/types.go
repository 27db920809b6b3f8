package core

import (
	"net/url"
	"strconv"
	"strings"
)

// DefaultServerURL is used when the repository context carries no server URL.
const DefaultServerURL = "https://github.com"

// TodoRef represents a TODO comment reported by the todos scanner
type TodoRef struct {
	Path        string `json:"path"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Label       string `json:"label"`
	Message     string `json:"message"`
	Line        int    `json:"line"`
	CommentLine int    `json:"comment_line"`
}

// IssueGroup is an issue referenced by one or more TODOs
type IssueGroup struct {
	IssueID int
	Todos   []TodoRef
}

// Issue is the issue state read from the tracker
type Issue struct {
	Number int
	Title  string
	State  string
}

// IsOpen reports whether the issue is currently open.
func (i *Issue) IsOpen() bool {
	return i.State == "open"
}

// Repository describes the repository and workflow run the action executes in
type Repository struct {
	Owner     string
	Name      string
	SHA       string
	ServerURL string

	// Workflow is the workflow name and WorkflowRef its
	// owner/repo/path@ref reference. Both are empty outside Actions.
	Workflow    string
	WorkflowRef string
}

// Server returns the server URL without a trailing slash.
func (r Repository) Server() string {
	if r.ServerURL == "" {
		return DefaultServerURL
	}
	return strings.TrimSuffix(r.ServerURL, "/")
}

// Host returns the host part of the server URL, e.g. github.com.
func (r Repository) Host() string {
	u, err := url.Parse(r.Server())
	if err != nil || u.Host == "" {
		return "github.com"
	}
	return u.Host
}

// IssueURL returns the web URL of the given issue.
func (r Repository) IssueURL(number int) string {
	return r.Server() + "/" + r.Owner + "/" + r.Name + "/issues/" + strconv.Itoa(number)
}

// BlobURL returns a permalink to path at the current commit.
func (r Repository) BlobURL(path string) string {
	return r.Server() + "/" + r.Owner + "/" + r.Name + "/blob/" + r.SHA + "/" + path
}

// WorkflowPath strips the owner/repo prefix and @ref suffix from WorkflowRef,
// leaving e.g. .github/workflows/todos.yml.
func (r Repository) WorkflowPath() string {
	ref, _, _ := strings.Cut(r.WorkflowRef, "@")
	parts := strings.Split(ref, "/")
	if len(parts) <= 2 {
		return ""
	}
	return strings.Join(parts[2:], "/")
}
