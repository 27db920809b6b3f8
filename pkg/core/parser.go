package core

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxLineSize bounds a single JSON line of scanner output.
const maxLineSize = 10 << 20

// ParseTodos parses newline-delimited JSON scanner output into TODO references.
// Blank lines are skipped. A line that isn't valid JSON is an error.
func ParseTodos(r io.Reader) ([]TodoRef, error) {
	var todos []TodoRef

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var ref TodoRef
		if err := json.Unmarshal([]byte(line), &ref); err != nil {
			return nil, fmt.Errorf("parsing todos output line %d: %w", lineNum, err)
		}
		todos = append(todos, ref)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading todos output: %w", err)
	}

	return todos, nil
}

// GroupByIssue groups TODOs by the issue their label references. TODOs that
// don't reference a positive issue number are dropped. Groups are returned in
// the order their issue was first seen and TODOs keep their original order.
func GroupByIssue(todos []TodoRef, matcher *Matcher) []IssueGroup {
	var groups []IssueGroup
	index := make(map[int]int)

	for _, todo := range todos {
		id, ok := matcher.Match(todo.Label)
		if !ok || id <= 0 {
			continue
		}

		i, seen := index[id]
		if !seen {
			i = len(groups)
			index[id] = i
			groups = append(groups, IssueGroup{IssueID: id})
		}
		groups[i].Todos = append(groups[i].Todos, todo)
	}

	return groups
}
