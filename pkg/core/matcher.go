package core

import (
	"regexp"
	"strconv"
	"strings"
)

// Matcher resolves TODO labels to issue numbers in a single repository.
type Matcher struct {
	repo   Repository
	label  *regexp.Regexp
	vanity []vanityURL
	logger Logger
}

type vanityURL struct {
	re  *regexp.Regexp
	idx int
}

// NewMatcher creates a Matcher for repo. Vanity patterns that fail to
// compile are logged as warnings and ignored.
func NewMatcher(repo Repository, conf Config, logger Logger) *Matcher {
	if logger == nil {
		logger = NopLogger()
	}

	m := &Matcher{
		repo: repo,
		label: regexp.MustCompile(
			`^((https?://)?` + regexp.QuoteMeta(repo.Host()) + `/(.+)/(.+)/issues/|#?)([0-9]+)$`,
		),
		logger: logger,
	}

	logger.Debugf("Vanity URLs: %v", conf.VanityURLs)

	for _, pattern := range conf.VanityURLs {
		re, err := regexp.Compile(pattern)
		if err != nil {
			logger.Warningf("error parsing vanity url regex %q: %v", pattern, err)
			continue
		}
		m.vanity = append(m.vanity, vanityURL{re: re, idx: re.SubexpIndex("id")})
	}

	return m
}

// Match returns the issue number referenced by label. The second result is
// false when the label doesn't reference an issue in this repository. The
// number is not range checked.
func (m *Matcher) Match(label string) (int, bool) {
	if match := m.label.FindStringSubmatch(strings.TrimSpace(label)); match != nil {
		owner, repo := match[3], match[4]
		// Links to other repositories are skipped.
		if (owner != "" || repo != "") && (owner != m.repo.Owner || repo != m.repo.Name) {
			return 0, false
		}
		return atoi(match[5])
	}

	for _, v := range m.vanity {
		if v.idx < 0 {
			continue
		}
		match := v.re.FindStringSubmatch(label)
		if match == nil || match[v.idx] == "" {
			continue
		}
		if id, ok := atoi(match[v.idx]); ok {
			return id, true
		}
	}

	return 0, false
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
