// Package platform talks to the issue tracker and source host: viewing the
// work item, posting comments, filing sub-issues and opening pull requests.
package platform

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Limits on text sent to the platform.
const (
	MaxTitleLength   = 100
	MaxSectionLength = 500
	MaxCommentLength = 5000
)

// ErrIssueLimitReached is returned when a run has filed its quota of
// sub-issues.
var ErrIssueLimitReached = errors.New("issue creation limit reached")

// Issue is a work item as read from the tracker.
type Issue struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	State  string   `json:"state"`
	Labels []string `json:"labels"`
	URL    string   `json:"url,omitempty"`
}

// IssueRequest describes a sub-issue to file.
type IssueRequest struct {
	Title     string
	Body      string
	Labels    []string
	ParentRef string // parent issue number, linked from the body
}

// PRRequest describes a pull request to open.
type PRRequest struct {
	Title        string
	Body         string
	SourceBranch string
	TargetBranch string
}

// Client is the tracker boundary. Create and comment calls return an
// identifier extracted from whatever the backend printed or returned.
type Client interface {
	ViewIssue(ctx context.Context, id string) (*Issue, error)
	CreateIssue(ctx context.Context, req IssueRequest) (string, error)
	CommentIssue(ctx context.Context, id, body string) (string, error)
	CreatePullRequest(ctx context.Context, req PRRequest) (string, error)
}

var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/pull/(\d+)`),
	regexp.MustCompile(`/merge_requests/(\d+)`),
	regexp.MustCompile(`/issues/(\d+)`),
	regexp.MustCompile(`(?:^|\s)!(\d+)\b`),
	regexp.MustCompile(`#(\d+)\b`),
}

// ExtractID finds a numeric identifier in backend output: a /pull/N,
// /merge_requests/N or /issues/N URL, a !N merge-request ref, or #N.
func ExtractID(text string) (string, bool) {
	for _, re := range idPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

var issueIDPattern = regexp.MustCompile(`^\d+$`)

// ValidateIssueID accepts numeric identifiers only.
func ValidateIssueID(id string) error {
	if !issueIDPattern.MatchString(id) {
		return fmt.Errorf("invalid issue ID: %q. Must be numeric", id)
	}
	return nil
}

var shellMeta = regexp.MustCompile("[;&|`$(){}\\[\\]<>\\\\'\"!#*?~\\n\\r]")

// Sanitize removes shell metacharacters and newlines.
func Sanitize(s string) string {
	return shellMeta.ReplaceAllString(s, "")
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// StripAttribution removes every case-insensitive match of patterns from
// s. Patterns that fail to compile are matched literally.
func StripAttribution(s string, patterns []string) string {
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(p))
		}
		s = re.ReplaceAllString(s, "")
	}
	return s
}

func withParent(body, parent string) string {
	if parent == "" {
		return body
	}
	return strings.TrimRight(body, "\n") + fmt.Sprintf("\n*Parent issue: #%s*", parent)
}
