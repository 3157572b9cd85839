// Package repo talks to the remote Git archive of a benchmark module:
// it fetches the public datapoints and turns a new datapoint into a pull
// request against the bot fork.
package repo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/util"
)

// Client is the remote archive of one module
type Client interface {
	// FetchArchive downloads the public datapoints
	FetchArchive(ctx context.Context) (*datapoint.Archive, error)
	// Clone acquires a working tree of the submission repository in dir
	Clone(ctx context.Context, dir string) error
	// OpenPR commits files on a new branch of the working tree, pushes it
	// and opens a pull request
	OpenPR(ctx context.Context, pr PullRequest, creds Credentials) (*PrHandle, error)
}

// Credentials authenticate the push and the pull-request API call
type Credentials struct {
	User  string
	Token string
}

// PullRequest describes one submission
type PullRequest struct {
	Dir    string            // working tree from Clone
	Branch string            // created from the checked out head
	Files  map[string][]byte // paths relative to Dir
	Title  string            // commit subject and PR title
	Body   string
}

// PrHandle identifies an opened pull request
type PrHandle struct {
	Number int    `json:"number"`
	URL    string `json:"html_url"`
}

// Remote names the repositories of a module. Host and the organisations
// can be overridden for mirrors.
type Remote struct {
	ModuleID  string
	Host      string
	PublicOrg string
	BotOrg    string
	BotUser   string
	Base      string
}

// DefaultRemote returns the GitHub repositories of moduleID
func DefaultRemote(moduleID string) Remote {
	return Remote{
		ModuleID:  moduleID,
		Host:      "github.com",
		PublicOrg: "Proteobench",
		BotOrg:    "Proteobot",
		BotUser:   "Proteobot",
		Base:      "master",
	}
}

func (r Remote) repoName() string {
	return "Results_" + r.ModuleID
}

// PublicRepo is owner/name of the public archive
func (r Remote) PublicRepo() string {
	return r.PublicOrg + "/" + r.repoName()
}

// BotRepo is owner/name of the submission fork
func (r Remote) BotRepo() string {
	return r.BotOrg + "/" + r.repoName()
}

// PublicURL is the anonymous clone URL of the public archive
func (r Remote) PublicURL() string {
	return fmt.Sprintf("https://%s/%s.git", r.Host, r.PublicRepo())
}

// BotURL is the anonymous clone URL of the submission fork
func (r Remote) BotURL() string {
	return fmt.Sprintf("https://%s/%s.git", r.Host, r.BotRepo())
}

// ArchiveURL is the raw results.json of the public archive
func (r Remote) ArchiveURL() string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/main/%s", r.PublicRepo(), datapoint.ArchiveFile)
}

// PullURL is the web page of pull request n on the fork
func (r Remote) PullURL(n int) string {
	return fmt.Sprintf("https://%s/%s/pull/%d", r.Host, r.BotRepo(), n)
}

// Head is the head ref of a pull request opened from branch
func (r Remote) Head(branch string) string {
	return r.BotUser + ":" + branch
}

// withToken injects credentials into an http(s) remote. Other remotes,
// such as local paths, are returned unchanged.
func withToken(remote string, creds Credentials) string {
	if creds.Token == "" {
		return remote
	}
	u, err := url.Parse(remote)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return remote
	}
	user := creds.User
	if user == "" {
		user = "x-access-token"
	}
	u.User = url.UserPassword(user, creds.Token)
	return u.String()
}

// redact removes the token from messages that may quote a remote URL
func redact(s string, creds Credentials) string {
	if creds.Token == "" {
		return s
	}
	return strings.ReplaceAll(s, creds.Token, "***")
}

func submissionError(op string, err error, creds Credentials) error {
	if creds.Token != "" && strings.Contains(err.Error(), creds.Token) {
		return util.Errorf(util.KindSubmission, op, "", "%s", redact(err.Error(), creds))
	}
	return util.NewKindError(util.KindSubmission, op, "", err)
}
