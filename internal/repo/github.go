package repo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/util"
)

const (
	// DefaultAPIBase is the GitHub REST endpoint
	DefaultAPIBase = "https://api.github.com"

	// UserAgent identifies this application to GitHub
	UserAgent = "pbench (https://github.com/proteobench/benchcore)"

	// maxArchiveSize caps the downloaded archive
	maxArchiveSize = 256 << 20
)

// Config configures a GitHub client. Zero values fall back to the
// public Proteobench repositories.
type Config struct {
	Remote Remote
	// ArchiveURL serves the archive as one JSON array. When empty the
	// public repository is cloned into ArchiveDir instead.
	ArchiveURL string
	ArchiveDir string
	// SubmitURL overrides the clone and push URL of the fork
	SubmitURL  string
	APIBase    string
	HTTPClient *http.Client
	Retry      *util.RetryConfig
	Git        *Git
}

// GitHub is the Client used against github.com
type GitHub struct {
	cfg  Config
	git  *Git
	http *http.Client
}

var _ Client = (*GitHub)(nil)

// NewGitHub creates a client from cfg
func NewGitHub(cfg Config) *GitHub {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Retry == nil {
		cfg.Retry = util.ArchiveRetryConfig()
	}
	if cfg.SubmitURL == "" {
		cfg.SubmitURL = cfg.Remote.BotURL()
	}
	g := cfg.Git
	if g == nil {
		g = NewGit()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &GitHub{cfg: cfg, git: g, http: hc}
}

// FetchArchive downloads the public archive. The caller's context bounds
// the whole fetch, retries included.
func (c *GitHub) FetchArchive(ctx context.Context) (*datapoint.Archive, error) {
	if c.cfg.ArchiveURL == "" {
		return c.fetchByClone(ctx)
	}

	b, err := util.RetryWithBackoff(ctx, c.cfg.Retry, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, c.cfg.ArchiveURL)
	}, "archive fetch")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive: %w", err)
	}
	util.DebugLog("Fetched %d bytes of archive from %s", len(b), c.cfg.ArchiveURL)
	return datapoint.ParseArchive(b)
}

func (c *GitHub) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 8192))
		return nil, &util.StatusError{Code: resp.StatusCode, URL: target}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxArchiveSize))
}

func (c *GitHub) fetchByClone(ctx context.Context) (*datapoint.Archive, error) {
	dir := c.cfg.ArchiveDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "pbench-"+c.cfg.Remote.repoName())
	}
	if err := c.git.Clone(ctx, c.cfg.Remote.PublicURL(), dir); err != nil {
		return nil, fmt.Errorf("failed to clone archive: %w", err)
	}
	if err := c.git.Fetch(ctx, dir); err != nil {
		util.WarnLog("Using archive clone in %s without update: %v", dir, err)
	}
	return datapoint.ReadDir(dir)
}

// Clone makes a working tree of the submission fork in dir. Credentials
// are not needed for the clone; they are injected for the push only.
func (c *GitHub) Clone(ctx context.Context, dir string) error {
	if err := c.git.Clone(ctx, c.cfg.SubmitURL, dir); err != nil {
		return util.NewKindError(util.KindSubmission, "clone", dir, err)
	}
	return nil
}

// OpenPR writes pr.Files into the working tree on a new branch, pushes
// the branch to the fork and opens a pull request against its base
func (c *GitHub) OpenPR(ctx context.Context, pr PullRequest, creds Credentials) (*PrHandle, error) {
	if creds.Token == "" {
		return nil, util.Errorf(util.KindSubmission, "open pull request", "token", "a token is required to submit")
	}
	if creds.User == "" {
		creds.User = c.cfg.Remote.BotUser
	}

	if err := c.git.Fetch(ctx, pr.Dir); err != nil {
		return nil, submissionError("fetch", err, creds)
	}
	if err := c.git.CreateBranch(ctx, pr.Dir, pr.Branch); err != nil {
		return nil, submissionError("create branch", err, creds)
	}
	if err := writeFiles(pr.Dir, pr.Files); err != nil {
		return nil, submissionError("write files", err, creds)
	}
	if err := c.git.CommitAll(ctx, pr.Dir, pr.Title, pr.Body); err != nil {
		return nil, submissionError("commit", err, creds)
	}
	if err := c.git.Push(ctx, pr.Dir, withToken(c.cfg.SubmitURL, creds), pr.Branch); err != nil {
		return nil, submissionError("push", err, creds)
	}

	handle, err := c.createPull(ctx, pr, creds)
	if err != nil {
		return nil, submissionError("create pull request", err, creds)
	}
	util.SuccessLog("Opened pull request #%d: %s", handle.Number, handle.URL)
	return handle, nil
}

func writeFiles(dir string, files map[string][]byte) error {
	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if !strings.HasPrefix(p, filepath.Clean(dir)+string(filepath.Separator)) {
			return fmt.Errorf("file %s escapes the working tree", name)
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(p, data, 0644); err != nil {
			return err
		}
	}
	return nil
}

func (c *GitHub) createPull(ctx context.Context, pr PullRequest, creds Credentials) (*PrHandle, error) {
	base, err := url.Parse(strings.TrimRight(c.cfg.APIBase, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid API base %q: %w", c.cfg.APIBase, err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	client := github.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token})))
	client.BaseURL = base
	client.UserAgent = UserAgent

	created, _, err := client.PullRequests.Create(ctx, c.cfg.Remote.BotOrg, c.cfg.Remote.repoName(), &github.NewPullRequest{
		Title: github.String(pr.Title),
		Body:  github.String(pr.Body),
		Head:  github.String(c.cfg.Remote.Head(pr.Branch)),
		Base:  github.String(c.cfg.Remote.Base),
	})
	if err != nil {
		return nil, fmt.Errorf("pull request failed: %w", err)
	}

	handle := &PrHandle{Number: created.GetNumber()}
	handle.URL = c.cfg.Remote.PullURL(handle.Number)
	return handle, nil
}
