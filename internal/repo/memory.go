package repo

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/util"
)

// Memory is an in-process Client. It serves a fixed archive and records
// pull requests instead of pushing them.
type Memory struct {
	mu       sync.Mutex
	archive  *datapoint.Archive
	remote   Remote
	pulls    []PullRequest
	next     int
	FetchErr error
	PushErr  error
}

var _ Client = (*Memory)(nil)

// NewMemory returns a client serving archive for remote
func NewMemory(remote Remote, archive *datapoint.Archive) *Memory {
	if archive == nil {
		archive = datapoint.NewArchive()
	}
	return &Memory{archive: archive, remote: remote, next: 1}
}

func (m *Memory) FetchArchive(ctx context.Context) (*datapoint.Archive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.archive, nil
}

// Clone creates dir and writes the archive datapoints into it
func (m *Memory) Clone(ctx context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return util.NewKindError(util.KindSubmission, "clone", dir, err)
	}
	for _, dp := range m.archive.Points {
		if _, err := datapoint.WriteFile(dir, dp); err != nil {
			return util.NewKindError(util.KindSubmission, "clone", dir, err)
		}
	}
	return nil
}

func (m *Memory) OpenPR(ctx context.Context, pr PullRequest, creds Credentials) (*PrHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if creds.Token == "" {
		return nil, util.Errorf(util.KindSubmission, "open pull request", "token", "a token is required to submit")
	}
	if m.PushErr != nil {
		return nil, submissionError("push", m.PushErr, creds)
	}
	for _, p := range m.pulls {
		if p.Branch == pr.Branch {
			return nil, util.Errorf(util.KindSubmission, "create branch", pr.Branch, "branch already exists: %w", util.ErrDuplicate)
		}
	}
	if err := writeFiles(pr.Dir, pr.Files); err != nil {
		return nil, submissionError("write files", err, creds)
	}

	m.pulls = append(m.pulls, pr)
	n := m.next
	m.next++
	return &PrHandle{Number: n, URL: m.remote.PullURL(n)}, nil
}

// Pulls returns the recorded pull requests
func (m *Memory) Pulls() []PullRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PullRequest(nil), m.pulls...)
}

func (m *Memory) String() string {
	return fmt.Sprintf("memory archive of %s (%d points)", m.remote.ModuleID, m.archive.Len())
}
