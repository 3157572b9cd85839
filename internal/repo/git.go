package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultGitTimeout bounds a single git invocation
const DefaultGitTimeout = 2 * time.Minute

// Git runs the git command line in a working tree
type Git struct {
	Binary  string
	Timeout time.Duration
	// Identity used for commits made by this process
	Name  string
	Email string
}

// NewGit returns a runner using git from PATH
func NewGit() *Git {
	return &Git{
		Binary:  "git",
		Timeout: DefaultGitTimeout,
		Name:    "Proteobot",
		Email:   "proteobot@users.noreply.github.com",
	}
}

// run executes git in dir and returns trimmed stdout
func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.Binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("git %s: timeout after %v", args[0], g.Timeout)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Version returns the output of git --version
func (g *Git) Version(ctx context.Context) (string, error) {
	return g.run(ctx, "", "--version")
}

// IsRepository reports whether dir is the top of a git working tree
func (g *Git) IsRepository(ctx context.Context, dir string) bool {
	if _, err := os.Stat(dir); err != nil {
		return false
	}
	top, err := g.run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	want, _ := filepath.EvalSymlinks(abs)
	got, _ := filepath.EvalSymlinks(top)
	return want == got
}

// Clone makes a shallow clone of remote into dir. An existing working
// tree in dir is reused.
func (g *Git) Clone(ctx context.Context, remote, dir string) error {
	if g.IsRepository(ctx, dir) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return fmt.Errorf("failed to create clone parent: %w", err)
	}
	_, err := g.run(ctx, "", "clone", "--depth", "1", "--no-single-branch", strings.TrimRight(remote, "/"), dir)
	return err
}

// Fetch updates the remote refs of the working tree
func (g *Git) Fetch(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "fetch", "origin")
	return err
}

// CreateBranch creates branch at HEAD and checks it out
func (g *Git) CreateBranch(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "checkout", "-b", branch)
	return err
}

// CommitAll stages every change and commits it
func (g *Git) CommitAll(ctx context.Context, dir, subject, body string) error {
	if _, err := g.run(ctx, dir, "add", "-A"); err != nil {
		return err
	}
	args := []string{"-c", "user.name=" + g.Name, "-c", "user.email=" + g.Email, "commit", "-m", subject}
	if body != "" {
		args = append(args, "-m", body)
	}
	_, err := g.run(ctx, dir, args...)
	return err
}

// Push pushes branch to remote and sets it as upstream
func (g *Git) Push(ctx context.Context, dir, remote, branch string) error {
	_, err := g.run(ctx, dir, "push", "--set-upstream", remote, branch)
	return err
}
