package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"
)

const gitTimeout = 10 * time.Second

// Layout holds the metadata roots git reports for a directory.
type Layout struct {
	CommonDir string // shared metadata dir, e.g. /repo/.git
	GitDir    string // metadata dir of the active tree, e.g. /repo/.git/worktrees/feature
	TopLevel  string // top of the active working tree
}

// InWorktree reports whether the active tree is a linked worktree rather than the main one.
func (l Layout) InWorktree() bool {
	if l.CommonDir == "" || l.GitDir == "" || l.CommonDir == ".git" {
		return false
	}
	return filepath.Clean(l.CommonDir) != filepath.Clean(l.GitDir)
}

// SharedRoot is the main working tree that owns CommonDir.
func (l Layout) SharedRoot() string {
	return filepath.Dir(filepath.Clean(l.CommonDir))
}

// Repository is the read-only view of version control the handlers rely on.
type Repository interface {
	Layout(ctx context.Context, dir string) (Layout, error)
	CurrentBranch(ctx context.Context, dir string) (string, error)
}

// Git shells out to the git binary.
type Git struct {
	Binary  string
	Timeout time.Duration
}

func NewGit() *Git {
	return &Git{Binary: "git", Timeout: gitTimeout}
}

func (g *Git) Layout(ctx context.Context, dir string) (Layout, error) {
	out, err := g.run(ctx, dir, "rev-parse", "--git-common-dir", "--git-dir", "--show-toplevel")
	if err != nil {
		return Layout{}, err
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 3 {
		return Layout{}, tgErrors.Collaborator(fmt.Sprintf("unexpected rev-parse output %q", out))
	}

	return Layout{
		CommonDir: absolute(dir, lines[0]),
		GitDir:    absolute(dir, lines[1]),
		TopLevel:  absolute(dir, lines[2]),
	}, nil
}

// CurrentBranch returns the checked-out branch name, or "" on a detached HEAD.
func (g *Git) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, dir, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	binary := g.Binary
	if binary == "" {
		binary = "git"
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = gitTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", classify(args, string(out), err)
	}
	return string(out), nil
}

func classify(args []string, output string, err error) error {
	msg := strings.TrimSpace(output)
	if strings.Contains(strings.ToLower(msg), "not a git repository") {
		return tgErrors.WrapWithCategory(err, msg, tgErrors.ErrNotRepository)
	}
	if msg == "" {
		msg = "git " + strings.Join(args, " ")
	}
	return tgErrors.WrapWithCategory(err, msg, tgErrors.ErrCollaborator)
}

func absolute(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	joined := filepath.Join(base, path)
	if abs, err := filepath.Abs(joined); err == nil {
		return abs
	}
	return joined
}
