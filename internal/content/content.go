// Package content fetches the site's content tree from git and swaps it
// into the install root.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sitedeploy/internal/util"
	"sitedeploy/internal/util/execx"
)

var ErrNoContent = errors.New("content directory missing from source")

const cloneTimeout = 10 * time.Minute

// Source is the remote the content tree is cloned from.
type Source struct {
	Repo       string
	Branch     string
	ContentDir string // subtree of the repository that gets deployed
}

// Syncer acquires content for one install root.
type Syncer struct {
	Src         Source
	Root        string // install root
	Target      string // usually <Root>/src
	StagingRoot string

	run execx.Runner
	log *slog.Logger
}

func NewSyncer(run execx.Runner, log *slog.Logger, src Source, root, target, stagingRoot string) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{Src: src, Root: root, Target: target, StagingRoot: stagingRoot, run: run, log: log}
}

// Result describes one acquisition.
type Result struct {
	Method string // "pull" or "clone"
	Files  int
}

// Acquire brings content in for a first install. A root that is itself a
// git checkout is pulled in place; otherwise the repository is cloned to
// staging and its content subtree copied to Target.
func (s *Syncer) Acquire(ctx context.Context) (Result, error) {
	if util.DirExists(filepath.Join(s.Root, ".git")) {
		c := execx.Command("git", "-C", s.Root, "pull", "origin", s.Src.Branch).
			WithEnv("GIT_TERMINAL_PROMPT=0").
			WithTimeout(cloneTimeout)
		if _, err := s.run.Run(ctx, c); err != nil {
			return Result{}, fmt.Errorf("git pull: %w", err)
		}
		files, _ := util.ListFiles(s.Target)
		return Result{Method: "pull", Files: len(files)}, nil
	}
	n, err := s.Replace(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Method: "clone", Files: n}, nil
}

// Replace clones a fresh copy and swaps Target for its content subtree.
// Nothing under Target is touched until the clone has produced content.
// It returns the number of files deployed.
func (s *Syncer) Replace(ctx context.Context) (int, error) {
	staging, checkout, err := s.clone(ctx)
	if staging != "" {
		defer func() {
			if cerr := s.cleanup(staging); cerr != nil {
				s.log.Warn("staging cleanup failed", "dir", staging, "err", cerr)
			}
		}()
	}
	if err != nil {
		return 0, err
	}

	subtree := filepath.Join(checkout, s.Src.ContentDir)
	if !util.DirExists(subtree) {
		return 0, fmt.Errorf("%w: %s/%s", ErrNoContent, s.Src.Repo, s.Src.ContentDir)
	}
	if err := swapTree(subtree, s.Target); err != nil {
		return 0, err
	}
	files, err := util.ListFiles(s.Target)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// clone checks the repository out under a fresh staging dir. It returns
// the staging dir, which the caller removes, and the checkout inside it.
func (s *Syncer) clone(ctx context.Context) (staging, checkout string, err error) {
	if err := util.MkdirAll(s.StagingRoot, 0o755); err != nil {
		return "", "", err
	}
	staging, err = os.MkdirTemp(s.StagingRoot, "sitedeploy-")
	if err != nil {
		return "", "", fmt.Errorf("create staging dir: %w", err)
	}
	dst := filepath.Join(staging, "repo")
	c := execx.Command("git", "clone", "--depth", "1", "--branch", s.Src.Branch, s.Src.Repo, dst).
		WithEnv("GIT_TERMINAL_PROMPT=0").
		WithTimeout(cloneTimeout)
	s.log.Debug("exec", "cmd", c.String())
	if _, err := s.run.Run(ctx, c); err != nil {
		return staging, "", fmt.Errorf("git clone: %w", err)
	}
	return staging, dst, nil
}

// swapTree copies src next to dst, then replaces dst with the copy. A
// failure while copying leaves dst intact.
func swapTree(src, dst string) error {
	next := dst + ".new"
	if err := os.RemoveAll(next); err != nil {
		return fmt.Errorf("clear %s: %w", next, err)
	}
	if err := util.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := util.CopyTree(src, next); err != nil {
		_ = os.RemoveAll(next)
		return fmt.Errorf("stage content: %w", err)
	}
	prev := dst + ".old"
	if err := os.RemoveAll(prev); err != nil {
		return fmt.Errorf("clear %s: %w", prev, err)
	}
	if util.DirExists(dst) {
		if err := os.Rename(dst, prev); err != nil {
			return fmt.Errorf("move old content aside: %w", err)
		}
	}
	if err := os.Rename(next, dst); err != nil {
		_ = os.Rename(prev, dst)
		return fmt.Errorf("install content: %w", err)
	}
	if err := os.RemoveAll(prev); err != nil {
		return fmt.Errorf("remove old content: %w", err)
	}
	return nil
}

// cleanup removes a staging dir, refusing anything outside StagingRoot.
func (s *Syncer) cleanup(dir string) error {
	root, err := filepath.Abs(s.StagingRoot)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s: outside staging root %s", dir, root)
	}
	return os.RemoveAll(abs)
}
