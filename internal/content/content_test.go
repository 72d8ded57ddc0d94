package content

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"sitedeploy/internal/util"
	"sitedeploy/internal/util/execx"
)

// fakeClone makes "git clone" materialize files into its destination
// argument.
func fakeClone(rec *execx.Recorder, files map[string]string) {
	rec.On("git clone", func(c execx.Cmd) (execx.Result, error) {
		dst := c.Args[len(c.Args)-1]
		for name, body := range files {
			p := filepath.Join(dst, filepath.FromSlash(name))
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return execx.Result{}, err
			}
			if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
				return execx.Result{}, err
			}
		}
		return execx.Result{}, nil
	})
}

func newTestSyncer(c *qt.C, rec *execx.Recorder) *Syncer {
	root := filepath.Join(c.TempDir(), "site")
	return NewSyncer(rec, slog.New(slog.NewTextHandler(io.Discard, nil)),
		Source{Repo: "https://example.com/site.git", Branch: "main", ContentDir: "src"},
		root, filepath.Join(root, "src"), filepath.Join(c.TempDir(), "staging"))
}

func writeTree(c *qt.C, root string, files map[string]string) {
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		c.Assert(os.MkdirAll(filepath.Dir(p), 0o755), qt.IsNil)
		c.Assert(os.WriteFile(p, []byte(body), 0o644), qt.IsNil)
	}
}

func assertStagingEmpty(c *qt.C, s *Syncer) {
	entries, err := os.ReadDir(s.StagingRoot)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 0)
}

func TestReplaceIsTotal(t *testing.T) {
	c := qt.New(t)
	rec := execx.NewRecorder()
	fakeClone(rec, map[string]string{
		"README.md":        "not deployed",
		"src/index.html":   "v2",
		"src/css/site.css": "body{}",
	})
	s := newTestSyncer(c, rec)
	writeTree(c, s.Target, map[string]string{
		"index.html":     "v1",
		"old/stale.html": "gone",
	})

	n, err := s.Replace(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)

	files, err := util.ListFiles(s.Target)
	c.Assert(err, qt.IsNil)
	c.Assert(files, qt.DeepEquals, []string{"css/site.css", "index.html"})
	b, err := os.ReadFile(filepath.Join(s.Target, "index.html"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(b), qt.Equals, "v2")

	c.Assert(util.PathExists(s.Target+".new"), qt.IsFalse)
	c.Assert(util.PathExists(s.Target+".old"), qt.IsFalse)
	assertStagingEmpty(c, s)

	call := rec.Calls()[0]
	c.Assert(call.Args[:6], qt.DeepEquals, []string{"clone", "--depth", "1", "--branch", "main", "https://example.com/site.git"})
	c.Assert(call.Env, qt.DeepEquals, []string{"GIT_TERMINAL_PROMPT=0"})
}

func TestReplaceWithoutContentKeepsOldTree(t *testing.T) {
	c := qt.New(t)
	rec := execx.NewRecorder()
	fakeClone(rec, map[string]string{"README.md": "no src here"})
	s := newTestSyncer(c, rec)
	writeTree(c, s.Target, map[string]string{"index.html": "v1"})

	_, err := s.Replace(context.Background())
	c.Assert(errors.Is(err, ErrNoContent), qt.IsTrue)

	b, err := os.ReadFile(filepath.Join(s.Target, "index.html"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(b), qt.Equals, "v1")
	assertStagingEmpty(c, s)
}

func TestReplaceCloneFailure(t *testing.T) {
	c := qt.New(t)
	rec := execx.NewRecorder().Fail("git clone", 128, "fatal: repository not found")
	s := newTestSyncer(c, rec)
	writeTree(c, s.Target, map[string]string{"index.html": "v1"})

	_, err := s.Replace(context.Background())
	c.Assert(err, qt.ErrorMatches, `git clone: command failed \(exit 128\): .*repository not found`)
	c.Assert(util.PathExists(filepath.Join(s.Target, "index.html")), qt.IsTrue)
	assertStagingEmpty(c, s)
}

func TestReplaceTakesContentFromCheckout(t *testing.T) {
	c := qt.New(t)
	rec := execx.NewRecorder()
	s := newTestSyncer(c, rec)
	rec.On("git clone", func(cmd execx.Cmd) (execx.Result, error) {
		dst := cmd.Args[len(cmd.Args)-1]
		// A sibling of the checkout inside the staging dir is not content.
		decoy := filepath.Join(filepath.Dir(dst), "src", "decoy.html")
		for p, body := range map[string]string{
			filepath.Join(dst, "src", "index.html"): "from repo",
			decoy:                                   "not deployed",
		} {
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return execx.Result{}, err
			}
			if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
				return execx.Result{}, err
			}
		}
		return execx.Result{}, nil
	})

	n, err := s.Replace(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)
	files, err := util.ListFiles(s.Target)
	c.Assert(err, qt.IsNil)
	c.Assert(files, qt.DeepEquals, []string{"index.html"})

	dst := rec.Calls()[0].Args[len(rec.Calls()[0].Args)-1]
	c.Assert(filepath.Base(dst), qt.Equals, "repo")
	c.Assert(filepath.Dir(filepath.Dir(dst)), qt.Equals, s.StagingRoot)
	assertStagingEmpty(c, s)
}

func TestAcquireClonesIntoFreshRoot(t *testing.T) {
	c := qt.New(t)
	rec := execx.NewRecorder()
	fakeClone(rec, map[string]string{"src/index.html": "hello"})
	s := newTestSyncer(c, rec)

	res, err := s.Acquire(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(res, qt.DeepEquals, Result{Method: "clone", Files: 1})
}

func TestAcquirePullsExistingCheckout(t *testing.T) {
	c := qt.New(t)
	rec := execx.NewRecorder()
	s := newTestSyncer(c, rec)
	c.Assert(os.MkdirAll(filepath.Join(s.Root, ".git"), 0o755), qt.IsNil)
	writeTree(c, s.Target, map[string]string{"index.html": "v1"})

	res, err := s.Acquire(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(res.Method, qt.Equals, "pull")
	c.Assert(rec.Lines(), qt.DeepEquals, []string{"git -C " + s.Root + " pull origin main"})
}

func TestCleanupRefusesOutsideStaging(t *testing.T) {
	c := qt.New(t)
	s := newTestSyncer(c, execx.NewRecorder())
	c.Assert(os.MkdirAll(s.StagingRoot, 0o755), qt.IsNil)

	outside := c.TempDir()
	c.Assert(s.cleanup(outside), qt.ErrorMatches, `refusing to remove .*: outside staging root .*`)
	c.Assert(s.cleanup(s.StagingRoot), qt.ErrorMatches, `refusing to remove .*`)
	c.Assert(s.cleanup(filepath.Join(s.StagingRoot, "..", "x")), qt.ErrorMatches, `refusing to remove .*`)
	c.Assert(util.DirExists(outside), qt.IsTrue)

	inside := filepath.Join(s.StagingRoot, "sitedeploy-1")
	c.Assert(os.MkdirAll(inside, 0o755), qt.IsNil)
	c.Assert(s.cleanup(inside), qt.IsNil)
	c.Assert(util.PathExists(inside), qt.IsFalse)
}
