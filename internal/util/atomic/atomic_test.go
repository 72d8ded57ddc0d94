package atomic

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestWriteFileAtomicCreatesParents(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(c.TempDir(), "a", "b", "site.conf")
	c.Assert(WriteFileAtomic(path, []byte("server {}\n"), 0o644), qt.IsNil)

	got, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "server {}\n")

	entries, err := os.ReadDir(filepath.Dir(path))
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 1) // no temp leftovers
}

func TestWriteFileIfChanged(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(c.TempDir(), "renew.sh")

	changed, err := WriteFileIfChanged(path, []byte("#!/bin/sh\n"), 0o755)
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsTrue)

	changed, err = WriteFileIfChanged(path, []byte("#!/bin/sh\n"), 0o755)
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsFalse)

	// Same bytes, different mode: rewritten.
	changed, err = WriteFileIfChanged(path, []byte("#!/bin/sh\n"), 0o700)
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsTrue)
	st, err := os.Stat(path)
	c.Assert(err, qt.IsNil)
	c.Assert(st.Mode().Perm(), qt.Equals, os.FileMode(0o700))

	changed, err = WriteFileIfChanged(path, []byte("#!/bin/bash\n"), 0o700)
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsTrue)
}
