package hashx

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestSha256Hex(t *testing.T) {
	c := qt.New(t)
	c.Assert(Sha256Hex([]byte("")), qt.Equals, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
}

func writeTree(c *qt.C, root string, files map[string]string) {
	for name, body := range files {
		p := filepath.Join(root, name)
		c.Assert(os.MkdirAll(filepath.Dir(p), 0o755), qt.IsNil)
		c.Assert(os.WriteFile(p, []byte(body), 0o644), qt.IsNil)
	}
}

func TestTreeDigest(t *testing.T) {
	c := qt.New(t)

	files := map[string]string{"index.html": "<h1>hi</h1>", "js/script.js": "console.log(1)"}
	a, b := c.TempDir(), c.TempDir()
	writeTree(c, a, files)
	writeTree(c, b, files)

	da, err := TreeDigest(a)
	c.Assert(err, qt.IsNil)
	db, err := TreeDigest(b)
	c.Assert(err, qt.IsNil)
	c.Assert(da, qt.Equals, db)

	writeTree(c, b, map[string]string{"js/script.js": "console.log(2)"})
	db, err = TreeDigest(b)
	c.Assert(err, qt.IsNil)
	c.Assert(da, qt.Not(qt.Equals), db)

	_, err = TreeDigest(filepath.Join(a, "missing"))
	c.Assert(err, qt.Not(qt.IsNil))
}
