package host

import (
	"fmt"
	"os"
	"path/filepath"

	"sitedeploy/internal/config"
	"sitedeploy/internal/util"
)

// EnsureLayout creates the install directory tree and empty nginx log
// files so the proxy can open them on first start. Existing content is
// left alone.
func EnsureLayout(p config.Paths) error {
	for _, d := range p.Dirs() {
		if err := util.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", d, err)
		}
	}
	for _, name := range []string{"access.log", "error.log"} {
		if err := touchFile(filepath.Join(p.NginxLogsDir, name), 0o640); err != nil {
			return err
		}
	}
	return nil
}

func touchFile(path string, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("touch %s: %w", path, err)
	}
	return f.Close()
}
