package nginx

import (
	"fmt"
	"os"
	"path/filepath"

	"sitedeploy/internal/util/execx"
)

// Manager owns the generated proxy config and talks to the running
// proxy container.
type Manager struct {
	ConfPath  string
	BackupDir string
	Container string

	run      execx.Runner
	reloader Reloader
}

func NewManager(confPath, backupDir, container string, run execx.Runner, reloader Reloader) *Manager {
	if reloader == nil {
		reloader = NewExecReloader(run, container)
	}
	return &Manager{
		ConfPath:  confPath,
		BackupDir: backupDir,
		Container: container,
		run:       run,
		reloader:  reloader,
	}
}

// EnsureLayout creates the config and backup directories.
// It does NOT write configs yet.
func (m *Manager) EnsureLayout() error {
	dirs := []string{
		filepath.Dir(m.ConfPath),
		m.BackupDir,
	}

	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", d, err)
		}
	}
	return nil
}

func (m *Manager) backupPath() string {
	return filepath.Join(m.BackupDir, filepath.Base(m.ConfPath)+".bak")
}
