package nginx

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"sitedeploy/internal/util/atomic"
)

// Publish writes a rendered config to ConfPath.
// It creates/updates a backup file when the live file exists.
// It returns changed=false if the live file already matches data.
func (m *Manager) Publish(data []byte) (bool, error) {
	if len(data) == 0 {
		return false, fmt.Errorf("refusing to publish empty config")
	}

	live, err := os.ReadFile(m.ConfPath)
	switch {
	case err == nil && bytes.Equal(live, data):
		return false, nil
	case err == nil:
		if err := atomic.WriteFileAtomic(m.backupPath(), live, 0o644); err != nil {
			return false, fmt.Errorf("write backup: %w", err)
		}
	case !os.IsNotExist(err):
		return false, fmt.Errorf("read live %s: %w", m.ConfPath, err)
	}

	if err := atomic.WriteFileAtomic(m.ConfPath, data, 0o644); err != nil {
		return false, fmt.Errorf("publish %s: %w", m.ConfPath, err)
	}
	return true, nil
}

// Rollback restores the previous config from its backup. Without a
// backup there is nothing to go back to and the live file stays.
func (m *Manager) Rollback() error {
	old, err := os.ReadFile(m.backupPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read backup: %w", err)
	}
	return atomic.WriteFileAtomic(m.ConfPath, old, 0o644)
}

func (m *Manager) Reload(ctx context.Context) error {
	return m.reloader.Reload(ctx)
}

// PublishAndReload publishes data, validates it inside the running
// container when test is set, and reloads. A failed test or reload
// restores the previous config.
func (m *Manager) PublishAndReload(ctx context.Context, data []byte, test bool) (bool, error) {
	changed, err := m.Publish(data)
	if err != nil || !changed {
		return changed, err
	}

	if test {
		if err := m.TestConfig(ctx); err != nil {
			_ = m.Rollback()
			return true, fmt.Errorf("nginx -t failed (rolled back): %w", err)
		}
	}
	if err := m.Reload(ctx); err != nil {
		_ = m.Rollback()
		return true, fmt.Errorf("nginx reload failed (rolled back): %w", err)
	}
	return true, nil
}
