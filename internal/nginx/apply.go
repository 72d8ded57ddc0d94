package nginx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sitedeploy/internal/util/execx"
)

func (m *Manager) TestConfig(ctx context.Context) error {
	res, err := m.run.Run(ctx, execx.Command("docker", "exec", m.Container, "nginx", "-t").WithTimeout(30*time.Second))
	if err != nil {
		// nginx prints most diagnostics on stderr even on success
		if msg := strings.TrimSpace(res.Stderr); msg != "" {
			return fmt.Errorf("%w\n%s", err, msg)
		}
		return err
	}
	return nil
}
