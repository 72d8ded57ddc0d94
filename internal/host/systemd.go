package host

import (
	"context"
	"fmt"
	"time"

	"sitedeploy/internal/util/execx"
)

func systemctl(ctx context.Context, h *Host, action, service string) error {
	c := execx.Command("systemctl", action, service).WithTimeout(30 * time.Second)
	if err := h.exec(ctx, c); err != nil {
		return fmt.Errorf("systemctl %s %s: %w", action, service, err)
	}
	return nil
}
