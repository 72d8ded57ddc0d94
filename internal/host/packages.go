package host

import (
	"context"
	"fmt"
)

// InstallPackages refreshes the apt index and installs pkgs.
func (h *Host) InstallPackages(ctx context.Context, pkgs []string) error {
	if err := h.exec(ctx, apt("update", "-y")); err != nil {
		return fmt.Errorf("apt update: %w", err)
	}
	if len(pkgs) == 0 {
		return nil
	}
	if err := h.exec(ctx, apt(append([]string{"install", "-y"}, pkgs...)...)); err != nil {
		return fmt.Errorf("apt install: %w", err)
	}
	return nil
}
