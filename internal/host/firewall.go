package host

import (
	"context"
	"fmt"

	"sitedeploy/internal/util/execx"
)

// FirewallRules is the ufw sequence applied by EnsureFirewall. It starts
// with a full reset, so any rule added by hand is lost.
var FirewallRules = [][]string{
	{"--force", "reset"},
	{"default", "deny", "incoming"},
	{"default", "allow", "outgoing"},
	{"allow", "ssh"},
	{"allow", "80/tcp"},
	{"allow", "443/tcp"},
	{"--force", "enable"},
}

func (h *Host) EnsureFirewall(ctx context.Context) error {
	for _, args := range FirewallRules {
		c := execx.Command("ufw", args...)
		if err := h.exec(ctx, c); err != nil {
			return fmt.Errorf("firewall: %w", err)
		}
	}
	return nil
}
