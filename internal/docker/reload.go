package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/errdefs"
)

// SignalReloader triggers nginx reloads by sending SIGHUP to its
// container, so no exec session is needed.
type SignalReloader struct {
	client    *Client
	container string
}

func NewSignalReloader(c *Client, container string) (*SignalReloader, error) {
	container = strings.TrimSpace(container)
	if container == "" {
		return nil, fmt.Errorf("container name required")
	}
	if c == nil {
		return nil, fmt.Errorf("docker client required")
	}
	return &SignalReloader{client: c, container: container}, nil
}

func (r *SignalReloader) Reload(ctx context.Context) error {
	if err := r.client.inner.ContainerKill(ctx, r.container, "HUP"); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("nginx container %s not found", r.container)
		}
		return fmt.Errorf("signal %s: %w", r.container, err)
	}
	return nil
}
