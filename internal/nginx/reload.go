package nginx

import (
	"context"
	"time"

	"sitedeploy/internal/util/execx"
)

// Reloader makes the running proxy pick up new config and certificates.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ExecReloader runs `nginx -s reload` inside the proxy container.
type ExecReloader struct {
	run       execx.Runner
	container string
}

func NewExecReloader(run execx.Runner, container string) *ExecReloader {
	return &ExecReloader{run: run, container: container}
}

func (r *ExecReloader) Reload(ctx context.Context) error {
	_, err := r.run.Run(ctx, execx.Command("docker", "exec", r.container, "nginx", "-s", "reload").WithTimeout(30*time.Second))
	return err
}
