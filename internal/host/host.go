// Package host prepares an Ubuntu/Debian machine: privileges, packages,
// the Docker engine, the firewall and the renewal crontab entry.
package host

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"sitedeploy/internal/util/execx"
)

var ErrNotRoot = errors.New("must run as root (try sudo)")

// Host runs preparation commands through a Runner.
type Host struct {
	run execx.Runner
	log *slog.Logger

	// Overridable for tests.
	euid       func() int
	lookPath   func(string) (string, error)
	KeyringDir string
	SourceList string
	OSRelease  string
}

func New(run execx.Runner, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	return &Host{
		run:        run,
		log:        log,
		euid:       os.Geteuid,
		lookPath:   exec.LookPath,
		KeyringDir: "/etc/apt/keyrings",
		SourceList: "/etc/apt/sources.list.d/docker.list",
		OSRelease:  "/etc/os-release",
	}
}

// WithEUID replaces the effective uid lookup.
func (h *Host) WithEUID(f func() int) *Host {
	h.euid = f
	return h
}

// WithLookPath replaces the PATH lookup used to detect installed tools.
func (h *Host) WithLookPath(f func(string) (string, error)) *Host {
	h.lookPath = f
	return h
}

// CheckPrivileges fails with ErrNotRoot unless the effective uid is 0.
func (h *Host) CheckPrivileges() error {
	if h.euid() != 0 {
		return ErrNotRoot
	}
	return nil
}

const aptTimeout = 15 * time.Minute

func apt(args ...string) execx.Cmd {
	return execx.Command("apt-get", args...).
		WithEnv("DEBIAN_FRONTEND=noninteractive").
		WithTimeout(aptTimeout)
}

func (h *Host) exec(ctx context.Context, c execx.Cmd) error {
	h.log.Debug("exec", "cmd", c.String())
	_, err := h.run.Run(ctx, c)
	return err
}
