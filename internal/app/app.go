package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"sitedeploy/internal/backup"
	"sitedeploy/internal/certs"
	"sitedeploy/internal/config"
	"sitedeploy/internal/content"
	"sitedeploy/internal/health"
	"sitedeploy/internal/host"
	"sitedeploy/internal/nginx"
	"sitedeploy/internal/stack"
	"sitedeploy/internal/store"
	"sitedeploy/internal/util/execx"
)

var ErrNotInstalled = errors.New("no installation found (run provision first)")

// Deps are the collaborators App talks to. Only Runner is required.
type Deps struct {
	Runner     execx.Runner
	Logger     *slog.Logger
	Store      store.RunStore         // nil disables the run journal
	Containers health.ContainerLister // nil disables container status
	Reloader   nginx.Reloader         // nil reloads via docker exec
	Host       *host.Host
	Prober     *health.Prober
	Out        io.Writer
}

// App wires the provisioning and update workflows.
// Keep it transport-agnostic (no flag parsing, no signal handling).
type App struct {
	cfg   *config.Config
	paths config.Paths

	run        execx.Runner
	log        *slog.Logger
	st         store.RunStore
	containers health.ContainerLister
	host       *host.Host
	prober     *health.Prober
	ng         *nginx.Manager
	certs      *certs.CertbotManager
	content    *content.Syncer
	backups    *backup.Manager
	out        io.Writer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg *config.Config, d Deps) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg is nil")
	}
	if d.Runner == nil {
		return nil, fmt.Errorf("runner is nil")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Host == nil {
		d.Host = host.New(d.Runner, d.Logger)
	}
	if d.Prober == nil {
		d.Prober = health.NewProber(cfg.Health.Timeout)
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}

	paths := cfg.ResolvePaths()
	proxy := nginx.ContainerName(cfg.Site.Project, stack.ServiceNginx)

	return &App{
		cfg:        cfg,
		paths:      paths,
		run:        d.Runner,
		log:        d.Logger,
		st:         d.Store,
		containers: d.Containers,
		host:       d.Host,
		prober:     d.Prober,
		ng:         nginx.NewManager(paths.NginxConf, paths.NginxBackupDir, proxy, d.Runner, d.Reloader),
		certs:      certs.NewCertbotManager(d.Runner, paths.ComposeFile, stack.ServiceCertbot, cfg.Site.Email),
		content: content.NewSyncer(d.Runner, d.Logger, content.Source{
			Repo:       cfg.Source.Repo,
			Branch:     cfg.Source.Branch,
			ContentDir: cfg.Source.ContentDir,
		}, paths.Root, paths.ContentDir, paths.StagingRoot),
		backups: backup.NewManager(paths.BackupDir, cfg.Backups.Keep),
		out:     d.Out,
		now:     time.Now,
		sleep:   sleepCtx,
	}, nil
}

func (a *App) Paths() config.Paths { return a.paths }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *App) compose(args ...string) execx.Cmd {
	base := []string{"compose", "-f", a.paths.ComposeFile}
	return execx.Command("docker", append(base, args...)...).
		InDir(a.paths.Root).
		WithTimeout(15 * time.Minute)
}

func (a *App) exec(ctx context.Context, c execx.Cmd) (execx.Result, error) {
	a.log.Debug("exec", "cmd", c.String())
	return a.run.Run(ctx, c)
}

func (a *App) checkInstallation() error {
	if !a.paths.Installed() {
		return fmt.Errorf("%w: %s missing", ErrNotInstalled, a.paths.ComposeFile)
	}
	return nil
}
