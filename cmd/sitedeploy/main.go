package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitedeploy/internal/app"
	"sitedeploy/internal/config"
	"sitedeploy/internal/docker"
	"sitedeploy/internal/nginx"
	"sitedeploy/internal/stack"
	"sitedeploy/internal/store"
	storesqlite "sitedeploy/internal/store/sqlite"
	"sitedeploy/internal/util/execx"
	"sitedeploy/internal/workflow"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	exitOK          = 0
	exitFatal       = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("sitedeploy", flag.ContinueOnError)
	cfgPath := fs.String("c", "/etc/sitedeploy/config.yaml", "Path to config.yaml")
	fs.Usage = usage
	if err := fs.Parse(argv); err != nil {
		return exitUsage
	}

	args := fs.Args()
	if len(args) == 0 {
		usage()
		return exitUsage
	}
	if args[0] == "version" {
		fmt.Printf("sitedeploy %s (built %s)\n", Version, BuildTime)
		return exitOK
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitFatal
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "provision":
		return cmdProvision(ctx, cfg, logger, args[1:])
	case "update":
		return cmdUpdate(ctx, cfg, logger, args[1:])
	case "renew":
		return cmdRenew(ctx, cfg, logger, args[1:])
	case "render":
		return cmdRender(cfg, logger, args[1:])
	case "history":
		return cmdHistory(cfg, logger, args[1:])
	case "backups":
		return cmdBackups(cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: sitedeploy [-c config.yaml] <command> [flags]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  provision [--skip-tls] [--skip-firewall]                       (prepare the host and bring the site up)")
	fmt.Fprintln(os.Stderr, "  update [--no-backup] [--no-cleanup] [--show-logs] [--quick]     (refresh content and rebuild)")
	fmt.Fprintln(os.Stderr, "  renew                                                          (renew certificates and reload nginx)")
	fmt.Fprintln(os.Stderr, "  render [--out DIR] [--tls]                                     (print or write the generated files)")
	fmt.Fprintln(os.Stderr, "  history [--limit N] | history show --id ID                     (past runs)")
	fmt.Fprintln(os.Stderr, "  backups                                                        (retained content snapshots)")
	fmt.Fprintln(os.Stderr, "  version")
}

// openStore opens the run journal. The journal is optional for the
// workflows: a failure here is logged and the run goes on without it.
func openStore(cfg *config.Config, logger *slog.Logger) store.RunStore {
	st, err := storesqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Warn("journal disabled", "err", err)
		return nil
	}
	if err := st.Migrate(); err != nil {
		logger.Warn("journal disabled", "err", err)
		_ = st.Close()
		return nil
	}
	return st
}

// newApp wires the workflows against the real host.
func newApp(cfg *config.Config, logger *slog.Logger, st store.RunStore) (*app.App, func(), error) {
	runner := execx.OSRunner{DefaultTimeout: 5 * time.Minute}
	deps := app.Deps{Runner: runner, Logger: logger, Store: st}

	cleanup := func() {}
	dc, err := docker.New(cfg.Docker.Host)
	if err != nil {
		logger.Warn("docker client unavailable", "err", err)
	} else {
		cleanup = func() { _ = dc.Close() }
		deps.Containers = dc
	}

	if cfg.Nginx.ReloadMode == "signal" {
		if dc == nil {
			cleanup()
			return nil, nil, fmt.Errorf("reload_mode=signal needs a docker client: %w", err)
		}
		r, err := docker.NewSignalReloader(dc, nginx.ContainerName(cfg.Site.Project, stack.ServiceNginx))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.Reloader = r
	}

	a, err := app.New(cfg, deps)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

// runWorkflow executes one workflow and maps its outcome to an exit code.
func runWorkflow(cfg *config.Config, logger *slog.Logger, exec func(a *app.App) (*workflow.Report, error)) int {
	st := openStore(cfg, logger)
	if st != nil {
		defer st.Close()
	}

	a, cleanup, err := newApp(cfg, logger, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return exitFatal
	}
	defer cleanup()

	rep, err := exec(a)
	if rep != nil {
		a.PrintReport(rep)
	}
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, workflow.ErrInterrupted):
		fmt.Fprintf(os.Stderr, "\nInterrupted: %v\n", err)
		return exitInterrupted
	default:
		fmt.Fprintf(os.Stderr, "\nFailed: %v\n", err)
		return exitFatal
	}
}

func cmdProvision(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	skipTLS := fs.Bool("skip-tls", false, "do not request a certificate or install the renewal schedule")
	skipFirewall := fs.Bool("skip-firewall", false, "leave ufw untouched (provision resets it otherwise)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	return runWorkflow(cfg, logger, func(a *app.App) (*workflow.Report, error) {
		return a.Provision(ctx, app.ProvisionOptions{SkipTLS: *skipTLS, SkipFirewall: *skipFirewall})
	})
}

func cmdUpdate(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	noBackup := fs.Bool("no-backup", false, "do not snapshot the current content")
	noCleanup := fs.Bool("no-cleanup", false, "do not prune unused images and containers")
	showLogs := fs.Bool("show-logs", false, "print recent container logs after the update")
	quick := fs.Bool("quick", false, "skip container status during the health check")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	return runWorkflow(cfg, logger, func(a *app.App) (*workflow.Report, error) {
		return a.Update(ctx, app.UpdateOptions{
			NoBackup:  *noBackup,
			NoCleanup: *noCleanup,
			ShowLogs:  *showLogs,
			Quick:     *quick,
		})
	})
}

func cmdRenew(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("renew", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	return runWorkflow(cfg, logger, func(a *app.App) (*workflow.Report, error) {
		return a.Renew(ctx)
	})
}

// offlineApp builds an App for commands that never run host commands.
func offlineApp(cfg *config.Config, logger *slog.Logger, st store.RunStore) *app.App {
	a, err := app.New(cfg, app.Deps{Runner: execx.OSRunner{}, Logger: logger, Store: st})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(exitFatal)
	}
	return a
}

func cmdRender(cfg *config.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	out := fs.String("out", "", "write files under DIR instead of printing them")
	tls := fs.Bool("tls", true, "render the proxy config in TLS mode")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if err := offlineApp(cfg, logger, nil).Render(*out, *tls); err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		return exitFatal
	}
	return exitOK
}

func cmdHistory(cfg *config.Config, logger *slog.Logger, args []string) int {
	st, err := storesqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		return exitFatal
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "store migrate: %v\n", err)
		return exitFatal
	}
	a := offlineApp(cfg, logger, st)

	if len(args) > 0 && args[0] == "show" {
		fs := flag.NewFlagSet("history show", flag.ContinueOnError)
		id := fs.String("id", "", "run id")
		if err := fs.Parse(args[1:]); err != nil {
			return exitUsage
		}
		if *id == "" {
			fmt.Fprintln(os.Stderr, "history show: --id is required")
			return exitUsage
		}
		if err := a.HistoryShow(*id); err != nil {
			fmt.Fprintf(os.Stderr, "history: %v\n", err)
			return exitFatal
		}
		return exitOK
	}

	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of runs to list")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if err := a.History(*limit); err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		return exitFatal
	}
	return exitOK
}

func cmdBackups(cfg *config.Config, logger *slog.Logger) int {
	if err := offlineApp(cfg, logger, nil).Backups(); err != nil {
		fmt.Fprintf(os.Stderr, "backups: %v\n", err)
		return exitFatal
	}
	return exitOK
}
