package app

import (
	"context"
	"fmt"
	"strings"

	"sitedeploy/internal/backup"
	"sitedeploy/internal/health"
	"sitedeploy/internal/stack"
	"sitedeploy/internal/util"
	"sitedeploy/internal/util/execx"
	"sitedeploy/internal/util/hashx"
	"sitedeploy/internal/workflow"
)

type UpdateOptions struct {
	NoBackup  bool
	NoCleanup bool
	ShowLogs  bool
	Quick     bool // skip container status during health check
}

// Update refreshes the content tree of an existing installation and
// rebuilds the web container.
func (a *App) Update(ctx context.Context, opts UpdateOptions) (*workflow.Report, error) {
	rs := a.newRunState("update")
	return a.execute(ctx, rs, a.updatePlan(rs, opts))
}

func (a *App) updatePlan(rs *runState, opts UpdateOptions) workflow.Plan {
	var (
		snapshot *backup.Snapshot
		files    int
		removed  []backup.Snapshot
	)

	skipBackup := ""
	if opts.NoBackup {
		skipBackup = "--no-backup"
	}
	skipPrune := ""
	if opts.NoCleanup {
		skipPrune = "--no-cleanup"
	}
	skipLogs := "not requested"
	if opts.ShowLogs {
		skipLogs = ""
	}
	lister := a.containers
	if opts.Quick {
		lister = nil
	}

	return workflow.Plan{Name: "update", Steps: []workflow.Step{
		{Name: "check-privileges", Run: func(context.Context) error {
			return a.host.CheckPrivileges()
		}},
		{Name: "check-installation", Run: func(context.Context) error {
			return a.checkInstallation()
		}},
		{Name: "create-backup", Skip: skipBackup, Run: func(context.Context) error {
			if !util.DirExists(a.paths.ContentDir) {
				return workflow.Warn("no content at %s, backup not created", a.paths.ContentDir)
			}
			s, err := a.backups.Create(a.paths.ContentDir)
			if err != nil {
				return err
			}
			snapshot = &s
			a.log.Info("backup created", "path", s.Path)
			return nil
		}},
		{Name: "replace-content", Run: func(ctx context.Context) error {
			before, _ := hashx.TreeDigest(a.paths.ContentDir)
			n, err := a.content.Replace(ctx)
			if err != nil {
				return err
			}
			files = n
			after, err := hashx.TreeDigest(a.paths.ContentDir)
			if err != nil {
				return err
			}
			rs.recordWritten([]stack.Written{{Path: a.paths.ContentDir, Hash: after, Changed: before != after}})
			a.log.Info("content replaced", "files", n, "changed", before != after)
			return nil
		}},
		{Name: "rebuild-web", Run: func(ctx context.Context) error {
			if _, err := a.exec(ctx, a.compose("up", "-d", "--build", "web")); err != nil {
				return fmt.Errorf("rebuild: %w", err)
			}
			return a.sleep(ctx, a.cfg.Docker.RebuildWait)
		}},
		{Name: "prune-images", Policy: workflow.BestEffort, Skip: skipPrune, Run: func(ctx context.Context) error {
			var failed []string
			for _, what := range []string{"image", "container"} {
				if _, err := a.exec(ctx, execx.Command("docker", what, "prune", "-f")); err != nil {
					failed = append(failed, err.Error())
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%s", strings.Join(failed, "; "))
			}
			return nil
		}},
		{Name: "rotate-backups", Policy: workflow.BestEffort, Run: func(context.Context) error {
			var err error
			removed, err = a.backups.Rotate()
			for _, s := range removed {
				a.log.Info("backup removed", "name", s.Name)
			}
			return err
		}},
		{Name: "health-check", Policy: workflow.BestEffort, Run: func(ctx context.Context) error {
			return a.healthCheck(ctx, health.AnyScheme, lister)
		}},
		{Name: "show-logs", Policy: workflow.BestEffort, Skip: skipLogs, Run: func(ctx context.Context) error {
			res, err := a.exec(ctx, a.compose("logs", "--tail=20"))
			fmt.Fprint(a.out, res.Stdout)
			return err
		}},
		{Name: "summary", Policy: workflow.BestEffort, Run: func(context.Context) error {
			a.printUpdateSummary(rs, snapshot, files, len(removed))
			return nil
		}},
	}}
}
