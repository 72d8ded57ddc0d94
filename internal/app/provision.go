package app

import (
	"context"
	"fmt"
	"strings"

	"sitedeploy/internal/health"
	"sitedeploy/internal/host"
	"sitedeploy/internal/stack"
	"sitedeploy/internal/workflow"
)

type ProvisionOptions struct {
	SkipTLS      bool
	SkipFirewall bool
}

// Provision prepares the host and brings the site up. It is safe to
// re-run: files are re-rendered and nothing is deleted.
func (a *App) Provision(ctx context.Context, opts ProvisionOptions) (*workflow.Report, error) {
	rs := a.newRunState("provision")
	return a.execute(ctx, rs, a.provisionPlan(rs, opts))
}

func (a *App) provisionPlan(rs *runState, opts ProvisionOptions) workflow.Plan {
	skip := func(cond bool, reason string) string {
		if cond {
			return reason
		}
		return ""
	}

	return workflow.Plan{Name: "provision", Steps: []workflow.Step{
		{Name: "check-privileges", Run: func(context.Context) error {
			return a.host.CheckPrivileges()
		}},
		{Name: "inspect-system", Policy: workflow.BestEffort, Run: func(ctx context.Context) error {
			_, warnings := a.host.Inspect(ctx)
			if len(warnings) > 0 {
				return workflow.Warn("%s", strings.Join(warnings, "; "))
			}
			return nil
		}},
		{Name: "install-packages", Run: func(ctx context.Context) error {
			return a.host.InstallPackages(ctx, a.cfg.Install.Packages)
		}},
		{Name: "ensure-container-runtime", Run: func(ctx context.Context) error {
			_, err := a.host.EnsureDocker(ctx)
			return err
		}},
		{Name: "ensure-firewall", Skip: skip(opts.SkipFirewall, "--skip-firewall"), Run: func(ctx context.Context) error {
			return a.host.EnsureFirewall(ctx)
		}},
		{Name: "create-layout", Run: func(context.Context) error {
			if err := host.EnsureLayout(a.paths); err != nil {
				return err
			}
			return a.ng.EnsureLayout()
		}},
		{Name: "fetch-content", Run: func(ctx context.Context) error {
			res, err := a.content.Acquire(ctx)
			if err != nil {
				return err
			}
			a.log.Info("content acquired", "method", res.Method, "files", res.Files)
			return nil
		}},
		{Name: "render-config", Run: func(ctx context.Context) error {
			rs.tls = a.certificatePresent(ctx)
			return a.materialize(rs)
		}},
		{Name: "start-services", Run: func(ctx context.Context) error {
			if _, err := a.exec(ctx, a.compose("up", "-d", "--build")); err != nil {
				return fmt.Errorf("start services: %w", err)
			}
			return a.sleep(ctx, a.cfg.Docker.StartupWait)
		}},
		{Name: "obtain-certificate", Policy: workflow.BestEffort, Skip: skip(opts.SkipTLS, "--skip-tls"), Run: func(ctx context.Context) error {
			return a.obtainCertificate(ctx, rs)
		}},
		{Name: "install-renewal-schedule", Policy: workflow.BestEffort, Skip: skip(opts.SkipTLS, "--skip-tls"), Run: func(ctx context.Context) error {
			_, err := a.host.InstallRenewalSchedule(ctx, a.cfg.Certs.RenewSchedule, a.paths.RenewScript)
			return err
		}},
		{Name: "health-check", Policy: workflow.BestEffort, Run: func(ctx context.Context) error {
			return a.healthCheck(ctx, health.EveryScheme, a.containers)
		}},
		{Name: "summary", Policy: workflow.BestEffort, Run: func(ctx context.Context) error {
			a.printProvisionSummary(ctx, rs)
			return nil
		}},
	}}
}

// certificatePresent reports whether a previous run left a certificate
// in the letsencrypt volume. It needs a compose manifest to ask.
func (a *App) certificatePresent(ctx context.Context) bool {
	if !a.paths.Installed() {
		return false
	}
	info, err := a.CertInfo(ctx)
	if err != nil {
		a.log.Debug("certificate lookup", "err", err)
		return false
	}
	return info.Exists
}

func (a *App) materialize(rs *runState) error {
	b, err := stack.Render(stack.ParamsFromConfig(a.cfg, rs.tls))
	if err != nil {
		return err
	}
	written, err := stack.Materialize(b, a.paths, a.ng)
	rs.recordWritten(written)
	if err != nil {
		return err
	}
	for _, w := range written {
		a.log.Info("file", "path", w.Path, "changed", w.Changed)
	}
	return nil
}

func (a *App) healthCheck(ctx context.Context, mode health.Reachability, lister health.ContainerLister) error {
	r := health.Check(ctx, a.prober, a.cfg.Site.Domain, mode, lister, a.cfg.Site.Project)
	for _, p := range r.Probes {
		a.log.Info("probe", "url", p.URL, "status", p.Status, "ok", p.OK())
	}
	for _, c := range r.Containers {
		a.log.Info("container", "name", c.Name, "state", c.State, "status", c.Status)
	}
	if len(r.Warnings) > 0 {
		return workflow.Warn("%s", strings.Join(r.Warnings, "; "))
	}
	return nil
}
