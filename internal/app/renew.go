package app

import (
	"context"

	"sitedeploy/internal/workflow"
)

// Renew runs certbot renew once and reloads the proxy, the same work
// the scheduled helper script does.
func (a *App) Renew(ctx context.Context) (*workflow.Report, error) {
	rs := a.newRunState("renew")
	plan := workflow.Plan{Name: "renew", Steps: []workflow.Step{
		{Name: "check-privileges", Run: func(context.Context) error {
			return a.host.CheckPrivileges()
		}},
		{Name: "check-installation", Run: func(context.Context) error {
			return a.checkInstallation()
		}},
		{Name: "renew-certificates", Run: func(ctx context.Context) error {
			return a.certs.RenewAll(ctx)
		}},
		{Name: "reload-proxy", Policy: workflow.BestEffort, Run: func(ctx context.Context) error {
			if !a.certificatePresent(ctx) {
				return workflow.Warn("no certificate for %s, proxy left in HTTP mode", a.cfg.Site.Domain)
			}
			return a.activateTLS(ctx, rs)
		}},
		{Name: "summary", Policy: workflow.BestEffort, Run: func(ctx context.Context) error {
			a.printCertificate(ctx)
			return nil
		}},
	}}
	return a.execute(ctx, rs, plan)
}
