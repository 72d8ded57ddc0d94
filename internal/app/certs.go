package app

import (
	"context"

	"sitedeploy/internal/certs"
	"sitedeploy/internal/stack"
	"sitedeploy/internal/util/hashx"
	"sitedeploy/internal/workflow"
)

func (a *App) CertInfo(ctx context.Context) (*certs.CertInfo, error) {
	return a.certs.GetCertInfo(ctx, a.cfg.Site.Domain)
}

// obtainCertificate makes at most one issuance attempt and switches the
// proxy to TLS mode once a certificate is present. Every failure is a
// warning: the site keeps serving plain HTTP.
func (a *App) obtainCertificate(ctx context.Context, rs *runState) error {
	issued, err := a.certs.EnsureCert(ctx, a.cfg.Site.Domain)
	if err != nil {
		return workflow.Warn("certificate issuance failed, serving HTTP only: %v", err)
	}
	if !issued && rs.tls {
		a.log.Info("certificate present and not due for renewal")
		return nil
	}
	return a.activateTLS(ctx, rs)
}

// activateTLS publishes the TLS proxy config and reloads nginx, even
// when the config is unchanged so renewed certificate files are loaded.
func (a *App) activateTLS(ctx context.Context, rs *runState) error {
	b, err := stack.Render(stack.ParamsFromConfig(a.cfg, true))
	if err != nil {
		return err
	}
	changed, err := a.ng.PublishAndReload(ctx, b.NginxConf, a.cfg.TestBeforeReload())
	rs.recordWritten([]stack.Written{{Path: a.paths.NginxConf, Hash: hashx.Sha256Hex(b.NginxConf), Changed: changed}})
	if err != nil {
		return workflow.Warn("%v", err)
	}
	rs.tls = true
	if !changed {
		if err := a.ng.Reload(ctx); err != nil {
			return workflow.Warn("nginx reload failed: %v", err)
		}
	}
	a.log.Info("nginx reloaded with TLS", "changed", changed)
	return nil
}
