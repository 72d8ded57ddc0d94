package certs

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"path"
	"strings"
	"time"

	"sitedeploy/internal/nginx"
	"sitedeploy/internal/util/execx"
)

type State string

const (
	StateNone    State = "none"
	StatePresent State = "present"
)

// CertbotManager drives certbot through the compose "certbot" service,
// so certificates live in the shared letsencrypt volume.
type CertbotManager struct {
	ComposeFile string
	Service     string // compose service running certbot/certbot
	Webroot     string // ACME webroot inside the container
	Email       string

	run execx.Runner
	now func() time.Time
}

// CertInfo holds certificate information
type CertInfo struct {
	Domain    string
	CertPath  string
	NotBefore time.Time
	NotAfter  time.Time
	DaysLeft  int
	Exists    bool
}

func (i *CertInfo) State() State {
	if i == nil || !i.Exists {
		return StateNone
	}
	return StatePresent
}

// NewCertbotManager creates a new certbot manager
func NewCertbotManager(run execx.Runner, composeFile, service, email string) *CertbotManager {
	return &CertbotManager{
		ComposeFile: composeFile,
		Service:     service,
		Webroot:     nginx.ACMEWebroot,
		Email:       email,
		run:         run,
		now:         time.Now,
	}
}

func (m *CertbotManager) compose(entrypoint string, args ...string) execx.Cmd {
	base := []string{"compose", "-f", m.ComposeFile, "run", "--rm", "--entrypoint", entrypoint, m.Service}
	return execx.Command("docker", append(base, args...)...).WithTimeout(10 * time.Minute)
}

// IssueCert requests a certificate for domain and www.domain using the
// HTTP-01 challenge. The proxy must already serve the ACME webroot.
func (m *CertbotManager) IssueCert(ctx context.Context, domain string) error {
	if domain == "" {
		return fmt.Errorf("domain is required")
	}

	args := []string{
		"certonly",
		"--webroot",
		"-w", m.Webroot,
		"-d", domain,
		"-d", "www." + domain,
		"--non-interactive",
		"--agree-tos",
		"--no-eff-email",
		"--keep-until-expiring", // Don't re-issue if cert is still valid
	}

	if m.Email != "" {
		args = append(args, "--email", m.Email)
	} else {
		args = append(args, "--register-unsafely-without-email")
	}

	res, err := m.run.Run(ctx, m.compose("certbot", args...))
	if err != nil {
		return fmt.Errorf("certbot failed: %w\nOutput: %s", err, strings.TrimSpace(res.Stdout+res.Stderr))
	}
	return nil
}

// RenewAll attempts to renew all certificates. certbot itself skips
// certificates outside their renewal window.
func (m *CertbotManager) RenewAll(ctx context.Context) error {
	args := []string{
		"renew",
		"--webroot",
		"-w", m.Webroot,
		"--non-interactive",
		"--quiet",
	}

	res, err := m.run.Run(ctx, m.compose("certbot", args...))
	if err != nil {
		return fmt.Errorf("certbot renew all failed: %w\nOutput: %s", err, strings.TrimSpace(res.Stdout+res.Stderr))
	}
	return nil
}

// GetCertInfo reads the live certificate out of the volume and parses
// it. A missing certificate is not an error.
func (m *CertbotManager) GetCertInfo(ctx context.Context, domain string) (*CertInfo, error) {
	certPath := path.Join(nginx.LetsEncryptRoot, "live", domain, "fullchain.pem")
	info := &CertInfo{Domain: domain, CertPath: certPath}

	res, err := m.run.Run(ctx, m.compose("cat", certPath))
	if err != nil {
		if strings.Contains(res.Stderr, "No such file") {
			return info, nil
		}
		return nil, fmt.Errorf("read cert %s: %w", certPath, err)
	}

	if err := info.parse([]byte(res.Stdout), m.now()); err != nil {
		return nil, err
	}
	return info, nil
}

func (i *CertInfo) parse(certData []byte, now time.Time) error {
	block, _ := pem.Decode(certData)
	if block == nil {
		return fmt.Errorf("failed to decode PEM block")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}

	i.Exists = true
	i.NotBefore = cert.NotBefore
	i.NotAfter = cert.NotAfter
	i.DaysLeft = int(cert.NotAfter.Sub(now).Hours() / 24)
	return nil
}

// InRenewalWindow reports whether now falls in the final third of the
// certificate's validity, where a renewal attempt acts.
func (i *CertInfo) InRenewalWindow(now time.Time) bool {
	if i == nil || !i.Exists {
		return true
	}
	validity := i.NotAfter.Sub(i.NotBefore)
	return !now.Before(i.NotAfter.Add(-validity / 3))
}

// EnsureCert issues a certificate when none is present or the present
// one is due for renewal. It makes at most one issuance attempt and
// reports whether one was made.
func (m *CertbotManager) EnsureCert(ctx context.Context, domain string) (issued bool, err error) {
	info, err := m.GetCertInfo(ctx, domain)
	if err == nil && info.Exists && !info.InRenewalWindow(m.now()) {
		return false, nil
	}
	if err := m.IssueCert(ctx, domain); err != nil {
		return true, err
	}
	return true, nil
}
