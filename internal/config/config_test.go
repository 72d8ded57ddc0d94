package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

const minimalYAML = `
site:
  domain: Example.COM
  email: ops@example.com
  project: service-web
source:
  repo: https://example.com/site.git
`

func TestParseAppliesDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := Parse([]byte(minimalYAML))
	c.Assert(err, qt.IsNil)

	c.Assert(cfg.Site.Domain, qt.Equals, "example.com")
	c.Assert(cfg.Install.Root, qt.Equals, "/opt/service-web")
	c.Assert(cfg.Source.Branch, qt.Equals, "main")
	c.Assert(cfg.Source.ContentDir, qt.Equals, "src")
	c.Assert(cfg.Docker.StartupWait, qt.Equals, 10*time.Second)
	c.Assert(cfg.Nginx.ReloadMode, qt.Equals, "exec")
	c.Assert(cfg.TestBeforeReload(), qt.IsTrue)
	c.Assert(cfg.Certs.RenewSchedule, qt.Equals, "0 3 * * *")
	c.Assert(cfg.Certs.RenewInterval, qt.Equals, 6*time.Hour)
	c.Assert(cfg.Backups.Keep, qt.Equals, 5)
	c.Assert(cfg.Install.Packages, qt.Contains, "git")
}

func TestParseKeepsExplicitTestBeforeReloadFalse(t *testing.T) {
	c := qt.New(t)

	cfg, err := Parse([]byte(minimalYAML + "nginx:\n  test_before_reload: false\n"))
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.TestBeforeReload(), qt.IsFalse)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	c := qt.New(t)

	_, err := Parse([]byte(minimalYAML + "backup:\n  keep: 3\n"))
	c.Assert(err, qt.ErrorMatches, `(?s)parse yaml: .*field backup not found.*`)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	c := qt.New(t)

	_, err := Parse([]byte(`
site:
  domain: www.example.com
  email: not-an-email
  project: Bad Name
certs:
  renew_schedule: "every day"
nginx:
  reload_mode: systemd
`))
	c.Assert(err, qt.Not(qt.IsNil))
	msg := err.Error()
	for _, want := range []string{
		"must be the bare domain",
		"site.email=",
		"site.project=",
		"source.repo is required",
		"certs.renew_schedule=",
		"nginx.reload_mode=",
	} {
		c.Check(msg, qt.Contains, want)
	}
}

func TestValidateRenewIntervalFloor(t *testing.T) {
	c := qt.New(t)

	_, err := Parse([]byte(minimalYAML + "certs:\n  renew_interval: 500ms\n"))
	c.Assert(err, qt.ErrorMatches, `(?s).*certs.renew_interval=500ms must be at least 1m.*`)

	cfg, err := Parse([]byte(minimalYAML + "certs:\n  renew_interval: 1m\n"))
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Certs.RenewInterval, qt.Equals, time.Minute)
}

func TestLoadWrapsPath(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(c.TempDir(), "config.yaml")
	c.Assert(os.WriteFile(path, []byte(minimalYAML), 0o644), qt.IsNil)

	cfg, err := Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Site.Project, qt.Equals, "service-web")

	_, err = Load(filepath.Join(c.TempDir(), "missing.yaml"))
	c.Assert(err, qt.ErrorMatches, `read config .*`)
}

func TestInstalledDependsOnlyOnComposeFile(t *testing.T) {
	c := qt.New(t)

	cfg, err := Parse([]byte(minimalYAML))
	c.Assert(err, qt.IsNil)
	cfg.Install.Root = c.TempDir()
	p := cfg.ResolvePaths()

	c.Assert(p.Installed(), qt.IsFalse)

	// Other artifacts alone do not count.
	c.Assert(os.MkdirAll(p.NginxConfDir, 0o755), qt.IsNil)
	c.Assert(os.WriteFile(p.NginxConf, []byte("x"), 0o644), qt.IsNil)
	c.Assert(os.WriteFile(p.Dockerfile, []byte("x"), 0o644), qt.IsNil)
	c.Assert(os.MkdirAll(p.ContentDir, 0o755), qt.IsNil)
	c.Assert(p.Installed(), qt.IsFalse)

	c.Assert(os.WriteFile(p.ComposeFile, []byte("services: {}\n"), 0o644), qt.IsNil)
	c.Assert(p.Installed(), qt.IsTrue)

	// Nothing but the manifest.
	root2 := c.TempDir()
	cfg.Install.Root = root2
	p2 := cfg.ResolvePaths()
	c.Assert(os.WriteFile(p2.ComposeFile, []byte("services: {}\n"), 0o644), qt.IsNil)
	c.Assert(p2.Installed(), qt.IsTrue)
}
