package config

import (
	"fmt"
	"net/mail"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	domainRe  = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
	projectRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

func (c *Config) Validate() error {
	var errs []string

	// Site
	if c.Site.Domain == "" {
		errs = append(errs, "site.domain is required (e.g. example.com)")
	} else if !domainRe.MatchString(c.Site.Domain) {
		errs = append(errs, fmt.Sprintf("site.domain=%q is not a valid hostname", c.Site.Domain))
	} else if strings.HasPrefix(c.Site.Domain, "www.") {
		errs = append(errs, fmt.Sprintf("site.domain=%q must be the bare domain (www is added automatically)", c.Site.Domain))
	}
	if strings.TrimSpace(c.Site.Email) == "" {
		errs = append(errs, "site.email is required (used for Let's Encrypt registration)")
	} else if _, err := mail.ParseAddress(c.Site.Email); err != nil {
		errs = append(errs, fmt.Sprintf("site.email=%q invalid: %v", c.Site.Email, err))
	}
	if c.Site.Project == "" {
		errs = append(errs, "site.project is required (e.g. my-site)")
	} else if !projectRe.MatchString(c.Site.Project) {
		errs = append(errs, fmt.Sprintf("site.project=%q must be lowercase letters, digits, '-' or '_'", c.Site.Project))
	}

	// Install
	if c.Install.Root != "" && !filepath.IsAbs(c.Install.Root) {
		errs = append(errs, fmt.Sprintf("install.root=%q must be absolute", c.Install.Root))
	}
	if !filepath.IsAbs(c.Install.StagingRoot) {
		errs = append(errs, fmt.Sprintf("install.staging_root=%q must be absolute", c.Install.StagingRoot))
	}

	// Source
	if strings.TrimSpace(c.Source.Repo) == "" {
		errs = append(errs, "source.repo is required (git URL of the site content)")
	}
	if cd := c.Source.ContentDir; filepath.IsAbs(cd) || strings.HasPrefix(filepath.Clean(cd), "..") {
		errs = append(errs, fmt.Sprintf("source.content_dir=%q must be relative to the repository root", cd))
	}

	// Nginx
	if c.Nginx.ReloadMode != "exec" && c.Nginx.ReloadMode != "signal" {
		errs = append(errs, fmt.Sprintf("nginx.reload_mode=%q unsupported (exec|signal)", c.Nginx.ReloadMode))
	}

	// Certs
	if _, err := cron.ParseStandard(c.Certs.RenewSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("certs.renew_schedule=%q invalid: %v", c.Certs.RenewSchedule, err))
	}
	if c.Certs.RenewInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("certs.renew_interval=%s must be at least 1m", c.Certs.RenewInterval))
	}

	if c.Backups.Keep < 1 {
		errs = append(errs, fmt.Sprintf("backups.keep=%d must be at least 1", c.Backups.Keep))
	}
	if c.Docker.StartupWait < 0 || c.Docker.RebuildWait < 0 {
		errs = append(errs, "docker.startup_wait and docker.rebuild_wait must not be negative")
	}
	if c.Health.Timeout < 0 {
		errs = append(errs, "health.timeout must not be negative")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level=%q unsupported (debug|info|warn|error)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format=%q unsupported (text|json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
