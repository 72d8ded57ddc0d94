package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Install InstallConfig `yaml:"install"`
	Source  SourceConfig  `yaml:"source"`
	Docker  DockerConfig  `yaml:"docker"`
	Nginx   NginxConfig   `yaml:"nginx"`
	Certs   CertsConfig   `yaml:"certs"`
	Backups BackupsConfig `yaml:"backups"`
	Health  HealthConfig  `yaml:"health"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

type SiteConfig struct {
	Domain  string `yaml:"domain"`
	Email   string `yaml:"email"`
	Project string `yaml:"project"`
}

type InstallConfig struct {
	Root        string   `yaml:"root"`         // default /opt/<project>
	StagingRoot string   `yaml:"staging_root"` // clones land here
	Packages    []string `yaml:"packages"`
}

type SourceConfig struct {
	Repo       string `yaml:"repo"`
	Branch     string `yaml:"branch"`
	ContentDir string `yaml:"content_dir"`
}

type DockerConfig struct {
	Host        string        `yaml:"host"` // empty = DOCKER_HOST / default socket
	StartupWait time.Duration `yaml:"startup_wait"`
	RebuildWait time.Duration `yaml:"rebuild_wait"`
}

type NginxConfig struct {
	ReloadMode       string `yaml:"reload_mode"` // "exec" or "signal"
	TestBeforeReload *bool  `yaml:"test_before_reload"`
}

type CertsConfig struct {
	RenewSchedule string        `yaml:"renew_schedule"`
	RenewInterval time.Duration `yaml:"renew_interval"`
}

type BackupsConfig struct {
	Keep int `yaml:"keep"`
}

type HealthConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var defaultPackages = []string{"curl", "wget", "git", "ufw", "ca-certificates"}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates a YAML document.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true) // catch typos in YAML
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Site.Domain = strings.ToLower(strings.TrimSpace(c.Site.Domain))
	c.Site.Project = strings.TrimSpace(c.Site.Project)

	// Install
	if c.Install.Root == "" && c.Site.Project != "" {
		c.Install.Root = "/opt/" + c.Site.Project
	}
	if c.Install.StagingRoot == "" {
		c.Install.StagingRoot = os.TempDir()
	}
	if len(c.Install.Packages) == 0 {
		c.Install.Packages = append([]string(nil), defaultPackages...)
	}

	// Source
	if c.Source.Branch == "" {
		c.Source.Branch = "main"
	}
	if c.Source.ContentDir == "" {
		c.Source.ContentDir = "src"
	}

	// Docker
	if c.Docker.StartupWait == 0 {
		c.Docker.StartupWait = 10 * time.Second
	}
	if c.Docker.RebuildWait == 0 {
		c.Docker.RebuildWait = 5 * time.Second
	}

	// Nginx
	if c.Nginx.ReloadMode == "" {
		c.Nginx.ReloadMode = "exec"
	}
	if c.Nginx.TestBeforeReload == nil {
		t := true
		c.Nginx.TestBeforeReload = &t
	}

	// Certs
	if c.Certs.RenewSchedule == "" {
		c.Certs.RenewSchedule = "0 3 * * *"
	}
	if c.Certs.RenewInterval == 0 {
		c.Certs.RenewInterval = 6 * time.Hour
	}

	if c.Backups.Keep == 0 {
		c.Backups.Keep = 5
	}
	if c.Health.Timeout == 0 {
		c.Health.Timeout = 10 * time.Second
	}

	// Storage
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "/var/lib/sitedeploy/sitedeploy.db"
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// TestBeforeReload reports whether nginx -t runs before every reload.
func (c *Config) TestBeforeReload() bool {
	return c.Nginx.TestBeforeReload == nil || *c.Nginx.TestBeforeReload
}
