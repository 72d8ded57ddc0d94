package config

import (
	"os"
	"path/filepath"
)

// Paths is the fixed on-disk layout of one installed deployment.
type Paths struct {
	Root string

	ComposeFile string
	Dockerfile  string

	// Nginx
	NginxConfDir   string
	NginxConf      string
	NginxBackupDir string
	NginxLogsDir   string

	ScriptsDir  string
	RenewScript string

	ContentDir string
	BackupDir  string
	GitDir     string

	StagingRoot string
}

func (c *Config) ResolvePaths() Paths {
	root := c.Install.Root

	return Paths{
		Root:           root,
		ComposeFile:    filepath.Join(root, "docker-compose.yml"),
		Dockerfile:     filepath.Join(root, "Dockerfile"),
		NginxConfDir:   filepath.Join(root, "nginx", "conf.d"),
		NginxConf:      filepath.Join(root, "nginx", "conf.d", "site.conf"),
		NginxBackupDir: filepath.Join(root, "nginx", ".backup"),
		NginxLogsDir:   filepath.Join(root, "logs", "nginx"),
		ScriptsDir:     filepath.Join(root, "scripts"),
		RenewScript:    filepath.Join(root, "scripts", "renew-cert.sh"),
		ContentDir:     filepath.Join(root, "src"),
		BackupDir:      filepath.Join(root, "backups"),
		GitDir:         filepath.Join(root, ".git"),
		StagingRoot:    c.Install.StagingRoot,
	}
}

// Dirs lists the directories the provisioner creates up front.
func (p Paths) Dirs() []string {
	return []string{
		p.Root,
		p.NginxConfDir,
		p.NginxBackupDir,
		p.NginxLogsDir,
		p.ScriptsDir,
	}
}

// Installed reports whether a deployment exists at Root. The compose
// manifest is the only signal; nothing else is consulted.
func (p Paths) Installed() bool {
	st, err := os.Stat(p.ComposeFile)
	return err == nil && st.Mode().IsRegular()
}
