package host

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sitedeploy/internal/util"
	"sitedeploy/internal/util/atomic"
	"sitedeploy/internal/util/execx"
)

const dockerRepo = "https://download.docker.com/linux/ubuntu"

var (
	conflictingPackages = []string{"docker", "docker-engine", "docker.io", "containerd", "runc"}
	dockerPrereqs       = []string{"ca-certificates", "curl", "gnupg", "lsb-release"}
	dockerPackages      = []string{"docker-ce", "docker-ce-cli", "containerd.io", "docker-buildx-plugin", "docker-compose-plugin"}
)

// DockerPresent reports whether the docker CLI and the compose plugin work.
func (h *Host) DockerPresent(ctx context.Context) bool {
	if _, err := h.lookPath("docker"); err != nil {
		return false
	}
	return h.exec(ctx, execx.Command("docker", "compose", "version")) == nil
}

// EnsureDocker installs the Docker engine and compose plugin from the
// upstream apt repository unless they are already present. It reports
// whether anything was installed.
func (h *Host) EnsureDocker(ctx context.Context) (bool, error) {
	if h.DockerPresent(ctx) {
		h.log.Info("docker already installed")
		return false, nil
	}

	h.log.Info("installing docker")
	if err := h.exec(ctx, apt(append([]string{"remove", "-y"}, conflictingPackages...)...)); err != nil {
		h.log.Debug("remove conflicting packages", "err", err)
	}
	if err := h.InstallPackages(ctx, dockerPrereqs); err != nil {
		return false, err
	}

	if err := util.MkdirAll(h.KeyringDir, 0o755); err != nil {
		return false, err
	}
	armored := filepath.Join(h.KeyringDir, "docker.asc")
	keyring := filepath.Join(h.KeyringDir, "docker.gpg")
	steps := []execx.Cmd{
		execx.Command("curl", "-fsSL", dockerRepo+"/gpg", "-o", armored),
		execx.Command("gpg", "--batch", "--yes", "--dearmor", "-o", keyring, armored),
		execx.Command("chmod", "a+r", keyring),
	}
	for _, c := range steps {
		if err := h.exec(ctx, c); err != nil {
			return false, fmt.Errorf("docker signing key: %w", err)
		}
	}

	arch, err := execx.Output(ctx, h.run, execx.Command("dpkg", "--print-architecture"))
	if err != nil {
		return false, fmt.Errorf("detect architecture: %w", err)
	}
	codename, err := readCodename(h.OSRelease)
	if err != nil {
		return false, err
	}
	line := fmt.Sprintf("deb [arch=%s signed-by=%s] %s %s stable\n", arch, keyring, dockerRepo, codename)
	if err := atomic.WriteFileAtomic(h.SourceList, []byte(line), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", h.SourceList, err)
	}

	if err := h.InstallPackages(ctx, dockerPackages); err != nil {
		return false, err
	}
	for _, action := range []string{"enable", "start"} {
		if err := systemctl(ctx, h, action, "docker"); err != nil {
			return false, err
		}
	}
	return true, nil
}

// readCodename returns VERSION_CODENAME from an os-release file.
func readCodename(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if ok && k == "VERSION_CODENAME" {
			if v = strings.Trim(v, `"'`); v != "" {
				return v, nil
			}
		}
	}
	return "", fmt.Errorf("VERSION_CODENAME not found in %s", path)
}
