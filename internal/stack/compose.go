package stack

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"sitedeploy/internal/nginx"
)

type Compose struct {
	Name     string             `yaml:"name"`
	Services map[string]Service `yaml:"services"`
	Networks map[string]Network `yaml:"networks"`
	Volumes  map[string]Volume  `yaml:"volumes"`
}

type Service struct {
	Build         *Build       `yaml:"build,omitempty"`
	Image         string       `yaml:"image,omitempty"`
	ContainerName string       `yaml:"container_name"`
	Restart       string       `yaml:"restart,omitempty"`
	DependsOn     []string     `yaml:"depends_on,omitempty"`
	Ports         []string     `yaml:"ports,omitempty"`
	Networks      []string     `yaml:"networks,omitempty"`
	Volumes       []string     `yaml:"volumes,omitempty"`
	Entrypoint    []string     `yaml:"entrypoint,omitempty"`
	Command       []string     `yaml:"command,omitempty"`
	Healthcheck   *Healthcheck `yaml:"healthcheck,omitempty"`
}

type Build struct {
	Context    string `yaml:"context"`
	Dockerfile string `yaml:"dockerfile"`
}

type Healthcheck struct {
	Test        []string `yaml:"test"`
	Interval    string   `yaml:"interval"`
	Timeout     string   `yaml:"timeout"`
	Retries     int      `yaml:"retries"`
	StartPeriod string   `yaml:"start_period"`
}

type Network struct {
	Driver string `yaml:"driver"`
}

type Volume struct{}

const (
	ServiceWeb     = "web"
	ServiceNginx   = "nginx"
	ServiceCertbot = "certbot"

	volumeWebroot     = "certbot-webroot"
	volumeLetsEncrypt = "letsencrypt"
	networkName       = "webnet"

	// ReloadMarker is touched by the certbot deploy hook; the proxy
	// container reloads itself when it appears.
	ReloadMarker = nginx.LetsEncryptRoot + "/.reload-nginx"
)

// NewCompose builds the three-service manifest for a project.
func NewCompose(project string, renewEvery time.Duration) Compose {
	webroot := volumeWebroot + ":" + nginx.ACMEWebroot
	certs := volumeLetsEncrypt + ":" + nginx.LetsEncryptRoot

	return Compose{
		Name: project,
		Services: map[string]Service{
			ServiceWeb: {
				Build:         &Build{Context: ".", Dockerfile: "Dockerfile"},
				ContainerName: nginx.ContainerName(project, ServiceWeb),
				Restart:       "unless-stopped",
				Networks:      []string{networkName},
				Healthcheck: &Healthcheck{
					Test:        []string{"CMD", "wget", "-qO-", "http://localhost"},
					Interval:    "30s",
					Timeout:     "10s",
					Retries:     3,
					StartPeriod: "20s",
				},
			},
			ServiceNginx: {
				Image:         "nginx:alpine",
				ContainerName: nginx.ContainerName(project, ServiceNginx),
				Restart:       "unless-stopped",
				DependsOn:     []string{ServiceWeb},
				Ports:         []string{"80:80", "443:443"},
				Networks:      []string{networkName},
				Volumes: []string{
					"./nginx/conf.d:/etc/nginx/conf.d:ro",
					webroot,
					certs,
					"./logs/nginx:/var/log/nginx",
				},
				Command: []string{"/bin/sh", "-c", reloadWatcher()},
			},
			ServiceCertbot: {
				Image:         "certbot/certbot:latest",
				ContainerName: nginx.ContainerName(project, ServiceCertbot),
				Restart:       "unless-stopped",
				DependsOn:     []string{ServiceNginx},
				Volumes:       []string{webroot, certs},
				Entrypoint:    []string{"/bin/sh", "-c"},
				Command:       []string{renewLoop(renewEvery)},
			},
		},
		Networks: map[string]Network{networkName: {Driver: "bridge"}},
		Volumes:  map[string]Volume{volumeWebroot: {}, volumeLetsEncrypt: {}},
	}
}

// MinRenewInterval is the shortest pause the certbot renew loop accepts.
const MinRenewInterval = time.Minute

// renewLoop sleeps between renewal attempts forever. certbot runs the
// deploy hook only when a certificate was actually renewed.
func renewLoop(every time.Duration) string {
	if every < MinRenewInterval {
		every = MinRenewInterval
	}
	return fmt.Sprintf(
		"trap exit TERM; while :; do sleep %d & wait $${!}; certbot renew --webroot -w %s --quiet --deploy-hook 'touch %s'; done",
		int(every.Seconds()), nginx.ACMEWebroot, ReloadMarker)
}

func reloadWatcher() string {
	return fmt.Sprintf(
		"while :; do sleep 60; if [ -f %[1]s ]; then rm -f %[1]s; nginx -s reload; fi; done & exec nginx -g 'daemon off;'",
		ReloadMarker)
}

func RenderCompose(c Compose) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# Generated by sitedeploy. Manual edits are overwritten.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode compose: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode compose: %w", err)
	}
	return buf.Bytes(), nil
}
