package stack

import (
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"sitedeploy/internal/config"
	"sitedeploy/internal/nginx"
	"sitedeploy/internal/util/atomic"
	"sitedeploy/internal/util/hashx"
)

const dockerfile = `# Generated by sitedeploy. Manual edits are overwritten.
FROM nginx:alpine

WORKDIR /usr/share/nginx/html

RUN rm -rf /usr/share/nginx/html/*

COPY ./src/ /usr/share/nginx/html/

EXPOSE 80

CMD ["nginx", "-g", "daemon off;"]
`

var renewScriptTmpl = template.Must(template.New("renew").Funcs(template.FuncMap{"sh": shQuote}).Parse(`#!/bin/sh
# Generated by sitedeploy. Renews certificates and reloads nginx on success.
set -eu
cd {{ sh .Root }}
if docker compose run --rm --entrypoint certbot {{ .Certbot }} renew --webroot -w {{ .Webroot }} --quiet; then
    docker exec {{ .Container }} nginx -s reload
fi
`))

// shQuote single-quotes s for /bin/sh.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Params are the only inputs of the generated files.
type Params struct {
	Domain     string
	Project    string
	Root       string
	TLS        bool
	RenewEvery time.Duration
}

func ParamsFromConfig(cfg *config.Config, tls bool) Params {
	return Params{
		Domain:     cfg.Site.Domain,
		Project:    cfg.Site.Project,
		Root:       cfg.Install.Root,
		TLS:        tls,
		RenewEvery: cfg.Certs.RenewInterval,
	}
}

// Bundle holds the rendered artifacts of one deployment.
type Bundle struct {
	Compose     []byte
	NginxConf   []byte
	Dockerfile  []byte
	RenewScript []byte
}

// Render is a pure function of p: no I/O, same bytes for the same input.
func Render(p Params) (Bundle, error) {
	if p.Domain == "" || p.Project == "" || p.Root == "" {
		return Bundle{}, fmt.Errorf("domain, project and root are required")
	}
	if p.RenewEvery <= 0 {
		p.RenewEvery = 6 * time.Hour
	}

	compose, err := RenderCompose(NewCompose(p.Project, p.RenewEvery))
	if err != nil {
		return Bundle{}, err
	}
	conf, err := nginx.RenderSite(nginx.NewSiteData(p.Domain, p.Project, p.TLS))
	if err != nil {
		return Bundle{}, err
	}

	var script strings.Builder
	err = renewScriptTmpl.Execute(&script, map[string]string{
		"Root":      p.Root,
		"Certbot":   ServiceCertbot,
		"Webroot":   nginx.ACMEWebroot,
		"Container": nginx.ContainerName(p.Project, ServiceNginx),
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("render renew script: %w", err)
	}

	return Bundle{
		Compose:     compose,
		NginxConf:   conf,
		Dockerfile:  []byte(dockerfile),
		RenewScript: []byte(script.String()),
	}, nil
}

// Publisher installs the proxy config; nginx.Manager keeps a backup of
// the version it replaces.
type Publisher interface {
	Publish(data []byte) (bool, error)
}

type Written struct {
	Path    string
	Hash    string
	Changed bool
}

// Materialize writes the bundle into the layout. Unchanged files are
// left untouched.
func Materialize(b Bundle, p config.Paths, proxy Publisher) ([]Written, error) {
	files := []struct {
		path string
		data []byte
		perm os.FileMode
	}{
		{p.ComposeFile, b.Compose, 0o644},
		{p.Dockerfile, b.Dockerfile, 0o644},
		{p.RenewScript, b.RenewScript, 0o755},
	}

	var out []Written
	for _, f := range files {
		changed, err := atomic.WriteFileIfChanged(f.path, f.data, f.perm)
		if err != nil {
			return out, fmt.Errorf("write %s: %w", f.path, err)
		}
		out = append(out, Written{Path: f.path, Hash: hashx.Sha256Hex(f.data), Changed: changed})
	}

	changed, err := proxy.Publish(b.NginxConf)
	if err != nil {
		return out, err
	}
	out = append(out, Written{Path: p.NginxConf, Hash: hashx.Sha256Hex(b.NginxConf), Changed: changed})
	return out, nil
}
