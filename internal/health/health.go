// Package health probes the deployed site and its containers.
package health

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sitedeploy/internal/docker"
)

// Probe is the outcome of one HTTP reachability check.
type Probe struct {
	URL    string
	Status int
	Err    error
}

func (p Probe) OK() bool {
	return p.Err == nil
}

func (p Probe) String() string {
	if p.Err != nil {
		return fmt.Sprintf("%s unreachable: %v", p.URL, p.Err)
	}
	return fmt.Sprintf("%s -> %d", p.URL, p.Status)
}

// ContainerLister reports the containers of a compose project.
type ContainerLister interface {
	ProjectContainers(ctx context.Context, project string) ([]docker.ContainerStatus, error)
}

// Prober runs HEAD requests. Any HTTP response counts as reachable and
// redirects are reported, not followed.
type Prober struct {
	client *http.Client
}

func NewProber(timeout time.Duration) *Prober {
	return &Prober{client: &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

// WithTLSConfig sets the TLS configuration used for https probes.
func (p *Prober) WithTLSConfig(cfg *tls.Config) *Prober {
	return p.WithTransport(&http.Transport{TLSClientConfig: cfg})
}

func (p *Prober) WithTransport(rt http.RoundTripper) *Prober {
	p.client.Transport = rt
	return p
}

func (p *Prober) Head(ctx context.Context, url string) Probe {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return Probe{URL: url, Err: err}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Probe{URL: url, Err: err}
	}
	resp.Body.Close()
	return Probe{URL: url, Status: resp.StatusCode}
}

// Site probes http:// and https:// for domain.
func (p *Prober) Site(ctx context.Context, domain string) []Probe {
	return []Probe{
		p.Head(ctx, "http://"+domain),
		p.Head(ctx, "https://"+domain),
	}
}

// Report summarizes one verification pass. It never carries a fatal error.
type Report struct {
	Probes     []Probe
	Containers []docker.ContainerStatus
	Warnings   []string
}

// Reachability selects which failed probes are reported.
type Reachability int

const (
	// EveryScheme warns for each scheme that does not answer.
	EveryScheme Reachability = iota
	// AnyScheme warns only when no scheme answers.
	AnyScheme
)

// Check probes the site and, when lister is non-nil, lists the project's
// containers. Failures become warnings.
func Check(ctx context.Context, p *Prober, domain string, mode Reachability, lister ContainerLister, project string) Report {
	var (
		r      Report
		failed []string
	)
	for _, probe := range p.Site(ctx, domain) {
		r.Probes = append(r.Probes, probe)
		if !probe.OK() {
			failed = append(failed, probe.String())
		}
	}
	switch {
	case mode == EveryScheme:
		r.Warnings = append(r.Warnings, failed...)
	case len(failed) == len(r.Probes):
		r.Warnings = append(r.Warnings, "site unreachable: "+strings.Join(failed, "; "))
	}
	if lister == nil {
		return r
	}
	if pinger, ok := lister.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			r.Warnings = append(r.Warnings, "docker daemon: "+err.Error())
			return r
		}
	}
	cs, err := lister.ProjectContainers(ctx, project)
	if err != nil {
		r.Warnings = append(r.Warnings, "container status: "+err.Error())
		return r
	}
	r.Containers = cs
	for _, ct := range cs {
		if !ct.Running() {
			r.Warnings = append(r.Warnings, fmt.Sprintf("container %s is %s", ct.Name, ct.State))
		}
	}
	return r
}
