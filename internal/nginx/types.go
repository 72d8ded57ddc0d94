package nginx

import (
	"path"
	"strings"
)

type Header struct {
	Name  string
	Value string
}

// SiteTemplateData is everything site.tmpl needs. Rendering is a pure
// function of this value.
type SiteTemplateData struct {
	Domain      string
	Upstream    string // host:port of the content container
	ACMEWebroot string // path inside the proxy container
	TLS         bool   // false renders the HTTP-only bootstrap server
	CertDir     string // live certificate directory inside the proxy container

	AccessLog string
	ErrorLog  string

	SecurityHeaders  []Header
	GzipTypes        []string
	StaticExtensions []string
}

const (
	ACMEWebroot     = "/var/www/certbot"
	LetsEncryptRoot = "/etc/letsencrypt"
)

var (
	defaultSecurityHeaders = []Header{
		{"Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload"},
		{"X-Frame-Options", "SAMEORIGIN"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "no-referrer-when-downgrade"},
		{"X-XSS-Protection", "1; mode=block"},
		{"Content-Security-Policy", "default-src 'self' 'unsafe-inline' 'unsafe-eval' data: blob:;"},
	}
	defaultGzipTypes = []string{
		"text/plain",
		"text/css",
		"text/xml",
		"text/javascript",
		"application/javascript",
		"application/xml+rss",
		"application/json",
		"image/svg+xml",
	}
	defaultStaticExtensions = []string{"jpg", "jpeg", "gif", "png", "ico", "svg", "css", "js", "woff", "woff2", "ttf", "eot"}
)

// ContainerName is the compose container_name for a project service.
func ContainerName(project, service string) string {
	return project + "-" + service
}

// NewSiteData builds template data for a domain served by the project's
// web container.
func NewSiteData(domain, project string, tls bool) SiteTemplateData {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return SiteTemplateData{
		Domain:           domain,
		Upstream:         ContainerName(project, "web") + ":80",
		ACMEWebroot:      ACMEWebroot,
		TLS:              tls,
		CertDir:          path.Join(LetsEncryptRoot, "live", domain),
		AccessLog:        "/var/log/nginx/access.log",
		ErrorLog:         "/var/log/nginx/error.log",
		SecurityHeaders:  append([]Header(nil), defaultSecurityHeaders...),
		GzipTypes:        append([]string(nil), defaultGzipTypes...),
		StaticExtensions: append([]string(nil), defaultStaticExtensions...),
	}
}

// StaticPattern is the location regex for long-cached assets.
func (d SiteTemplateData) StaticPattern() string {
	return `\.(?:` + strings.Join(d.StaticExtensions, "|") + `)$`
}
