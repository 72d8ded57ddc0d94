package nginx

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed templates/site.tmpl
var templatesFS embed.FS

var siteTmpl = template.Must(template.ParseFS(templatesFS, "templates/site.tmpl"))

// RenderSite renders the reverse-proxy config. Same input, same bytes.
func RenderSite(site SiteTemplateData) ([]byte, error) {
	if site.Domain == "" {
		return nil, fmt.Errorf("site.Domain is required")
	}
	if site.Upstream == "" {
		return nil, fmt.Errorf("site.Upstream is required")
	}
	if site.ACMEWebroot == "" {
		return nil, fmt.Errorf("site.ACMEWebroot is required")
	}
	if site.TLS && site.CertDir == "" {
		return nil, fmt.Errorf("site.CertDir is required in TLS mode")
	}

	var buf bytes.Buffer
	if err := siteTmpl.ExecuteTemplate(&buf, "site.tmpl", site); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}
