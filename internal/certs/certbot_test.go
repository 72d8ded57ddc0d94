package certs

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"sitedeploy/internal/util/execx"
)

func selfSignedPEM(c *qt.C, notBefore, notAfter time.Time) string {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	c.Assert(err, qt.IsNil)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "example.com"},
		DNSNames:     []string{"example.com", "www.example.com"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	c.Assert(err, qt.IsNil)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

const catPrefix = "docker compose -f /opt/site/docker-compose.yml run --rm --entrypoint cat certbot"
const certbotPrefix = "docker compose -f /opt/site/docker-compose.yml run --rm --entrypoint certbot certbot"

func newManager(run execx.Runner, now time.Time) *CertbotManager {
	m := NewCertbotManager(run, "/opt/site/docker-compose.yml", "certbot", "ops@example.com")
	m.now = func() time.Time { return now }
	return m
}

func TestGetCertInfoMissing(t *testing.T) {
	c := qt.New(t)

	rec := execx.NewRecorder().Fail(catPrefix, 1, "cat: can't open '/etc/letsencrypt/live/example.com/fullchain.pem': No such file or directory")
	info, err := newManager(rec, time.Now()).GetCertInfo(context.Background(), "example.com")
	c.Assert(err, qt.IsNil)
	c.Assert(info.Exists, qt.IsFalse)
	c.Assert(info.State(), qt.Equals, StateNone)
	c.Assert(rec.Lines(), qt.DeepEquals, []string{catPrefix + " /etc/letsencrypt/live/example.com/fullchain.pem"})
}

func TestGetCertInfoParsesPEM(t *testing.T) {
	c := qt.New(t)

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	pemData := selfSignedPEM(c, now.AddDate(0, 0, -10), now.AddDate(0, 0, 80))
	rec := execx.NewRecorder().Stdout(catPrefix, pemData)

	info, err := newManager(rec, now).GetCertInfo(context.Background(), "example.com")
	c.Assert(err, qt.IsNil)
	c.Assert(info.State(), qt.Equals, StatePresent)
	c.Assert(info.DaysLeft, qt.Equals, 80)
	c.Assert(info.NotAfter.Equal(now.AddDate(0, 0, 80)), qt.IsTrue)
}

func TestGetCertInfoOtherErrors(t *testing.T) {
	c := qt.New(t)

	rec := execx.NewRecorder().Fail(catPrefix, 1, "Cannot connect to the Docker daemon")
	_, err := newManager(rec, time.Now()).GetCertInfo(context.Background(), "example.com")
	c.Assert(err, qt.ErrorMatches, `read cert .*Cannot connect to the Docker daemon`)

	rec = execx.NewRecorder().Stdout(catPrefix, "garbage")
	_, err = newManager(rec, time.Now()).GetCertInfo(context.Background(), "example.com")
	c.Assert(err, qt.ErrorMatches, "failed to decode PEM block")
}

func TestInRenewalWindow(t *testing.T) {
	c := qt.New(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	info := &CertInfo{Exists: true, NotBefore: start, NotAfter: start.AddDate(0, 0, 90)}

	c.Assert(info.InRenewalWindow(start.AddDate(0, 0, 10)), qt.IsFalse)
	c.Assert(info.InRenewalWindow(start.AddDate(0, 0, 59)), qt.IsFalse)
	c.Assert(info.InRenewalWindow(start.AddDate(0, 0, 60)), qt.IsTrue)
	c.Assert(info.InRenewalWindow(start.AddDate(0, 0, 95)), qt.IsTrue)
	c.Assert((*CertInfo)(nil).InRenewalWindow(start), qt.IsTrue)
}

func TestIssueCertArguments(t *testing.T) {
	c := qt.New(t)

	rec := execx.NewRecorder()
	c.Assert(newManager(rec, time.Now()).IssueCert(context.Background(), "example.com"), qt.IsNil)

	lines := rec.Lines()
	c.Assert(lines, qt.HasLen, 1)
	c.Assert(strings.HasPrefix(lines[0], certbotPrefix+" certonly --webroot -w /var/www/certbot -d example.com -d www.example.com"), qt.IsTrue)
	c.Assert(lines[0], qt.Contains, "--agree-tos --no-eff-email")
	c.Assert(lines[0], qt.Contains, "--email ops@example.com")

	c.Assert(newManager(rec, time.Now()).IssueCert(context.Background(), ""), qt.ErrorMatches, "domain is required")
}

func TestEnsureCert(t *testing.T) {
	c := qt.New(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	// Fresh certificate: nothing to do.
	rec := execx.NewRecorder().Stdout(catPrefix, selfSignedPEM(c, now.AddDate(0, 0, -1), now.AddDate(0, 0, 89)))
	issued, err := newManager(rec, now).EnsureCert(context.Background(), "example.com")
	c.Assert(err, qt.IsNil)
	c.Assert(issued, qt.IsFalse)
	c.Assert(rec.Count(certbotPrefix), qt.Equals, 0)

	// None present: exactly one issuance attempt, failure surfaced.
	rec = execx.NewRecorder().
		Fail(catPrefix, 1, "No such file or directory").
		Fail(certbotPrefix+" certonly", 1, "Challenge failed for domain example.com")
	issued, err = newManager(rec, now).EnsureCert(context.Background(), "example.com")
	c.Assert(issued, qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, `(?s)certbot failed: .*Challenge failed.*`)
	c.Assert(rec.Count(certbotPrefix+" certonly"), qt.Equals, 1)
}

func TestRenewAll(t *testing.T) {
	c := qt.New(t)

	rec := execx.NewRecorder()
	c.Assert(newManager(rec, time.Now()).RenewAll(context.Background()), qt.IsNil)
	c.Assert(rec.Lines(), qt.DeepEquals, []string{certbotPrefix + " renew --webroot -w /var/www/certbot --non-interactive --quiet"})
}
