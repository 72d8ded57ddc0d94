package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"sitedeploy/internal/docker"
)

func TestHeadDoesNotFollowRedirects(t *testing.T) {
	c := qt.New(t)

	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		http.Redirect(w, r, "https://example.com/", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	got := NewProber(time.Second).Head(context.Background(), srv.URL)
	c.Assert(got.OK(), qt.IsTrue)
	c.Assert(got.Status, qt.Equals, http.StatusMovedPermanently)
	c.Assert(methods, qt.DeepEquals, []string{http.MethodHead})
}

func TestHeadErrorStatusIsReachable(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	got := NewProber(time.Second).Head(context.Background(), srv.URL)
	c.Assert(got.OK(), qt.IsTrue)
	c.Assert(got.String(), qt.Equals, srv.URL+" -> 502")
}

func TestHeadOverTLS(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	p := NewProber(time.Second).WithTLSConfig(srv.Client().Transport.(*http.Transport).TLSClientConfig)
	got := p.Head(context.Background(), srv.URL)
	c.Assert(got.Err, qt.IsNil)
	c.Assert(got.Status, qt.Equals, http.StatusOK)
}

func TestHeadUnreachable(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	got := NewProber(time.Second).Head(context.Background(), url)
	c.Assert(got.OK(), qt.IsFalse)
	c.Assert(got.String(), qt.Contains, "unreachable")
}

type fakeLister struct {
	cs  []docker.ContainerStatus
	err error
}

func (f fakeLister) ProjectContainers(context.Context, string) ([]docker.ContainerStatus, error) {
	return f.cs, f.err
}

func TestCheckCollectsWarnings(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	lister := fakeLister{cs: []docker.ContainerStatus{
		{Name: "site-nginx", State: "running"},
		{Name: "site-certbot", State: "exited"},
	}}
	r := Check(context.Background(), NewProber(time.Second), host, EveryScheme, lister, "site")

	c.Assert(r.Probes, qt.HasLen, 2)
	c.Assert(r.Probes[0].OK(), qt.IsTrue)
	// Plain HTTP server answering an https request fails the handshake.
	c.Assert(r.Probes[1].OK(), qt.IsFalse)
	c.Assert(r.Containers, qt.HasLen, 2)
	c.Assert(r.Warnings, qt.HasLen, 2)
	c.Assert(r.Warnings[1], qt.Equals, "container site-certbot is exited")
}

func TestCheckWithoutListerAndListerError(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	r := Check(context.Background(), NewProber(time.Second), host, EveryScheme, nil, "site")
	c.Assert(r.Containers, qt.IsNil)

	r = Check(context.Background(), NewProber(time.Second), host, EveryScheme, fakeLister{err: errors.New("daemon down")}, "site")
	c.Assert(r.Warnings[len(r.Warnings)-1], qt.Equals, "container status: daemon down")
}

type pingingLister struct {
	fakeLister
	pingErr error
}

func (p pingingLister) Ping(context.Context) error { return p.pingErr }

func TestCheckPingsDaemonFirst(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	lister := pingingLister{
		fakeLister: fakeLister{cs: []docker.ContainerStatus{{Name: "site-web", State: "running"}}},
		pingErr:    errors.New("cannot connect"),
	}
	r := Check(context.Background(), NewProber(time.Second), host, EveryScheme, lister, "site")
	c.Assert(r.Containers, qt.IsNil)
	c.Assert(r.Warnings[len(r.Warnings)-1], qt.Equals, "docker daemon: cannot connect")
}

func TestCheckAnySchemeWarnsOnlyWhenSiteIsDown(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := strings.TrimPrefix(srv.URL, "http://")

	// http answers, https fails the handshake.
	r := Check(context.Background(), NewProber(time.Second), host, AnyScheme, nil, "site")
	c.Assert(r.Probes, qt.HasLen, 2)
	c.Assert(r.Probes[1].OK(), qt.IsFalse)
	c.Assert(r.Warnings, qt.HasLen, 0)

	srv.Close()
	r = Check(context.Background(), NewProber(time.Second), host, AnyScheme, nil, "site")
	c.Assert(r.Warnings, qt.HasLen, 1)
	c.Assert(r.Warnings[0], qt.Matches, `site unreachable: http://.* unreachable: .*; https://.* unreachable: .*`)
}
